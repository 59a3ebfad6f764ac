package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	dserrors "github.com/ashebanow/secretspec/internal/errors"
	"github.com/ashebanow/secretspec/internal/providers/contracts"
	"github.com/ashebanow/secretspec/pkg/provider"
	"github.com/ashebanow/secretspec/pkg/secure"
)

// AzureKeyVaultConfig holds Azure Key Vault settings.
type AzureKeyVaultConfig struct {
	// Vault is either a bare vault name or a full host name.
	Vault string

	// UseManagedIdentity skips the default credential chain. ClientID
	// selects a user-assigned identity.
	UseManagedIdentity bool
	ClientID           string
}

// VaultURL returns the vault endpoint. A bare name maps to the public cloud
// suffix; anything containing a dot is used as the host.
func (c AzureKeyVaultConfig) VaultURL() string {
	if strings.Contains(c.Vault, ".") {
		return "https://" + c.Vault
	}
	return "https://" + c.Vault + ".vault.azure.net"
}

// AzureKeyVaultProvider stores secrets in Azure Key Vault under the name
// "{project}-{profile}-{key}". Key Vault names only allow letters, digits
// and dashes, so anything else is replaced with a dash.
type AzureKeyVaultProvider struct {
	vault  string
	client func() (contracts.AzureSecretsClient, error)
}

var _ provider.Provider = (*AzureKeyVaultProvider)(nil)

// AzureOption configures an AzureKeyVaultProvider.
type AzureOption func(*AzureKeyVaultProvider)

// WithAzureKeyVaultClient sets a custom Azure Key Vault client (for testing)
func WithAzureKeyVaultClient(client contracts.AzureSecretsClient) AzureOption {
	return func(p *AzureKeyVaultProvider) {
		p.client = func() (contracts.AzureSecretsClient, error) { return client, nil }
	}
}

// NewAzureKeyVaultProvider creates the provider; credentials are resolved
// on first use.
func NewAzureKeyVaultProvider(cfg AzureKeyVaultConfig, opts ...AzureOption) *AzureKeyVaultProvider {
	p := &AzureKeyVaultProvider{
		vault: cfg.Vault,
		client: sync.OnceValues(func() (contracts.AzureSecretsClient, error) {
			c, err := createAzureKeyVaultClient(cfg)
			if err != nil {
				return nil, err
			}
			return c, nil
		}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// createAzureKeyVaultClient creates an Azure Key Vault client with appropriate authentication
func createAzureKeyVaultClient(cfg AzureKeyVaultConfig) (*azsecrets.Client, error) {
	var cred azcore.TokenCredential
	var err error

	switch {
	case cfg.UseManagedIdentity:
		var miOpts *azidentity.ManagedIdentityCredentialOptions
		if cfg.ClientID != "" {
			miOpts = &azidentity.ManagedIdentityCredentialOptions{ID: azidentity.ClientID(cfg.ClientID)}
		}
		cred, err = azidentity.NewManagedIdentityCredential(miOpts)
	default:
		cred, err = azidentity.NewDefaultAzureCredential(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	client, err := azsecrets.NewClient(cfg.VaultURL(), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}
	return client, nil
}

// Name returns the provider name
func (p *AzureKeyVaultProvider) Name() string {
	return "azurekv"
}

// AllowsSet returns true
func (p *AzureKeyVaultProvider) AllowsSet() bool {
	return true
}

// Get reads the current version of the secret.
func (p *AzureKeyVaultProvider) Get(ctx context.Context, project, key, profile string) (*secure.String, bool, error) {
	client, err := p.connect()
	if err != nil {
		return nil, false, err
	}

	name := azureSecretName(project, key, profile)
	resp, err := client.GetSecret(ctx, name, "", nil)
	if err != nil {
		if isAzureNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, p.handleError(err, name)
	}
	if resp.Value == nil {
		return nil, false, nil
	}
	return secure.NewString(*resp.Value), true, nil
}

// Set stores a new version of the secret. Key Vault creates the secret if
// needed.
func (p *AzureKeyVaultProvider) Set(ctx context.Context, project, key string, value *secure.String, profile string) error {
	plain, err := value.Expose()
	if err != nil {
		return err
	}
	client, err := p.connect()
	if err != nil {
		return err
	}

	name := azureSecretName(project, key, profile)
	_, err = client.SetSecret(ctx, name, azsecrets.SetSecretParameters{
		Value: to.Ptr(plain),
		Tags:  map[string]*string{"managed-by": to.Ptr("secretspec")},
	}, nil)
	if err != nil {
		return p.handleError(err, name)
	}
	return nil
}

func (p *AzureKeyVaultProvider) connect() (contracts.AzureSecretsClient, error) {
	if p.vault == "" {
		return nil, dserrors.ConfigError{
			Field:      "vault",
			Message:    "Azure Key Vault name is required",
			Suggestion: "Use azurekv://my-vault or azurekv://my-vault.vault.azure.net",
		}
	}
	return p.client()
}

func (p *AzureKeyVaultProvider) handleError(err error, name string) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusUnauthorized:
			return provider.AuthError{
				Provider: p.Name(),
				Message:  fmt.Sprintf("access to %s denied (%s). Check authentication: verify managed identity, service principal, or Azure CLI login", name, respErr.ErrorCode),
			}
		case http.StatusForbidden:
			return provider.AuthError{
				Provider: p.Name(),
				Message:  fmt.Sprintf("access to %s denied (%s). Check Key Vault access policies: 'Get' and 'Set' permissions are required for secrets", name, respErr.ErrorCode),
			}
		}
	}
	return dserrors.UserError{
		Message:    fmt.Sprintf("Azure Key Vault request for %s failed", name),
		Details:    err.Error(),
		Suggestion: getAzureErrorSuggestion(err),
		Err:        err,
	}
}

// isAzureNotFoundError checks if the error indicates a secret was not found
func isAzureNotFoundError(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// getAzureErrorSuggestion provides helpful suggestions based on Azure errors
func getAzureErrorSuggestion(err error) string {
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "no such host"):
		return "Check the vault name and that the Key Vault exists"
	case strings.Contains(errStr, "throttled") || strings.Contains(errStr, "429"):
		return "Request was throttled. Wait a moment and try again"
	default:
		return "Check Azure credentials, Key Vault name, and access policies"
	}
}

func azureSecretName(project, key, profile string) string {
	return scopedSecretName(project, profile, key, false)
}
