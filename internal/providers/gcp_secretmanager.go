package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	dserrors "github.com/ashebanow/secretspec/internal/errors"
	"github.com/ashebanow/secretspec/internal/providers/contracts"
	"github.com/ashebanow/secretspec/pkg/provider"
	"github.com/ashebanow/secretspec/pkg/secure"
)

// GCPSecretManagerConfig holds GCP Secret Manager settings.
type GCPSecretManagerConfig struct {
	// ProjectID is the GCP project; GOOGLE_CLOUD_PROJECT and friends are
	// consulted when it is empty.
	ProjectID             string
	ServiceAccountKeyPath string
	ImpersonateAccount    string
}

// GCPSecretManagerProvider stores secrets in Google Cloud Secret Manager
// under the id "{project}-{profile}-{key}".
type GCPSecretManagerProvider struct {
	projectID string
	client    func() (contracts.GCPSecretsClient, error)
}

var _ provider.Provider = (*GCPSecretManagerProvider)(nil)

// GCPOption configures a GCPSecretManagerProvider.
type GCPOption func(*GCPSecretManagerProvider)

// WithGCPClient sets a custom Secret Manager client (for testing)
func WithGCPClient(client contracts.GCPSecretsClient) GCPOption {
	return func(p *GCPSecretManagerProvider) {
		p.client = func() (contracts.GCPSecretsClient, error) { return client, nil }
	}
}

// NewGCPSecretManagerProvider creates the provider. The gRPC client is
// dialled on first use.
func NewGCPSecretManagerProvider(cfg GCPSecretManagerConfig, opts ...GCPOption) *GCPSecretManagerProvider {
	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = getGCPProjectID()
	}

	p := &GCPSecretManagerProvider{
		projectID: projectID,
		client: sync.OnceValues(func() (contracts.GCPSecretsClient, error) {
			c, err := createGCPSecretManagerClient(context.Background(), cfg)
			if err != nil {
				return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
			}
			return gcpClient{c}, nil
		}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func createGCPSecretManagerClient(ctx context.Context, cfg GCPSecretManagerConfig) (*secretmanager.Client, error) {
	var clientOptions []option.ClientOption

	if cfg.ServiceAccountKeyPath != "" {
		path := cfg.ServiceAccountKeyPath
		if strings.HasPrefix(path, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			path = filepath.Join(home, path[2:])
		}
		clientOptions = append(clientOptions, option.WithCredentialsFile(path))
	}

	if cfg.ImpersonateAccount != "" {
		ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
			TargetPrincipal: cfg.ImpersonateAccount,
			Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create impersonated credentials: %w", err)
		}
		clientOptions = append(clientOptions, option.WithTokenSource(ts))
	}

	return secretmanager.NewClient(ctx, clientOptions...)
}

// gcpClient drops the gax call options from *secretmanager.Client.
type gcpClient struct {
	c *secretmanager.Client
}

func (g gcpClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	return g.c.AccessSecretVersion(ctx, req)
}

func (g gcpClient) CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error) {
	return g.c.CreateSecret(ctx, req)
}

func (g gcpClient) AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error) {
	return g.c.AddSecretVersion(ctx, req)
}

// getGCPProjectID attempts to get the GCP project ID from the environment
func getGCPProjectID() string {
	for _, name := range []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT", "GCP_PROJECT"} {
		if projectID := os.Getenv(name); projectID != "" {
			return projectID
		}
	}
	return ""
}

// Name returns the provider name
func (p *GCPSecretManagerProvider) Name() string {
	return "gcsm"
}

// AllowsSet returns true
func (p *GCPSecretManagerProvider) AllowsSet() bool {
	return true
}

// Get accesses the latest version of the secret.
func (p *GCPSecretManagerProvider) Get(ctx context.Context, project, key, profile string) (*secure.String, bool, error) {
	client, err := p.connect()
	if err != nil {
		return nil, false, err
	}

	id := gcpSecretID(project, key, profile)
	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: p.secretPath(id) + "/versions/latest",
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, false, nil
		}
		return nil, false, p.handleError(err, id)
	}

	if result.GetPayload() == nil {
		return nil, false, fmt.Errorf("secret %s has no data", id)
	}
	return secure.NewStringFromBytes(result.GetPayload().GetData()), true, nil
}

// Set adds a new version, creating the secret with automatic replication
// when it does not exist yet.
func (p *GCPSecretManagerProvider) Set(ctx context.Context, project, key string, value *secure.String, profile string) error {
	plain, err := value.Expose()
	if err != nil {
		return err
	}
	client, err := p.connect()
	if err != nil {
		return err
	}

	id := gcpSecretID(project, key, profile)
	add := &secretmanagerpb.AddSecretVersionRequest{
		Parent:  p.secretPath(id),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(plain)},
	}

	_, err = client.AddSecretVersion(ctx, add)
	if status.Code(err) == codes.NotFound {
		_, err = client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
			Parent:   "projects/" + p.projectID,
			SecretId: id,
			Secret: &secretmanagerpb.Secret{
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{
						Automatic: &secretmanagerpb.Replication_Automatic{},
					},
				},
				Labels: map[string]string{"managed-by": "secretspec"},
			},
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return p.handleError(err, id)
		}
		_, err = client.AddSecretVersion(ctx, add)
	}
	if err != nil {
		return p.handleError(err, id)
	}
	return nil
}

func (p *GCPSecretManagerProvider) connect() (contracts.GCPSecretsClient, error) {
	if p.projectID == "" {
		return nil, dserrors.ConfigError{
			Field:      "project",
			Message:    "GCP project ID is required",
			Suggestion: "Use gcsm://my-project or set GOOGLE_CLOUD_PROJECT",
		}
	}
	return p.client()
}

func (p *GCPSecretManagerProvider) secretPath(id string) string {
	return "projects/" + p.projectID + "/secrets/" + id
}

func (p *GCPSecretManagerProvider) handleError(err error, id string) error {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return provider.AuthError{
			Provider: p.Name(),
			Message:  fmt.Sprintf("access to %s denied: %v. Run 'gcloud auth application-default login' or check IAM roles", id, status.Convert(err).Message()),
		}
	}
	return dserrors.UserError{
		Message:    fmt.Sprintf("GCP Secret Manager request for %s failed", id),
		Details:    err.Error(),
		Suggestion: getGCPErrorSuggestion(err),
		Err:        err,
	}
}

func getGCPErrorSuggestion(err error) string {
	switch status.Code(err) {
	case codes.ResourceExhausted:
		return "Quota exceeded. Wait a moment and try again"
	case codes.InvalidArgument:
		return "Secret IDs may only contain letters, digits, dashes and underscores"
	case codes.Unavailable, codes.DeadlineExceeded:
		return "Unable to reach Secret Manager. Check your network connection"
	default:
		return "Check GCP credentials, project ID and IAM permissions"
	}
}

func gcpSecretID(project, key, profile string) string {
	return scopedSecretName(project, profile, key, true)
}

// scopedSecretName builds a flat secret name for backends that only accept
// [A-Za-z0-9-] (plus '_' when allowed). Each part is sanitized on its own and
// the parts are joined with "--", which a sanitized part never contains, so
// distinct (project, profile, key) triples cannot share a name unless they
// differ only in characters the backend cannot store.
func scopedSecretName(project, profile, key string, allowUnderscore bool) string {
	return strings.Join([]string{
		sanitizeSecretPart(project, allowUnderscore),
		sanitizeSecretPart(profile, allowUnderscore),
		sanitizeSecretPart(key, allowUnderscore),
	}, "--")
}

// sanitizeSecretPart replaces disallowed characters with '-', collapses runs
// of '-' and trims them from both ends.
func sanitizeSecretPart(part string, allowUnderscore bool) string {
	var b strings.Builder
	dash := false
	for _, r := range part {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '_' && allowUnderscore:
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	return b.String()
}
