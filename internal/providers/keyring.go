package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/ashebanow/secretspec/internal/providers/contracts"
	"github.com/ashebanow/secretspec/pkg/provider"
	"github.com/ashebanow/secretspec/pkg/secure"
)

// KeyringProvider stores secrets in the OS credential store: macOS Keychain,
// the Secret Service on Linux, or the Windows Credential Manager.
//
// Each project gets its own service, "secretspec/{project}", and each secret
// is stored under the user "{profile}:{key}".
type KeyringProvider struct {
	client contracts.KeyringClient
}

var _ provider.Provider = (*KeyringProvider)(nil)

// systemKeyring forwards to go-keyring's package-level functions.
type systemKeyring struct{}

func (systemKeyring) Get(service, user string) (string, error) {
	return keyring.Get(service, user)
}

func (systemKeyring) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}

// NewKeyringProvider creates a keyring provider. A nil client means the
// system keyring.
func NewKeyringProvider(client contracts.KeyringClient) *KeyringProvider {
	if client == nil {
		client = systemKeyring{}
	}
	return &KeyringProvider{client: client}
}

// Name returns the provider name
func (k *KeyringProvider) Name() string {
	return "keyring"
}

// AllowsSet returns true
func (k *KeyringProvider) AllowsSet() bool {
	return true
}

// Get reads the secret from the keyring.
func (k *KeyringProvider) Get(_ context.Context, project, key, profile string) (*secure.String, bool, error) {
	service, user := keyringAddress(project, key, profile)

	v, err := k.client.Get(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("keyring lookup of %s/%s failed: %w", service, user, err)
	}
	return secure.NewString(v), true, nil
}

// Set writes the secret to the keyring, replacing any previous value.
func (k *KeyringProvider) Set(_ context.Context, project, key string, value *secure.String, profile string) error {
	plain, err := value.Expose()
	if err != nil {
		return err
	}

	service, user := keyringAddress(project, key, profile)
	if err := k.client.Set(service, user, plain); err != nil {
		return fmt.Errorf("keyring write of %s/%s failed: %w", service, user, err)
	}
	return nil
}

func keyringAddress(project, key, profile string) (service, user string) {
	return "secretspec/" + project, profile + ":" + key
}
