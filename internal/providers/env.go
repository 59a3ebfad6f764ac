package providers

import (
	"context"
	"os"

	"github.com/ashebanow/secretspec/pkg/provider"
	"github.com/ashebanow/secretspec/pkg/secure"
)

// EnvProvider reads secrets from the process environment. Project and
// profile are ignored: the variable name is the key.
type EnvProvider struct {
	lookup func(string) (string, bool)
}

var _ provider.Provider = (*EnvProvider)(nil)

// NewEnvProvider creates an environment provider. A nil lookup means
// os.LookupEnv.
func NewEnvProvider(lookup func(string) (string, bool)) *EnvProvider {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &EnvProvider{lookup: lookup}
}

// Name returns the provider name
func (e *EnvProvider) Name() string {
	return "env"
}

// AllowsSet returns false; the environment of the parent shell cannot be
// changed from here.
func (e *EnvProvider) AllowsSet() bool {
	return false
}

// Get returns the variable named key. A variable set to the empty string is
// found.
func (e *EnvProvider) Get(_ context.Context, _, key, _ string) (*secure.String, bool, error) {
	v, ok := e.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return secure.NewString(v), true, nil
}

// Set always fails with provider.ReadOnlyError.
func (e *EnvProvider) Set(context.Context, string, string, *secure.String, string) error {
	return provider.ReadOnlyError{Provider: e.Name()}
}
