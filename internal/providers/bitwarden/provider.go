// Package bitwarden stores secrets in Bitwarden. One provider type fronts two
// products: the Password Manager vault (bitwarden:// URIs, driven by the bw
// CLI) and Secrets Manager (bws:// URIs, driven by the bws CLI).
//
// Password Manager items are typed (login, secure note, card, identity, SSH
// key); which field of an item a secret key maps to is decided by
// ResolveField and WriteTarget. Secrets Manager entries are flat and stored
// under "{project}_{key}".
package bitwarden

import (
	"context"
	"fmt"

	"github.com/ashebanow/secretspec/internal/logging"
	pkgexec "github.com/ashebanow/secretspec/pkg/exec"
	"github.com/ashebanow/secretspec/pkg/provider"
	"github.com/ashebanow/secretspec/pkg/secure"
)

// Name is the provider name for both schemes.
const Name = "bitwarden"

var _ provider.FieldProvider = (*Provider)(nil)

// Provider talks to Bitwarden through its CLIs. It holds no mutable state and
// is safe for concurrent use.
type Provider struct {
	config   Config
	executor pkgexec.CommandExecutor
	logger   *logging.Logger
	// environ replaces the process environment when non-nil.
	environ map[string]string
}

// Option configures a Provider.
type Option func(*Provider)

// WithExecutor replaces the executor used to run bw and bws.
func WithExecutor(executor pkgexec.CommandExecutor) Option {
	return func(p *Provider) {
		p.executor = executor
	}
}

// WithLogger sets the logger for debug tracing.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithEnvironment makes the provider read its environment overrides from env
// instead of the process environment.
func WithEnvironment(env map[string]string) Option {
	return func(p *Provider) {
		p.environ = env
	}
}

// New returns a provider for cfg.
func New(cfg Config, opts ...Option) *Provider {
	p := &Provider{
		config:   cfg,
		executor: pkgexec.DefaultExecutor(),
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("provider", Name).With("service", cfg.Service.String())
	return p
}

// NewFromURI parses raw and returns a provider for it.
func NewFromURI(raw string, opts ...Option) (*Provider, error) {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...), nil
}

// Name implements provider.Provider.
func (p *Provider) Name() string {
	return Name
}

// AllowsSet implements provider.Provider.
func (p *Provider) AllowsSet() bool {
	return true
}

// Config returns the configuration the provider was built with.
func (p *Provider) Config() Config {
	return p.config
}

// Get implements provider.Provider.
func (p *Provider) Get(ctx context.Context, project, key, profile string) (*secure.String, bool, error) {
	return p.GetField(ctx, project, key, profile, "")
}

// Set implements provider.Provider.
func (p *Provider) Set(ctx context.Context, project, key string, value *secure.String, profile string) error {
	return p.SetField(ctx, project, key, value, profile, "")
}

// GetField implements provider.FieldProvider. field selects the item field to
// read and is ignored by Secrets Manager, whose entries have a single value.
func (p *Provider) GetField(ctx context.Context, project, key, profile, field string) (*secure.String, bool, error) {
	o, err := p.overrides()
	if err != nil {
		return nil, false, err
	}

	var (
		value string
		found bool
	)
	switch p.config.Service {
	case PasswordManager:
		value, found, err = p.getItemValue(ctx, key, p.field(field, o), o)
	case SecretsManager:
		value, found, err = p.getSecretValue(ctx, project, key, o)
	default:
		return nil, false, fmt.Errorf("unsupported Bitwarden service %s", p.config.Service)
	}
	if err != nil || !found {
		return nil, false, err
	}
	return secure.NewString(value), true, nil
}

// SetField implements provider.FieldProvider.
func (p *Provider) SetField(ctx context.Context, project, key string, value *secure.String, profile, field string) error {
	o, err := p.overrides()
	if err != nil {
		return err
	}

	plain, err := value.Expose()
	if err != nil {
		return err
	}

	switch p.config.Service {
	case PasswordManager:
		return p.setItemValue(ctx, project, key, plain, profile, p.field(field, o), o)
	case SecretsManager:
		return p.setSecretValue(ctx, project, key, plain, o)
	default:
		return fmt.Errorf("unsupported Bitwarden service %s", p.config.Service)
	}
}
