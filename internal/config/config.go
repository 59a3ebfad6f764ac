// Package config resolves the CLI settings from three layers: command-line
// flags, SECRETSPEC_* environment variables and a YAML file, in that order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	dserrors "github.com/ashebanow/secretspec/internal/errors"
)

// DefaultProfile is used when no layer names a profile.
const DefaultProfile = "default"

// DefaultProvider is used when no layer names a provider.
const DefaultProvider = "keyring"

// Settings is one configuration layer, and also the merged result.
type Settings struct {
	// Provider is a provider URI or the name of an alias in Providers.
	Provider string `yaml:"provider" env:"SECRETSPEC_PROVIDER"`
	Project  string `yaml:"project" env:"SECRETSPEC_PROJECT"`
	Profile  string `yaml:"profile" env:"SECRETSPEC_PROFILE"`

	// MetricsFile, when set, receives Prometheus metrics on exit.
	MetricsFile string `yaml:"metrics_file" env:"SECRETSPEC_METRICS_FILE"`

	// Providers maps short names to provider URIs, e.g.
	// work: bitwarden://myorg@collection. File only.
	Providers map[string]string `yaml:"providers"`
}

// envLayer carries the settings read from the environment, plus the config
// file location.
type envLayer struct {
	Settings
	ConfigPath string `env:"SECRETSPEC_CONFIG"`
}

// DefaultPath returns ~/.config/secretspec/config.yaml, honouring
// XDG_CONFIG_HOME.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".config", "secretspec", "config.yaml")
	}
	return filepath.Join(dir, "secretspec", "config.yaml")
}

// Load merges flags over the environment over the config file. configPath
// is the --config flag; when it is empty SECRETSPEC_CONFIG and then
// DefaultPath are tried, and a missing default file is not an error.
// environ replaces the process environment when non-nil.
func Load(flags Settings, configPath string, environ map[string]string) (*Settings, error) {
	return newBuilder().
		withFlags(flags).
		withEnv(environ).
		withFile(configPath).
		build()
}

type builder struct {
	layers  []*Settings
	envPath string
	err     error
}

func newBuilder() *builder {
	return &builder{layers: make([]*Settings, 0, 3)}
}

func (b *builder) withFlags(flags Settings) *builder {
	b.layers = append(b.layers, &flags)
	return b
}

func (b *builder) withEnv(environ map[string]string) *builder {
	var layer envLayer
	if err := env.ParseWithOptions(&layer, env.Options{Environment: environ}); err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("error reading environment: %w", err))
		return b
	}
	b.envPath = layer.ConfigPath
	b.layers = append(b.layers, &layer.Settings)
	return b
}

func (b *builder) withFile(flagPath string) *builder {
	path, explicit := flagPath, true
	switch {
	case path != "":
	case b.envPath != "":
		path = b.envPath
	default:
		path, explicit = DefaultPath(), false
	}

	layer, err := readFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if !explicit {
			return b
		}
		err = dserrors.ConfigError{
			Field:      "config",
			Value:      path,
			Message:    "configuration file not found",
			Suggestion: "Check the --config flag or SECRETSPEC_CONFIG",
		}
	}
	if err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}
	b.layers = append(b.layers, layer)
	return b
}

func (b *builder) build() (*Settings, error) {
	if b.err != nil {
		return nil, b.err
	}

	merged := new(Settings)
	for _, layer := range b.layers {
		if err := mergo.Merge(merged, layer); err != nil {
			return nil, fmt.Errorf("error merging configs: %w", err)
		}
	}

	if merged.Profile == "" {
		merged.Profile = DefaultProfile
	}
	if merged.Provider == "" {
		merged.Provider = DefaultProvider
	}
	return merged, nil
}

func readFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, dserrors.ConfigError{
			Field:      "config",
			Value:      path,
			Message:    fmt.Sprintf("invalid YAML syntax in configuration file: %v", err),
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}
	return &s, nil
}

// ProviderURI resolves Provider through the alias table. Anything that is
// not an alias is returned unchanged.
func (s *Settings) ProviderURI() string {
	if uri, ok := s.Providers[s.Provider]; ok {
		return uri
	}
	return s.Provider
}

// RequireProject returns a ConfigError when no layer named a project.
func (s *Settings) RequireProject() error {
	if strings.TrimSpace(s.Project) != "" {
		return nil
	}
	return dserrors.ConfigError{
		Field:      "project",
		Message:    "no project configured",
		Suggestion: "Pass --project, set SECRETSPEC_PROJECT, or add 'project:' to " + DefaultPath(),
	}
}
