package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/ashebanow/secretspec/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Precedence(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
provider: work
project: from-file
profile: from-file
metrics_file: /tmp/secretspec.prom
providers:
  work: bitwarden://myorg@collection
  ci: bws://project-id
`)

	tests := []struct {
		name    string
		flags   Settings
		environ map[string]string
		want    Settings
	}{
		{
			name:    "file only",
			environ: map[string]string{},
			want:    Settings{Provider: "work", Project: "from-file", Profile: "from-file", MetricsFile: "/tmp/secretspec.prom"},
		},
		{
			name:    "env over file",
			environ: map[string]string{"SECRETSPEC_PROFILE": "from-env", "SECRETSPEC_PROVIDER": "ci"},
			want:    Settings{Provider: "ci", Project: "from-file", Profile: "from-env", MetricsFile: "/tmp/secretspec.prom"},
		},
		{
			name:    "flags over env",
			flags:   Settings{Profile: "from-flag", Project: "from-flag"},
			environ: map[string]string{"SECRETSPEC_PROFILE": "from-env", "SECRETSPEC_PROJECT": "from-env"},
			want:    Settings{Provider: "work", Project: "from-flag", Profile: "from-flag", MetricsFile: "/tmp/secretspec.prom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Load(tt.flags, path, tt.environ)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Provider, got.Provider)
			assert.Equal(t, tt.want.Project, got.Project)
			assert.Equal(t, tt.want.Profile, got.Profile)
			assert.Equal(t, tt.want.MetricsFile, got.MetricsFile)
			assert.Len(t, got.Providers, 2)
		})
	}
}

func TestLoad_EnvConfigPathMustExist(t *testing.T) {
	t.Parallel()

	environ := map[string]string{"SECRETSPEC_CONFIG": filepath.Join(t.TempDir(), "absent.yaml")}
	_, err := Load(Settings{}, "", environ)

	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "config", cfgErr.Field)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "project: via-env-path\n")
	got, err := Load(Settings{}, "", map[string]string{"SECRETSPEC_CONFIG": path})
	require.NoError(t, err)
	assert.Equal(t, "via-env-path", got.Project)
	assert.Equal(t, DefaultProvider, got.Provider)
	assert.Equal(t, DefaultProfile, got.Profile)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing explicit file", func(t *testing.T) {
		t.Parallel()

		_, err := Load(Settings{}, filepath.Join(t.TempDir(), "nope.yaml"), map[string]string{})
		var cfgErr dserrors.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "configuration file not found", cfgErr.Message)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, "provider: [unclosed\n")
		_, err := Load(Settings{}, path, map[string]string{})
		var cfgErr dserrors.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, cfgErr.Message, "invalid YAML")
	})
}

func TestSettings_ProviderURI(t *testing.T) {
	t.Parallel()

	s := Settings{Provider: "work", Providers: map[string]string{"work": "bitwarden://org@col"}}
	assert.Equal(t, "bitwarden://org@col", s.ProviderURI())

	s.Provider = "env"
	assert.Equal(t, "env", s.ProviderURI())
}

func TestSettings_RequireProject(t *testing.T) {
	t.Parallel()

	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, (&Settings{Project: "  "}).RequireProject(), &cfgErr)
	assert.Equal(t, "project", cfgErr.Field)
	assert.NoError(t, (&Settings{Project: "myapp"}).RequireProject())
}
