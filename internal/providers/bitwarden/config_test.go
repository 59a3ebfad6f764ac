package bitwarden

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/ashebanow/secretspec/internal/errors"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		uri  string
		want Config
	}{
		{
			name: "bare password manager",
			uri:  "bitwarden://",
			want: Config{Service: PasswordManager, DefaultType: TypeLogin},
		},
		{
			name: "localhost is not a collection",
			uri:  "bitwarden://localhost",
			want: Config{Service: PasswordManager, DefaultType: TypeLogin},
		},
		{
			name: "host is a collection",
			uri:  "bitwarden://shared",
			want: Config{Service: PasswordManager, CollectionID: "shared", DefaultType: TypeLogin},
		},
		{
			name: "userinfo is an organization",
			uri:  "bitwarden://acme@shared",
			want: Config{Service: PasswordManager, OrganizationID: "acme", CollectionID: "shared", DefaultType: TypeLogin},
		},
		{
			name: "query overrides",
			uri:  "bitwarden://acme@shared?organization=other&collection=coll&server=https://vault.example.com&folder=apps/{project}&type=card&field=number",
			want: Config{
				Service:        PasswordManager,
				OrganizationID: "other",
				CollectionID:   "coll",
				Server:         "https://vault.example.com",
				FolderPrefix:   "apps/{project}",
				DefaultType:    TypeCard,
				DefaultField:   "number",
			},
		},
		{
			name: "org alias",
			uri:  "bitwarden://?org=acme",
			want: Config{Service: PasswordManager, OrganizationID: "acme", DefaultType: TypeLogin},
		},
		{
			name: "unknown keys and types are ignored",
			uri:  "bitwarden://?type=spaceship&colour=blue",
			want: Config{Service: PasswordManager, DefaultType: TypeLogin},
		},
		{
			name: "secrets manager project in host",
			uri:  "bws://0b6f8e2c-project",
			want: Config{Service: SecretsManager, ProjectID: "0b6f8e2c-project", DefaultType: TypeLogin},
		},
		{
			name: "secrets manager project and token in query",
			uri:  "bws://?project=p-1&token=0.abc&field=value",
			want: Config{Service: SecretsManager, ProjectID: "p-1", AccessToken: "0.abc", DefaultType: TypeLogin, DefaultField: "value"},
		},
		{
			name: "password manager keys are ignored for bws",
			uri:  "bws://acme@p-1?collection=c&server=s&folder=f",
			want: Config{Service: SecretsManager, ProjectID: "p-1", DefaultType: TypeLogin},
		},
		{
			name: "secrets manager keys are ignored for bitwarden",
			uri:  "bitwarden://?project=p-1&token=t",
			want: Config{Service: PasswordManager, DefaultType: TypeLogin},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseConfig(tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseConfig_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		uri   string
		field string
	}{
		{name: "unsupported scheme", uri: "vault://x", field: "scheme"},
		{name: "malformed", uri: "bitwarden://%zz", field: "uri"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseConfig(tt.uri)
			var cfgErr dserrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestFolderPrefix(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "secretspec/myapp/dev", Config{}.folderPrefix("myapp", "dev"))
	assert.Equal(t, "team/myapp/myapp-prod", Config{FolderPrefix: "team/{project}/{project}-{profile}"}.folderPrefix("myapp", "prod"))
	assert.Equal(t, "static", Config{FolderPrefix: "static"}.folderPrefix("myapp", "prod"))
}
