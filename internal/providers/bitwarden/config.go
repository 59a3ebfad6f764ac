package bitwarden

import (
	"fmt"
	"net/url"

	dserrors "github.com/ashebanow/secretspec/internal/errors"
)

const (
	// SchemePasswordManager selects the bw-backed vault.
	SchemePasswordManager = "bitwarden"
	// SchemeSecretsManager selects the bws-backed key/value store.
	SchemeSecretsManager = "bws"

	// DefaultFolderPrefix names items written by earlier releases.
	DefaultFolderPrefix = "secretspec/{project}/{profile}"
)

// Config is the parsed form of a bitwarden:// or bws:// URI. Empty strings
// mean "not configured". It is immutable once built.
type Config struct {
	Service Service

	// Password Manager only.
	OrganizationID string
	CollectionID   string
	Server         string
	FolderPrefix   string

	// Secrets Manager only.
	ProjectID   string
	AccessToken string

	// DefaultType is the item type used when creating items.
	DefaultType ItemType
	// DefaultField overrides which item field get and set address.
	DefaultField string
}

// ParseConfig parses a provider URI such as "bitwarden://myorg@collection".
func ParseConfig(raw string) (Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Config{}, dserrors.ConfigError{
			Field:   "uri",
			Value:   raw,
			Message: fmt.Sprintf("invalid Bitwarden URI: %v", err),
		}
	}
	return ParseURL(u)
}

// ParseURL builds a Config from u. It never performs I/O.
//
// Password Manager:
//
//	bitwarden://[org@]collection?server=https://vault.example.com&folder=prod/{project}&type=card&field=number
//
// Secrets Manager:
//
//	bws://project-id?token=...&field=value
//
// Unknown query keys and unknown type names are ignored.
func ParseURL(u *url.URL) (Config, error) {
	cfg := Config{DefaultType: TypeLogin}
	query := u.Query()
	host := u.Hostname()
	if host == "localhost" {
		host = ""
	}

	switch u.Scheme {
	case SchemePasswordManager:
		cfg.Service = PasswordManager
		cfg.CollectionID = host
		if u.User != nil && u.User.Username() != "" {
			cfg.OrganizationID = u.User.Username()
		}

		setFromQuery(query, &cfg.OrganizationID, "org", "organization")
		setFromQuery(query, &cfg.CollectionID, "collection")
		setFromQuery(query, &cfg.Server, "server")
		setFromQuery(query, &cfg.FolderPrefix, "folder")

	case SchemeSecretsManager:
		cfg.Service = SecretsManager
		cfg.ProjectID = host

		setFromQuery(query, &cfg.ProjectID, "project")
		setFromQuery(query, &cfg.AccessToken, "token")

	default:
		return Config{}, dserrors.ConfigError{
			Field:      "scheme",
			Value:      u.Scheme,
			Message:    fmt.Sprintf("unsupported scheme %q: expected '%s' or '%s'", u.Scheme, SchemePasswordManager, SchemeSecretsManager),
			Suggestion: "Use bitwarden://[org@]collection for Password Manager or bws://project-id for Secrets Manager",
		}
	}

	if t, ok := ParseItemType(query.Get("type")); ok {
		cfg.DefaultType = t
	}
	setFromQuery(query, &cfg.DefaultField, "field")

	return cfg, nil
}

// setFromQuery copies the value of each non-empty key into dst, in order, so
// the last present key wins.
func setFromQuery(query url.Values, dst *string, keys ...string) {
	for _, key := range keys {
		if v := query.Get(key); v != "" {
			*dst = v
		}
	}
}

// folderPrefix returns the item-name prefix for project and profile.
func (c Config) folderPrefix(project, profile string) string {
	prefix := c.FolderPrefix
	if prefix == "" {
		prefix = DefaultFolderPrefix
	}
	return expandPlaceholders(prefix, project, profile)
}
