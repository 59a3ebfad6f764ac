package bitwarden

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// overrides are environment variables consulted on every call. They win
// over the parsed Config; an explicit field passed to GetField/SetField wins
// over both.
type overrides struct {
	DefaultType  string `env:"BITWARDEN_DEFAULT_TYPE"`
	DefaultField string `env:"BITWARDEN_DEFAULT_FIELD"`
	Organization string `env:"BITWARDEN_ORGANIZATION"`
	Collection   string `env:"BITWARDEN_COLLECTION"`
	AccessToken  string `env:"BWS_ACCESS_TOKEN"`
}

func (p *Provider) overrides() (overrides, error) {
	var o overrides
	if err := env.ParseWithOptions(&o, env.Options{Environment: p.environ}); err != nil {
		return overrides{}, fmt.Errorf("failed to read Bitwarden environment: %w", err)
	}
	return o, nil
}

func (p *Provider) field(inCall string, o overrides) string {
	return firstNonEmpty(inCall, o.DefaultField, p.config.DefaultField)
}

// itemType is the type of newly created items. An unrecognised
// BITWARDEN_DEFAULT_TYPE is ignored.
func (p *Provider) itemType(o overrides) ItemType {
	if t, ok := ParseItemType(o.DefaultType); ok {
		return t
	}
	if p.config.DefaultType.Valid() {
		return p.config.DefaultType
	}
	return TypeLogin
}

func (p *Provider) organization(o overrides) string {
	return firstNonEmpty(o.Organization, p.config.OrganizationID)
}

func (p *Provider) collection(o overrides) string {
	return firstNonEmpty(o.Collection, p.config.CollectionID)
}

// accessToken prefers a token given in the URI over the environment.
func (p *Provider) accessToken(o overrides) string {
	return firstNonEmpty(p.config.AccessToken, o.AccessToken)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// expandPlaceholders substitutes {project} and {profile} in a folder template.
func expandPlaceholders(template, project, profile string) string {
	return strings.NewReplacer("{project}", project, "{profile}", profile).Replace(template)
}
