package bitwarden

import (
	"context"
	"encoding/json"
	"fmt"

	dserrors "github.com/ashebanow/secretspec/internal/errors"
	"github.com/ashebanow/secretspec/internal/logging"
)

// secretKey is the Secrets Manager key for a project secret.
func secretKey(project, key string) string {
	return project + "_" + key
}

func (p *Provider) getSecretValue(ctx context.Context, project, key string, o overrides) (string, bool, error) {
	secrets, err := p.listSecrets(ctx, o)
	if err != nil {
		return "", false, err
	}

	if s := findSecret(secrets, secretKey(project, key), key); s != nil {
		p.logger.Debug("secret %s matches %q", s.ID, key)
		return s.Value, true, nil
	}
	p.logger.Debug("no secret matches %q", key)
	return "", false, nil
}

func (p *Provider) setSecretValue(ctx context.Context, project, key, value string, o overrides) error {
	if p.config.ProjectID == "" {
		return dserrors.ConfigError{
			Field:      "project",
			Message:    "Project ID is required for Bitwarden Secrets Manager. Use bws://project-id or bws://?project=project-id",
			Suggestion: "Add the project id to the provider URI, e.g. bws://<project-id>",
		}
	}

	name := secretKey(project, key)
	note := fmt.Sprintf("SecretSpec managed secret: %s/%s", project, key)
	p.logger.Debug("storing %s = %s in project %s", name, logging.Secret(value), p.config.ProjectID)

	_, err := p.runBWS(ctx, o, "secret", "create", name, value, p.config.ProjectID, "--note", note)
	if err == nil {
		return nil
	}
	if !isAlreadyExists(err) {
		return err
	}

	p.logger.Debug("secret %q already exists, editing it", name)
	secrets, err := p.listSecrets(ctx, o)
	if err != nil {
		return err
	}
	existing := findSecret(secrets, name, key)
	if existing == nil {
		return fmt.Errorf("secret creation failed with 'already exists' but %q could not be found in the list", name)
	}

	_, err = p.runBWS(ctx, o, "secret", "edit", existing.ID, "--key", name, "--value", value)
	return err
}

func (p *Provider) listSecrets(ctx context.Context, o overrides) ([]Secret, error) {
	args := []string{"secret", "list"}
	if p.config.ProjectID != "" {
		args = append(args, p.config.ProjectID)
	}

	out, err := p.runBWS(ctx, o, args...)
	if err != nil {
		return nil, err
	}

	var secrets []Secret
	if err := json.Unmarshal(out, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse Bitwarden secrets: %w", err)
	}
	return secrets, nil
}

// findSecret returns the first secret keyed name or, failing that, key.
func findSecret(secrets []Secret, name, key string) *Secret {
	for i := range secrets {
		if secrets[i].Key == name || secrets[i].Key == key {
			return &secrets[i]
		}
	}
	return nil
}
