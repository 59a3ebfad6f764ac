package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	dserrors "github.com/ashebanow/secretspec/internal/errors"
	"github.com/ashebanow/secretspec/internal/logging"
	pkgexec "github.com/ashebanow/secretspec/pkg/exec"
	"github.com/ashebanow/secretspec/pkg/provider"
	"github.com/ashebanow/secretspec/pkg/secure"
)

// OnePasswordConfig selects where items live.
type OnePasswordConfig struct {
	Vault   string
	Account string
}

// OnePasswordProvider stores each secret as a 1Password password item
// titled "{project}/{profile}/{key}", driven through the op CLI.
type OnePasswordProvider struct {
	config   OnePasswordConfig
	executor pkgexec.CommandExecutor
	logger   *logging.Logger
}

var _ provider.Provider = (*OnePasswordProvider)(nil)

// NewOnePasswordProvider creates a 1Password provider. A nil executor runs
// the real op binary; a nil logger discards output.
func NewOnePasswordProvider(cfg OnePasswordConfig, executor pkgexec.CommandExecutor, logger *logging.Logger) *OnePasswordProvider {
	if executor == nil {
		executor = pkgexec.DefaultExecutor()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &OnePasswordProvider{config: cfg, executor: executor, logger: logger.With("provider", "onepassword")}
}

// Name returns the provider name
func (op *OnePasswordProvider) Name() string {
	return "onepassword"
}

// AllowsSet returns true
func (op *OnePasswordProvider) AllowsSet() bool {
	return true
}

// Get returns the password field of the item.
func (op *OnePasswordProvider) Get(ctx context.Context, project, key, profile string) (*secure.String, bool, error) {
	item, err := op.getItem(ctx, scopedName("/", project, profile, key))
	if err != nil || item == nil {
		return nil, false, err
	}

	field := item.passwordField()
	if field == nil || field.Value == "" {
		return nil, false, nil
	}
	return secure.NewString(field.Value), true, nil
}

// Set updates the password of an existing item or creates a new one. The
// item JSON goes to op on stdin so the value never appears in argv.
func (op *OnePasswordProvider) Set(ctx context.Context, project, key string, value *secure.String, profile string) error {
	plain, err := value.Expose()
	if err != nil {
		return err
	}

	title := scopedName("/", project, profile, key)
	item, err := op.getItem(ctx, title)
	if err != nil {
		return err
	}

	if item == nil {
		item = &OnePasswordItem{
			Title:    title,
			Category: "PASSWORD",
			Fields: []OnePasswordField{
				{ID: "notesPlain", Type: "STRING", Purpose: "NOTES", Label: "notesPlain", Value: "SecretSpec managed secret: " + project + "/" + key},
			},
		}
		item.setPassword(plain)
		_, err = op.run(ctx, item, "item", "create", "--format", "json")
		return err
	}

	item.setPassword(plain)
	_, err = op.run(ctx, item, "item", "edit", item.ID, "--format", "json")
	return err
}

// getItem returns nil, nil when the item does not exist.
func (op *OnePasswordProvider) getItem(ctx context.Context, title string) (*OnePasswordItem, error) {
	out, err := op.run(ctx, nil, "item", "get", title, "--format", "json")
	if errors.Is(err, errOnePasswordNoItem) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var item OnePasswordItem
	if err := json.Unmarshal(out, &item); err != nil {
		return nil, fmt.Errorf("failed to parse 1Password response: %w", err)
	}
	return &item, nil
}

var errOnePasswordNoItem = errors.New("1Password item not found")

// run invokes op with the configured vault and account. A non-nil stdin
// item is sent as JSON.
func (op *OnePasswordProvider) run(ctx context.Context, stdin *OnePasswordItem, args ...string) ([]byte, error) {
	if op.config.Vault != "" {
		args = append(args, "--vault", op.config.Vault)
	}
	if op.config.Account != "" {
		args = append(args, "--account", op.config.Account)
	}

	cmd := pkgexec.Command{Name: "op", Args: args}
	if stdin != nil {
		payload, err := json.Marshal(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to encode 1Password item: %w", err)
		}
		cmd.Stdin = payload
	}

	op.logger.Debug("Executing op %s %s", args[0], args[1])
	stdout, stderr, err := op.executor.Execute(ctx, cmd)
	if err == nil {
		return stdout, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if pkgexec.IsNotFound(err) {
		return nil, dserrors.WrapCommandNotFound("op", err)
	}

	msg := strings.TrimSpace(string(stderr))
	switch {
	case strings.Contains(msg, "isn't an item"):
		return nil, errOnePasswordNoItem
	case strings.Contains(msg, "not currently signed in"),
		strings.Contains(msg, "account is not signed in"),
		strings.Contains(msg, "authorization prompt dismissed"):
		return nil, provider.AuthError{
			Provider: op.Name(),
			Message:  "1Password CLI authentication required. Run: op signin",
		}
	}
	return nil, dserrors.CommandError{
		Command:  cmd.String(),
		ExitCode: pkgexec.ExitCode(err),
		Message:  msg,
	}
}

// OnePasswordItem represents the structure returned by 1Password CLI
type OnePasswordItem struct {
	ID       string   `json:"id,omitempty"`
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`
	Vault    *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"vault,omitempty"`
	Fields []OnePasswordField `json:"fields"`
}

type OnePasswordField struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Purpose string `json:"purpose,omitempty"`
	Label   string `json:"label"`
	Value   string `json:"value,omitempty"`
}

func (i *OnePasswordItem) passwordField() *OnePasswordField {
	for idx := range i.Fields {
		if i.Fields[idx].Purpose == "PASSWORD" || i.Fields[idx].ID == "password" {
			return &i.Fields[idx]
		}
	}
	return nil
}

func (i *OnePasswordItem) setPassword(value string) {
	if f := i.passwordField(); f != nil {
		f.Value = value
		return
	}
	i.Fields = append(i.Fields, OnePasswordField{
		ID:      "password",
		Type:    "CONCEALED",
		Purpose: "PASSWORD",
		Label:   "password",
		Value:   value,
	})
}
