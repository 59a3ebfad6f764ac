package bitwarden

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	dserrors "github.com/ashebanow/secretspec/internal/errors"
	"github.com/ashebanow/secretspec/internal/logging"
	pkgexec "github.com/ashebanow/secretspec/pkg/exec"
)

// Failure classes reported by bw and bws. Errors returned by the provider
// wrap one of these when the CLI output was recognised.
var (
	ErrCLINotInstalled = errors.New("bitwarden CLI not installed")
	ErrAuthRequired    = errors.New("bitwarden authentication required")
	ErrRateLimited     = errors.New("bitwarden rate limit exceeded")
	ErrAccessDenied    = errors.New("bitwarden access denied")
)

const (
	bwInstallHelp = "Bitwarden CLI (bw) is not installed.\n\nTo install it:\n" +
		"  - npm: npm install -g @bitwarden/cli\n" +
		"  - Homebrew: brew install bitwarden-cli\n" +
		"  - Chocolatey: choco install bitwarden-cli\n" +
		"  - Download: https://bitwarden.com/help/cli/\n\n" +
		"After installation, run 'bw login' and 'bw unlock' to authenticate."

	bwsInstallHelp = "Bitwarden Secrets Manager CLI (bws) is not installed.\n\nTo install it:\n" +
		"  - Cargo: cargo install bws\n" +
		"  - Script: curl -sSL https://bitwarden.com/secrets/install | sh\n" +
		"  - Download: https://github.com/bitwarden/sdk-sm/releases\n\n" +
		"After installation, set BWS_ACCESS_TOKEN environment variable with your access token."

	bwsAccessDeniedHelp = "Bitwarden Secrets Manager access denied. Please verify:\n" +
		"1. Machine account has read/write access to the specified project\n" +
		"2. Project ID is correct\n" +
		"3. Organization permissions are properly configured\n\n" +
		"Resource not found errors often indicate permission issues rather than missing resources."
)

// runBW runs bw with args. stdin, when non-nil, carries an encoded item.
func (p *Provider) runBW(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := pkgexec.Command{Name: "bw", Args: args, Stdin: stdin}
	if p.config.Server != "" {
		cmd.Env = append(cmd.Env, "BW_SERVER="+p.config.Server)
	}

	// bw arguments never carry secret values; those travel on stdin.
	p.logger.Debug("running %s", cmd)

	stdout, stderr, err := p.executor.Execute(ctx, cmd)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classifyBW(cmd, stderr, err)
	}
	if !utf8.Valid(stdout) {
		return nil, fmt.Errorf("bw %s returned invalid UTF-8 output", args[0])
	}
	return stdout, nil
}

// runBWS runs bws with args. The access token is passed through the
// environment so that it never shows up in the process list.
func (p *Provider) runBWS(ctx context.Context, o overrides, args ...string) ([]byte, error) {
	cmd := pkgexec.Command{Name: "bws", Args: args}
	token := p.accessToken(o)
	if token != "" {
		cmd.Env = append(cmd.Env, "BWS_ACCESS_TOKEN="+token)
	}

	// bws secret create/edit take the value as an argument.
	p.logger.Debug("running bws %s", strings.Join(args[:min(2, len(args))], " "))

	stdout, stderr, err := p.executor.Execute(ctx, cmd)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// bws error output may echo the access token.
		return nil, classifyBWS([]byte(logging.Redact(string(stderr), []string{token})), err)
	}
	if !utf8.Valid(stdout) {
		return nil, fmt.Errorf("bws %s returned invalid UTF-8 output", args[0])
	}
	return stdout, nil
}

func classifyBW(cmd pkgexec.Command, stderr []byte, err error) error {
	if pkgexec.IsNotFound(err) {
		return dserrors.UserError{
			Message:    "Bitwarden CLI (bw) is not installed",
			Details:    bwInstallHelp,
			Suggestion: "Install the Bitwarden CLI, then run 'bw login' and 'bw unlock'",
			Err:        fmt.Errorf("%w: %w", ErrCLINotInstalled, err),
		}
	}

	msg := strings.TrimSpace(string(stderr))
	switch {
	case strings.Contains(msg, "You are not logged in"):
		return dserrors.UserError{
			Message:    "Bitwarden authentication required. Please run 'bw login' first.",
			Suggestion: "bw login",
			Err:        ErrAuthRequired,
		}
	case strings.Contains(msg, "Vault is locked"):
		return dserrors.UserError{
			Message:    "Bitwarden vault is locked. Please run 'bw unlock' and set the BW_SESSION environment variable.",
			Suggestion: "export BW_SESSION=$(bw unlock --raw)",
			Err:        ErrAuthRequired,
		}
	}

	if msg == "" {
		msg = err.Error()
	}
	return dserrors.CommandError{
		Command:  cmd.String(),
		ExitCode: pkgexec.ExitCode(err),
		Message:  msg,
	}
}

// bwsError is a bws failure that matched none of the known patterns.
type bwsError struct {
	stderr   string
	exitCode int
}

func (e *bwsError) Error() string {
	return "Bitwarden Secrets Manager CLI error: " + e.stderr
}

func classifyBWS(stderr []byte, err error) error {
	if pkgexec.IsNotFound(err) {
		return dserrors.UserError{
			Message:    "Bitwarden Secrets Manager CLI (bws) is not installed",
			Details:    bwsInstallHelp,
			Suggestion: "Install bws, then export BWS_ACCESS_TOKEN",
			Err:        fmt.Errorf("%w: %w", ErrCLINotInstalled, err),
		}
	}

	msg := strings.TrimSpace(string(stderr))
	switch {
	case strings.Contains(msg, "Access token is required"), strings.Contains(msg, "Unauthorized"):
		return dserrors.UserError{
			Message:    "Bitwarden Secrets Manager authentication required. Please set the BWS_ACCESS_TOKEN environment variable with your machine account access token.",
			Suggestion: "export BWS_ACCESS_TOKEN=<machine account access token>",
			Err:        ErrAuthRequired,
		}
	case strings.Contains(msg, "Internal error: Failed to parse IdentityTokenResponse"):
		return dserrors.UserError{
			Message:    "Bitwarden Secrets Manager rate limit exceeded. Please wait ~20 seconds and try again. Consider using state files to reduce API calls.",
			Suggestion: "Wait ~20 seconds before retrying",
			Err:        ErrRateLimited,
		}
	case strings.Contains(msg, "Resource not found"), strings.Contains(msg, "Not found"):
		return dserrors.UserError{
			Message: bwsAccessDeniedHelp,
			Err:     ErrAccessDenied,
		}
	}

	if msg == "" {
		msg = err.Error()
	}
	return &bwsError{stderr: msg, exitCode: pkgexec.ExitCode(err)}
}

// isAlreadyExists reports whether err is a bws failure caused by a duplicate
// secret key.
func isAlreadyExists(err error) bool {
	var be *bwsError
	return errors.As(err, &be) && strings.Contains(strings.ToLower(be.stderr), "already exists")
}

// checkAuth verifies the vault is unlocked before any item is read or written.
func (p *Provider) checkAuth(ctx context.Context) error {
	unlocked, err := p.isUnlocked(ctx)
	if err != nil {
		return err
	}
	if !unlocked {
		return dserrors.UserError{
			Message:    "Bitwarden authentication required. Please run 'bw login' and 'bw unlock', then set the BW_SESSION environment variable.",
			Suggestion: "bw login && export BW_SESSION=$(bw unlock --raw)",
			Err:        ErrAuthRequired,
		}
	}
	return nil
}

func (p *Provider) isUnlocked(ctx context.Context) (bool, error) {
	out, err := p.runBW(ctx, nil, "status")
	if err != nil {
		if errors.Is(err, ErrAuthRequired) {
			return false, nil
		}
		return false, err
	}

	var st status
	if err := json.Unmarshal(out, &st); err != nil {
		return false, fmt.Errorf("failed to parse bw status: %w", err)
	}
	p.logger.Debug("bw status: %s", st.Status)
	return st.Status == "unlocked", nil
}
