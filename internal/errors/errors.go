package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError is an error meant to be printed to the person running secretspec:
// a one-line message, optional details and a suggested next step.
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var b strings.Builder

	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	}

	if e.Details != "" {
		b.WriteString("\n  Details: " + e.Details)
	}
	if e.Suggestion != "" {
		b.WriteString("\n  💡 Try: " + e.Suggestion)
	}

	return b.String()
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError reports a malformed or incomplete provider or CLI configuration.
// It is always raised before any backend is contacted.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// CommandError is a failed external CLI invocation whose output did not match
// any recognised failure. Message carries the tool's stderr verbatim.
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// ProviderError adds the provider and operation to err, plus a suggestion
// when the failure is one we recognise.
func ProviderError(provider string, operation string, err error) error {
	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}

	return UserError{
		Message:    fmt.Sprintf("%s provider error during %s: %v", provider, operation, err),
		Suggestion: getProviderSuggestion(provider, err),
		Err:        err,
	}
}

func getProviderSuggestion(provider string, err error) string {
	errStr := err.Error()

	switch provider {
	case "bitwarden":
		switch {
		case strings.Contains(errStr, "not logged in"):
			return "Run 'bw login' to authenticate with Bitwarden"
		case strings.Contains(errStr, "Vault is locked"):
			return "Run 'bw unlock' and export the BW_SESSION environment variable"
		case strings.Contains(errStr, "Unauthorized"):
			return "Check that BWS_ACCESS_TOKEN holds a valid machine account token"
		}

	case "onepassword":
		switch {
		case strings.Contains(errStr, "not signed in"):
			return "Run 'op signin' to authenticate with 1Password"
		case strings.Contains(errStr, "session expired"):
			return "Your 1Password session has expired. Run 'op signin' again"
		}

	case "awssm", "awsssm":
		switch {
		case strings.Contains(errStr, "credentials"):
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		case strings.Contains(errStr, "AccessDenied"):
			return "Check IAM permissions for the secretspec/* resources"
		case strings.Contains(errStr, "ThrottlingException"):
			return "AWS rate limit exceeded. Wait a moment and try again"
		}

	case "gcsm":
		if strings.Contains(errStr, "PermissionDenied") || strings.Contains(errStr, "could not find default credentials") {
			return "Run 'gcloud auth application-default login' or set GOOGLE_APPLICATION_CREDENTIALS"
		}

	case "azurekv":
		if strings.Contains(errStr, "DefaultAzureCredential") || strings.Contains(errStr, "Forbidden") {
			return "Run 'az login' and check the Key Vault access policy"
		}

	case "keyring":
		if strings.Contains(errStr, "org.freedesktop.secrets") {
			return "Start a Secret Service provider such as gnome-keyring or KeePassXC"
		}
	}

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and provider configuration"
	}

	return ""
}

// WrapCommandNotFound explains how to install a missing external CLI.
func WrapCommandNotFound(command string, err error) error {
	suggestions := map[string]string{
		"bw":  "Install the Bitwarden CLI: npm install -g @bitwarden/cli (https://bitwarden.com/help/cli/)",
		"bws": "Install the Bitwarden Secrets Manager CLI: cargo install bws (https://github.com/bitwarden/sdk-sm/releases)",
		"op":  "Install the 1Password CLI: https://developer.1password.com/docs/cli/get-started/",
	}

	suggestion := suggestions[command]
	if suggestion == "" {
		suggestion = fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	}

	return UserError{
		Message:    fmt.Sprintf("%s: command not found", command),
		Suggestion: suggestion,
		Err:        err,
	}
}

// IsRetryable reports whether err looks transient. Nothing in secretspec
// retries automatically; the CLI adds a retry hint to such errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"rate limit",
		"rate-limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// SimplifyError maps low-level errors onto UserError or ConfigError when the
// root cause is one a user can act on.
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	var (
		userErr   UserError
		configErr ConfigError
		cmdErr    CommandError
	)
	if errors.As(err, &userErr) || errors.As(err, &configErr) || errors.As(err, &cmdErr) {
		return err
	}

	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}
	errStr := rootErr.Error()

	switch {
	case strings.Contains(errStr, "yaml:"):
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	case strings.Contains(errStr, "permission denied"):
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	case strings.Contains(errStr, "no such file or directory"):
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
