package bitwarden

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/ashebanow/secretspec/internal/errors"
	"github.com/ashebanow/secretspec/internal/logging"
	"github.com/ashebanow/secretspec/internal/testutil"
	"github.com/ashebanow/secretspec/pkg/secure"
)

func TestClassifyBW(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		stderr   string
		sentinel error
		contains string
	}{
		{name: "not logged in", stderr: "You are not logged in.", sentinel: ErrAuthRequired, contains: "Please run 'bw login' first."},
		{name: "locked", stderr: "Vault is locked.", sentinel: ErrAuthRequired, contains: "set the BW_SESSION environment variable"},
		{name: "other", stderr: "Something exploded", contains: "Something exploded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := testutil.NewMockCommandExecutor()
			m.AddErrorResponse("bw list items", tt.stderr, 1)
			p := New(Config{}, WithExecutor(m))

			_, err := p.runBW(context.Background(), nil, "list", "items")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
				return
			}

			var cmdErr dserrors.CommandError
			require.ErrorAs(t, err, &cmdErr)
			assert.Equal(t, "bw list items", cmdErr.Command)
		})
	}
}

func TestClassifyBWS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		stderr   string
		sentinel error
		contains string
	}{
		{name: "missing token", stderr: "Error: Access token is required", sentinel: ErrAuthRequired, contains: "BWS_ACCESS_TOKEN"},
		{name: "unauthorized", stderr: "Error: [401 Unauthorized]", sentinel: ErrAuthRequired, contains: "machine account access token"},
		{name: "rate limited", stderr: "Error: Internal error: Failed to parse IdentityTokenResponse", sentinel: ErrRateLimited, contains: "wait ~20 seconds"},
		{name: "resource not found", stderr: "Error: Resource not found.", sentinel: ErrAccessDenied, contains: "1. Machine account has read/write access"},
		{name: "not found", stderr: "404 Not found", sentinel: ErrAccessDenied, contains: "permission issues"},
		{name: "other", stderr: "boom", contains: "Bitwarden Secrets Manager CLI error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := testutil.NewMockCommandExecutor()
			m.AddErrorResponse("bws secret list", tt.stderr, 1)
			p := New(Config{Service: SecretsManager}, WithExecutor(m), WithEnvironment(map[string]string{}))

			_, err := p.runBWS(context.Background(), overrides{}, "secret", "list")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}

func TestCLINotInstalled(t *testing.T) {
	t.Parallel()

	t.Run("bw", func(t *testing.T) {
		t.Parallel()

		m := testutil.NewMockCommandExecutor()
		m.AddNotInstalledResponse("bw")
		p := New(Config{Service: PasswordManager}, WithExecutor(m), WithEnvironment(map[string]string{}))

		_, _, err := p.Get(context.Background(), "myapp", "API_KEY", "dev")
		require.ErrorIs(t, err, ErrCLINotInstalled)
		var userErr dserrors.UserError
		require.ErrorAs(t, err, &userErr)
		assert.Contains(t, userErr.Details, "npm install -g @bitwarden/cli")
		assert.Contains(t, userErr.Details, "brew install bitwarden-cli")
	})

	t.Run("bws", func(t *testing.T) {
		t.Parallel()

		m := testutil.NewMockCommandExecutor()
		m.AddNotInstalledResponse("bws")
		p := New(Config{Service: SecretsManager, ProjectID: "p"}, WithExecutor(m), WithEnvironment(map[string]string{}))

		err := p.Set(context.Background(), "myapp", "API_KEY", secure.NewString("v"), "dev")
		require.ErrorIs(t, err, ErrCLINotInstalled)
		var userErr dserrors.UserError
		require.ErrorAs(t, err, &userErr)
		assert.Contains(t, userErr.Details, "cargo install bws")
	})
}

func TestRunBW_RejectsInvalidUTF8(t *testing.T) {
	t.Parallel()

	m := testutil.NewMockCommandExecutor()
	m.AddResponse("bw status", testutil.MockResponse{Stdout: []byte{0xff, 0xfe}})
	p := New(Config{}, WithExecutor(m))

	_, err := p.runBW(context.Background(), nil, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid UTF-8")
}

func TestRunBW_StatusParseError(t *testing.T) {
	t.Parallel()

	m := testutil.NewMockCommandExecutor()
	m.AddJSONResponse("bw status", "not json")
	p := New(Config{}, WithExecutor(m), WithEnvironment(map[string]string{}))

	_, _, err := p.Get(context.Background(), "myapp", "API_KEY", "dev")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAuthRequired))
	assert.Contains(t, err.Error(), "failed to parse bw status")
}

func TestIsAlreadyExists(t *testing.T) {
	t.Parallel()

	assert.True(t, isAlreadyExists(classifyBWS([]byte("Error: Secret already exists"), errors.New("exit status 1"))))
	assert.False(t, isAlreadyExists(classifyBWS([]byte("boom"), errors.New("exit status 1"))))
	assert.False(t, isAlreadyExists(errors.New("already exists")))
}

func TestRunBWS_RedactsAccessTokenFromErrors(t *testing.T) {
	t.Parallel()

	const token = "0.machine-account-token:abcdef"

	m := testutil.NewMockCommandExecutor()
	m.AddErrorResponse("bws secret list", "Error: invalid token '"+token+"' for this organization", 1)
	p := New(Config{Service: SecretsManager}, WithExecutor(m), WithEnvironment(map[string]string{"BWS_ACCESS_TOKEN": token}))

	_, err := p.runBWS(context.Background(), overrides{AccessToken: token}, "secret", "list")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), token)
	assert.Contains(t, err.Error(), "[REDACTED]")
}

func TestSetSecretValue_DebugLogOmitsValue(t *testing.T) {
	t.Parallel()

	const value = "correct-horse-battery-staple"

	var buf bytes.Buffer
	v := newFakeVault()
	cfg, err := ParseConfig("bws://proj-1")
	require.NoError(t, err)
	p := New(cfg, WithExecutor(v.executor()), WithEnvironment(map[string]string{}), WithLogger(logging.NewWithWriter(&buf, true, true)))

	require.NoError(t, p.Set(context.Background(), "myapp", "API_KEY", secure.NewString(value), "dev"))

	assert.Contains(t, buf.String(), "storing myapp_API_KEY = [REDACTED]")
	assert.NotContains(t, buf.String(), value)
}
