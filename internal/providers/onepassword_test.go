package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/ashebanow/secretspec/internal/errors"
	"github.com/ashebanow/secretspec/internal/testutil"
	pkgexec "github.com/ashebanow/secretspec/pkg/exec"
	"github.com/ashebanow/secretspec/pkg/provider"
	"github.com/ashebanow/secretspec/pkg/secure"
)

// fakeOP emulates op item get/create/edit against an in-memory vault.
type fakeOP struct {
	mu    sync.Mutex
	items map[string]OnePasswordItem
	next  int
}

func newFakeOP(m *testutil.MockCommandExecutor) *fakeOP {
	f := &fakeOP{items: make(map[string]OnePasswordItem)}
	m.AddHandler("op item get", f.get)
	m.AddHandler("op item create", f.create)
	m.AddHandler("op item edit", f.edit)
	return f
}

func (f *fakeOP) get(c pkgexec.Command) testutil.MockResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	title := c.Args[2]
	for _, item := range f.items {
		if item.Title == title || item.ID == title {
			out, _ := json.Marshal(item)
			return testutil.MockResponse{Stdout: out}
		}
	}
	return testutil.OnePasswordMockResponses{}.ItemNotFound(title)
}

func (f *fakeOP) create(c pkgexec.Command) testutil.MockResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	var item OnePasswordItem
	if err := json.Unmarshal(c.Stdin, &item); err != nil {
		return testutil.ErrorResponse("invalid JSON template", 1)
	}
	f.next++
	item.ID = fmt.Sprintf("op-%d", f.next)
	f.items[item.ID] = item
	out, _ := json.Marshal(item)
	return testutil.MockResponse{Stdout: out}
}

func (f *fakeOP) edit(c pkgexec.Command) testutil.MockResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := c.Args[2]
	if _, ok := f.items[id]; !ok {
		return testutil.OnePasswordMockResponses{}.ItemNotFound(id)
	}
	var item OnePasswordItem
	if err := json.Unmarshal(c.Stdin, &item); err != nil {
		return testutil.ErrorResponse("invalid JSON template", 1)
	}
	f.items[id] = item
	out, _ := json.Marshal(item)
	return testutil.MockResponse{Stdout: out}
}

func TestOnePasswordContract(t *testing.T) {
	provider.RunContractTests(t, provider.ContractTest{
		CreateProvider: func(t *testing.T) provider.Provider {
			m := testutil.NewMockCommandExecutor()
			newFakeOP(m)
			return NewOnePasswordProvider(OnePasswordConfig{Vault: "Dev"}, m, nil)
		},
	})
}

func TestOnePassword_Get(t *testing.T) {
	t.Parallel()

	m := testutil.NewMockCommandExecutor()
	m.AddResponse("op item get myapp/dev/API_KEY", testutil.OnePasswordMockResponses{}.ItemGet("abc", "myapp/dev/API_KEY", "s3cret"))
	p := NewOnePasswordProvider(OnePasswordConfig{Vault: "Dev", Account: "me.1password.com"}, m, nil)

	v, found, err := p.Get(context.Background(), "myapp", "API_KEY", "dev")
	require.NoError(t, err)
	require.True(t, found)
	plain, err := v.Expose()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", plain)

	assert.Equal(t, []string{
		"op item get myapp/dev/API_KEY --format json --vault Dev --account me.1password.com",
	}, m.Lines())
}

func TestOnePassword_SetEditsExistingItem(t *testing.T) {
	t.Parallel()

	m := testutil.NewMockCommandExecutor()
	fake := newFakeOP(m)
	p := NewOnePasswordProvider(OnePasswordConfig{}, m, nil)
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, "myapp", "TOKEN", secure.NewString("one"), "dev"))
	require.NoError(t, p.Set(ctx, "myapp", "TOKEN", secure.NewString("two"), "dev"))

	require.Len(t, fake.items, 1)
	item := fake.items["op-1"]
	assert.Equal(t, "PASSWORD", item.Category)
	assert.Equal(t, "two", item.passwordField().Value)

	for _, line := range m.Lines() {
		assert.NotContains(t, line, "two", "secret value leaked into argv")
	}
	assert.True(t, slices.Contains(m.Lines(), "op item edit op-1 --format json"))
}

func TestOnePassword_Errors(t *testing.T) {
	t.Parallel()

	t.Run("not signed in", func(t *testing.T) {
		t.Parallel()

		m := testutil.NewMockCommandExecutor()
		m.AddErrorResponse("op item get", "[ERROR] You are not currently signed in. Please run `op signin --help` for instructions", 1)
		p := NewOnePasswordProvider(OnePasswordConfig{}, m, nil)

		_, _, err := p.Get(context.Background(), "myapp", "KEY", "dev")
		var authErr provider.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Contains(t, authErr.Message, "op signin")
	})

	t.Run("not installed", func(t *testing.T) {
		t.Parallel()

		m := testutil.NewMockCommandExecutor()
		m.AddNotInstalledResponse("op")
		p := NewOnePasswordProvider(OnePasswordConfig{}, m, nil)

		_, _, err := p.Get(context.Background(), "myapp", "KEY", "dev")
		var userErr dserrors.UserError
		require.ErrorAs(t, err, &userErr)
		assert.Contains(t, userErr.Suggestion, "1Password CLI")
	})

	t.Run("other failure", func(t *testing.T) {
		t.Parallel()

		m := testutil.NewMockCommandExecutor()
		m.AddErrorResponse("op item get", "[ERROR] network unreachable", 1)
		p := NewOnePasswordProvider(OnePasswordConfig{}, m, nil)

		_, _, err := p.Get(context.Background(), "myapp", "KEY", "dev")
		var cmdErr dserrors.CommandError
		require.ErrorAs(t, err, &cmdErr)
		assert.Contains(t, cmdErr.Message, "network unreachable")
	})

	t.Run("bad json", func(t *testing.T) {
		t.Parallel()

		m := testutil.NewMockCommandExecutor()
		m.AddJSONResponse("op item get", "{")
		p := NewOnePasswordProvider(OnePasswordConfig{}, m, nil)

		_, _, err := p.Get(context.Background(), "myapp", "KEY", "dev")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse 1Password response")
	})
}
