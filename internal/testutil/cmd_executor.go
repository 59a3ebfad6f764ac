// Package testutil provides test doubles shared by the provider packages.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	pkgexec "github.com/ashebanow/secretspec/pkg/exec"
)

// MockCommandExecutor scripts the output of external CLI tools.
type MockCommandExecutor struct {
	mu sync.Mutex

	// Responses maps command patterns to their mock responses.
	// Key format: "command arg1 arg2". The longest pattern that prefixes the
	// invoked command line wins.
	Responses map[string]MockResponse

	// Handlers compute a response from the full command, including stdin and
	// environment. They are consulted before Responses.
	Handlers map[string]func(pkgexec.Command) MockResponse

	// DefaultResponse is used when no matching pattern is found.
	DefaultResponse *MockResponse

	// RecordedCalls stores all calls made to Execute for verification.
	RecordedCalls []RecordedCall

	// StrictMode causes Execute to fail if no matching response is found.
	StrictMode bool
}

// MockResponse defines the expected output for a mocked command.
type MockResponse struct {
	Stdout   []byte
	Stderr   []byte
	Err      error
	ExitCode int
}

// RecordedCall stores information about a command execution.
type RecordedCall struct {
	Command string
	Args    []string
	Env     []string
	Stdin   []byte
	Context context.Context
}

// Line renders the call as "command arg1 arg2".
func (c RecordedCall) Line() string {
	return buildKey(c.Command, c.Args)
}

// NewMockCommandExecutor creates a new mock executor with empty responses.
func NewMockCommandExecutor() *MockCommandExecutor {
	return &MockCommandExecutor{
		Responses:     make(map[string]MockResponse),
		Handlers:      make(map[string]func(pkgexec.Command) MockResponse),
		RecordedCalls: make([]RecordedCall, 0),
	}
}

// Execute returns the mocked response for the given command.
func (m *MockCommandExecutor) Execute(ctx context.Context, cmd pkgexec.Command) ([]byte, []byte, error) {
	m.mu.Lock()
	m.RecordedCalls = append(m.RecordedCalls, RecordedCall{
		Command: cmd.Name,
		Args:    append([]string(nil), cmd.Args...),
		Env:     append([]string(nil), cmd.Env...),
		Stdin:   append([]byte(nil), cmd.Stdin...),
		Context: ctx,
	})

	key := buildKey(cmd.Name, cmd.Args)

	if pattern := longestMatch(key, m.Handlers); pattern != "" {
		handler := m.Handlers[pattern]
		// Handlers may call back into the mock.
		m.mu.Unlock()
		resp := handler(cmd)
		return resp.Stdout, resp.Stderr, resp.Err
	}
	defer m.mu.Unlock()

	if pattern := longestMatch(key, m.Responses); pattern != "" {
		resp := m.Responses[pattern]
		return resp.Stdout, resp.Stderr, resp.Err
	}

	if m.DefaultResponse != nil {
		return m.DefaultResponse.Stdout, m.DefaultResponse.Stderr, m.DefaultResponse.Err
	}

	if m.StrictMode {
		return nil, nil, fmt.Errorf("mock: no response configured for command: %s", key)
	}

	return []byte{}, []byte{}, nil
}

func buildKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// longestMatch returns the longest pattern that key starts with.
func longestMatch[V any](key string, patterns map[string]V) string {
	best := ""
	for pattern := range patterns {
		if strings.HasPrefix(key, pattern) && len(pattern) > len(best) {
			best = pattern
		}
	}
	return best
}

// AddResponse registers a mock response for a specific command pattern.
func (m *MockCommandExecutor) AddResponse(commandPattern string, response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[commandPattern] = response
}

// AddHandler registers a function computing the response for a pattern.
func (m *MockCommandExecutor) AddHandler(commandPattern string, handler func(pkgexec.Command) MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers[commandPattern] = handler
}

// AddJSONResponse is a convenience method to add a JSON response.
func (m *MockCommandExecutor) AddJSONResponse(commandPattern string, jsonData string) {
	m.AddResponse(commandPattern, MockResponse{Stdout: []byte(jsonData)})
}

// AddErrorResponse adds a failing response whose stderr is errMsg.
func (m *MockCommandExecutor) AddErrorResponse(commandPattern string, errMsg string, exitCode int) {
	m.AddResponse(commandPattern, ErrorResponse(errMsg, exitCode))
}

// AddNotInstalledResponse makes commandPattern fail as if the executable
// were missing from PATH.
func (m *MockCommandExecutor) AddNotInstalledResponse(commandPattern string) {
	name, _, _ := strings.Cut(commandPattern, " ")
	m.AddResponse(commandPattern, MockResponse{
		Err: fmt.Errorf("exec: %q: %w", name, pkgexec.ErrNotFound),
	})
}

// ErrorResponse builds a failing response whose stderr is errMsg.
func ErrorResponse(errMsg string, exitCode int) MockResponse {
	return MockResponse{
		Stdout:   []byte{},
		Stderr:   []byte(errMsg),
		Err:      fmt.Errorf("exit status %d: %s", exitCode, errMsg),
		ExitCode: exitCode,
	}
}

// GetCalls returns all recorded calls matching the given command name.
func (m *MockCommandExecutor) GetCalls(commandName string) []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []RecordedCall
	for _, call := range m.RecordedCalls {
		if call.Command == commandName {
			matches = append(matches, call)
		}
	}
	return matches
}

// Lines returns every recorded call rendered with RecordedCall.Line.
func (m *MockCommandExecutor) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := make([]string, 0, len(m.RecordedCalls))
	for _, call := range m.RecordedCalls {
		lines = append(lines, call.Line())
	}
	return lines
}

// CallCount returns the number of times Execute was called.
func (m *MockCommandExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RecordedCalls)
}

// Reset clears all recorded calls and responses.
func (m *MockCommandExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = make(map[string]MockResponse)
	m.Handlers = make(map[string]func(pkgexec.Command) MockResponse)
	m.RecordedCalls = make([]RecordedCall, 0)
	m.DefaultResponse = nil
}

// AssertCalled verifies that a specific command was called at least once.
func (m *MockCommandExecutor) AssertCalled(t interface{ Error(args ...interface{}) }, commandName string) bool {
	if len(m.GetCalls(commandName)) == 0 {
		t.Error("expected command", commandName, "to be called, but it was not")
		return false
	}
	return true
}

// AssertNotCalled verifies that a specific command was never called.
func (m *MockCommandExecutor) AssertNotCalled(t interface{ Error(args ...interface{}) }, commandName string) bool {
	if calls := m.GetCalls(commandName); len(calls) > 0 {
		t.Error("expected command", commandName, "to not be called, but it was called", len(calls), "times")
		return false
	}
	return true
}

// AssertCallCount verifies the exact number of times a command was called.
func (m *MockCommandExecutor) AssertCallCount(t interface{ Error(args ...interface{}) }, commandName string, expected int) bool {
	if calls := m.GetCalls(commandName); len(calls) != expected {
		t.Error("expected command", commandName, "to be called", expected, "times, but was called", len(calls), "times")
		return false
	}
	return true
}
