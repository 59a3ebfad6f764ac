// Package exec runs the external CLI tools that back several providers.
// Providers receive a CommandExecutor so tests can script the tool's output.
package exec

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
)

// ErrNotFound is returned (wrapped) when the executable is not on PATH.
var ErrNotFound = exec.ErrNotFound

// Command describes a single invocation of an external tool.
type Command struct {
	Name string
	Args []string
	// Env holds extra KEY=VALUE pairs appended to the current process environment.
	Env []string
	// Stdin, when non-nil, is written to the process's standard input.
	Stdin []byte
}

// String renders the command line without environment or stdin.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// CommandExecutor runs commands. Implementations return whatever the tool
// wrote to stdout and stderr even when err is non-nil.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd Command) (stdout []byte, stderr []byte, err error)
}

// RealCommandExecutor executes commands with os/exec.
type RealCommandExecutor struct{}

// Execute runs the command and waits for it to finish. The child is killed
// if ctx is cancelled.
func (r *RealCommandExecutor) Execute(ctx context.Context, c Command) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// DefaultExecutor returns the production executor.
func DefaultExecutor() CommandExecutor {
	return &RealCommandExecutor{}
}

// IsNotFound reports whether err means the executable could not be located.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

// ExitCode extracts the process exit status from err, or 0 when err did not
// come from a process that ran to completion.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 0
}
