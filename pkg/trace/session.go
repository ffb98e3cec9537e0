package trace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// DefaultTimeout bounds one debugger session.
const DefaultTimeout = 4000 * time.Second

// waitDelay bounds how long Run waits for the output pipes to close after
// the debugger's process group has been killed.
const waitDelay = 3 * time.Second

// ErrTimeout is returned when a session exceeds its timeout.
var ErrTimeout = errors.New("debugger session timed out")

// Session runs one debugger session of binary on input and returns the
// captured transcript. Implementations must be safe for concurrent use.
type Session interface {
	Run(ctx context.Context, binary string, plan *Plan, input string) (string, error)
}

// ExecSession runs gdb or lldb out of process with a generated script.
type ExecSession struct {
	Backend Backend
	// Debugger overrides the debugger executable.
	Debugger string
	Timeout  time.Duration
}

// NewExecSession creates a session for backend with the default timeout.
func NewExecSession(backend Backend) *ExecSession {
	return &ExecSession{Backend: backend, Timeout: DefaultTimeout}
}

func (s *ExecSession) command(script, binary string) (string, []string) {
	exe := s.Debugger
	if exe == "" {
		exe = string(s.Backend)
	}
	if s.Backend == LLDB {
		return exe, []string{"-s", script, binary}
	}
	return exe, []string{"-q", "-x", script, binary}
}

// Run writes the script to a temporary file and runs the debugger on it.
// The transcript is the debugger's standard output; it is returned even
// when the debugger exits with an error.
func (s *ExecSession) Run(ctx context.Context, binary string, plan *Plan, input string) (string, error) {
	dir, err := os.MkdirTemp("", "dbgfidelity-")
	if err != nil {
		return "", fmt.Errorf("create script dir: %w", err)
	}
	defer os.RemoveAll(dir)

	script := filepath.Join(dir, "session.dbg")
	if err := os.WriteFile(script, []byte(Script(s.Backend, plan, input)), 0o600); err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	exe, args := s.command(script, binary)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// The inferior and anything it spawns share the debugger's pipes, so
	// the whole group is killed on timeout.
	killGroupOnCancel(cmd)
	cmd.WaitDelay = waitDelay
	err = cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return stdout.String(), fmt.Errorf("%s on %s: %w after %s", exe, filepath.Base(input), ErrTimeout, timeout)
	}
	if err != nil {
		return stdout.String(), fmt.Errorf("%s on %s: %w: %s", exe, filepath.Base(input), err, bytes.TrimSpace(lastLine(stderr.Bytes())))
	}
	return stdout.String(), nil
}

func lastLine(b []byte) []byte {
	b = bytes.TrimRight(b, "\n")
	if idx := bytes.LastIndexByte(b, '\n'); idx >= 0 {
		return b[idx+1:]
	}
	return b
}
