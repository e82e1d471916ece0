// Package invoker runs the external ledger client and captures its output.
package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"ledgerctl/internal/logging"
	"ledgerctl/internal/operation"
)

var (
	ErrUnconfirmed  = errors.New("invoker: operation was not confirmed")
	ErrNoExecutable = errors.New("invoker: no client executable")
	ErrStartFailed  = errors.New("invoker: client could not be started")
)

// waitDelay bounds how long output is drained after the client is killed.
const waitDelay = 2 * time.Second

// Result is the captured outcome of one invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Display returns the text to show the operator: stdout when the client
// wrote any, stderr otherwise.
func (r *Result) Display() string {
	if out := strings.TrimSpace(r.Stdout); out != "" {
		return out
	}
	return strings.TrimSpace(r.Stderr)
}

// Output is stdout followed by stderr, for the history record.
func (r *Result) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	return r.Stdout + r.Stderr
}

// ExitError reports a client that ran and exited non-zero.
type ExitError struct {
	Result *Result
}

func (e *ExitError) Error() string {
	msg := e.Result.Display()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if msg == "" {
		return fmt.Sprintf("client exited with status %d", e.Result.ExitCode)
	}
	return fmt.Sprintf("client exited with status %d: %s", e.Result.ExitCode, msg)
}

// Options configures an Invoker.
type Options struct {
	// Env is appended to the inherited environment.
	Env []string

	// Stdin is connected to the client. Nil means no input.
	Stdin io.Reader

	Logger *slog.Logger
}

// Invoker runs client processes synchronously.
type Invoker struct {
	env    []string
	stdin  io.Reader
	logger *slog.Logger
}

// New creates an Invoker.
func New(opts Options) *Invoker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		env:    opts.Env,
		stdin:  opts.Stdin,
		logger: logger.With("component", "invoker"),
	}
}

// Run executes op. Mutating operations must have passed operation.Finalize.
func (i *Invoker) Run(ctx context.Context, op *operation.PendingOperation) (*Result, error) {
	if !op.Confirmed() {
		return nil, ErrUnconfirmed
	}
	ctx = logging.ContextWithOperationID(ctx, op.ID.String())
	logger := i.logger.With("kind", string(op.Kind), "wallet", op.Target.Wallet)

	res, err := i.Exec(ctx, op.Target.Executable, op.Argv())
	if err != nil {
		logger.WarnContext(ctx, "operation failed", "error", err)
		return res, err
	}
	logger.InfoContext(ctx, "operation completed", "duration", res.Duration)
	return res, nil
}

// Exec runs executable with argv and waits for it. A non-zero exit is
// returned as *ExitError together with the captured Result.
func (i *Invoker) Exec(ctx context.Context, executable string, argv []string) (*Result, error) {
	if executable == "" {
		return nil, ErrNoExecutable
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, executable, argv...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = i.stdin
	cmd.WaitDelay = waitDelay
	if len(i.env) > 0 {
		cmd.Env = append(cmd.Environ(), i.env...)
	}

	i.logger.DebugContext(ctx, "starting client", "executable", executable, "args", argv)
	start := time.Now()
	err := cmd.Run()

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("client interrupted: %w", ctxErr)
	}
	if exitErr != nil {
		return res, &ExitError{Result: res}
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrStartFailed, executable, err)
}
