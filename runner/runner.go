// Package runner executes workspace scripts as child processes.
//
// Information Hiding:
// - Process group setup and kill strategy hidden per platform
// - Output capture and truncation hidden
// - Environment filtering hidden
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/richinex/reasoner/sandbox"
)

// Defaults for script execution.
const (
	DefaultTimeout        = 60 * time.Second
	DefaultMaxOutputChars = 12000
	defaultWaitDelay      = 2 * time.Second
)

// Status classifies how a script run ended.
type Status string

const (
	// StatusOK means the script exited with code 0.
	StatusOK Status = "ok"
	// StatusExitNonZero means the script ran but exited with a failure code.
	StatusExitNonZero Status = "exit_nonzero"
	// StatusTimeout means the script was killed at the deadline.
	StatusTimeout Status = "timeout"
)

// Result is the captured outcome of one run.
type Result struct {
	Script          string
	Args            []string
	Status          Status
	ExitCode        int
	Stdout          string
	Stderr          string
	StdoutTruncated bool
	StderrTruncated bool
	Duration        time.Duration
}

// Resolver validates script names. *workspace.Store satisfies it.
type Resolver interface {
	Resolve(name string, op sandbox.Op) (string, error)
	Root() string
}

// Options configures a Runner.
type Options struct {
	// Interpreter is the command and leading arguments used to run a script,
	// e.g. ["python3"]. The script path and its arguments are appended.
	Interpreter    []string
	Timeout        time.Duration
	MaxOutputChars int
	Logger         *zap.Logger
}

// Runner runs scripts one at a time inside the workspace directory.
type Runner struct {
	resolver       Resolver
	interpreter    []string
	timeout        time.Duration
	maxOutputChars int
	logger         *zap.Logger
}

// New creates a runner for scripts resolved through r.
func New(r Resolver, opts Options) *Runner {
	interpreter := opts.Interpreter
	if len(interpreter) == 0 {
		interpreter = []string{defaultInterpreter()}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxChars := opts.MaxOutputChars
	if maxChars <= 0 {
		maxChars = DefaultMaxOutputChars
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		resolver:       r,
		interpreter:    interpreter,
		timeout:        timeout,
		maxOutputChars: maxChars,
		logger:         logger.Named("runner"),
	}
}

// Timeout returns the per-run wall-clock bound.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// Run executes the named script with args. A script that exits non-zero or
// times out is reported through Result.Status with a nil error. Errors are
// returned for rejected names, start failures and caller cancellation.
func (r *Runner) Run(ctx context.Context, name string, args []string) (Result, error) {
	path, err := r.resolver.Resolve(name, sandbox.OpExecute)
	if err != nil {
		return Result{}, err
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	argv := append(append([]string{}, r.interpreter[1:]...), path)
	argv = append(argv, args...)

	cmd := exec.CommandContext(execCtx, r.interpreter[0], argv...)
	cmd.Dir = r.resolver.Root()
	cmd.Env = filterEnvironment(os.Environ())
	cmd.Stdin = nil
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = defaultWaitDelay

	half := r.maxOutputChars / 2
	stdout := newHeadTailBuffer(half)
	stderr := newHeadTailBuffer(half)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.logger.Debug("running script",
		zap.String("script", name),
		zap.Strings("args", args),
		zap.Duration("timeout", r.timeout))

	start := time.Now()
	runErr := cmd.Run()

	result := Result{
		Script:          name,
		Args:            args,
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		StdoutTruncated: stdout.Truncated(),
		StderrTruncated: stderr.Truncated(),
		Duration:        time.Since(start),
	}

	switch {
	case ctx.Err() != nil:
		return result, fmt.Errorf("script run cancelled: %w", ctx.Err())
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.Status = StatusTimeout
		result.ExitCode = -1
	case runErr == nil:
		result.Status = StatusOK
	default:
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return result, fmt.Errorf("failed to start script: %w", runErr)
		}
		result.Status = StatusExitNonZero
		result.ExitCode = exitErr.ExitCode()
	}

	r.logger.Debug("script finished",
		zap.String("script", name),
		zap.String("status", string(result.Status)),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// sensitiveEnvSuffixes mark variables that are not passed to scripts.
var sensitiveEnvSuffixes = []string{
	"_API_KEY",
	"_SECRET",
	"_TOKEN",
	"_PASSWORD",
	"_CREDENTIAL",
	"_CREDENTIALS",
}

// filterEnvironment drops credential-looking variables from env.
func filterEnvironment(env []string) []string {
	filtered := make([]string, 0, len(env))
	for _, kv := range env {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if isSensitiveEnvVar(name) {
			continue
		}
		filtered = append(filtered, kv)
	}
	return filtered
}

func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	for _, suffix := range sensitiveEnvSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return true
		}
	}
	return false
}
