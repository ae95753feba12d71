package runner

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/reasoner/sandbox"
	"github.com/richinex/reasoner/workspace"
)

// newShellRunner returns a runner that executes .sh scripts with sh so the
// tests do not depend on a Python install.
func newShellRunner(t *testing.T, opts Options) (*Runner, *workspace.Store) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	store, err := workspace.Open(t.TempDir(), workspace.Options{
		Policy: sandbox.Policy{ScriptExt: ".sh", DataExtensions: sandbox.DefaultDataExtensions},
	})
	require.NoError(t, err)

	opts.Interpreter = []string{"sh"}
	return New(store, opts), store
}

func writeScript(t *testing.T, store *workspace.Store, name, body string) {
	t.Helper()
	_, err := store.Write(name, body, workspace.KindScript)
	require.NoError(t, err)
}

func TestRunOK(t *testing.T) {
	r, store := newShellRunner(t, Options{})
	writeScript(t, store, "ok.sh", "echo OK\n")

	res, err := r.Run(context.Background(), "ok.sh", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "OK\n", res.Stdout)
	assert.Empty(t, res.Stderr)
	assert.False(t, res.StdoutTruncated)
}

func TestRunNonZeroExit(t *testing.T) {
	r, store := newShellRunner(t, Options{})
	writeScript(t, store, "fail.sh", "echo partial\necho boom >&2\nexit 3\n")

	res, err := r.Run(context.Background(), "fail.sh", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusExitNonZero, res.Status)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "partial\n", res.Stdout)
	assert.Equal(t, "boom\n", res.Stderr)
}

func TestRunTimeout(t *testing.T) {
	r, store := newShellRunner(t, Options{Timeout: 200 * time.Millisecond})
	writeScript(t, store, "slow.sh", "echo started\nsleep 30\necho never\n")

	start := time.Now()
	res, err := r.Run(context.Background(), "slow.sh", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, res.Status)
	assert.Equal(t, -1, res.ExitCode)
	assert.NotContains(t, res.Stdout, "never")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunTimeoutKillsBackgroundChildren(t *testing.T) {
	r, store := newShellRunner(t, Options{Timeout: 200 * time.Millisecond})
	writeScript(t, store, "spawn.sh", "sleep 30 &\nsleep 30 &\nwait\n")

	start := time.Now()
	res, err := r.Run(context.Background(), "spawn.sh", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, res.Status)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunPassesArgs(t *testing.T) {
	r, store := newShellRunner(t, Options{})
	writeScript(t, store, "args.sh", `echo "$#:$1:$2"`+"\n")

	res, err := r.Run(context.Background(), "args.sh", []string{"--flag", "two words"})
	require.NoError(t, err)
	assert.Equal(t, "2:--flag:two words\n", res.Stdout)
}

func TestRunWorkingDirectoryIsWorkspace(t *testing.T) {
	r, store := newShellRunner(t, Options{})
	writeScript(t, store, "where.sh", "pwd -P\n")

	res, err := r.Run(context.Background(), "where.sh", nil)
	require.NoError(t, err)
	assert.Equal(t, store.Root(), strings.TrimSpace(res.Stdout))
}

func TestRunFiltersSecrets(t *testing.T) {
	t.Setenv("DEMO_API_KEY", "sk-should-not-leak")
	t.Setenv("DEMO_VISIBLE", "yes")
	r, store := newShellRunner(t, Options{})
	writeScript(t, store, "env.sh", `echo "${DEMO_API_KEY:-unset} ${DEMO_VISIBLE:-unset}"`+"\n")

	res, err := r.Run(context.Background(), "env.sh", nil)
	require.NoError(t, err)
	assert.Equal(t, "unset yes\n", res.Stdout)
}

func TestRunTruncatesLargeOutput(t *testing.T) {
	r, store := newShellRunner(t, Options{MaxOutputChars: 200})
	writeScript(t, store, "loud.sh", "i=0\nwhile [ $i -lt 2000 ]; do echo line$i; i=$((i+1)); done\n")

	res, err := r.Run(context.Background(), "loud.sh", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.True(t, res.StdoutTruncated)
	assert.True(t, strings.HasPrefix(res.Stdout, "line0\n"))
	assert.True(t, strings.HasSuffix(res.Stdout, "line1999\n"))
	assert.Contains(t, res.Stdout, "TRUNCATED")
	assert.Less(t, len(res.Stdout), 400)
}

func TestRunRejectsMissingAndEscapingScripts(t *testing.T) {
	r, _ := newShellRunner(t, Options{})

	_, err := r.Run(context.Background(), "missing.sh", nil)
	assert.ErrorIs(t, err, workspace.ErrNotFound)
	assert.NotErrorIs(t, err, sandbox.ErrPathRejected)

	for _, name := range []string{"../escape.sh", "/bin/sh"} {
		_, err := r.Run(context.Background(), name, nil)
		assert.ErrorIs(t, err, sandbox.ErrPathRejected, "name %q", name)
	}
}

func TestRunCancelledContext(t *testing.T) {
	r, store := newShellRunner(t, Options{Timeout: 10 * time.Second})
	writeScript(t, store, "slow.sh", "sleep 30\n")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, "slow.sh", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunMissingInterpreter(t *testing.T) {
	r, store := newShellRunner(t, Options{})
	writeScript(t, store, "ok.sh", "echo OK\n")
	r.interpreter = []string{"definitely-not-an-interpreter-xyz"}

	_, err := r.Run(context.Background(), "ok.sh", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, sandbox.ErrPathRejected)
}

func TestRunPythonHello(t *testing.T) {
	if _, err := exec.LookPath(defaultInterpreter()); err != nil {
		t.Skip("python not available")
	}
	store, err := workspace.Open(t.TempDir(), workspace.Options{})
	require.NoError(t, err)
	_, err = store.Write("hello.py", `print("hello, workspace")`, workspace.KindScript)
	require.NoError(t, err)

	res, err := New(store, Options{}).Run(context.Background(), "hello.py", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "hello, workspace\n", strings.ReplaceAll(res.Stdout, "\r\n", "\n"))
}

func TestHeadTailBuffer(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		writes    []string
		want      string
		truncated bool
	}{
		{"fits", 10, []string{"hello"}, "hello", false},
		{"exactly both halves", 3, []string{"abcdef"}, "abcdef", false},
		{"split writes", 3, []string{"ab", "cd", "ef"}, "abcdef", false},
		{"drops middle", 3, []string{"abc", "XXXX", "xyz"}, "abc\n\n...[TRUNCATED 4 bytes]...\n\nxyz", true},
		{"ring wraps", 2, []string{"ab", "1", "2", "3", "4", "yz"}, "ab\n\n...[TRUNCATED 4 bytes]...\n\nyz", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newHeadTailBuffer(tt.limit)
			for _, w := range tt.writes {
				n, err := b.Write([]byte(w))
				require.NoError(t, err)
				assert.Equal(t, len(w), n)
			}
			assert.Equal(t, tt.want, b.String())
			assert.Equal(t, tt.truncated, b.Truncated())
		})
	}
}

func TestFilterEnvironment(t *testing.T) {
	env := []string{
		"PATH=/usr/bin",
		"GROQ_API_KEY=secret",
		"github_token=secret",
		"DB_PASSWORD=secret",
		"HOME=/home/x",
		"malformed",
	}
	got := filterEnvironment(env)
	assert.Equal(t, []string{"PATH=/usr/bin", "HOME=/home/x"}, got, fmt.Sprintf("%v", got))
}
