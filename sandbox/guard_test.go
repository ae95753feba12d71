package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T) (*Guard, string) {
	t.Helper()
	root := t.TempDir()
	g, err := New(root, DefaultPolicy())
	require.NoError(t, err)
	return g, g.Root()
}

func TestTraversalRejectedForEveryOp(t *testing.T) {
	g, _ := newTestGuard(t)
	names := []string{
		"../escape.py",
		"../../etc/passwd",
		"..",
		"foo/../bar.py",
		`..\escape.py`,
		"/etc/passwd",
		"/tmp/x.py",
		`C:\Windows\x.py`,
		`\\server\share\x.py`,
	}
	ops := []Op{OpWriteCode, OpWriteData, OpRead, OpExecute}

	for _, name := range names {
		for _, op := range ops {
			path, err := g.Resolve(name, op)
			assert.Empty(t, path, "name %q op %s", name, op)
			require.Error(t, err, "name %q op %s", name, op)
			assert.True(t, errors.Is(err, ErrPathRejected), "name %q op %s", name, op)
		}
	}
}

func TestRejectionCarriesRule(t *testing.T) {
	g, _ := newTestGuard(t)

	tests := []struct {
		name string
		op   Op
		rule Rule
	}{
		{"", OpRead, RuleEmpty},
		{"   ", OpRead, RuleEmpty},
		{"/abs.py", OpWriteCode, RuleAbsolute},
		{"../x.py", OpWriteCode, RuleTraversal},
		{"sub/x.py", OpWriteCode, RuleSeparator},
		{".env", OpRead, RuleHidden},
		{"bad name.py", OpWriteCode, RuleCharset},
		{"x;rm.py", OpWriteCode, RuleCharset},
		{"notes.md", OpWriteCode, RuleExtension},
		{"script.py", OpWriteData, RuleExtension},
		{"run.sh", OpRead, RuleExtension},
	}

	for _, tt := range tests {
		_, err := g.Resolve(tt.name, tt.op)
		var rejected *PathRejectedError
		require.True(t, errors.As(err, &rejected), "name %q: expected PathRejectedError, got %v", tt.name, err)
		assert.Equal(t, tt.rule, rejected.Rule, "name %q", tt.name)
		assert.Equal(t, tt.name, rejected.Input)
	}
}

func TestResolveAllowedNames(t *testing.T) {
	g, root := newTestGuard(t)

	path, err := g.Resolve("hello.py", OpWriteCode)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "hello.py"), path)

	path, err = g.Resolve("report.md", OpWriteData)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "report.md"), path)

	path, err = g.Resolve("DATA.CSV", OpRead)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "DATA.CSV"), path)
}

func TestDefaultExtensionAppended(t *testing.T) {
	g, root := newTestGuard(t)

	path, err := g.Resolve("task", OpWriteCode)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "task.py"), path)

	path, err = g.Resolve("notes", OpWriteData)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "notes.txt"), path)
}

func TestExecuteRequiresExistingRegularFile(t *testing.T) {
	g, root := newTestGuard(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "ok.py"), []byte("print(1)"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir.py"), 0o755))

	path, err := g.Resolve("ok.py", OpExecute)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "ok.py"), path)

	_, err = g.Resolve("missing", OpExecute)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrPathRejected)
	assert.Contains(t, err.Error(), "missing.py")

	_, err = g.Resolve("dir.py", OpExecute)
	var rejected *PathRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, RuleNotRegular, rejected.Rule)
}

func TestSymlinkEscapeRejected(t *testing.T) {
	g, root := newTestGuard(t)
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("top secret"), 0o644))

	if err := os.Symlink(secret, filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(outside, "nowhere.txt"), filepath.Join(root, "dangling.txt")))

	for _, op := range []Op{OpRead, OpWriteData} {
		_, err := g.Resolve("link.txt", op)
		var rejected *PathRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, RuleEscape, rejected.Rule)

		_, err = g.Resolve("dangling.txt", op)
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, RuleEscape, rejected.Rule)
	}
}

func TestSymlinkInsideWorkspaceAllowed(t *testing.T) {
	g, root := newTestGuard(t)
	target := filepath.Join(root, "real.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	if err := os.Symlink(target, filepath.Join(root, "alias.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	path, err := g.Resolve("alias.txt", OpRead)
	require.NoError(t, err)
	assert.Equal(t, target, path)
}

func TestCustomPolicy(t *testing.T) {
	root := t.TempDir()
	g, err := New(root, Policy{ScriptExt: "sh", DataExtensions: []string{"txt", ".sh"}})
	require.NoError(t, err)

	assert.Equal(t, ".sh", g.ScriptExt())
	assert.Equal(t, []string{".sh"}, g.Allowed(OpWriteCode))
	// the script extension never doubles as a data extension
	assert.Equal(t, []string{".txt"}, g.Allowed(OpWriteData))
	assert.Equal(t, []string{".txt", ".sh"}, g.Allowed(OpRead))
}

func TestRootIsCanonical(t *testing.T) {
	base := t.TempDir()
	real := filepath.Join(base, "real")
	require.NoError(t, os.Mkdir(real, 0o755))
	link := filepath.Join(base, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	g, err := New(link, DefaultPolicy())
	require.NoError(t, err)
	canonical, err := filepath.EvalSymlinks(real)
	require.NoError(t, err)
	assert.Equal(t, canonical, g.Root())
}
