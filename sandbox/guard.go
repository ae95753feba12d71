// Package sandbox validates model-proposed file names against the workspace.
//
// Information Hiding:
// - Canonicalization and symlink resolution hidden
// - Extension policy per operation hidden behind Op
// - Rejection reasons surfaced as values, never partial paths
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Op is the class of operation a name is validated for.
type Op int

const (
	// OpWriteCode writes a script file.
	OpWriteCode Op = iota
	// OpWriteData writes a data, text or markup file.
	OpWriteData
	// OpRead reads any allowlisted file.
	OpRead
	// OpExecute runs an existing script.
	OpExecute
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpWriteCode:
		return "write-code"
	case OpWriteData:
		return "write-data"
	case OpRead:
		return "read"
	case OpExecute:
		return "execute"
	default:
		return "unknown"
	}
}

// Rule names the check a rejected name failed.
type Rule string

const (
	RuleEmpty      Rule = "empty"
	RuleAbsolute   Rule = "absolute-path"
	RuleSeparator  Rule = "directory-separator"
	RuleTraversal  Rule = "traversal"
	RuleHidden     Rule = "hidden-name"
	RuleCharset    Rule = "charset"
	RuleLength     Rule = "length"
	RuleExtension  Rule = "extension"
	RuleEscape     Rule = "outside-workspace"
	RuleNotRegular Rule = "not-regular-file"
)

const (
	maxNameLength  = 255
	defaultDataExt = ".txt"
)

// ErrPathRejected is matched by every *PathRejectedError.
var ErrPathRejected = errors.New("path rejected")

// ErrNotFound is returned when a valid name has no file behind it.
var ErrNotFound = errors.New("file not found")

// PathRejectedError carries the offending input and the violated rule.
type PathRejectedError struct {
	Input  string
	Op     Op
	Rule   Rule
	Detail string
}

func (e *PathRejectedError) Error() string {
	msg := fmt.Sprintf("path rejected (%s) for %s: %q", e.Rule, e.Op, e.Input)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is reports ErrPathRejected equivalence for errors.Is.
func (e *PathRejectedError) Is(target error) bool {
	return target == ErrPathRejected
}

var safeName = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// DefaultDataExtensions are accepted by OpWriteData.
var DefaultDataExtensions = []string{".txt", ".md", ".json", ".csv", ".log"}

// Policy configures the extension allowlist.
type Policy struct {
	ScriptExt      string   // e.g. ".py"
	DataExtensions []string // e.g. .txt .md .json
}

// DefaultPolicy returns the Python script policy.
func DefaultPolicy() Policy {
	return Policy{
		ScriptExt:      ".py",
		DataExtensions: DefaultDataExtensions,
	}
}

// Guard validates names against one workspace root.
// It is pure apart from stat calls and safe for concurrent use.
type Guard struct {
	root      string
	scriptExt string
	dataExts  map[string]bool
}

// New creates a guard for root. Root must exist; it is made absolute and
// symlink-resolved so later containment checks compare canonical paths.
func New(root string, policy Policy) (*Guard, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize workspace root: %w", err)
	}

	scriptExt := normalizeExt(policy.ScriptExt)
	if scriptExt == "" {
		scriptExt = ".py"
	}
	dataExts := make(map[string]bool)
	exts := policy.DataExtensions
	if len(exts) == 0 {
		exts = DefaultDataExtensions
	}
	for _, ext := range exts {
		if ext = normalizeExt(ext); ext != "" && ext != scriptExt {
			dataExts[ext] = true
		}
	}

	return &Guard{root: canonical, scriptExt: scriptExt, dataExts: dataExts}, nil
}

// Root returns the canonical workspace root.
func (g *Guard) Root() string {
	return g.root
}

// ScriptExt returns the designated script extension.
func (g *Guard) ScriptExt() string {
	return g.scriptExt
}

// Allowed returns the extensions accepted for op.
func (g *Guard) Allowed(op Op) []string {
	switch op {
	case OpWriteCode, OpExecute:
		return []string{g.scriptExt}
	case OpWriteData:
		return sortedKeys(g.dataExts)
	case OpRead:
		return append(sortedKeys(g.dataExts), g.scriptExt)
	default:
		return nil
	}
}

// Resolve validates name for op and returns the absolute path inside the
// workspace. Invalid names yield a *PathRejectedError; a valid execute
// target that does not exist yields ErrNotFound.
func (g *Guard) Resolve(name string, op Op) (string, error) {
	leaf, err := g.checkName(name, op)
	if err != nil {
		return "", err
	}

	path := filepath.Join(g.root, leaf)
	if !g.Contains(path) {
		return "", reject(name, op, RuleEscape, "")
	}

	info, err := os.Lstat(path)
	switch {
	case os.IsNotExist(err):
		if op == OpExecute {
			return "", fmt.Errorf("%w: %s", ErrNotFound, leaf)
		}
		return path, nil
	case err != nil:
		return "", reject(name, op, RuleEscape, err.Error())
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(path)
		if err != nil {
			return "", reject(name, op, RuleEscape, "dangling symlink")
		}
		if !g.Contains(target) {
			return "", reject(name, op, RuleEscape, "symlink points outside workspace")
		}
		if info, err = os.Stat(target); err != nil {
			return "", reject(name, op, RuleEscape, err.Error())
		}
		path = target
	}

	if op == OpExecute && !info.Mode().IsRegular() {
		return "", reject(name, op, RuleNotRegular, "")
	}

	return path, nil
}

// checkName applies the lexical rules and returns the leaf name with its
// extension defaulted.
func (g *Guard) checkName(name string, op Op) (string, error) {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return "", reject(name, op, RuleEmpty, "")
	case strings.ContainsRune(trimmed, 0):
		return "", reject(name, op, RuleCharset, "NUL byte")
	case filepath.IsAbs(trimmed) || strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, `\`) || hasDriveLetter(trimmed):
		return "", reject(name, op, RuleAbsolute, "")
	case strings.Contains(trimmed, ".."):
		return "", reject(name, op, RuleTraversal, "")
	case strings.ContainsAny(trimmed, `/\`):
		return "", reject(name, op, RuleSeparator, "workspace is flat")
	case strings.HasPrefix(trimmed, "."):
		return "", reject(name, op, RuleHidden, "")
	case len(trimmed) > maxNameLength:
		return "", reject(name, op, RuleLength, fmt.Sprintf("max %d characters", maxNameLength))
	case !safeName.MatchString(trimmed):
		return "", reject(name, op, RuleCharset, "allowed: letters, digits, '_', '-', '.'")
	}

	ext := strings.ToLower(filepath.Ext(trimmed))
	if ext == "" || ext == "." {
		ext = g.defaultExt(op)
		trimmed = strings.TrimSuffix(trimmed, ".") + ext
	}

	if !g.extAllowed(ext, op) {
		return "", reject(name, op, RuleExtension,
			fmt.Sprintf("%s not allowed, allowed: %s", ext, strings.Join(g.Allowed(op), " ")))
	}
	return trimmed, nil
}

func (g *Guard) defaultExt(op Op) string {
	if op == OpWriteCode || op == OpExecute {
		return g.scriptExt
	}
	return defaultDataExt
}

func (g *Guard) extAllowed(ext string, op Op) bool {
	switch op {
	case OpWriteCode, OpExecute:
		return ext == g.scriptExt
	case OpWriteData:
		return g.dataExts[ext]
	case OpRead:
		return ext == g.scriptExt || g.dataExts[ext]
	default:
		return false
	}
}

// Contains reports whether the canonical path is a strict descendant of
// the root.
func (g *Guard) Contains(path string) bool {
	rel, err := filepath.Rel(g.root, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return false
	}
	return true
}

func reject(input string, op Op, rule Rule, detail string) *PathRejectedError {
	return &PathRejectedError{Input: input, Op: op, Rule: rule, Detail: detail}
}

func hasDriveLetter(s string) bool {
	return len(s) >= 2 && s[1] == ':' &&
		((s[0] >= 'a' && s[0] <= 'z') || (s[0] >= 'A' && s[0] <= 'Z'))
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
