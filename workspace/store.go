// Package workspace provides file operations confined to one directory.
//
// Information Hiding:
// - Path validation delegated to sandbox.Guard
// - File I/O and size limits hidden
// - Listing filters hidden from callers
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/richinex/reasoner/sandbox"
)

// DefaultMaxFileBytes bounds a single read or write.
const DefaultMaxFileBytes = 1024 * 1024 // 1MB

// ErrNotFound is returned when a read or run target does not exist.
var ErrNotFound = sandbox.ErrNotFound

// ErrTooLarge is returned when content exceeds the configured bound.
var ErrTooLarge = errors.New("file too large")

// Kind selects the write policy for a file.
type Kind int

const (
	// KindScript files must use the script extension.
	KindScript Kind = iota
	// KindData files use one of the data extensions.
	KindData
)

func (k Kind) op() sandbox.Op {
	if k == KindScript {
		return sandbox.OpWriteCode
	}
	return sandbox.OpWriteData
}

// Entry is one item in a workspace listing.
type Entry struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	IsDir bool   `json:"is_dir,omitempty"`
}

// WriteResult reports a completed write.
type WriteResult struct {
	Name  string
	Path  string
	Bytes int
}

// Options configures a Store.
type Options struct {
	Policy       sandbox.Policy
	MaxFileBytes int64
	Logger       *zap.Logger
}

// Store reads, writes and lists files under a single root.
type Store struct {
	guard        *sandbox.Guard
	maxFileBytes int64
	logger       *zap.Logger
}

// Open creates root if absent and returns a store confined to it.
func Open(root string, opts Options) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root cannot be empty")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	policy := opts.Policy
	if policy.ScriptExt == "" {
		policy = sandbox.DefaultPolicy()
	}
	guard, err := sandbox.New(root, policy)
	if err != nil {
		return nil, err
	}

	maxBytes := opts.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		guard:        guard,
		maxFileBytes: maxBytes,
		logger:       logger.Named("workspace"),
	}, nil
}

// Root returns the canonical workspace directory.
func (s *Store) Root() string {
	return s.guard.Root()
}

// Guard returns the path guard backing this store.
func (s *Store) Guard() *sandbox.Guard {
	return s.guard
}

// Resolve validates name for op without touching the file.
func (s *Store) Resolve(name string, op sandbox.Op) (string, error) {
	return s.guard.Resolve(name, op)
}

// Write creates or overwrites name with content. Writes are unconditional.
func (s *Store) Write(name, content string, kind Kind) (WriteResult, error) {
	path, err := s.guard.Resolve(name, kind.op())
	if err != nil {
		s.logger.Debug("write rejected", zap.String("name", name), zap.Error(err))
		return WriteResult{}, err
	}

	if int64(len(content)) > s.maxFileBytes {
		return WriteResult{}, fmt.Errorf("%w: %d bytes (max: %d bytes)", ErrTooLarge, len(content), s.maxFileBytes)
	}
	if !utf8.ValidString(content) {
		return WriteResult{}, fmt.Errorf("content is not valid UTF-8")
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return WriteResult{}, fmt.Errorf("failed to write file: %w", err)
	}

	leaf := filepath.Base(path)
	s.logger.Debug("file written", zap.String("name", leaf), zap.Int("bytes", len(content)))
	return WriteResult{Name: leaf, Path: path, Bytes: len(content)}, nil
}

// Read returns the text content of name.
func (s *Store) Read(name string) (string, error) {
	path, err := s.guard.Resolve(name, sandbox.OpRead)
	if err != nil {
		s.logger.Debug("read rejected", zap.String("name", name), zap.Error(err))
		return "", err
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
	}
	if err != nil {
		return "", fmt.Errorf("failed to read file metadata: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNotFound, filepath.Base(path))
	}
	if info.Size() > s.maxFileBytes {
		return "", fmt.Errorf("%w: %d bytes (max: %d bytes)", ErrTooLarge, info.Size(), s.maxFileBytes)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	s.logger.Debug("file read", zap.String("name", filepath.Base(path)), zap.Int("bytes", len(content)))
	return string(content), nil
}

// List returns the workspace entries sorted by name. Symlinks that resolve
// outside the root are omitted.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.guard.Root())
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		full := filepath.Join(s.guard.Root(), de.Name())
		if de.Type()&os.ModeSymlink != 0 && !s.insideRoot(full) {
			continue
		}

		info, err := os.Stat(full)
		if err != nil {
			continue
		}
		entry := Entry{Name: de.Name(), IsDir: info.IsDir()}
		if !entry.IsDir {
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (s *Store) insideRoot(path string) bool {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}
	return s.guard.Contains(target)
}
