package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrWriteFailed means a payload could not be placed; the caller must
	// not commit a metadata record.
	ErrWriteFailed = errors.New("storage write failed")
	// ErrReadFailed is an unexpected I/O error distinct from not-found.
	ErrReadFailed = errors.New("storage read failed")
	// ErrNotFound means the backing file is missing or not a regular file.
	ErrNotFound = errors.New("file not found in storage")
	// ErrPathOutsideRoot means a relative path would escape the store root.
	ErrPathOutsideRoot = errors.New("path escapes storage root")
)

// Stat is the result of verifying an artifact's backing file.
type Stat struct {
	Exists bool
	IsFile bool
	Size   int64
}

// Valid reports whether the path resolves to a regular file.
func (s Stat) Valid() bool { return s.Exists && s.IsFile }

// LocalStore owns the on-disk tree under a configured root. It is the sole
// reader/writer of artifact bytes; the metadata index never touches the
// filesystem directly.
type LocalStore struct {
	root        string
	emptyDirTTL time.Duration
	log         *zap.Logger

	// rename is os.Rename except in tests, which swap it out to drive the
	// cross-device fallback in Place.
	rename func(oldpath, newpath string) error
}

// NewLocalStore creates the store rooted at root, creating it if missing.
// emptyDirTTL is the age guard applied by FindEmptyDirs.
func NewLocalStore(root string, emptyDirTTL time.Duration, log *zap.Logger) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{root: abs, emptyDirTTL: emptyDirTTL, log: log, rename: os.Rename}, nil
}

// Root returns the absolute store root.
func (s *LocalStore) Root() string { return s.root }

// Abs resolves a relative path under the root, rejecting anything that
// would escape it.
func (s *LocalStore) Abs(rel string) (string, error) {
	if rel == "" {
		return "", ErrPathOutsideRoot
	}
	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	if abs != s.root && !strings.HasPrefix(abs, s.root+string(filepath.Separator)) {
		return "", ErrPathOutsideRoot
	}
	if abs == s.root {
		return "", ErrPathOutsideRoot
	}
	return abs, nil
}

// Place moves the payload at tempPath into place under rel, creating all
// missing ancestor directories. The move is attempted as a rename first and
// falls back to copy-then-remove on a cross-device error. On failure the
// temp source is removed and no partial destination is left behind.
func (s *LocalStore) Place(tempPath, rel string) (int64, error) {
	dest, err := s.Abs(rel)
	if err != nil {
		_ = os.Remove(tempPath)
		return 0, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		_ = os.Remove(tempPath)
		return 0, fmt.Errorf("%w: create directories: %v", ErrWriteFailed, err)
	}

	if err := s.rename(tempPath, dest); err != nil {
		if !errors.Is(err, syscall.EXDEV) {
			_ = os.Remove(tempPath)
			return 0, fmt.Errorf("%w: rename: %v", ErrWriteFailed, err)
		}
		if err := copyAndRemove(tempPath, dest); err != nil {
			_ = os.Remove(tempPath)
			_ = os.Remove(dest)
			return 0, fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
	}

	info, err := os.Stat(dest)
	if err != nil {
		return 0, fmt.Errorf("%w: stat destination: %v", ErrWriteFailed, err)
	}
	return info.Size(), nil
}

// copyAndRemove is the cross-device fallback for Place.
func copyAndRemove(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy payload: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	return os.Remove(src)
}

// Verify stats the backing file of rel. A failing stat and an existing
// non-regular file are both reported as invalid.
func (s *LocalStore) Verify(rel string) Stat {
	abs, err := s.Abs(rel)
	if err != nil {
		return Stat{}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Stat{}
	}
	return Stat{Exists: true, IsFile: info.Mode().IsRegular(), Size: info.Size()}
}

// Open opens the backing file for streaming. A failing stat or a
// non-regular file yields ErrNotFound; an open failure on an existing
// regular file yields ErrReadFailed.
func (s *LocalStore) Open(rel string) (*os.File, int64, error) {
	abs, err := s.Abs(rel)
	if err != nil {
		return nil, 0, ErrNotFound
	}
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return nil, 0, ErrNotFound
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	return f, info.Size(), nil
}

// Remove unlinks the backing file of rel. Deletion is idempotent: a missing
// file is not an error, and other failures are logged and swallowed.
func (s *LocalStore) Remove(rel string) {
	abs, err := s.Abs(rel)
	if err != nil {
		return
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		s.log.Warn("remove artifact file", zap.String("path", rel), zap.Error(err))
	}
}

// DirOf returns the absolute directory containing rel, the starting point
// for a parent-chain prune after a deletion.
func (s *LocalStore) DirOf(rel string) (string, error) {
	abs, err := s.Abs(rel)
	if err != nil {
		return "", err
	}
	return filepath.Dir(abs), nil
}

// PruneEmptyParents walks upward from startDir toward (never including) the
// root, removing each empty directory until the first non-empty one, the
// root, or an error. No age guard applies here: the caller just deleted
// something in this chain, so emptiness is proof the directory is vacated.
// Returns the number of directories removed.
func (s *LocalStore) PruneEmptyParents(startDir string) int {
	removed := 0
	dir := filepath.Clean(startDir)
	for strings.HasPrefix(dir, s.root+string(filepath.Separator)) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := os.Remove(dir); err != nil {
			break
		}
		removed++
		dir = filepath.Dir(dir)
	}
	return removed
}

// FindEmptyDirs walks the tree post-order and reports every directory
// (excluding the root) that is empty after its children were visited and
// whose last modification is older than the age guard. The guard exists
// because deleting a child bumps the parent's mtime to now: a parent that
// just became empty must not be mistaken for a long-stale one by an
// independent scan while sibling writes may still be in flight.
func (s *LocalStore) FindEmptyDirs() ([]string, error) {
	var result []string
	var walk func(dir string)
	walk = func(dir string) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if e.IsDir() {
				walk(filepath.Join(dir, e.Name()))
			}
		}

		if dir == s.root {
			return
		}
		after, err := os.ReadDir(dir)
		if err != nil || len(after) > 0 {
			return
		}
		info, err := os.Stat(dir)
		if err != nil {
			return
		}
		if time.Since(info.ModTime()) >= s.emptyDirTTL {
			result = append(result, dir)
		}
	}
	walk(s.root)
	return result, nil
}

// RemoveEmptyDirs deletes the candidate directories deepest-first,
// re-verifying emptiness and the age guard immediately before each removal
// since time has passed since the scan. After each successful removal the
// parent chain is pruned without an age guard, so a single sweep also
// cleans newly exposed empty ancestors. Returns the directories actually
// removed.
func (s *LocalStore) RemoveEmptyDirs(dirs []string) []string {
	sorted := make([]string, len(dirs))
	copy(sorted, dirs)
	sort.Slice(sorted, func(i, j int) bool {
		return strings.Count(sorted[i], string(filepath.Separator)) > strings.Count(sorted[j], string(filepath.Separator))
	})

	var removed []string
	for _, dir := range sorted {
		resolved := filepath.Clean(dir)
		if !strings.HasPrefix(resolved, s.root+string(filepath.Separator)) {
			continue
		}
		entries, err := os.ReadDir(resolved)
		if err != nil || len(entries) > 0 {
			continue
		}
		info, err := os.Stat(resolved)
		if err != nil || time.Since(info.ModTime()) < s.emptyDirTTL {
			continue
		}
		if err := os.Remove(resolved); err != nil {
			s.log.Warn("remove empty directory", zap.String("dir", resolved), zap.Error(err))
			continue
		}
		removed = append(removed, resolved)
		s.PruneEmptyParents(filepath.Dir(resolved))
	}
	return removed
}
