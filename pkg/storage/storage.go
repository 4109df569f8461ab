// Package storage implements LEO's sandboxed file operations under a
// fixed root, per spec §4.4: every remote path is resolved lexically
// against the canonical root before any filesystem touch, and OS errors
// are mapped to the wire error taxonomy.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/leoftp/leo/pkg/protocol"
)

// Code is a storage-level error code. Values reuse the wire error codes
// from pkg/protocol so a session actor can forward them to a client
// without a translation table.
type Code = protocol.ErrorCode

// Error is a typed storage failure carrying the path that triggered it
// and the wire error code it maps to.
type Error struct {
	Code Code
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage: %s: %s: %v", e.Code, e.Path, e.Err)
	}
	return fmt.Sprintf("storage: %s: %s", e.Code, e.Path)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, path string, err error) *Error {
	return &Error{Code: code, Path: path, Err: err}
}

// EntryType distinguishes directory entries.
type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

// Entry describes one file or directory returned by List.
type Entry struct {
	Name string
	Type EntryType
	Size *int64 // present only for files
}

// Store performs sandboxed file operations rooted at a single canonical
// directory. A Store has no mutable state of its own: every operation is
// independent, so one Store is safely shared across many concurrent
// sessions (spec §5 — the filesystem is the only resource they share).
type Store struct {
	root string
}

// New canonicalizes root and returns a Store sandboxed to it. root must
// already exist and be a directory.
func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	abs = filepath.Clean(abs)

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root %q is not a directory", abs)
	}

	return &Store{root: abs}, nil
}

// Root returns the canonical absolute storage root.
func (s *Store) Root() string { return s.root }

// resolve performs the lexical path-safety check from spec §4.4: join the
// user-supplied path onto the root, clean the result, and reject it with
// INVALID_PATH unless it is the root or a descendant of it, so ".."
// segments that climb above the root are refused. This check never
// touches the filesystem and never follows symlinks.
func (s *Store) resolve(userPath string) (string, error) {
	joined := filepath.Clean(filepath.Join(s.root, userPath))

	if joined != s.root && !strings.HasPrefix(joined, s.root+string(filepath.Separator)) {
		return "", newError(protocol.CodeInvalidPath, userPath, errors.New("resolved path escapes storage root"))
	}
	return joined, nil
}

// classify maps a raw OS error to the wire error taxonomy.
func classify(path string, err error) *Error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		return newError(protocol.CodeFileNotFound, path, err)
	case errors.Is(err, os.ErrPermission):
		return newError(protocol.CodePermissionDenied, path, err)
	default:
		return newError(protocol.CodeIOError, path, err)
	}
}

// WriteWhole creates any needed parent directories and truncate-writes
// data to path.
func (s *Store) WriteWhole(userPath string, data []byte) error {
	target, err := s.resolve(userPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return classify(userPath, err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return classify(userPath, err)
	}
	return nil
}

// WriteChunk creates any needed parent directories and writes data at the
// given absolute byte offset, without truncating the rest of the file.
func (s *Store) WriteChunk(userPath string, data []byte, offset int64) error {
	target, err := s.resolve(userPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return classify(userPath, err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return classify(userPath, err)
	}
	defer f.Close()

	if info, statErr := f.Stat(); statErr == nil && !info.Mode().IsRegular() {
		return newError(protocol.CodeNotAFile, userPath, nil)
	}

	if _, err := f.WriteAt(data, offset); err != nil {
		return classify(userPath, err)
	}
	return nil
}

// ReadChunk returns at most length bytes starting at offset, returning
// fewer at EOF.
func (s *Store) ReadChunk(userPath string, offset int64, length int) ([]byte, error) {
	target, err := s.resolve(userPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(target)
	if err != nil {
		return nil, classify(userPath, err)
	}
	defer f.Close()

	if info, statErr := f.Stat(); statErr == nil && !info.Mode().IsRegular() {
		return nil, newError(protocol.CodeNotAFile, userPath, nil)
	}

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, classify(userPath, err)
	}
	return buf[:n], nil
}

// FileSize returns the size in bytes of a regular file.
func (s *Store) FileSize(userPath string) (int64, error) {
	target, err := s.resolve(userPath)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(target)
	if err != nil {
		return 0, classify(userPath, err)
	}
	if !info.Mode().IsRegular() {
		return 0, newError(protocol.CodeNotAFile, userPath, nil)
	}
	return info.Size(), nil
}

// List returns directory entries sorted by name, the order os.ReadDir
// yields them; no further sorting is applied.
func (s *Store) List(userPath string) ([]Entry, error) {
	target, err := s.resolve(userPath)
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(target)
	if err != nil {
		return nil, classify(userPath, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			entries = append(entries, Entry{Name: de.Name(), Type: EntryDir})
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, classify(userPath, err)
		}
		size := info.Size()
		entries = append(entries, Entry{Name: de.Name(), Type: EntryFile, Size: &size})
	}
	return entries, nil
}

// DeleteFile removes a regular file. It fails with NOT_A_FILE if the
// target is a directory.
func (s *Store) DeleteFile(userPath string) error {
	target, err := s.resolve(userPath)
	if err != nil {
		return err
	}

	info, err := os.Stat(target)
	if err != nil {
		return classify(userPath, err)
	}
	if info.IsDir() {
		return newError(protocol.CodeNotAFile, userPath, nil)
	}

	if err := os.Remove(target); err != nil {
		return classify(userPath, err)
	}
	return nil
}
