// Package storage performs the filesystem side of the image store: directory
// provisioning, advisory-locked writes and existence probes. Concurrent
// writers racing on the same rendition file are resolved by flock; losers
// drop their copy, which is safe because every writer holds identical bytes
// for a given rendition key.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"log/slog"
)

// ErrBusy signals that another writer holds the lock on the target file. The
// caller must not retry: either the peer finishes the identical write or a
// later fetch regenerates the content.
var ErrBusy = errors.New("storage: file locked by another writer")

// Store wraps filesystem operations for image directories and files.
type Store struct {
	logger *slog.Logger
}

// New creates a store.
func New(logger *slog.Logger) *Store {
	return &Store{logger: logger.With("component", "storage")}
}

// EnsureDir creates the directory and all missing ancestors. Idempotent.
func (s *Store) EnsureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o755)
}

// Exists reports whether a regular file exists at path.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// WriteNew creates the file (truncating any previous content), takes an
// exclusive non-blocking flock on the descriptor, writes the full buffer and
// releases the lock. Short writes leave the file in an undefined state; the
// caller treats it as absent on the next read.
func (s *Store) WriteNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return ErrBusy
		}
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}()

	n, err := f.Write(data)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if n < len(data) {
		return fmt.Errorf("write %s: %w", path, io.ErrShortWrite)
	}
	return nil
}

// ReadAll returns the full contents of the file at path.
func (s *Store) ReadAll(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("read %s: file is empty", path)
	}
	return data, nil
}
