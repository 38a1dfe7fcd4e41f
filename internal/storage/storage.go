// Package storage provides access to persisted files with bounded,
// fixed-delay retries on open and write.
package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/renameio/v2"

	"github.com/axondata/go-loader/internal/unix"
)

// Default retry policy for opens
const (
	DefaultAttempts = 3
	DefaultDelay    = 50 * time.Millisecond
)

// FS accesses the local file system
type FS struct {
	// Attempts is the number of open attempts before giving up
	Attempts uint
	// Delay is the fixed delay between attempts
	Delay time.Duration
}

// New creates an FS with the default retry policy
func New() *FS {
	return &FS{Attempts: DefaultAttempts, Delay: DefaultDelay}
}

// Exists reports whether a regular file exists at path
func (f *FS) Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (f *FS) retryOptions() []backoff.RetryOption {
	attempts := f.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(f.Delay)),
		backoff.WithMaxTries(attempts),
	}
}

// Open opens path for reading. Transient failures are retried; a missing
// file fails immediately.
func (f *FS) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	file, err := backoff.Retry(ctx, func() (*os.File, error) {
		file, err := os.OpenFile(path, os.O_RDONLY|unix.ONonblock, 0)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return file, nil
	}, f.retryOptions()...)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// WriteFile atomically replaces path with data under the same retry policy
// as Open. A missing parent directory fails immediately.
func (f *FS) WriteFile(ctx context.Context, path string, data []byte, perm fs.FileMode) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := renameio.WriteFile(path, data, perm); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, f.retryOptions()...)
	return err
}

// Remove deletes path; a missing file is not an error
func (f *FS) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
