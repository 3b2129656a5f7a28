// Package spool materializes upload bodies as short-lived files on local disk.
package spool

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"legal-analyzer/internal/shared/telemetry"
	"legal-analyzer/internal/shared/util"
)

// Spool hands out temporary files under a single directory.
type Spool struct {
	dir string
}

// File is an acquired spool file. Callers must Release it.
type File struct {
	Path string
	Size int64

	once sync.Once
	err  error
}

// New creates a spool rooted at dir. The directory is created lazily.
func New(dir string) *Spool {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join(os.TempDir(), "legal-uploads")
	}
	return &Spool{dir: dir}
}

// Dir returns the spool directory.
func (s *Spool) Dir() string {
	return s.dir
}

// Acquire copies r into a fresh file. The file keeps the extension of fileName
// so libraries that dispatch on it behave.
func (s *Spool) Acquire(ctx context.Context, fileName string, r io.Reader) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir spool: %w", err)
	}

	f, err := os.CreateTemp(s.dir, "upload-*"+util.SafeExtension(fileName))
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	path := f.Name()

	size, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(path)
		if copyErr != nil {
			return nil, fmt.Errorf("write spool file: %w", copyErr)
		}
		return nil, fmt.Errorf("close spool file: %w", closeErr)
	}
	return &File{Path: path, Size: size}, nil
}

// Release removes the file. It is safe to call more than once.
func (f *File) Release() error {
	if f == nil {
		return nil
	}
	f.once.Do(func() {
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			f.err = err
			telemetry.Warn("spool.release_failed", map[string]any{"path": f.Path, "error": err})
		}
	})
	return f.err
}
