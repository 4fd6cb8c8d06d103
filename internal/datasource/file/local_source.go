// Package file implements local filesystem access for file sources and
// sinks.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Local is a file on the local disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path. It is safe for concurrent use as
// long as concurrent writers do not target the same path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open opens the file for reading. The returned *os.File satisfies the
// io.ReaderAt and io.Seeker requirements of the Parquet reader.
//
// If ctx is already done, Open returns the context error without touching
// the filesystem. Filesystem errors are wrapped with the path and remain
// matchable with errors.Is (e.g. os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}

// Create starts an overwrite of the file. Data goes to a temporary file in
// the same directory; Commit renames it over the destination so readers
// never observe a partial file.
func (l *Local) Create(ctx context.Context) (*Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, base := filepath.Split(l.path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", l.path, err)
	}
	return &Pending{f: f, path: l.path}, nil
}

// Pending is an in-progress overwrite started by Create.
type Pending struct {
	f    *os.File
	path string
	done bool
}

func (p *Pending) Write(b []byte) (int, error) { return p.f.Write(b) }

// Commit flushes the temporary file and renames it over the destination.
func (p *Pending) Commit() error {
	if p.done {
		return fmt.Errorf("commit %s: already finished", p.path)
	}
	p.done = true
	tmp := p.f.Name()
	if err := p.f.Sync(); err != nil {
		p.f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", p.path, err)
	}
	if err := p.f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", p.path, err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", p.path, err)
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit.
func (p *Pending) Abort() {
	if p.done {
		return
	}
	p.done = true
	p.f.Close()
	os.Remove(p.f.Name())
}
