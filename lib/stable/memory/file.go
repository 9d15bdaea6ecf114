package memory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileMemory is a Memory backed by a single file. Every Write goes straight to the
// file, so the content survives a restart of the process without an explicit save.
//
// Thread-safety: FileMemory is not safe for concurrent use.
type FileMemory struct {
	file     afero.File
	path     string
	pages    uint64
	maxPages uint64 // 0 = unlimited
}

// FileOptions configures OpenFileMemory.
type FileOptions struct {
	MaxPages uint64 // refuse to grow past this many pages (0 = unlimited)
}

// OpenFileMemory opens (or creates) the memory file at path on fs.
// A file whose length is not a multiple of PageSize (e.g. after an interrupted grow)
// is extended with zeroes to the next page boundary.
func OpenFileMemory(fs afero.Fs, path string, opts *FileOptions) (*FileMemory, error) {
	if opts == nil {
		opts = &FileOptions{}
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("memory: create directory for %s: %w", path, err)
	}

	file, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("memory: open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("memory: stat %s: %w", path, err)
	}

	pages := PagesFor(uint64(info.Size()))
	if pages*PageSize != uint64(info.Size()) {
		if err := file.Truncate(int64(pages * PageSize)); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("memory: align %s to page size: %w", path, err)
		}
	}

	return &FileMemory{
		file:     file,
		path:     path,
		pages:    pages,
		maxPages: opts.MaxPages,
	}, nil
}

// Path returns the location of the backing file.
func (m *FileMemory) Path() string {
	return m.path
}

// Sync commits the file content to stable storage.
func (m *FileMemory) Sync() error {
	return m.file.Sync()
}

// Close syncs and closes the backing file.
func (m *FileMemory) Close() error {
	if err := m.file.Sync(); err != nil {
		_ = m.file.Close()
		return err
	}
	return m.file.Close()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see memory.Memory)
// --------------------------------------------------------------------------

func (m *FileMemory) Size() uint64 {
	return m.pages
}

func (m *FileMemory) Grow(pages uint64) (uint64, error) {
	prev := m.pages
	if m.maxPages > 0 && prev+pages > m.maxPages {
		return prev, fmt.Errorf("%w: %d + %d pages exceeds the limit of %d pages", ErrGrowFailed, prev, pages, m.maxPages)
	}
	if err := m.file.Truncate(int64((prev + pages) * PageSize)); err != nil {
		return prev, fmt.Errorf("%w: %v", ErrGrowFailed, err)
	}
	m.pages = prev + pages
	return prev, nil
}

func (m *FileMemory) Read(offset uint64, dst []byte) {
	checkBounds(m.pages, offset, len(dst))
	n, err := m.file.ReadAt(dst, int64(offset))
	if err != nil && !(errors.Is(err, io.EOF) && n == len(dst)) {
		panic(fmt.Errorf("memory: read %d bytes at %d from %s: %w", len(dst), offset, m.path, err))
	}
}

func (m *FileMemory) Write(offset uint64, src []byte) {
	checkBounds(m.pages, offset, len(src))
	if _, err := m.file.WriteAt(src, int64(offset)); err != nil {
		panic(fmt.Errorf("memory: write %d bytes at %d to %s: %w", len(src), offset, m.path, err))
	}
}
