// Package binaryfile provides the random-access, fixed-offset read/write file
// abstraction that DiskMultiMap addresses by offset.
//
// It is a thin wrapper over [fs.FS]: it adds no buffering, no durability
// policy, and no interpretation of the bytes it moves. Typed encode/decode of
// headers, buckets, and records lives one layer up, in diskmultimap.
package binaryfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cyberintel/intelweb/internal/fs"
)

// ErrClosed is returned by any operation attempted after [BinaryFile.Close].
var ErrClosed = errors.New("binaryfile: closed")

// BinaryFile is a random-access byte file addressed by caller-supplied
// offsets. All higher layers (DiskMultiMap's header, bucket array, and
// record area) address the file through it.
type BinaryFile struct {
	fsys fs.FS
	file fs.File
	path string
}

// CreateNew creates path, truncating any existing file at that path.
func CreateNew(fsys fs.FS, path string) (*BinaryFile, error) {
	f, err := fsys.Create(path)
	if err != nil {
		return nil, fmt.Errorf("binaryfile: create %q: %w", path, err)
	}

	return &BinaryFile{fsys: fsys, file: f, path: path}, nil
}

// OpenExisting opens path for reading and writing. It does not validate any
// structure within the file; callers are responsible for checking length
// against their own header expectations.
func OpenExisting(fsys fs.FS, path string) (*BinaryFile, error) {
	f, err := fsys.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("binaryfile: open %q: %w", path, err)
	}

	return &BinaryFile{fsys: fsys, file: f, path: path}, nil
}

// Close releases the underlying file. Safe to call more than once.
func (b *BinaryFile) Close() error {
	if b.file == nil {
		return nil
	}

	err := b.file.Close()
	b.file = nil

	if err != nil {
		return fmt.Errorf("binaryfile: close %q: %w", b.path, err)
	}

	return nil
}

// FileLength returns the current size of the file in bytes.
func (b *BinaryFile) FileLength() (int64, error) {
	if b.file == nil {
		return 0, ErrClosed
	}

	info, err := b.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("binaryfile: stat %q: %w", b.path, err)
	}

	return info.Size(), nil
}

// ReadAt fills p entirely from offset off. It fails if fewer than len(p)
// bytes remain in the file from off onward.
func (b *BinaryFile) ReadAt(p []byte, off int64) error {
	if b.file == nil {
		return ErrClosed
	}

	if _, err := b.file.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("binaryfile: seek %q: %w", b.path, err)
	}

	if _, err := io.ReadFull(b.file, p); err != nil {
		return fmt.Errorf("binaryfile: read %q at %d: %w", b.path, off, err)
	}

	return nil
}

// WriteAt writes p at offset off, extending the file if off+len(p) is
// beyond the current length. The gap between the old end-of-file and off,
// if any, reads back as zero bytes.
func (b *BinaryFile) WriteAt(p []byte, off int64) error {
	if b.file == nil {
		return ErrClosed
	}

	if _, err := b.file.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("binaryfile: seek %q: %w", b.path, err)
	}

	if _, err := b.file.Write(p); err != nil {
		return fmt.Errorf("binaryfile: write %q at %d: %w", b.path, off, err)
	}

	return nil
}

// Sync flushes the file to durable storage. No caller in this package calls
// it automatically; spec.md §6 mandates no buffering/fsync policy.
func (b *BinaryFile) Sync() error {
	if b.file == nil {
		return ErrClosed
	}

	if err := b.file.Sync(); err != nil {
		return fmt.Errorf("binaryfile: sync %q: %w", b.path, err)
	}

	return nil
}
