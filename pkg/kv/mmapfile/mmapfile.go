// Package mmapfile provides a single growing file mapped once into the
// process address space: the authoritative on-disk mirror of the
// storage engine's data file. Growth unmaps, truncates, and remaps
// under an exclusive lock so that in-flight reads of the mapped bytes
// never observe a torn base pointer.
package mmapfile

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// growthFactor is applied repeatedly until the mapping covers the
// requested size, matching the data file's "grown by doubling" rule.
const growthFactor = 2

// File is a single mmap'd file, grown on demand.
type File struct {
	// mu guards remapping. Growth takes the write lock; anything that
	// reads or writes through data takes the read lock, so a memcpy
	// into the mapped region can never race with a remap swinging the
	// base pointer out from under it.
	mu   sync.RWMutex
	f    *os.File
	data []byte
}

// Open opens path with O_CREAT|O_RDWR, ensures its length is at least
// initialSize (truncating up if the file is new or short), and maps it.
func Open(path string, initialSize int64) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: open %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: stat %q: %w", path, err)
	}

	size := info.Size()
	if size < initialSize {
		size = initialSize
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("mmapfile: truncate %q: %w", path, err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: mmap %q: %w", path, err)
	}

	return &File{f: f, data: data}, nil
}

// Size returns the current mapped length.
func (mf *File) Size() int64 {
	mf.mu.RLock()
	defer mf.mu.RUnlock()
	return int64(len(mf.data))
}

// EnsureSize grows the mapping, if needed, to at least target bytes,
// doubling the current size until it is large enough (matching the
// data file's growth rule). A no-op if the mapping already covers
// target.
func (mf *File) EnsureSize(target int64) error {
	mf.mu.RLock()
	cur := int64(len(mf.data))
	mf.mu.RUnlock()
	if cur >= target {
		return nil
	}

	mf.mu.Lock()
	defer mf.mu.Unlock()

	cur = int64(len(mf.data))
	if cur >= target {
		return nil
	}

	newSize := cur
	if newSize == 0 {
		newSize = target
	}
	for newSize < target {
		newSize *= growthFactor
	}

	if err := unix.Munmap(mf.data); err != nil {
		return fmt.Errorf("mmapfile: munmap: %w", err)
	}
	if err := mf.f.Truncate(newSize); err != nil {
		return fmt.Errorf("mmapfile: truncate: %w", err)
	}
	data, err := unix.Mmap(int(mf.f.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmapfile: remap: %w", err)
	}
	mf.data = data
	return nil
}

// ReadAt copies len(dst) bytes starting at off from the mapping into dst.
func (mf *File) ReadAt(dst []byte, off int64) error {
	mf.mu.RLock()
	defer mf.mu.RUnlock()
	if off < 0 || off+int64(len(dst)) > int64(len(mf.data)) {
		return fmt.Errorf("mmapfile: read [%d,%d) out of bounds (size %d)", off, off+int64(len(dst)), len(mf.data))
	}
	copy(dst, mf.data[off:off+int64(len(dst))])
	return nil
}

// WriteAt copies src into the mapping at off. This is a memcpy into
// process memory, not a write(2) syscall; durability to the backing
// file is the OS page cache's responsibility until Sync is called.
func (mf *File) WriteAt(src []byte, off int64) error {
	mf.mu.RLock()
	defer mf.mu.RUnlock()
	if off < 0 || off+int64(len(src)) > int64(len(mf.data)) {
		return fmt.Errorf("mmapfile: write [%d,%d) out of bounds (size %d)", off, off+int64(len(src)), len(mf.data))
	}
	copy(mf.data[off:off+int64(len(src))], src)
	return nil
}

// Sync requests an asynchronous flush of dirty mapped pages to disk.
func (mf *File) Sync() error {
	mf.mu.RLock()
	defer mf.mu.RUnlock()
	if len(mf.data) == 0 {
		return nil
	}
	if err := unix.Msync(mf.data, unix.MS_ASYNC); err != nil {
		return fmt.Errorf("mmapfile: msync: %w", err)
	}
	return nil
}

// Close flushes synchronously, unmaps, and closes the backing file.
func (mf *File) Close() error {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	if len(mf.data) > 0 {
		_ = unix.Msync(mf.data, unix.MS_SYNC)
		if err := unix.Munmap(mf.data); err != nil {
			mf.f.Close()
			return fmt.Errorf("mmapfile: munmap: %w", err)
		}
		mf.data = nil
	}
	return mf.f.Close()
}
