// Copyright (c) 2025 ipgraph contributors
// SPDX-License-Identifier: MIT

package collection

import (
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	lru "github.com/hashicorp/golang-lru/v2"
)

// mappedFile is one memory-mapped data file shared by every File
// collection opened against it. refs tracks outstanding File collections
// still reading from it; the file descriptor is closed and the mapping
// unmapped once refs drops to zero after eviction from the pool.
type mappedFile struct {
	path    string
	mu      sync.Mutex
	m       mmap.MMap
	f       *os.File
	refs    int
	evicted bool
}

func (mf *mappedFile) release(pool *FilePool) error {
	mf.mu.Lock()
	mf.refs--
	shouldClose := mf.refs <= 0 && mf.evicted
	mf.mu.Unlock()
	if !shouldClose {
		return nil
	}
	return mf.close()
}

func (mf *mappedFile) close() error {
	var err error
	if mf.m != nil {
		err = mf.m.Unmap()
	}
	if cerr := mf.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// FilePool bounds the number of distinct data files kept memory-mapped at
// once, the Go rendition of the source's fiftyoneDegreesFilePool: many
// graphs, and many sub-collections per graph, typically share one data
// file, so mapping it once, counting the File collections that hold it,
// and handing out slices of it is both correct and far cheaper than a
// read() per borrow.
type FilePool struct {
	cache *lru.Cache[string, *mappedFile]
}

// NewFilePool creates a pool bounded by cfg's PoolCapacity.
func NewFilePool(cfg Config) (*FilePool, error) {
	p := &FilePool{}
	cache, err := lru.NewWithEvict[string, *mappedFile](cfg.poolCapacity(), func(_ string, mf *mappedFile) {
		mf.mu.Lock()
		mf.evicted = true
		shouldClose := mf.refs <= 0
		mf.mu.Unlock()
		if shouldClose {
			_ = mf.close()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutOfRange, err)
	}
	p.cache = cache
	return p, nil
}

// open returns the mappedFile for path, mapping it for the first time if
// it is not already pooled, and incrementing its refcount.
func (p *FilePool) open(path string) (*mappedFile, error) {
	if mf, ok := p.cache.Get(path); ok {
		mf.mu.Lock()
		mf.refs++
		mf.mu.Unlock()
		return mf, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ipgraph: opening data file %q: %w", path, err)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("ipgraph: mapping data file %q: %w", path, err)
	}
	mf := &mappedFile{path: path, m: m, f: f, refs: 1}
	p.cache.Add(path, mf)
	return mf, nil
}

// File is a Collection backed by a shared memory mapping - the
// CreateFromFile path. Borrows are zero-copy slices into the mapping;
// Close releases this collection's hold on the shared mappedFile.
type File struct {
	mf          *mappedFile
	pool        *FilePool
	data        mmap.MMap
	count       uint32
	elementSize int
}

var _ Collection = (*File)(nil)

// NewFile opens (or reuses, via pool) the memory mapping for path and
// creates a File collection over the region described by hdr.
func NewFile(pool *FilePool, path string, hdr Header, elementSize int) (*File, error) {
	mf, err := pool.open(path)
	if err != nil {
		return nil, err
	}
	end := uint64(hdr.StartPosition) + uint64(hdr.Length)
	if end > uint64(len(mf.m)) {
		_ = mf.release(pool)
		return nil, fmt.Errorf("%w: collection region [%d,%d) exceeds file %q of %d bytes",
			ErrOutOfRange, hdr.StartPosition, end, path, len(mf.m))
	}
	return &File{
		mf:          mf,
		pool:        pool,
		data:        mf.m[hdr.StartPosition:end],
		count:       hdr.Count,
		elementSize: elementSize,
	}, nil
}

// Get returns at least n bytes starting at the given index within this
// collection's region of the shared mapping.
func (fc *File) Get(index uint32, n int) (Item, error) {
	start := uint64(index)
	if fc.elementSize > 0 {
		start = uint64(index) * uint64(fc.elementSize)
	}
	end := start + uint64(n)
	if end > uint64(len(fc.data)) {
		return Item{}, fmt.Errorf("%w: offset %d+%d exceeds region of %d bytes",
			ErrOutOfRange, start, n, len(fc.data))
	}
	return Item{bytes: fc.data[start:end]}, nil
}

// Count returns the logical record count (or byte length, for
// byte-indexed collections).
func (fc *File) Count() uint32 { return fc.count }

// ElementSize returns the fixed per-record size, or 0 for byte-indexed
// collections.
func (fc *File) ElementSize() int { return fc.elementSize }

// Close releases this collection's hold on the pool's shared mapping.
func (fc *File) Close() error {
	return fc.mf.release(fc.pool)
}
