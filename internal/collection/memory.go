// Copyright (c) 2025 ipgraph contributors
// SPDX-License-Identifier: MIT

package collection

import "fmt"

// Memory is a Collection backed directly by an in-process byte slice - the
// CreateFromMemory path. Borrows are zero-copy sub-slices; Release is a
// no-op since there is no refcounted handle to return, only bookkeeping
// symmetry with the File backing.
type Memory struct {
	data        []byte
	count       uint32
	elementSize int
}

var _ Collection = (*Memory)(nil)

// NewMemory creates a Memory collection over data, starting at
// hdr.StartPosition, with hdr.Count logical records of elementSize bytes
// each (elementSize == 0 for a byte-indexed collection).
func NewMemory(data []byte, hdr Header, elementSize int) (*Memory, error) {
	end := uint64(hdr.StartPosition) + uint64(hdr.Length)
	if end > uint64(len(data)) {
		return nil, fmt.Errorf("%w: collection region [%d,%d) exceeds buffer of %d bytes",
			ErrOutOfRange, hdr.StartPosition, end, len(data))
	}
	return &Memory{
		data:        data[hdr.StartPosition:end],
		count:       hdr.Count,
		elementSize: elementSize,
	}, nil
}

// Get returns at least n bytes starting at the given index within this
// collection's region.
func (m *Memory) Get(index uint32, n int) (Item, error) {
	start := uint64(index)
	if m.elementSize > 0 {
		start = uint64(index) * uint64(m.elementSize)
	}
	end := start + uint64(n)
	if end > uint64(len(m.data)) {
		return Item{}, fmt.Errorf("%w: offset %d+%d exceeds region of %d bytes",
			ErrOutOfRange, start, n, len(m.data))
	}
	return Item{bytes: m.data[start:end]}, nil
}

// Count returns the logical record count (or byte length, for
// byte-indexed collections).
func (m *Memory) Count() uint32 { return m.count }

// ElementSize returns the fixed per-record size, or 0 for byte-indexed
// collections.
func (m *Memory) ElementSize() int { return m.elementSize }

// Close is a no-op: a Memory collection owns no external resource.
func (m *Memory) Close() error { return nil }
