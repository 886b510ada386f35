// Copyright (c) 2025 ipgraph contributors
// SPDX-License-Identifier: MIT

package collection

// Config controls how file-backed collections share memory-mapped data
// files. The zero value is usable: DefaultPoolCapacity is applied when
// PoolCapacity <= 0.
type Config struct {
	// PoolCapacity bounds how many distinct data files may be mapped at
	// once by a single FilePool before the least-recently-used mapping
	// with no outstanding borrows is unmapped.
	PoolCapacity int
}

// DefaultPoolCapacity is used when a Config leaves PoolCapacity unset.
// A component-graph data file typically backs every sub-collection of
// every graph it contains, so even a small pool comfortably covers
// workloads that evaluate against a handful of data files at once.
const DefaultPoolCapacity = 8

func (c Config) poolCapacity() int {
	if c.PoolCapacity > 0 {
		return c.PoolCapacity
	}
	return DefaultPoolCapacity
}
