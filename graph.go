// Copyright (c) 2025 ipgraph contributors
// SPDX-License-Identifier: MIT

package ipgraph

import (
	"fmt"

	"github.com/gaissmai/ipgraph/internal/collection"
)

// CollectionHeader describes one sub-collection's region within the
// shared byte area backing a data file or buffer: its byte length,
// logical record count, and start offset.
type CollectionHeader = collection.Header

// CollectionConfig controls file-backed collection pooling (how many
// distinct data files may be memory-mapped at once). The zero value is
// usable.
type CollectionConfig = collection.Config

// Graph is one component graph: the decoded IpiCgInfo record plus handles
// to its four sub-collections. A Graph is immutable after creation and
// safe for concurrent Evaluate calls.
type Graph struct {
	info graphInfo

	nodes     collection.Collection
	spans     collection.Collection
	spanBytes collection.Collection
	clusters  collection.Collection

	spansCount         uint32
	clustersCount      uint32
	clusterElementSize int

	// nodesRecordCount is the logical node-record count as decoded from
	// the wire header, before the byte-indexed override below replaces
	// the nodes collection's own Count(). The leaf/branch threshold
	// (value >= nodes.count) is defined against this logical count, not
	// against the byte length used for collection bounds checking.
	nodesRecordCount uint32
}

// GraphArray is every component graph found in one data file or buffer.
// Exactly one graph matches each (IP version, component ID) pair.
type GraphArray struct {
	graphs []*Graph
}

// collectionFactory creates one sub-collection given its header and fixed
// element size (0 for a byte-indexed collection). Memory and file backed
// arrays each supply their own factory; unlike the source this package
// mirrors, a factory here addresses by absolute offset into a shared
// region rather than advancing a stateful reader cursor, so there is no
// "save and restore the reader position" dance needed even though graph
// headers may reuse overlapping byte regions (see SPEC_FULL.md part D
// and DESIGN.md).
type collectionFactory func(hdr CollectionHeader, elementSize int) (collection.Collection, error)

// buildGraphArray is the Go rendition of the source's ipiGraphCreate: it
// reads N IpiCgInfo records from the outer collection and, for each,
// builds the four sub-collections (nodes, spans, spanBytes, clusters)
// via factory.
func buildGraphArray(outer collection.Collection, factory collectionFactory) (*GraphArray, error) {
	count := outer.Count()
	graphs := make([]*Graph, 0, count)

	array := &GraphArray{graphs: graphs}

	for i := uint32(0); i < count; i++ {
		item, err := outer.Get(i, graphInfoSize)
		if err != nil {
			array.Free()
			return nil, fmt.Errorf("%w: reading graph info %d: %v", ErrCollectionFailure, i, err)
		}
		info, derr := decodeGraphInfo(item.Bytes())
		item.Release()
		if derr != nil {
			array.Free()
			return nil, derr
		}

		g := &Graph{info: info}

		// Nodes are bit packed and addressed by byte offset, not record
		// index, so the collection's own Count is overridden to the byte
		// Length, matching SPEC_FULL.md's preserved behavior from the
		// source. The logical record count used for the leaf/branch
		// threshold is kept separately in nodesRecordCount.
		g.nodesRecordCount = info.Nodes.Collection.Count
		nodesHdr := info.Nodes.Collection
		nodesHdr.Count = nodesHdr.Length
		g.nodes, err = factory(nodesHdr, 0)
		if err != nil {
			array.graphs = append(array.graphs, g)
			array.Free()
			return nil, fmt.Errorf("%w: creating nodes collection for graph %d: %v", ErrCorruptData, i, err)
		}

		g.spans, err = factory(info.Spans, spanSize)
		if err != nil {
			array.graphs = append(array.graphs, g)
			array.Free()
			return nil, fmt.Errorf("%w: creating spans collection for graph %d: %v", ErrCorruptData, i, err)
		}
		g.spansCount = g.spans.Count()

		g.spanBytes, err = factory(info.SpanBytes, 0)
		if err != nil {
			array.graphs = append(array.graphs, g)
			array.Free()
			return nil, fmt.Errorf("%w: creating span-bytes collection for graph %d: %v", ErrCorruptData, i, err)
		}

		clusterElemSize := 0
		if info.Clusters.Count > 0 {
			clusterElemSize = int(info.Clusters.Length / info.Clusters.Count)
		}
		if clusterElemSize > clusterRecordSize {
			array.graphs = append(array.graphs, g)
			array.Free()
			return nil, fmt.Errorf("%w: cluster element size %d exceeds %d", ErrCorruptData, clusterElemSize, clusterRecordSize)
		}
		g.clusters, err = factory(info.Clusters, clusterElemSize)
		if err != nil {
			array.graphs = append(array.graphs, g)
			array.Free()
			return nil, fmt.Errorf("%w: creating clusters collection for graph %d: %v", ErrCorruptData, i, err)
		}
		g.clustersCount = g.clusters.Count()
		g.clusterElementSize = clusterElemSize

		array.graphs = append(array.graphs, g)
	}

	return array, nil
}

// CreateFromMemory builds a GraphArray from a single in-memory buffer:
// outerHeader locates the array of IpiCgInfo records within data, and
// every sub-collection header found inside those records is resolved as
// an offset into the same buffer.
func CreateFromMemory(data []byte, outerHeader CollectionHeader) (*GraphArray, error) {
	outer, err := collection.NewMemory(data, outerHeader, graphInfoSize)
	if err != nil {
		return nil, fmt.Errorf("%w: creating outer collection: %v", ErrCorruptData, err)
	}

	return buildGraphArray(outer, func(hdr CollectionHeader, elementSize int) (collection.Collection, error) {
		return collection.NewMemory(data, hdr, elementSize)
	})
}

// CreateFromFile builds a GraphArray from a data file on disk: outerHeader
// locates the array of IpiCgInfo records, and cfg sizes the FilePool this
// call creates for itself (bounding how many data files it may keep
// memory-mapped at once). Each call creates its own pool; pools are not
// shared between calls.
func CreateFromFile(path string, outerHeader CollectionHeader, cfg CollectionConfig) (*GraphArray, error) {
	pool, err := collection.NewFilePool(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: creating file pool: %v", ErrInsufficientMemory, err)
	}

	outer, err := collection.NewFile(pool, path, outerHeader, graphInfoSize)
	if err != nil {
		return nil, fmt.Errorf("%w: creating outer collection: %v", ErrCorruptData, err)
	}

	return buildGraphArray(outer, func(hdr CollectionHeader, elementSize int) (collection.Collection, error) {
		return collection.NewFile(pool, path, hdr, elementSize)
	})
}

// Free releases every sub-collection of every graph in the array. The
// array must not be used afterwards.
func (ga *GraphArray) Free() {
	if ga == nil {
		return
	}
	for _, g := range ga.graphs {
		if g == nil {
			continue
		}
		if g.nodes != nil {
			_ = g.nodes.Close()
		}
		if g.spans != nil {
			_ = g.spans.Close()
		}
		if g.spanBytes != nil {
			_ = g.spanBytes.Close()
		}
		if g.clusters != nil {
			_ = g.clusters.Close()
		}
	}
}

// find returns the graph matching (version, componentID), or nil if none
// does.
func (ga *GraphArray) find(version IPVersion, componentID uint8) *Graph {
	for _, g := range ga.graphs {
		if IPVersion(g.info.Version) == version && g.info.ComponentID == componentID {
			return g
		}
	}
	return nil
}
