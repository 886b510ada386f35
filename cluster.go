// Copyright (c) 2025 ipgraph contributors
// SPDX-License-Identifier: MIT

package ipgraph

import (
	"encoding/binary"
	"fmt"
)

// clusterSpanSlots is the fixed number of cluster-local span-index slots
// every cluster record maps, per spec.md's data model.
const clusterSpanSlots = 256

// clusterRecordSize is sizeof(Cluster) on the wire: two uint32 bounds plus
// 256 uint32 span indexes.
const clusterRecordSize = 4 + 4 + clusterSpanSlots*4

// cluster is the decoded wire Cluster record: an inclusive, non-overlapping
// node-index range, plus the 256-slot map from a node's cluster-local
// span index to a global span index.
//
// A stored cluster record's ElementSize may be smaller than
// clusterRecordSize (a producer that never uses the high end of the
// 256-slot range may omit the unused tail to save space); resolveSpan
// reports ErrCorruptData rather than exposing whatever bytes happen to
// follow if a node's local index falls outside the bytes actually stored.
type cluster struct {
	StartIndex uint32
	EndIndex   uint32
	raw        []byte // the stored record, length == collection element size
}

func decodeCluster(b []byte) (cluster, error) {
	if len(b) < 8 {
		return cluster{}, fmt.Errorf("%w: truncated cluster record", ErrCorruptData)
	}
	return cluster{
		StartIndex: binary.LittleEndian.Uint32(b[0:4]),
		EndIndex:   binary.LittleEndian.Uint32(b[4:8]),
		raw:        b,
	}, nil
}

// contains reports whether a node index falls within this cluster's
// inclusive [StartIndex, EndIndex] range.
func (c cluster) contains(index uint32) bool {
	return index >= c.StartIndex && index <= c.EndIndex
}

// resolveSpan maps a node's cluster-local span index (0..255) to the
// global span index via this cluster's 256-slot table.
func (c cluster) resolveSpan(localIndex uint32) (uint32, error) {
	off := 8 + int(localIndex)*4
	if off+4 > len(c.raw) {
		return 0, fmt.Errorf("%w: cluster-local span index %d outside stored record of %d bytes",
			ErrCorruptData, localIndex, len(c.raw))
	}
	return binary.LittleEndian.Uint32(c.raw[off : off+4]), nil
}

// findCluster binary-searches the clusters collection for the cluster
// whose [StartIndex, EndIndex] range contains nodeIndex.
//
// The search mirrors the source's setClusterSearch/setClusterComparer
// exactly (see SPEC_FULL.md part D.1): the comparator inspects a cluster,
// returns 0 on a direct hit, otherwise the signed distance from
// StartIndex to nodeIndex, and narrows the search range accordingly. If
// the loop exits without an exact hit, the *last cluster inspected* - not
// a fresh lookup at the final `middle` - is the candidate; this is only
// correct because clusters partition the node-index range contiguously
// and without overlap, so the last probe always brackets or contains the
// target.
func (g *Graph) findCluster(nodeIndex uint32) (cluster, uint32, error) {
	if g.clustersCount == 0 {
		return cluster{}, 0, fmt.Errorf("%w: graph has no clusters", ErrCorruptData)
	}

	lower, upper := uint32(0), g.clustersCount-1
	var last cluster
	var lastIndex uint32

	for lower <= upper {
		middle := lower + (upper-lower)/2

		item, err := g.clusters.Get(middle, g.clusterElementSize)
		if err != nil {
			return cluster{}, 0, fmt.Errorf("%w: reading cluster %d: %v", ErrCollectionFailure, middle, err)
		}
		c, derr := decodeCluster(item.Bytes())
		item.Release()
		if derr != nil {
			return cluster{}, 0, derr
		}
		last, lastIndex = c, middle

		switch {
		case c.contains(nodeIndex):
			return c, middle, nil
		case c.StartIndex > nodeIndex:
			if middle == 0 {
				// guard against unsigned underflow; there is nowhere
				// lower left to search.
				lower = upper + 1 // terminate the loop
				break
			}
			upper = middle - 1
		default:
			lower = middle + 1
		}
	}

	if lastIndex >= g.clustersCount || !last.contains(nodeIndex) {
		return cluster{}, 0, fmt.Errorf("%w: no cluster covers node index %d", ErrCorruptData, nodeIndex)
	}
	return last, lastIndex, nil
}
