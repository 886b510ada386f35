// Copyright (c) 2025 ipgraph contributors
// SPDX-License-Identifier: MIT

package ipgraph

import (
	"fmt"

	"github.com/gaissmai/ipgraph/bitio"
)

// node is a decoded bit-packed node record: its raw 64-bit word. The
// logical fields are pulled out of it on demand by the graph's member
// descriptors (nodeValue, nodeLowFlag, nodeSpanIndexLocal).
type node struct {
	bits uint64
}

// value is the node's value field: a child node index if value <
// nodes.Count (a branch), or nodes.Count + profile index if value >=
// nodes.Count (a leaf).
func (g *Graph) nodeValue(n node) uint32 { return g.info.Nodes.Value.value(n.bits) }

// lowFlag reports whether this node is the low sibling of its pair.
func (g *Graph) nodeLowFlag(n node) bool { return g.info.Nodes.LowFlag.value(n.bits) != 0 }

// spanIndexLocal is the node's cluster-local span-index field (0..255),
// resolved to a global span index via the current cluster's 256-slot map.
func (g *Graph) nodeSpanIndexLocal(n node) uint32 { return g.info.Nodes.SpanIndex.value(n.bits) }

// isLeaf reports whether value is a profile index rather than a child
// node index.
func (g *Graph) isLeaf(n node) bool { return g.nodeValue(n) >= g.nodesRecordCount }

// profileIndex returns a leaf node's profile index. Only valid when
// isLeaf(n) is true.
func (g *Graph) profileIndex(n node) uint32 { return g.nodeValue(n) - g.nodesRecordCount }

// readNode decodes the record at the given node index: recordSize bits
// starting at index*recordSize, extracted MSB-first into a single 64-bit
// word per bitio.Extract.
func (g *Graph) readNode(index uint32) (node, error) {
	recordSize := int(g.info.Nodes.RecordSize)
	startBit := uint64(index) * uint64(recordSize)
	byteIndex := startBit / 8
	bitInByte := int(startBit % 8)

	nBytes := (bitInByte + recordSize + 7) / 8
	item, err := g.nodes.Get(uint32(byteIndex), nBytes)
	if err != nil {
		return node{}, fmt.Errorf("%w: reading node %d: %v", ErrCollectionFailure, index, err)
	}
	defer item.Release()

	bits := bitio.Extract(item.Bytes(), bitInByte, recordSize)
	return node{bits: bits}, nil
}
