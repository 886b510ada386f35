// Copyright (c) 2025 ipgraph contributors
// SPDX-License-Identifier: MIT

package ipgraph

import (
	"fmt"

	"github.com/gaissmai/ipgraph/bitio"
)

// cursor holds all per-evaluation mutable state for one Evaluate call: the
// current node position, the cluster and span last resolved for it, and
// the outcome of the most recent comparison. A cursor is created fresh for
// each Evaluate/EvaluateTrace call and never shared across goroutines.
type cursor struct {
	graph *Graph

	ip       IPAddress
	ipValue  [addressWidth]byte // current comparison slice, MSB-aligned
	bitIndex int                // next unconsumed bit position in ip.Value

	index             uint32 // current node index
	node              node
	previousHighIndex uint32 // node index to resume at on moveBackLow

	clusterIndex uint32
	cluster      cluster
	clusterSet   bool

	spanIndex uint32
	span      span
	spanLow   [addressWidth]byte
	spanHigh  [addressWidth]byte
	spanSet   bool

	compareResult compareResult

	// exhausted reports whether run() broke out of its loop because the
	// IP's bits ran out before a leaf was reached (SPEC_FULL.md part D.3),
	// rather than because a leaf was found.
	exhausted bool

	tracer Tracer
}

// newCursor creates a cursor for g; run positions it at g's root node
// (GraphIndex). Per the source's cursorCreate, previousHighIndex is seeded
// to GraphIndex rather than 0, so an evaluation that hits moveBackLow before
// ever recording an EQUAL_HIGH resumes at the graph's starting node
// instead of node 0 (see SPEC_FULL.md part D.2).
func newCursor(g *Graph, ip IPAddress, tracer Tracer) *cursor {
	if tracer == nil {
		tracer = noopTracer{}
	}
	c := &cursor{
		graph:             g,
		ip:                ip,
		previousHighIndex: g.info.GraphIndex,
		tracer:            tracer,
	}
	return c
}

// readNode decodes the node at the given index into the cursor's current
// position and resolves its span, matching the source's readNode (4.2),
// which folds span resolution into node decoding rather than leaving it to
// the caller.
func (c *cursor) readNode(index uint32) error {
	n, err := c.graph.readNode(index)
	if err != nil {
		return err
	}
	c.index = index
	c.node = n
	return c.setSpan()
}

// setCluster resolves the cluster covering the current node index, memoized
// until the node index moves out of its range (4.3).
func (c *cursor) setCluster() error {
	if c.clusterSet && c.cluster.contains(c.index) {
		return nil
	}
	cl, idx, err := c.graph.findCluster(c.index)
	if err != nil {
		return err
	}
	c.cluster = cl
	c.clusterIndex = idx
	c.clusterSet = true
	return nil
}

// setSpan resolves the span referenced by the current node's cluster-local
// span index: the cluster covering the node maps that local index to a
// global span index, which is then decoded and materialized into
// spanLow/spanHigh (4.4).
func (c *cursor) setSpan() error {
	if err := c.setCluster(); err != nil {
		return err
	}

	localIndex := c.graph.nodeSpanIndexLocal(c.node)
	globalIndex, err := c.cluster.resolveSpan(localIndex)
	if err != nil {
		return err
	}

	if c.spanSet && c.spanIndex == globalIndex {
		return nil
	}
	if globalIndex >= c.graph.spansCount {
		return fmt.Errorf("%w: span index %d outside %d known spans", ErrCorruptData, globalIndex, c.graph.spansCount)
	}

	item, err := c.graph.spans.Get(globalIndex, spanSize)
	if err != nil {
		return err
	}
	s, derr := decodeSpan(item.Bytes())
	item.Release()
	if derr != nil {
		return derr
	}

	low, high, lerr := c.graph.limits(s)
	if lerr != nil {
		return lerr
	}

	c.spanIndex = globalIndex
	c.span = s
	c.spanLow = low
	c.spanHigh = high
	c.spanSet = true
	return nil
}

// setIpValue copies max(lengthLow,lengthHigh) bits from the IP address
// starting at bitIndex into ipValue, MSB-aligned at ipValue[0] (4.5).
func (c *cursor) setIpValue() {
	c.ipValue = [addressWidth]byte{}
	bitio.CopyBits(c.ipValue[:], c.ip.Value[:], c.bitIndex, c.span.maxLen())
}
