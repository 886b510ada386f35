// Copyright (c) 2025 ipgraph contributors
// SPDX-License-Identifier: MIT

package ipgraph

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// testNodeSpec describes one node record for the fixture builder: a
// 16-bit record laid out as value (bits 9..15), spanIndexLocal (bits
// 1..8), lowFlag (bit 0), read as a plain big-endian uint16 (MSB-first
// packing of 16 bits is the same as its big-endian byte representation).
type testNodeSpec struct {
	value          uint32
	spanIndexLocal uint32
	lowFlag        bool
}

func encodeTestNode(s testNodeSpec) [2]byte {
	word := (s.value << 9) | (s.spanIndexLocal << 1)
	if s.lowFlag {
		word |= 1
	}
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(word))
	return b
}

func encodeCollectionHeaderBytes(h collectionHeader) []byte {
	b := make([]byte, collectionHeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Length)
	binary.LittleEndian.PutUint32(b[4:8], h.Count)
	binary.LittleEndian.PutUint32(b[8:12], h.StartPosition)
	return b
}

func encodeMemberBytes(m member) []byte {
	b := make([]byte, memberSize)
	binary.LittleEndian.PutUint64(b[0:8], m.Mask)
	binary.LittleEndian.PutUint64(b[8:16], m.Shift)
	return b
}

// testNodesRecordSize is the fixed 16-bit record width used by every
// fixture in this file.
const testNodesRecordSize = 16

func testNodesMemberValue(collection collectionHeader) memberValueDescriptor {
	return memberValueDescriptor{
		Collection: collection,
		RecordSize: testNodesRecordSize,
		LowFlag:    member{Mask: 0x1, Shift: 0},
		SpanIndex:  member{Mask: 0x1FE, Shift: 1},
		Value:      member{Mask: 0xFE00, Shift: 9},
	}
}

func encodeMemberValueDescriptorBytes(d memberValueDescriptor) []byte {
	b := make([]byte, memberValueDescriptorSize)
	off := 0
	copy(b[off:], encodeCollectionHeaderBytes(d.Collection))
	off += collectionHeaderSize
	binary.LittleEndian.PutUint16(b[off:off+2], d.RecordSize)
	off += 2
	copy(b[off:], encodeMemberBytes(d.LowFlag))
	off += memberSize
	copy(b[off:], encodeMemberBytes(d.SpanIndex))
	off += memberSize
	copy(b[off:], encodeMemberBytes(d.Value))
	return b
}

func encodeGraphInfoBytes(g graphInfo) []byte {
	b := make([]byte, graphInfoSize)
	b[0] = g.Version
	b[1] = g.ComponentID
	binary.LittleEndian.PutUint32(b[2:6], g.GraphIndex)
	off := 6
	copy(b[off:], encodeMemberValueDescriptorBytes(g.Nodes))
	off += memberValueDescriptorSize
	copy(b[off:], encodeCollectionHeaderBytes(g.Spans))
	off += collectionHeaderSize
	copy(b[off:], encodeCollectionHeaderBytes(g.SpanBytes))
	off += collectionHeaderSize
	copy(b[off:], encodeCollectionHeaderBytes(g.Clusters))
	off += collectionHeaderSize
	binary.LittleEndian.PutUint32(b[off:off+4], g.ProfileCount)
	off += 4
	binary.LittleEndian.PutUint32(b[off:off+4], g.FirstProfileIndex)
	off += 4
	binary.LittleEndian.PutUint32(b[off:off+4], g.ProfileGroupCount)
	off += 4
	binary.LittleEndian.PutUint32(b[off:off+4], g.FirstProfileGroupIndex)
	return b
}

func encodeSpanBytes(s span) []byte {
	b := make([]byte, spanSize)
	b[0] = s.LengthLow
	b[1] = s.LengthHigh
	copy(b[2:6], s.Trail[:])
	return b
}

// encodeInlineSpan builds a span whose low/high limits fit inline (total
// bit width <= 32): low and high, each lengthLow/lengthHigh bits,
// concatenated MSB-first into the 4-byte trail.
func encodeInlineSpan(lengthLow, lengthHigh byte, low, high uint32) span {
	var trail [4]byte
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], low<<(32-uint(lengthLow)))
	for i := 0; i < int(lengthLow); i++ {
		if buf[i/8]&(1<<(7-uint(i%8))) != 0 {
			trail[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	var hbuf [4]byte
	binary.BigEndian.PutUint32(hbuf[:], high<<(32-uint(lengthHigh)))
	for i := 0; i < int(lengthHigh); i++ {
		srcBit := i
		if hbuf[srcBit/8]&(1<<(7-uint(srcBit%8))) != 0 {
			dstBit := int(lengthLow) + i
			trail[dstBit/8] |= 1 << (7 - uint(dstBit%8))
		}
	}
	return span{LengthLow: lengthLow, LengthHigh: lengthHigh, Trail: trail}
}

// clusterFixture builds one full-size cluster record (clusterRecordSize
// bytes) covering [start,end] with every span-index slot mapped to
// globalSpan.
func clusterFixture(start, end, globalSpan uint32) []byte {
	b := make([]byte, clusterRecordSize)
	binary.LittleEndian.PutUint32(b[0:4], start)
	binary.LittleEndian.PutUint32(b[4:8], end)
	for slot := 0; slot < clusterSpanSlots; slot++ {
		off := 8 + slot*4
		binary.LittleEndian.PutUint32(b[off:off+4], globalSpan)
	}
	return b
}

// fixtureBuilder assembles a single-graph data buffer: a contiguous region
// of nodes, spans, span-bytes (unused by inline-limit fixtures) and
// clusters, wrapped in one outer IpiCgInfo record.
type fixtureBuilder struct {
	nodeRecords []testNodeSpec
	spans       []span
	clusters    [][3]uint32 // start, end, globalSpanIndex, one full-size cluster record each

	profileCount           uint32
	firstProfileIndex      uint32
	profileGroupCount      uint32
	firstProfileGroupIndex uint32
	graphIndex             uint32
	version                uint8
	componentID            uint8
}

func (fb fixtureBuilder) build(t *testing.T) ([]byte, CollectionHeader) {
	t.Helper()

	var nodesRegion []byte
	for _, n := range fb.nodeRecords {
		rec := encodeTestNode(n)
		nodesRegion = append(nodesRegion, rec[:]...)
	}

	var spansRegion []byte
	for _, s := range fb.spans {
		spansRegion = append(spansRegion, encodeSpanBytes(s)...)
	}

	var clustersRegion []byte
	for _, c := range fb.clusters {
		clustersRegion = append(clustersRegion, clusterFixture(c[0], c[1], c[2])...)
	}

	const outerStart = 0
	outerLen := uint32(graphInfoSize)

	nodesStart := outerStart + outerLen
	spansStart := nodesStart + uint32(len(nodesRegion))
	spanBytesStart := spansStart + uint32(len(spansRegion))
	clustersStart := spanBytesStart // no span-bytes pool used by these fixtures

	info := graphInfo{
		Version:     fb.version,
		ComponentID: fb.componentID,
		GraphIndex:  fb.graphIndex,
		Nodes: testNodesMemberValue(collectionHeader{
			Length:        uint32(len(nodesRegion)),
			Count:         uint32(len(fb.nodeRecords)),
			StartPosition: nodesStart,
		}),
		Spans: collectionHeader{
			Length:        uint32(len(spansRegion)),
			Count:         uint32(len(fb.spans)),
			StartPosition: spansStart,
		},
		SpanBytes: collectionHeader{
			Length:        0,
			Count:         0,
			StartPosition: spanBytesStart,
		},
		Clusters: collectionHeader{
			Length:        uint32(len(clustersRegion)),
			Count:         uint32(len(fb.clusters)),
			StartPosition: clustersStart,
		},
		ProfileCount:           fb.profileCount,
		FirstProfileIndex:      fb.firstProfileIndex,
		ProfileGroupCount:      fb.profileGroupCount,
		FirstProfileGroupIndex: fb.firstProfileGroupIndex,
	}

	data := make([]byte, 0, clustersStart+uint32(len(clustersRegion)))
	data = append(data, encodeGraphInfoBytes(info)...)
	data = append(data, nodesRegion...)
	data = append(data, spansRegion...)
	data = append(data, clustersRegion...)

	outerHeader := CollectionHeader{Length: outerLen, Count: 1, StartPosition: outerStart}
	return data, outerHeader
}

func ipv4(a, b, c, d byte) IPAddress {
	var v [addressWidth]byte
	v[0], v[1], v[2], v[3] = a, b, c, d
	return IPAddress{Version: IPVersionIPv4, Value: v}
}

// S1: single-leaf root. One node, already a leaf (value >= nodes.count,
// here nodes.count = 1 so value = 1 encodes profile 0... use value=8 with
// nodesRecordCount=1 so profile index = 8-1 = 7).
func TestEvaluateSingleLeafRoot(t *testing.T) {
	fb := fixtureBuilder{
		nodeRecords: []testNodeSpec{
			{value: 8, spanIndexLocal: 0, lowFlag: true},
		},
		spans: []span{
			encodeInlineSpan(1, 1, 0, 1),
		},
		clusters: [][3]uint32{
			{0, 0, 0},
		},
		profileCount:      100,
		firstProfileIndex: 1000,
		graphIndex:        0,
		version:           uint8(IPVersionIPv4),
		componentID:       1,
	}
	data, outer := fb.build(t)

	graphs, err := CreateFromMemory(data, outer)
	require.NoError(t, err)
	defer graphs.Free()

	result := graphs.Evaluate(1, ipv4(0, 0, 0, 0))
	require.Equal(t, uint32(7), result.RawValue)
	require.Equal(t, uint32(1007), result.Offset)
	require.False(t, result.IsGroupOffset)
}

// S2: equality descent. Root (high sibling, lowFlag=0) with a 2-bit span
// low=00 high=11 and value 1: EQUAL_HIGH -> selectHigh -> moveTo node 1.
// Node 1 (lowFlag=1, leaf, profile 3) shares the span; the next two IP
// bits 00 compare EQUAL_LOW and selectLow returns the leaf.
func TestEvaluateEqualityDescent(t *testing.T) {
	nodesCount := uint32(2)
	fb := fixtureBuilder{
		nodeRecords: []testNodeSpec{
			{value: 1, spanIndexLocal: 0, lowFlag: false},             // root: high sibling, branch -> node 1
			{value: nodesCount + 3, spanIndexLocal: 0, lowFlag: true}, // leaf, profile 3
		},
		spans: []span{
			encodeInlineSpan(2, 2, 0b00, 0b11),
		},
		clusters: [][3]uint32{
			{0, 1, 0},
		},
		profileCount: 10,
		graphIndex:   0,
		version:      uint8(IPVersionIPv4),
		componentID:  1,
	}
	data, outer := fb.build(t)

	graphs, err := CreateFromMemory(data, outer)
	require.NoError(t, err)
	defer graphs.Free()

	// IP bits 0b11000000... -> first 2 bits = 11 = EQUAL_HIGH.
	result := graphs.Evaluate(1, ipv4(0b11000000, 0, 0, 0))
	require.Equal(t, uint32(3), result.RawValue)
}

// S4: LESS_THAN_LOW triggers moveBack. Three nodes: root (index 0) is the
// high sibling of its pair and points via its value field to highBranch
// (index 2); root's own low sibling - reached by moveNext, i.e. index+1 -
// is lowLeaf (index 1). EQUAL_HIGH at root records previousHighIndex and
// descends into highBranch; highBranch's own span comparison comes back
// LESS_THAN_LOW, triggering moveBackLow back to root and onward (via
// moveNext) to lowLeaf, which is already a leaf (profile 9).
func TestEvaluateLessThanLowMovesBack(t *testing.T) {
	nodesCount := uint32(3)
	fb := fixtureBuilder{
		nodeRecords: []testNodeSpec{
			{value: 2, spanIndexLocal: 0, lowFlag: false},             // node 0: root, points to node 2
			{value: nodesCount + 9, spanIndexLocal: 0, lowFlag: true}, // node 1: lowLeaf, profile 9 (root's moveNext sibling)
			{value: 0, spanIndexLocal: 1, lowFlag: false},             // node 2: highBranch, own span index 1
		},
		spans: []span{
			encodeInlineSpan(2, 2, 0b00, 0b11), // span 0: root's span, ip equals high limit
			encodeInlineSpan(2, 2, 0b01, 0b10), // span 1: highBranch's span, ip falls below its low limit
		},
		clusters: [][3]uint32{
			{0, 2, 0}, // default: every node's local slot maps to global span 0
		},
		profileCount: 20,
		graphIndex:   0,
		version:      uint8(IPVersionIPv4),
		componentID:  1,
	}
	data, outer := fb.build(t)

	// Patch node 2's cluster-local slot 1 to resolve to global span 1;
	// clusterFixture fills every one of the 256 slots with the same
	// global span index by default, so overwrite just that one slot.
	clusterStart := outer.Length + uint32(len(fb.nodeRecords))*2 + uint32(len(fb.spans))*spanSize
	slot1Offset := clusterStart + 8 + 1*4
	binary.LittleEndian.PutUint32(data[slot1Offset:slot1Offset+4], 1)

	graphs, err := CreateFromMemory(data, outer)
	require.NoError(t, err)
	defer graphs.Free()

	// IP bits 0-1 = 11 -> EQUAL_HIGH against span 0 (root); bits 2-3 = 00
	// -> LESS_THAN_LOW against span 1's low limit 01 (highBranch).
	result := graphs.Evaluate(1, ipv4(0b11000000, 0, 0, 0))
	require.Equal(t, uint32(9), result.RawValue)
}

// S3: INBETWEEN. A span whose ip bits fall strictly between its low and
// high limits resolves via selectCompleteLowHigh; since the root node is
// itself the low sibling of its pair and already a leaf, selectLow
// returns without moving and selectCompleteHigh is never reached.
func TestEvaluateInBetween(t *testing.T) {
	fb := fixtureBuilder{
		nodeRecords: []testNodeSpec{
			{value: 5, spanIndexLocal: 0, lowFlag: true},
		},
		spans: []span{
			encodeInlineSpan(2, 2, 0b00, 0b11),
		},
		clusters: [][3]uint32{
			{0, 0, 0},
		},
		profileCount: 10,
		graphIndex:   0,
		version:      uint8(IPVersionIPv4),
		componentID:  1,
	}
	data, outer := fb.build(t)

	graphs, err := CreateFromMemory(data, outer)
	require.NoError(t, err)
	defer graphs.Free()

	// IP bits 0-1 = 01: greater than low limit 00, less than high limit 11.
	result := graphs.Evaluate(1, ipv4(0b01000000, 0, 0, 0))
	require.Equal(t, uint32(4), result.RawValue)
}

// S5: group-offset mapping.
func TestEvaluateGroupOffset(t *testing.T) {
	fb := fixtureBuilder{
		nodeRecords: []testNodeSpec{
			{value: 5, spanIndexLocal: 0, lowFlag: true}, // nodesCount=1, rawValue=5-1=4: profileCount=3, profileGroup g=1
		},
		spans: []span{
			encodeInlineSpan(1, 1, 0, 1),
		},
		clusters: [][3]uint32{
			{0, 0, 0},
		},
		profileCount:           3,
		firstProfileIndex:      100,
		profileGroupCount:      2,
		firstProfileGroupIndex: 500,
		graphIndex:             0,
		version:                uint8(IPVersionIPv4),
		componentID:            1,
	}
	data, outer := fb.build(t)

	graphs, err := CreateFromMemory(data, outer)
	require.NoError(t, err)
	defer graphs.Free()

	result := graphs.Evaluate(1, ipv4(0, 0, 0, 0))
	require.Equal(t, uint32(501), result.Offset)
	require.True(t, result.IsGroupOffset)
}

// S6: corrupt data. A cluster whose span-index slot resolves to a global
// span index at or beyond spansCount must fail evaluation, surfacing as
// the default zero Result.
func TestEvaluateCorruptSpanIndex(t *testing.T) {
	fb := fixtureBuilder{
		nodeRecords: []testNodeSpec{
			{value: 1, spanIndexLocal: 0, lowFlag: true},
		},
		spans: []span{
			encodeInlineSpan(1, 1, 0, 1),
		},
		clusters: [][3]uint32{
			{0, 0, 5}, // global span index 5 does not exist; spansCount == 1
		},
		profileCount: 10,
		graphIndex:   0,
		version:      uint8(IPVersionIPv4),
		componentID:  1,
	}
	data, outer := fb.build(t)

	graphs, err := CreateFromMemory(data, outer)
	require.NoError(t, err)
	defer graphs.Free()

	result := graphs.Evaluate(1, ipv4(0, 0, 0, 0))
	require.Equal(t, Result{}, result)
}

func TestEvaluateNoMatchingGraph(t *testing.T) {
	fb := fixtureBuilder{
		nodeRecords: []testNodeSpec{
			{value: 1, spanIndexLocal: 0, lowFlag: true},
		},
		spans: []span{
			encodeInlineSpan(1, 1, 0, 1),
		},
		clusters: [][3]uint32{
			{0, 0, 0},
		},
		profileCount: 10,
		graphIndex:   0,
		version:      uint8(IPVersionIPv4),
		componentID:  1,
	}
	data, outer := fb.build(t)

	graphs, err := CreateFromMemory(data, outer)
	require.NoError(t, err)
	defer graphs.Free()

	result := graphs.Evaluate(99, ipv4(0, 0, 0, 0))
	require.Equal(t, Result{}, result)
}

// exhaustionFixture builds a single self-looping branch node: its span
// always compares EQUAL_LOW against an all-zero IP, so selectLow's
// moveTo keeps returning to node 0 without ever reaching a leaf, 4 bits
// consumed per iteration until the IP's 128 bits run out.
func exhaustionFixture() fixtureBuilder {
	return fixtureBuilder{
		nodeRecords: []testNodeSpec{
			{value: 0, spanIndexLocal: 0, lowFlag: true}, // branch, points to itself
		},
		spans: []span{
			encodeInlineSpan(4, 4, 0, 0b1111),
		},
		clusters: [][3]uint32{
			{0, 0, 0},
		},
		profileCount: 10,
		graphIndex:   0,
		version:      uint8(IPVersionIPv4),
		componentID:  1,
	}
}

// Bit exhaustion without a leaf still reaches toResult, per SPEC_FULL.md
// part D.3: the raw node value the cursor ended on is carried through
// (here underflowing, since the node never became a leaf), falling
// through to the default offset/isGroupOffset while keeping RawValue
// observable.
func TestEvaluateExhaustionWithoutLeaf(t *testing.T) {
	fb := exhaustionFixture()
	data, outer := fb.build(t)

	graphs, err := CreateFromMemory(data, outer)
	require.NoError(t, err)
	defer graphs.Free()

	result := graphs.Evaluate(1, ipv4(0, 0, 0, 0))
	require.Equal(t, uint32(0xFFFFFFFF), result.RawValue)
	require.Equal(t, uint32(0), result.Offset)
	require.False(t, result.IsGroupOffset)
}

// EvaluateTrace emits an explicit exhausted=true line before the
// terminating result= line when bits ran out without a leaf.
func TestEvaluateTraceReportsExhaustion(t *testing.T) {
	fb := exhaustionFixture()
	data, outer := fb.build(t)

	graphs, err := CreateFromMemory(data, outer)
	require.NoError(t, err)
	defer graphs.Free()

	result, trace := graphs.EvaluateTrace(1, ipv4(0, 0, 0, 0), 0)
	require.Equal(t, uint32(0xFFFFFFFF), result.RawValue)
	require.Contains(t, trace, "exhausted=true\nresult=4294967295\n")
}
