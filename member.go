// Copyright (c) 2025 ipgraph contributors
// SPDX-License-Identifier: MIT

package ipgraph

import (
	"encoding/binary"
	"fmt"

	"github.com/gaissmai/ipgraph/internal/collection"
)

// member extracts a single logical field out of a node's 64-bit view:
// (word & Mask) >> Shift. It corresponds to the wire IpiCgMember struct,
// an 8-byte mask followed by an 8-byte shift, both little-endian on disk.
type member struct {
	Mask  uint64
	Shift uint64
}

const memberSize = 16 // 2 * uint64

func decodeMember(b []byte) member {
	return member{
		Mask:  binary.LittleEndian.Uint64(b[0:8]),
		Shift: binary.LittleEndian.Uint64(b[8:16]),
	}
}

// value applies the member's mask/shift to a node's 64-bit word.
func (m member) value(word uint64) uint32 {
	return uint32((word & m.Mask) >> m.Shift)
}

// collectionHeader is the wire fiftyoneDegreesIpiCgMemberCollection: three
// little-endian uint32 fields describing a sub-collection's byte length,
// logical record count, and start offset within the shared byte region.
// It is an alias of collection.Header so a decoded graphInfo's headers can
// be handed straight to the collection package without conversion.
type collectionHeader = collection.Header

const collectionHeaderSize = 12

func decodeCollectionHeader(b []byte) collectionHeader {
	return collectionHeader{
		Length:        binary.LittleEndian.Uint32(b[0:4]),
		Count:         binary.LittleEndian.Uint32(b[4:8]),
		StartPosition: binary.LittleEndian.Uint32(b[8:12]),
	}
}

// memberValueDescriptor is the wire fiftyoneDegreesIpiCgMemberValue: the
// node stream's collection header, the bit width of one record, and the
// three member descriptors used to pull value/lowFlag/spanIndex out of
// each decoded record.
type memberValueDescriptor struct {
	Collection collectionHeader
	RecordSize uint16 // bits per node record, 1..64
	LowFlag    member
	SpanIndex  member
	Value      member
}

const memberValueDescriptorSize = collectionHeaderSize + 2 + memberSize*3

func decodeMemberValueDescriptor(b []byte) (memberValueDescriptor, error) {
	if len(b) < memberValueDescriptorSize {
		return memberValueDescriptor{}, fmt.Errorf("%w: truncated member-value descriptor", ErrCorruptData)
	}
	d := memberValueDescriptor{
		Collection: decodeCollectionHeader(b[0:12]),
		RecordSize: binary.LittleEndian.Uint16(b[12:14]),
	}
	off := 14
	d.LowFlag = decodeMember(b[off : off+memberSize])
	off += memberSize
	d.SpanIndex = decodeMember(b[off : off+memberSize])
	off += memberSize
	d.Value = decodeMember(b[off : off+memberSize])
	if d.RecordSize == 0 || d.RecordSize > 64 {
		return memberValueDescriptor{}, fmt.Errorf("%w: record size %d out of range", ErrCorruptData, d.RecordSize)
	}
	return d, nil
}

// graphInfo is the wire fiftyoneDegreesIpiCgInfo record: one per
// (IP-version, component) graph held in the outer collection.
type graphInfo struct {
	Version                uint8
	ComponentID            uint8
	GraphIndex             uint32
	Nodes                  memberValueDescriptor
	Spans                  collectionHeader
	SpanBytes              collectionHeader
	Clusters               collectionHeader
	ProfileCount           uint32
	FirstProfileIndex      uint32
	ProfileGroupCount      uint32
	FirstProfileGroupIndex uint32
}

// graphInfoSize is the fixed packed size of one graphInfo record on disk:
// 1 + 1 (version, componentId) + 4 (graphIndex) + memberValueDescriptorSize
// (nodes) + 3*collectionHeaderSize (spans, spanBytes, clusters) + 4*4
// (profile/group counts and first indexes).
const graphInfoSize = 1 + 1 + 4 + memberValueDescriptorSize + 3*collectionHeaderSize + 4*4

func decodeGraphInfo(b []byte) (graphInfo, error) {
	if len(b) < graphInfoSize {
		return graphInfo{}, fmt.Errorf("%w: truncated graph info record", ErrCorruptData)
	}
	var g graphInfo
	g.Version = b[0]
	g.ComponentID = b[1]
	g.GraphIndex = binary.LittleEndian.Uint32(b[2:6])

	off := 6
	nodes, err := decodeMemberValueDescriptor(b[off : off+memberValueDescriptorSize])
	if err != nil {
		return graphInfo{}, err
	}
	g.Nodes = nodes
	off += memberValueDescriptorSize

	g.Spans = decodeCollectionHeader(b[off : off+collectionHeaderSize])
	off += collectionHeaderSize
	g.SpanBytes = decodeCollectionHeader(b[off : off+collectionHeaderSize])
	off += collectionHeaderSize
	g.Clusters = decodeCollectionHeader(b[off : off+collectionHeaderSize])
	off += collectionHeaderSize

	g.ProfileCount = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	g.FirstProfileIndex = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	g.ProfileGroupCount = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	g.FirstProfileGroupIndex = binary.LittleEndian.Uint32(b[off : off+4])

	return g, nil
}
