// Copyright (c) 2025 ipgraph contributors
// SPDX-License-Identifier: MIT

package ipgraph

import (
	"encoding/binary"
	"fmt"

	"github.com/gaissmai/ipgraph/bitio"
)

// span is the wire Span record: two bit-lengths and a 6-byte packed
// record. When lengthLow+lengthHigh <= 32 the trailing 4 bytes are the
// low/high limit bits concatenated and used directly; otherwise they are
// a little-endian uint32 offset into the span-bytes pool where the same
// concatenation lives.
type span struct {
	LengthLow  byte
	LengthHigh byte
	Trail      [4]byte
}

const spanSize = 1 + 1 + 4

func decodeSpan(b []byte) (span, error) {
	if len(b) < spanSize {
		return span{}, fmt.Errorf("%w: truncated span record", ErrCorruptData)
	}
	var s span
	s.LengthLow = b[0]
	s.LengthHigh = b[1]
	copy(s.Trail[:], b[2:6])
	return s, nil
}

// totalLen is lengthLow + lengthHigh, used to decide whether the limits
// are inline or indirected through the span-bytes pool.
func (s span) totalLen() int { return int(s.LengthLow) + int(s.LengthHigh) }

// maxLen is the larger of the two limit bit-widths: the number of IP bits
// a comparison against this span consumes from the address.
func (s span) maxLen() int {
	if s.LengthLow > s.LengthHigh {
		return int(s.LengthLow)
	}
	return int(s.LengthHigh)
}

// trailOffset interprets the trailing 4 bytes as a little-endian offset
// into the span-bytes pool.
func (s span) trailOffset() uint32 { return binary.LittleEndian.Uint32(s.Trail[:]) }

// limits materializes spanLow and spanHigh (each addressWidth bytes,
// zeroed then populated with LengthLow/LengthHigh bits MSB-first) from
// either the inline trail bytes or the span-bytes pool, validating that
// spanLow < spanHigh at the wider of the two bit-widths.
func (g *Graph) limits(s span) (low, high [addressWidth]byte, err error) {
	var raw []byte
	if s.totalLen() <= 32 {
		raw = s.Trail[:]
	} else {
		item, gerr := g.spanBytes.Get(s.trailOffset(), (s.totalLen()+7)/8)
		if gerr != nil {
			return low, high, fmt.Errorf("%w: span bytes at offset %d: %v", ErrCorruptData, s.trailOffset(), gerr)
		}
		defer item.Release()
		raw = item.Bytes()
	}

	bitio.CopyBits(low[:], raw, 0, int(s.LengthLow))
	bitio.CopyBits(high[:], raw, int(s.LengthLow), int(s.LengthHigh))

	if bitio.Compare(low[:], high[:], s.maxLen()) >= 0 {
		return low, high, fmt.Errorf("%w: span low limit not strictly below high limit", ErrCorruptData)
	}
	return low, high, nil
}
