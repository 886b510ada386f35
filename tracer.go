// Copyright (c) 2025 ipgraph contributors
// SPDX-License-Identifier: MIT

package ipgraph

import (
	"fmt"
	"strings"

	"github.com/gaissmai/ipgraph/bitio"
)

// Tracer receives a human-readable record of each traversal step. The
// zero-cost noopTracer is used by Evaluate; EvaluateTrace installs a
// stringTracer that renders into a caller-bounded buffer.
type Tracer interface {
	trace(c *cursor)
	finish(rawValue uint32, exhausted bool)
}

// noopTracer discards every record; used whenever a caller does not ask
// for a trace, so Evaluate pays nothing for the tracing machinery.
type noopTracer struct{}

func (noopTracer) trace(*cursor)       {}
func (noopTracer) finish(uint32, bool) {}

// stringTracer renders one line per traversal step into a length-bounded
// string builder, matching the trace format described in SPEC_FULL.md
// §6: an IP preamble, one line per comparison/move, and a terminating
// result line.
type stringTracer struct {
	b     strings.Builder
	limit int
}

func newStringTracer(ip IPAddress, limit int) *stringTracer {
	t := &stringTracer{limit: limit}
	t.writeString(dottedIP(ip) + "\n")
	return t
}

func (t *stringTracer) writeString(s string) {
	if t.limit > 0 && t.b.Len()+len(s) > t.limit {
		remaining := t.limit - t.b.Len()
		if remaining > 0 {
			t.b.WriteString(s[:remaining])
		}
		return
	}
	t.b.WriteString(s)
}

func (t *stringTracer) trace(c *cursor) {
	line := fmt.Sprintf(
		"[bit=%d] %s index=%d cluster=%d span=%d ip=%s low=%s high=%s\n",
		c.bitIndex, c.compareResult, c.index, c.clusterIndex, c.spanIndex,
		bitString(c.ipValue[:], c.span.maxLen()),
		bitString(c.spanLow[:], int(c.span.LengthLow)),
		bitString(c.spanHigh[:], int(c.span.LengthHigh)),
	)
	t.writeString(line)
}

func (t *stringTracer) finish(rawValue uint32, exhausted bool) {
	if exhausted {
		t.writeString("exhausted=true\n")
	}
	t.writeString(fmt.Sprintf("result=%d\n", rawValue))
}

// String returns the accumulated trace, NUL-terminated per SPEC_FULL.md's
// buffer-based trace contract.
func (t *stringTracer) String() string {
	return t.b.String() + "\x00"
}

// dottedIP renders an IPv4 address in dotted-decimal form and an IPv6
// address in its standard colon form, ignoring the zero padding kept in
// the fixed-width value buffer.
func dottedIP(ip IPAddress) string {
	if ip.Version == IPVersionIPv4 {
		return fmt.Sprintf("%d.%d.%d.%d", ip.Value[0], ip.Value[1], ip.Value[2], ip.Value[3])
	}
	addr := ip.netipAddr()
	return addr.String()
}

// bitString renders the first n bits of b as a string of '0'/'1'
// characters, MSB-first.
func bitString(b []byte, n int) string {
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		if bitio.GetBit(b, i) == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
