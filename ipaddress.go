// Copyright (c) 2025 ipgraph contributors
// SPDX-License-Identifier: MIT

package ipgraph

import "net/netip"

// addressWidth is the fixed size, in bytes, of the IP value buffer carried
// by every Cursor regardless of IP version. The final revision of the
// evaluated format keeps this at 16 bytes (128 bits) even for IPv4, and
// isExhausted is checked against that width, not against 4 bytes for IPv4 -
// see SPEC_FULL.md part D.4.
const addressWidth = 16

// IPVersion identifies the address family a component graph, or an
// address passed to Evaluate, belongs to.
type IPVersion uint8

const (
	// IPVersionInvalid marks an address that failed to parse.
	IPVersionInvalid IPVersion = 0
	// IPVersionIPv4 is the IPv4 address family, stored as version byte 4
	// in the data file, matching spec.md's wire layout.
	IPVersionIPv4 IPVersion = 4
	// IPVersionIPv6 is the IPv6 address family, stored as version byte 6.
	IPVersionIPv6 IPVersion = 6
)

// IPAddress is the contract this package expects from the (out-of-scope)
// IP parser/evidence layer: a version tag plus a fixed 16-byte MSB-first
// value, with IPv4 addresses held in the first 4 bytes and the remaining
// 12 zero-padded.
type IPAddress struct {
	Version IPVersion
	Value   [addressWidth]byte
}

// IPAddressFromNetIP builds an IPAddress from a net/netip.Addr, the
// standard library's address type. Addresses that are neither 4-in-4 nor
// 16-byte are reported as IPVersionInvalid.
func IPAddressFromNetIP(addr netip.Addr) IPAddress {
	var out IPAddress
	switch {
	case addr.Is4():
		out.Version = IPVersionIPv4
		b := addr.As4()
		copy(out.Value[:4], b[:])
	case addr.Is6():
		out.Version = IPVersionIPv6
		b := addr.As16()
		copy(out.Value[:], b[:])
	default:
		out.Version = IPVersionInvalid
	}
	return out
}

// ParseIPAddress parses a dotted-decimal or colon-hex address string using
// net/netip, the ambient parser this package defers address parsing to.
func ParseIPAddress(s string) (IPAddress, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return IPAddress{Version: IPVersionInvalid}, err
	}
	return IPAddressFromNetIP(addr), nil
}

// bitLen returns the number of bits available for traversal: always the
// full addressWidth*8, matching the final revision's fixed VAR_SIZE of 16
// bytes for every address, regardless of version.
func (a IPAddress) bitLen() int {
	return addressWidth * 8
}

// netipAddr renders the address back to a net/netip.Addr for display, used
// only by the tracer's IPv6 preamble.
func (a IPAddress) netipAddr() netip.Addr {
	return netip.AddrFrom16(a.Value)
}
