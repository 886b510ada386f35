// Copyright (c) 2025 ipgraph contributors
// SPDX-License-Identifier: MIT

package ipgraph

// Result is the outcome of one Evaluate call: an offset into either the
// profile table or the profile-group table, discriminated by
// IsGroupOffset. The zero value is the default "no match" result.
type Result struct {
	RawValue      uint32
	Offset        uint32
	IsGroupOffset bool
}

// toResult maps a leaf's raw profile index to a profile- or
// profile-group-table offset (4.7). rawValue is carried through
// unconditionally, matching the source's result literal that sets
// rawValue up front and only ever varies offset/isGroupOffset from there;
// a rawValue that falls in neither range yields offset 0, isGroupOffset
// false, which also covers the case where evaluation exhausted the IP's
// bits without reaching a leaf.
func toResult(rawValue uint32, g *Graph) Result {
	if rawValue < g.info.ProfileCount {
		return Result{
			RawValue: rawValue,
			Offset:   rawValue + g.info.FirstProfileIndex,
		}
	}
	groupValue := rawValue - g.info.ProfileCount
	if groupValue < g.info.ProfileGroupCount {
		return Result{
			RawValue:      rawValue,
			Offset:        groupValue + g.info.FirstProfileGroupIndex,
			IsGroupOffset: true,
		}
	}
	return Result{RawValue: rawValue}
}
