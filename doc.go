// Copyright (c) 2025 ipgraph contributors
// SPDX-License-Identifier: MIT

// Package ipgraph resolves an IP address plus a component identifier to a
// profile (or profile-group) offset by traversing a compact, bit-packed
// decision structure called a component graph.
//
// A component graph is specific to one (IP-version, component) pair. A
// GraphArray holds every graph found in a data file or memory buffer and
// picks the matching one for each lookup.
//
// The traversal itself never allocates beyond a single stack-local Cursor:
// each decision compares the next run of IP bits against a span's low and
// high limits and either follows a child node or "completes" straight to a
// leaf without consulting further bits.
//
// GraphArray is read-only and safe for concurrent use by many goroutines,
// each performing its own Evaluate/EvaluateTrace call. Building or mutating
// a graph is out of scope; this package only reads data files or buffers
// produced elsewhere.
package ipgraph
