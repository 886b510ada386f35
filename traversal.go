// Copyright (c) 2025 ipgraph contributors
// SPDX-License-Identifier: MIT

package ipgraph

import (
	"fmt"

	"github.com/gaissmai/ipgraph/bitio"
)

// compareResult is the outcome of comparing the current IP bit slice
// against a span's low and high limits.
type compareResult int

const (
	compareNone compareResult = iota
	lessThanLow
	equalLow
	inBetween
	equalHigh
	greaterThanHigh
)

func (r compareResult) String() string {
	switch r {
	case lessThanLow:
		return "LESS_THAN_LOW"
	case equalLow:
		return "EQUAL_LOW"
	case inBetween:
		return "INBETWEEN"
	case equalHigh:
		return "EQUAL_HIGH"
	case greaterThanHigh:
		return "GREATER_THAN_HIGH"
	default:
		return "NO_COMPARE"
	}
}

// compareIpToSpan extracts the next max(lengthLow,lengthHigh) IP bits and
// compares them against spanLow/spanHigh, each at its own bit width.
// EQUAL_HIGH additionally records previousHighIndex for a later
// moveBackLow (4.5).
func (c *cursor) compareIpToSpan() error {
	c.setIpValue()

	lc := bitio.Compare(c.ipValue[:], c.spanLow[:], int(c.span.LengthLow))
	hc := bitio.Compare(c.ipValue[:], c.spanHigh[:], int(c.span.LengthHigh))

	switch {
	case lc < 0:
		c.compareResult = lessThanLow
	case lc == 0:
		c.compareResult = equalLow
	case hc < 0:
		c.compareResult = inBetween
	case hc == 0:
		c.compareResult = equalHigh
		c.previousHighIndex = c.index
	case hc > 0:
		c.compareResult = greaterThanHigh
	default:
		c.compareResult = compareNone
	}

	if c.compareResult == compareNone {
		return fmt.Errorf("%w: comparison of ip bits against span yielded no ordering", ErrCorruptData)
	}
	return nil
}

// moveNext loads the node immediately following the current one: the
// sibling on the other side of a low/high pair.
func (c *cursor) moveNext() error { return c.readNode(c.index + 1) }

// moveTo follows the current node's value as a child node index.
func (c *cursor) moveTo() error { return c.readNode(c.graph.nodeValue(c.node)) }

// moveBackLow jumps to the most recently recorded EQUAL_HIGH node and
// selects its low sibling, undoing a high descent that turned out to
// overshoot.
func (c *cursor) moveBackLow() error {
	if err := c.readNode(c.previousHighIndex); err != nil {
		return err
	}
	_, err := c.selectLow()
	return err
}

// selectLow moves the cursor toward the low child of the current low/high
// pair: if the current node already is the low sibling, descend into it
// (return true if it is itself a leaf); otherwise the low sibling is the
// next node in the stream.
func (c *cursor) selectLow() (bool, error) {
	if c.graph.nodeLowFlag(c.node) {
		if c.graph.isLeaf(c.node) {
			return true, nil
		}
		if err := c.moveTo(); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := c.moveNext(); err != nil {
		return false, err
	}
	return false, nil
}

// selectHigh moves the cursor toward the high child of the current
// low/high pair: if the current node is the low sibling, its high sibling
// is the next node in the stream; either way, descend if the resulting
// node is not itself a leaf.
func (c *cursor) selectHigh() (bool, error) {
	if c.graph.nodeLowFlag(c.node) {
		if err := c.moveNext(); err != nil {
			return false, err
		}
	}
	if c.graph.isLeaf(c.node) {
		return true, nil
	}
	if err := c.moveTo(); err != nil {
		return false, err
	}
	return false, nil
}

// selectCompleteHigh repeatedly takes the high branch until a leaf is
// reached, without consulting further IP bits.
func (c *cursor) selectCompleteHigh() error {
	for {
		found, err := c.selectHigh()
		if err != nil {
			return err
		}
		if found {
			return nil
		}
	}
}

// selectCompleteLow handles LESS_THAN_LOW: the IP fell below this node's
// span-low, so walk back to the previous high decision, take its low
// child, and if that is not already a leaf walk the high branch down to
// one.
func (c *cursor) selectCompleteLow() error {
	if err := c.moveBackLow(); err != nil {
		return err
	}
	if c.graph.isLeaf(c.node) {
		return nil
	}
	return c.selectCompleteHigh()
}

// selectCompleteLowHigh handles INBETWEEN: the IP fell strictly between
// this node's span-low and span-high, so descend into the low subtree and
// then walk its high branch down to a leaf.
func (c *cursor) selectCompleteLowHigh() error {
	if _, err := c.selectLow(); err != nil {
		return err
	}
	if c.graph.isLeaf(c.node) {
		return nil
	}
	return c.selectCompleteHigh()
}

// run drives one full traversal from the graph's root node to a leaf (or
// until the IP address's bits are exhausted), returning the final node's
// profile index.
func (c *cursor) run() (uint32, error) {
	if err := c.readNode(c.graph.info.GraphIndex); err != nil {
		return 0, err
	}

	maxBits := c.ip.bitLen()

	c.exhausted = false

	for {
		if err := c.compareIpToSpan(); err != nil {
			return 0, err
		}
		c.tracer.trace(c)

		var found bool
		var err error
		switch c.compareResult {
		case lessThanLow:
			err = c.selectCompleteLow()
			found = true
		case equalLow:
			c.bitIndex += int(c.span.LengthLow)
			found, err = c.selectLow()
		case inBetween:
			err = c.selectCompleteLowHigh()
			found = true
		case equalHigh:
			c.bitIndex += int(c.span.LengthHigh)
			found, err = c.selectHigh()
		case greaterThanHigh:
			err = c.selectCompleteHigh()
			found = true
		}
		if err != nil {
			return 0, err
		}
		if found {
			break
		}
		if c.bitIndex >= maxBits {
			c.exhausted = true
			break
		}
	}

	return c.graph.profileIndex(c.node), nil
}
