// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

// DepthPair is an ordered pair of operand depths combining into one level.
type DepthPair struct {
	Left  int
	Right int
}

// DepthPairs returns every (d1, d2) with d1 + d2 + 1 == level, in ascending
// order of d1. Levels below 1 have no pairs.
func DepthPairs(level int) []DepthPair {
	if level < 1 {
		return nil
	}
	pairs := make([]DepthPair, 0, level)
	for d1 := 0; d1 < level; d1++ {
		pairs = append(pairs, DepthPair{Left: d1, Right: level - 1 - d1})
	}
	return pairs
}

// Candidates is a cursor over the operand pairs of one depth level.
//
// Description:
//
//	The value groups are snapshotted when the cursor is created, so values
//	recorded while the level is being processed are not revisited. Pairs
//	come out grouped by DepthPair in ascending order; within a pair the left
//	value is the outer loop and both sides are ascending.
//
//	A source value is paired with itself only when it occurs at least twice
//	among the sources or when source reuse is allowed. Intermediate values
//	may always be paired with themselves.
//
// Thread Safety: NOT safe for concurrent use.
type Candidates struct {
	ix          *Index
	pairs       []DepthPair
	byDepth     map[int][]int64
	allowReuse  bool
	pair        int
	left, right int
}

// NewCandidates creates the cursor for level over the values in ix that are
// not above bound.
func NewCandidates(ix *Index, level int, bound int64, allowSourceReuse bool) *Candidates {
	return &Candidates{
		ix:         ix,
		pairs:      DepthPairs(level),
		byDepth:    ix.ValuesByDepth(bound),
		allowReuse: allowSourceReuse,
	}
}

// Pairs returns the depth pairs the cursor walks.
func (c *Candidates) Pairs() []DepthPair {
	return c.pairs
}

// Next returns the next operand pair. ok is false once the level is
// exhausted.
func (c *Candidates) Next() (a, b int64, ok bool) {
	for c.pair < len(c.pairs) {
		p := c.pairs[c.pair]
		lefts, rights := c.byDepth[p.Left], c.byDepth[p.Right]
		if c.left >= len(lefts) {
			c.pair++
			c.left, c.right = 0, 0
			continue
		}
		if c.right >= len(rights) {
			c.left++
			c.right = 0
			continue
		}
		a, b = lefts[c.left], rights[c.right]
		c.right++
		if a == b && p.Left == 0 && !c.reusable(a) {
			continue
		}
		return a, b, true
	}
	return 0, 0, false
}

// Estimate returns the number of operator evaluations the level will take:
// opCount times the number of pairs Next will return.
func (c *Candidates) Estimate(opCount int) int64 {
	var total int64
	for _, p := range c.pairs {
		lefts, rights := c.byDepth[p.Left], c.byDepth[p.Right]
		n := int64(len(lefts)) * int64(len(rights))
		if p.Left == 0 && p.Right == 0 {
			for _, v := range lefts {
				if !c.reusable(v) {
					n--
				}
			}
		}
		total += n
	}
	return total * int64(opCount)
}

func (c *Candidates) reusable(v int64) bool {
	return c.allowReuse || c.ix.Multiplicity(v) >= 2
}
