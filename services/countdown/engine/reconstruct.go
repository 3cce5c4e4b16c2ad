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

import (
	"iter"
	"math"
)

// Expressions lazily expands every minimal-depth expression tree for v.
//
// Description:
//
//	A source value yields a single leaf. Any other value yields, for each
//	recorded derivation (a, op, b) in discovery order, the cross product of
//	the trees of a and the trees of b. Unknown values yield nothing.
//
//	The sequence is restartable and deterministic: ranging over it twice
//	produces structurally identical trees in the same order. Stopping early
//	stops the expansion, so huge fan-outs cost only what is consumed.
//
// Thread Safety: Reads the index. Safe once the owning search is terminal.
func (ix *Index) Expressions(v int64) iter.Seq[*Expression] {
	return func(yield func(*Expression) bool) {
		ix.expand(v, yield)
	}
}

// expand returns false once yield has asked to stop.
func (ix *Index) expand(v int64, yield func(*Expression) bool) bool {
	e, ok := ix.entries[v]
	if !ok {
		return true
	}
	if e.depth == 0 {
		return yield(Leaf(v))
	}
	for _, d := range e.derivations {
		more := ix.expand(d.Left, func(left *Expression) bool {
			return ix.expand(d.Right, func(right *Expression) bool {
				return yield(Node(d.Op, left, right, v))
			})
		})
		if !more {
			return false
		}
	}
	return true
}

// CountExpressions returns how many trees Expressions(v) yields without
// building them. The count saturates at math.MaxInt64.
func (ix *Index) CountExpressions(v int64) int64 {
	return ix.count(v, make(map[int64]int64))
}

func (ix *Index) count(v int64, memo map[int64]int64) int64 {
	if n, ok := memo[v]; ok {
		return n
	}
	e, ok := ix.entries[v]
	if !ok {
		return 0
	}
	var n int64 = 1
	if e.depth > 0 {
		n = 0
		for _, d := range e.derivations {
			n = saturatingAdd(n, saturatingMul(ix.count(d.Left, memo), ix.count(d.Right, memo)))
		}
	}
	memo[v] = n
	return n
}

func saturatingAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func saturatingMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

// Collect gathers up to limit expressions from seq. A limit of zero or less
// collects everything.
func Collect(seq iter.Seq[*Expression], limit int) []*Expression {
	var out []*Expression
	for expr := range seq {
		out = append(out, expr)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
