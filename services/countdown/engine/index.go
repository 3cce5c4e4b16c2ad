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
	"fmt"
	"slices"
)

// Derivation is one way of producing a value: Left Op Right.
//
// Derivations stored in an Index are canonical: operands of commutative
// operators are in ascending order, others keep the order they were produced
// in. Canonical derivations are comparable and used as set keys.
type Derivation struct {
	Left  int64    `json:"left"`
	Op    Operator `json:"op"`
	Right int64    `json:"right"`
}

// Canonical returns the derivation key for a op b.
func Canonical(a int64, op Operator, b int64) Derivation {
	if info, ok := Lookup(op); ok && info.Commutative && b < a {
		a, b = b, a
	}
	return Derivation{Left: a, Op: op, Right: b}
}

// String renders the derivation as "a op b".
func (d Derivation) String() string {
	return fmt.Sprintf("%d %s %d", d.Left, d.Op, d.Right)
}

// RecordOutcome reports what Index.Record did with a derivation.
type RecordOutcome int

const (
	// RecordNew means the value was reached for the first time.
	RecordNew RecordOutcome = iota

	// RecordImproved means the value was reached at a strictly smaller depth;
	// earlier derivations were dropped.
	RecordImproved

	// RecordAdded means another derivation at the existing minimal depth.
	RecordAdded

	// RecordDuplicate means the canonical derivation was already recorded.
	RecordDuplicate

	// RecordDeeper means the derivation is deeper than the recorded depth and
	// was ignored.
	RecordDeeper
)

// String returns the outcome name.
func (o RecordOutcome) String() string {
	switch o {
	case RecordNew:
		return "new"
	case RecordImproved:
		return "improved"
	case RecordAdded:
		return "added"
	case RecordDuplicate:
		return "duplicate"
	case RecordDeeper:
		return "deeper"
	default:
		return "unknown"
	}
}

// Reachable reports whether the derivation leaves its value reachable at
// the derivation's depth.
func (o RecordOutcome) Reachable() bool {
	return o != RecordDeeper
}

// entry is the index record for one value.
type entry struct {
	depth       int
	derivations []Derivation
	seen        map[Derivation]struct{}
}

// -----------------------------------------------------------------------------
// Index
// -----------------------------------------------------------------------------

// Index maps every value produced so far to its minimal depth and every
// canonical derivation reaching it at that depth.
//
// Invariants:
//   - Source values have depth 0 and no derivations.
//   - Every derivation d of v satisfies depth(d.Left)+depth(d.Right)+1 == depth(v).
//   - Depths never increase and entries are never removed.
//
// The index is keyed by value in a hash map, so sparse and very large values
// cost nothing until they are reached.
//
// Thread Safety: NOT safe for concurrent use. A search owns its index and
// mutates it only from the scheduler goroutine. Once the search has reached
// a terminal state the index is read-only and may be shared.
type Index struct {
	entries map[int64]*entry
	sources map[int64]int
}

// NewIndex creates an index seeded with the source values at depth 0.
//
// Duplicate source values collapse into one entry; their multiplicity is
// kept and governs whether a source value may be combined with itself.
func NewIndex(values []int64) *Index {
	ix := &Index{
		entries: make(map[int64]*entry, len(values)*4),
		sources: make(map[int64]int, len(values)),
	}
	for _, v := range values {
		ix.sources[v]++
		if _, ok := ix.entries[v]; !ok {
			ix.entries[v] = &entry{depth: 0}
		}
	}
	return ix
}

// Len returns the number of values in the index.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Depth returns the minimal depth recorded for v.
func (ix *Index) Depth(v int64) (int, bool) {
	e, ok := ix.entries[v]
	if !ok {
		return 0, false
	}
	return e.depth, true
}

// Derivations returns a copy of the derivations recorded for v, in the order
// they were discovered. Source values have none.
func (ix *Index) Derivations(v int64) []Derivation {
	e, ok := ix.entries[v]
	if !ok || len(e.derivations) == 0 {
		return nil
	}
	return slices.Clone(e.derivations)
}

// Multiplicity returns how often v occurs among the source values.
func (ix *Index) Multiplicity(v int64) int {
	return ix.sources[v]
}

// IsSource reports whether v is one of the source values.
func (ix *Index) IsSource(v int64) bool {
	return ix.sources[v] > 0
}

// Record adds the derivation a op b producing value.
//
// Description:
//
//	The derivation depth is depth(a) + depth(b) + 1. If value is unknown it
//	is created at that depth. A strictly shallower derivation replaces the
//	depth and clears earlier derivations. An equal-depth derivation is
//	appended unless its canonical form is already present. Deeper
//	derivations are ignored.
//
// Inputs:
//   - a, b: Operands. Both must already be in the index.
//   - op: The operator applied.
//   - value: The result of a op b.
//
// Outputs:
//   - RecordOutcome: What happened to the index.
//
// Panics if either operand is missing, which would mean the caller combined
// values it never obtained from the index.
func (ix *Index) Record(a int64, op Operator, b int64, value int64) RecordOutcome {
	ea, okA := ix.entries[a]
	eb, okB := ix.entries[b]
	if !okA || !okB {
		panic(fmt.Sprintf("engine: operands %d and %d must be indexed before combining", a, b))
	}
	depth := ea.depth + eb.depth + 1
	key := Canonical(a, op, b)

	current, ok := ix.entries[value]
	if !ok {
		ix.entries[value] = &entry{
			depth:       depth,
			derivations: []Derivation{key},
			seen:        map[Derivation]struct{}{key: {}},
		}
		return RecordNew
	}

	switch {
	case depth > current.depth:
		return RecordDeeper
	case depth < current.depth:
		current.depth = depth
		current.derivations = []Derivation{key}
		current.seen = map[Derivation]struct{}{key: {}}
		return RecordImproved
	}

	if current.seen == nil {
		current.seen = make(map[Derivation]struct{})
	}
	if _, dup := current.seen[key]; dup {
		return RecordDuplicate
	}
	current.seen[key] = struct{}{}
	current.derivations = append(current.derivations, key)
	return RecordAdded
}

// ValuesByDepth groups every value not above bound by its depth.
//
// Values within a depth are sorted ascending so enumeration order is
// deterministic.
func (ix *Index) ValuesByDepth(bound int64) map[int][]int64 {
	byDepth := make(map[int][]int64)
	for v, e := range ix.entries {
		if v > bound {
			continue
		}
		byDepth[e.depth] = append(byDepth[e.depth], v)
	}
	for _, vs := range byDepth {
		slices.Sort(vs)
	}
	return byDepth
}

// Values returns every indexed value in ascending order.
func (ix *Index) Values() []int64 {
	vs := make([]int64, 0, len(ix.entries))
	for v := range ix.entries {
		vs = append(vs, v)
	}
	slices.Sort(vs)
	return vs
}
