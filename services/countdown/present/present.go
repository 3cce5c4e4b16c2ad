// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package present turns the minimal-depth expressions of a solution into
// what a user sees: structurally distinct expressions, ranked by niceness,
// rendered as text.
//
// The engine reports every minimal-depth tree and deliberately does not rank
// them. Ranking lives here:
//
//	Score(e) = Σ over distinct leaf values v of 100^(occurrences of v)
//
// so expressions that repeat the same source value score higher, and Best
// keeps only the highest-scoring ones.
package present

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/countdown/services/countdown/engine"
)

// DefaultLimit caps how many trees Summarize expands.
const DefaultLimit = 10000

// Key returns a canonical string for e: commutative operands are ordered,
// every operation is parenthesized. Two expressions with the same key are
// the same computation written differently.
func Key(e *engine.Expression) string {
	if e == nil {
		return ""
	}
	if e.IsLeaf() {
		return strconv.FormatInt(e.Value, 10)
	}
	left, right := Key(e.Left), Key(e.Right)
	if info, ok := engine.Lookup(e.Op); ok && info.Commutative && right < left {
		left, right = right, left
	}
	return "(" + left + " " + e.Op.String() + " " + right + ")"
}

// Dedupe drops expressions whose Key was already seen, keeping first
// occurrences in order.
func Dedupe(exprs []*engine.Expression) []*engine.Expression {
	seen := make(map[string]struct{}, len(exprs))
	out := make([]*engine.Expression, 0, len(exprs))
	for _, e := range exprs {
		k := Key(e)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Score returns the niceness score of e.
func Score(e *engine.Expression) float64 {
	counts := make(map[int64]int)
	for _, v := range e.Leaves() {
		counts[v]++
	}
	var score float64
	for _, n := range counts {
		score += math.Pow(100, float64(n))
	}
	return score
}

// Best dedupes exprs and returns those with the highest score, ordered by
// their rendered text.
func Best(exprs []*engine.Expression) []*engine.Expression {
	unique := Dedupe(exprs)
	if len(unique) == 0 {
		return nil
	}

	best := math.Inf(-1)
	var top []*engine.Expression
	for _, e := range unique {
		s := Score(e)
		switch {
		case s > best:
			best = s
			top = []*engine.Expression{e}
		case s == best:
			top = append(top, e)
		}
	}
	sort.SliceStable(top, func(i, j int) bool {
		return Format(top[i]) < Format(top[j])
	})
	return top
}

// Format renders e with parentheses around every addition and subtraction,
// e.g. "(1 + 9) * 10". A compound right operand is wrapped unless it repeats
// a commutative parent's operator, so "3 * (7 / 2)" keeps its grouping.
func Format(e *engine.Expression) string {
	if e == nil {
		return ""
	}
	var sb strings.Builder
	format(&sb, e, false)
	return sb.String()
}

func format(sb *strings.Builder, e *engine.Expression, wrap bool) {
	if e.IsLeaf() {
		sb.WriteString(strconv.FormatInt(e.Value, 10))
		return
	}
	additive := e.Op == engine.Add || e.Op == engine.Subtract
	if additive || wrap {
		sb.WriteByte('(')
	}

	info, _ := engine.Lookup(e.Op)
	format(sb, e.Left, e.Op == engine.Exponent && !e.Left.IsLeaf())
	sb.WriteByte(' ')
	sb.WriteString(e.Op.String())
	sb.WriteByte(' ')
	format(sb, e.Right, !e.Right.IsLeaf() && (!info.Commutative || e.Right.Op != e.Op))

	if additive || wrap {
		sb.WriteByte(')')
	}
}

// Render returns "target = expression".
func Render(target int64, e *engine.Expression) string {
	return strconv.FormatInt(target, 10) + " = " + Format(e)
}

// Summary is the presentable outcome of a solution.
type Summary struct {
	Target int64    `json:"target"`
	Depth  int      `json:"depth"`
	Count  int64    `json:"count"`
	Best   []string `json:"best"`
}

// Summarize expands up to limit trees of sol and renders the best ones.
// limit <= 0 uses DefaultLimit. A nil solution gives an empty summary.
func Summarize(sol *engine.Solution, limit int) Summary {
	if sol == nil {
		return Summary{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	best := Best(engine.Collect(sol.Expressions(), limit))
	rendered := make([]string, len(best))
	for i, e := range best {
		rendered[i] = Format(e)
	}
	return Summary{
		Target: sol.Target,
		Depth:  sol.Depth,
		Count:  sol.Count(),
		Best:   rendered,
	}
}
