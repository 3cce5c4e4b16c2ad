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
	"strconv"
	"strings"
)

// Expression is a binary expression tree over source values.
//
// A leaf has Op == 0 and nil children. Trees produced by the reconstructor
// may share subtrees; treat them as immutable.
type Expression struct {
	Value int64       `json:"value"`
	Op    Operator    `json:"op,omitempty"`
	Left  *Expression `json:"left,omitempty"`
	Right *Expression `json:"right,omitempty"`
}

// Leaf creates a leaf expression for a source value.
func Leaf(v int64) *Expression {
	return &Expression{Value: v}
}

// Node creates an operation node. value is the cached result of
// left op right.
func Node(op Operator, left, right *Expression, value int64) *Expression {
	return &Expression{Value: value, Op: op, Left: left, Right: right}
}

// IsLeaf reports whether e is a source value.
func (e *Expression) IsLeaf() bool {
	return e.Left == nil && e.Right == nil
}

// Eval recomputes the expression through the operator registry, ignoring
// cached node values. ok is false if any operation is invalid.
func (e *Expression) Eval() (int64, bool) {
	if e == nil {
		return 0, false
	}
	if e.IsLeaf() {
		return e.Value, true
	}
	info, ok := Lookup(e.Op)
	if !ok || e.Left == nil || e.Right == nil {
		return 0, false
	}
	a, ok := e.Left.Eval()
	if !ok {
		return 0, false
	}
	b, ok := e.Right.Eval()
	if !ok {
		return 0, false
	}
	return info.Evaluate(a, b)
}

// Ops returns the number of operation nodes. For reconstructed trees this
// equals the depth of the root value.
func (e *Expression) Ops() int {
	if e == nil || e.IsLeaf() {
		return 0
	}
	return 1 + e.Left.Ops() + e.Right.Ops()
}

// Leaves returns the leaf values from left to right.
func (e *Expression) Leaves() []int64 {
	var out []int64
	e.walkLeaves(func(v int64) { out = append(out, v) })
	return out
}

func (e *Expression) walkLeaves(fn func(int64)) {
	if e == nil {
		return
	}
	if e.IsLeaf() {
		fn(e.Value)
		return
	}
	e.Left.walkLeaves(fn)
	e.Right.walkLeaves(fn)
}

// String renders the expression in infix form with the minimum parentheses
// needed to preserve evaluation order, e.g. "(1 + 2) * 3".
func (e *Expression) String() string {
	if e == nil {
		return ""
	}
	var sb strings.Builder
	e.write(&sb)
	return sb.String()
}

func (e *Expression) write(sb *strings.Builder) {
	if e.IsLeaf() {
		sb.WriteString(strconv.FormatInt(e.Value, 10))
		return
	}
	writeOperand(sb, e.Left, e.Op, false)
	sb.WriteByte(' ')
	sb.WriteString(e.Op.String())
	sb.WriteByte(' ')
	writeOperand(sb, e.Right, e.Op, true)
}

func writeOperand(sb *strings.Builder, child *Expression, parent Operator, right bool) {
	if needsParens(child, parent, right) {
		sb.WriteByte('(')
		child.write(sb)
		sb.WriteByte(')')
		return
	}
	child.write(sb)
}

func precedence(op Operator) int {
	switch op {
	case Add, Subtract:
		return 1
	case Multiply, Divide, Modulo:
		return 2
	case Exponent:
		return 3
	default:
		return 0
	}
}

// needsParens: lower precedence always; equal precedence on the left of ^
// (right-associative) or on the right of anything except the same
// commutative operator.
func needsParens(child *Expression, parent Operator, right bool) bool {
	if child.IsLeaf() {
		return false
	}
	cp, pp := precedence(child.Op), precedence(parent)
	switch {
	case cp < pp:
		return true
	case cp > pp:
		return false
	case parent == Exponent:
		return !right
	case !right:
		return false
	}
	info, _ := Lookup(parent)
	return !(child.Op == parent && info.Commutative)
}
