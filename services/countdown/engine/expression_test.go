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
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bin(op Operator, l, r *Expression) *Expression {
	info, _ := Lookup(op)
	v, _ := info.Evaluate(l.Value, r.Value)
	return Node(op, l, r, v)
}

func TestExpression_String(t *testing.T) {
	one, two, three, four := Leaf(1), Leaf(2), Leaf(3), Leaf(4)

	tests := []struct {
		name string
		expr *Expression
		want string
	}{
		{"leaf", three, "3"},
		{"flat", bin(Add, one, two), "1 + 2"},
		{"sum times", bin(Multiply, bin(Add, one, two), three), "(1 + 2) * 3"},
		{"times plus", bin(Add, bin(Multiply, one, two), three), "1 * 2 + 3"},
		{"left assoc subtract", bin(Subtract, bin(Subtract, four, two), one), "4 - 2 - 1"},
		{"right subtract", bin(Subtract, four, bin(Subtract, three, one)), "4 - (3 - 1)"},
		{"right add of add", bin(Add, one, bin(Add, two, three)), "1 + 2 + 3"},
		{"right add under subtract", bin(Subtract, four, bin(Add, one, two)), "4 - (1 + 2)"},
		{"right divide under multiply", bin(Multiply, four, bin(Divide, three, two)), "4 * (3 / 2)"},
		{"power of power right", bin(Exponent, two, bin(Exponent, two, three)), "2 ^ 2 ^ 3"},
		{"power of power left", bin(Exponent, bin(Exponent, two, two), three), "(2 ^ 2) ^ 3"},
		{"power of sum", bin(Exponent, bin(Add, one, two), two), "(1 + 2) ^ 2"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.expr.String())
		})
	}
}

func TestExpression_Eval(t *testing.T) {
	e := bin(Multiply, bin(Add, Leaf(1), Leaf(9)), Leaf(10))
	v, ok := e.Eval()
	require.True(t, ok)
	assert.Equal(t, int64(100), v)
	assert.Equal(t, 2, e.Ops())
	assert.Equal(t, []int64{1, 9, 10}, e.Leaves())

	bad := Node(Divide, Leaf(1), Leaf(0), 0)
	_, ok = bad.Eval()
	assert.False(t, ok)

	var nilExpr *Expression
	_, ok = nilExpr.Eval()
	assert.False(t, ok)
}

func TestExpression_JSON(t *testing.T) {
	e := bin(Add, Leaf(2), Leaf(3))
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":5,"op":"add","left":{"value":2},"right":{"value":3}}`, string(data))
}

func TestIndex_Expressions(t *testing.T) {
	ix := NewIndex([]int64{2, 3, 4})
	ix.Record(2, Add, 3, 5)
	ix.Record(3, Add, 4, 7)
	ix.Record(2, Multiply, 3, 6)
	ix.Record(6, Add, 5, 11)

	t.Run("source leaf", func(t *testing.T) {
		got := Collect(ix.Expressions(3), 0)
		require.Len(t, got, 1)
		assert.True(t, got[0].IsLeaf())
	})

	t.Run("unknown yields nothing", func(t *testing.T) {
		assert.Empty(t, Collect(ix.Expressions(1000), 0))
		assert.Zero(t, ix.CountExpressions(1000))
	})

	t.Run("nested", func(t *testing.T) {
		got := Collect(ix.Expressions(11), 0)
		require.Len(t, got, 1)
		assert.Equal(t, "2 + 3 + 2 * 3", got[0].String())
		assert.Equal(t, "2 + 3", got[0].Left.String())
		assert.Equal(t, "2 * 3", got[0].Right.String())
		v, ok := got[0].Eval()
		require.True(t, ok)
		assert.Equal(t, int64(11), v)
	})

	t.Run("idempotent", func(t *testing.T) {
		first := Collect(ix.Expressions(11), 0)
		second := Collect(ix.Expressions(11), 0)
		require.Equal(t, len(first), len(second))
		for i := range first {
			assert.Equal(t, first[i].String(), second[i].String())
		}
	})
}

func TestIndex_ExpressionsCrossProduct(t *testing.T) {
	// 9 has two derivations at depth 1; 18 = 9 + 9 expands to 2 x 2 trees.
	ix := NewIndex([]int64{3, 4, 5, 6})
	ix.Record(3, Multiply, 3, 9)
	ix.Record(4, Add, 5, 9)
	ix.Record(9, Add, 9, 18)

	d, _ := ix.Depth(18)
	require.Equal(t, 3, d)
	assert.Equal(t, int64(4), ix.CountExpressions(18))

	var got []string
	for e := range ix.Expressions(18) {
		got = append(got, e.String())
		assert.Equal(t, 3, e.Ops())
	}
	assert.Equal(t, []string{
		"3 * 3 + 3 * 3",
		"3 * 3 + 4 + 5",
		"4 + 5 + 3 * 3",
		"4 + 5 + 4 + 5",
	}, got)

	assert.Len(t, Collect(ix.Expressions(18), 3), 3)

	n := 0
	for range ix.Expressions(18) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestSaturatingArithmetic(t *testing.T) {
	assert.Equal(t, int64(math.MaxInt64), saturatingMul(math.MaxInt64/2, 3))
	assert.Equal(t, int64(math.MaxInt64), saturatingAdd(math.MaxInt64, 1))
	assert.Equal(t, int64(12), saturatingMul(3, 4))
	assert.Zero(t, saturatingMul(0, math.MaxInt64))
}
