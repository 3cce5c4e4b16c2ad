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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperator_Evaluate(t *testing.T) {
	tests := []struct {
		name   string
		op     Operator
		a, b   int64
		want   int64
		wantOK bool
	}{
		{"add", Add, 2, 3, 5, true},
		{"add overflow", Add, MaxValue, 1, 0, false},
		{"add at max", Add, MaxValue - 1, 1, MaxValue, true},
		{"multiply", Multiply, 6, 7, 42, true},
		{"multiply overflow", Multiply, 1 << 16, 1 << 16, 0, false},
		{"subtract", Subtract, 9, 4, 5, true},
		{"subtract negative", Subtract, 4, 9, -5, true},
		{"divide exact", Divide, 12, 4, 3, true},
		{"divide floors", Divide, 7, 2, 3, true},
		{"divide floors negative", Divide, -7, 2, -4, true},
		{"divide by zero", Divide, 7, 0, 0, false},
		{"divide by negative", Divide, 7, -1, 0, false},
		{"modulo", Modulo, 17, 5, 2, true},
		{"modulo negative dividend", Modulo, -7, 3, -1, true},
		{"modulo by zero", Modulo, 5, 0, 0, false},
		{"exponent", Exponent, 2, 10, 1024, true},
		{"exponent zero", Exponent, 9, 0, 1, true},
		{"exponent of one", Exponent, 1, 1 << 30, 1, true},
		{"exponent at max", Exponent, 2, 30, 1 << 30, true},
		{"exponent overflow", Exponent, 2, 31, 0, false},
		{"exponent large base", Exponent, 50000, 2, 0, false},
		{"exponent negative", Exponent, 2, -1, 0, false},
		{"exponent negative base", Exponent, -3, 3, -27, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := Lookup(tt.op)
			require.True(t, ok)

			got, gotOK := info.Evaluate(tt.a, tt.b)
			assert.Equal(t, tt.wantOK, gotOK)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	t.Run("commutativity", func(t *testing.T) {
		for _, op := range AllOperators() {
			info, ok := Lookup(op)
			require.True(t, ok)
			assert.Equal(t, op, info.Op)
			assert.Equal(t, op == Add || op == Multiply, info.Commutative, op.Name())
		}
	})

	t.Run("unknown", func(t *testing.T) {
		_, ok := Lookup(Operator(0))
		assert.False(t, ok)
		_, ok = Lookup(Operator(42))
		assert.False(t, ok)
	})
}

func TestParseOperator(t *testing.T) {
	tests := []struct {
		in      string
		want    Operator
		wantErr bool
	}{
		{"add", Add, false},
		{"+", Add, false},
		{" Plus ", Add, false},
		{"*", Multiply, false},
		{"x", Multiply, false},
		{"-", Subtract, false},
		{"minus", Subtract, false},
		{"/", Divide, false},
		{"%", Modulo, false},
		{"mod", Modulo, false},
		{"^", Exponent, false},
		{"**", Exponent, false},
		{"EXPONENT", Exponent, false},
		{"", 0, true},
		{"sqrt", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOperator(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownOperator)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOperator_String(t *testing.T) {
	assert.Equal(t, "+", Add.String())
	assert.Equal(t, "^", Exponent.String())
	assert.Equal(t, "?", Operator(99).String())
	assert.Equal(t, "divide", Divide.Name())
	assert.Equal(t, "unknown", Operator(0).Name())
}

func TestOperator_JSON(t *testing.T) {
	data, err := json.Marshal([]Operator{Add, Exponent})
	require.NoError(t, err)
	assert.JSONEq(t, `["add","exponent"]`, string(data))

	var ops []Operator
	require.NoError(t, json.Unmarshal([]byte(`["+","times","pow"]`), &ops))
	assert.Equal(t, []Operator{Add, Multiply, Exponent}, ops)

	err = json.Unmarshal([]byte(`["root"]`), &ops)
	assert.ErrorIs(t, err, ErrUnknownOperator)

	_, err = json.Marshal(Operator(0))
	assert.Error(t, err)
}
