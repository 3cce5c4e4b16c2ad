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
	"strings"
)

// MaxValue is the largest result an operator may produce. Anything above it
// is treated as not produced.
const MaxValue int64 = 1<<31 - 1

// -----------------------------------------------------------------------------
// Operator
// -----------------------------------------------------------------------------

// Operator identifies a binary arithmetic operator.
type Operator int

const (
	// Add is a + b.
	Add Operator = iota + 1

	// Multiply is a * b.
	Multiply

	// Subtract is a - b.
	Subtract

	// Divide is floor(a / b) for a positive divisor.
	Divide

	// Modulo is a % b for a positive divisor.
	Modulo

	// Exponent is a ^ b for a non-negative exponent.
	Exponent
)

// OperatorInfo describes one registry entry.
type OperatorInfo struct {
	// Op is the operator identifier.
	Op Operator

	// Name is the lowercase identifier used in config files and APIs.
	Name string

	// Label is the symbol used when rendering expressions.
	Label string

	// Commutative operators get their operands sorted in derivation keys.
	Commutative bool

	// Evaluate applies the operator. The bool is false when the result is
	// outside the operator's domain or above MaxValue.
	Evaluate func(a, b int64) (int64, bool)
}

var registry = [...]OperatorInfo{
	Add:      {Op: Add, Name: "add", Label: "+", Commutative: true, Evaluate: add},
	Multiply: {Op: Multiply, Name: "multiply", Label: "*", Commutative: true, Evaluate: multiply},
	Subtract: {Op: Subtract, Name: "subtract", Label: "-", Evaluate: subtract},
	Divide:   {Op: Divide, Name: "divide", Label: "/", Evaluate: divide},
	Modulo:   {Op: Modulo, Name: "modulo", Label: "%", Evaluate: modulo},
	Exponent: {Op: Exponent, Name: "exponent", Label: "^", Evaluate: power},
}

// aliases maps extra spellings accepted by ParseOperator.
var aliases = map[string]Operator{
	"plus":  Add,
	"sum":   Add,
	"mul":   Multiply,
	"times": Multiply,
	"x":     Multiply,
	"sub":   Subtract,
	"minus": Subtract,
	"div":   Divide,
	"mod":   Modulo,
	"pow":   Exponent,
	"**":    Exponent,
}

// Lookup returns the registry entry for op.
//
// Outputs:
//   - OperatorInfo: The entry. Zero value when ok is false.
//   - bool: False if op is not a registered operator.
func Lookup(op Operator) (OperatorInfo, bool) {
	if !op.Valid() {
		return OperatorInfo{}, false
	}
	return registry[op], true
}

// AllOperators returns every registered operator in identifier order.
func AllOperators() []Operator {
	return []Operator{Add, Multiply, Subtract, Divide, Modulo, Exponent}
}

// ParseOperator resolves a name, label or alias to an Operator.
//
// Description:
//
//	Matching is case-insensitive and ignores surrounding whitespace.
//	"add", "+" and "plus" all resolve to Add.
//
// Inputs:
//   - s: The text to resolve.
//
// Outputs:
//   - Operator: The resolved operator.
//   - error: Wraps ErrUnknownOperator if nothing matches.
func ParseOperator(s string) (Operator, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, op := range AllOperators() {
		info := registry[op]
		if key == info.Name || key == info.Label {
			return op, nil
		}
	}
	if op, ok := aliases[key]; ok {
		return op, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOperator, s)
}

// Valid reports whether op is a registered operator.
func (op Operator) Valid() bool {
	return op >= Add && op <= Exponent
}

// String returns the operator label, or "?" for unknown operators.
func (op Operator) String() string {
	if !op.Valid() {
		return "?"
	}
	return registry[op].Label
}

// Name returns the lowercase identifier, or "unknown".
func (op Operator) Name() string {
	if !op.Valid() {
		return "unknown"
	}
	return registry[op].Name
}

// MarshalText encodes the operator by name.
func (op Operator) MarshalText() ([]byte, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOperator, int(op))
	}
	return []byte(registry[op].Name), nil
}

// UnmarshalText accepts anything ParseOperator accepts.
func (op *Operator) UnmarshalText(text []byte) error {
	parsed, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

// -----------------------------------------------------------------------------
// Evaluation
// -----------------------------------------------------------------------------

// inRange keeps every intermediate product inside int64.
func inRange(x int64) bool {
	return x >= -MaxValue && x <= MaxValue
}

func clamp(r int64) (int64, bool) {
	if r > MaxValue {
		return 0, false
	}
	return r, true
}

func add(a, b int64) (int64, bool) {
	if !inRange(a) || !inRange(b) {
		return 0, false
	}
	return clamp(a + b)
}

func multiply(a, b int64) (int64, bool) {
	if !inRange(a) || !inRange(b) {
		return 0, false
	}
	return clamp(a * b)
}

func subtract(a, b int64) (int64, bool) {
	if !inRange(a) || !inRange(b) {
		return 0, false
	}
	return clamp(a - b)
}

// divide floors the quotient, so -7 / 2 is -4.
func divide(a, b int64) (int64, bool) {
	if b <= 0 || !inRange(a) || !inRange(b) {
		return 0, false
	}
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return clamp(q)
}

// modulo uses Go remainder semantics: the sign follows the dividend.
func modulo(a, b int64) (int64, bool) {
	if b <= 0 || !inRange(a) || !inRange(b) {
		return 0, false
	}
	return a % b, true
}

// power is exponentiation by squaring with an early exit once either the
// accumulator or the running base leaves the valid range.
func power(a, b int64) (int64, bool) {
	if b < 0 || !inRange(a) || !inRange(b) {
		return 0, false
	}
	result := int64(1)
	base := a
	for b > 0 {
		if b&1 == 1 {
			result *= base
			if !inRange(result) {
				return 0, false
			}
		}
		b >>= 1
		if b > 0 {
			base *= base
			if !inRange(base) {
				return 0, false
			}
		}
	}
	return clamp(result)
}
