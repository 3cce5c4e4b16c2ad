// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package countdown

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/countdown/services/countdown/engine"
)

// solveValidate is the validator instance for solve requests.
// Initialized in init() with custom validators.
var solveValidate *validator.Validate

func init() {
	solveValidate = validator.New()

	_ = solveValidate.RegisterValidation("operator", validateOperator)
}

// validateOperator accepts any name, symbol or alias ParseOperator resolves.
func validateOperator(fl validator.FieldLevel) bool {
	_, err := engine.ParseOperator(fl.Field().String())
	return err == nil
}

// DefaultValues returns the source values of the web preset: 1 to 21
// without 10.
func DefaultValues() []int64 {
	values := make([]int64, 0, 20)
	for v := int64(1); v <= 21; v++ {
		if v != 10 {
			values = append(values, v)
		}
	}
	return values
}

// DefaultOperators returns the operator set of the web preset.
func DefaultOperators() []engine.Operator {
	return []engine.Operator{engine.Add, engine.Subtract, engine.Multiply, engine.Exponent}
}

// SolveRequest asks the service to start a search.
//
// Empty Values or Operators fall back to DefaultValues and DefaultOperators.
type SolveRequest struct {
	// Target is the value to reach.
	Target int64 `json:"target" validate:"required,gt=0,lte=2147483647"`

	// Values are the source values. Duplicates are allowed.
	Values []int64 `json:"values,omitempty" validate:"omitempty,max=64,dive,gt=0,lte=2147483647"`

	// Operators are operator names, symbols or aliases ("+", "add", "plus").
	Operators []string `json:"operators,omitempty" validate:"omitempty,max=16,dive,operator"`

	// MaxDepth stops the search after this level. Zero uses the service default.
	MaxDepth int `json:"max_depth,omitempty" validate:"gte=0,lte=64"`

	// TimeLimitMs cancels the search after this many milliseconds. Zero uses
	// the service default.
	TimeLimitMs int64 `json:"time_limit_ms,omitempty" validate:"gte=0"`

	// AllowSourceReuse lets a single source value be combined with itself.
	AllowSourceReuse bool `json:"allow_source_reuse,omitempty"`
}

// EventType names what an Event reports.
type EventType string

const (
	// EventSnapshot is the first frame of a stream: the job as it is now.
	EventSnapshot EventType = "snapshot"

	// EventProgress reports a new level or the end of a slice.
	EventProgress EventType = "progress"

	// EventSolution carries the rendered best expressions.
	EventSolution EventType = "solution"

	// EventComplete reports a completed or exhausted search.
	EventComplete EventType = "complete"

	// EventCancel reports a cancelled search.
	EventCancel EventType = "cancel"
)

// Terminal reports whether no further events follow t.
func (t EventType) Terminal() bool {
	return t == EventComplete || t == EventCancel
}

// Event is published to job subscribers.
type Event struct {
	Type      EventType       `json:"type"`
	SearchID  string          `json:"search_id"`
	State     engine.State    `json:"state"`
	Progress  engine.Progress `json:"progress"`
	Percent   float64         `json:"percent"`
	Depth     int             `json:"depth,omitempty"`
	Count     int64           `json:"count,omitempty"`
	Solutions []string        `json:"solutions,omitempty"`
}

// JobSnapshot is a point-in-time view of a job.
type JobSnapshot struct {
	ID         string            `json:"id"`
	Target     int64             `json:"target"`
	Values     []int64           `json:"values"`
	Operators  []engine.Operator `json:"operators"`
	State      engine.State      `json:"state"`
	Progress   engine.Progress   `json:"progress"`
	Percent    float64           `json:"percent"`
	Depth      int               `json:"depth,omitempty"`
	Count      int64             `json:"count,omitempty"`
	Solutions  []string          `json:"solutions,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	HistoryID  string            `json:"history_id,omitempty"`
}
