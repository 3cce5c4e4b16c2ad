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

import "errors"

var (
	// ErrInvalidTarget is returned when the target is not in (0, MaxValue].
	ErrInvalidTarget = errors.New("target must be a positive integer not above the maximum value")

	// ErrInvalidValue is returned when a source value is not positive.
	ErrInvalidValue = errors.New("source values must be positive integers")

	// ErrUnknownOperator is returned for operator identifiers outside the registry.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrInvalidMaxDepth is returned when MaxDepth is negative.
	ErrInvalidMaxDepth = errors.New("max depth must be >= 0")
)
