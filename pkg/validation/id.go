// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for identifiers
// that end up in storage keys.
//
// Search and history IDs arrive from URLs and command arguments and are
// embedded in BadgerDB keys. Only canonical UUIDs are accepted so a caller
// cannot address keys outside the history prefix.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidID is returned for identifiers that are not canonical UUIDs.
var ErrInvalidID = errors.New("invalid id")

// canonicalLen is the length of the hyphenated UUID form.
const canonicalLen = 36

// ValidateID validates a search or history identifier.
//
// Valid IDs are lowercase hyphenated UUIDs such as
// "0190f5b2-7c1e-7d3a-9f4e-2b8c6a1d0e5f". Braced, URN and unhyphenated
// forms accepted by uuid.Parse are rejected.
//
// Example:
//
//	if err := validation.ValidateID(id); err != nil {
//	    return fmt.Errorf("history lookup: %w", err)
//	}
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidID)
	}
	if len(id) != canonicalLen || strings.ToLower(id) != id {
		return fmt.Errorf("%w: %q (must be a lowercase hyphenated UUID)", ErrInvalidID, id)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidID, id, err)
	}
	return nil
}

// ValidateIDs validates multiple identifiers.
// Returns an error listing all invalid IDs if any fail validation.
func ValidateIDs(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateID(id); err != nil {
			invalid = append(invalid, id)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("%w: %q", ErrInvalidID, invalid)
	}
	return nil
}

// SanitizeID normalizes and validates an identifier typed by a user.
// Returns the lowercase ID if valid, or an error if invalid.
func SanitizeID(id string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(id))
	if err := ValidateID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
