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

import "errors"

// Sentinel errors for the countdown service.
var (
	// ErrSearchNotFound indicates the requested search ID doesn't exist.
	ErrSearchNotFound = errors.New("search not found")

	// ErrServiceClosed indicates the service no longer accepts searches.
	ErrServiceClosed = errors.New("countdown service closed")

	// ErrInvalidRequest indicates a solve request failed validation.
	ErrInvalidRequest = errors.New("invalid solve request")

	// ErrTooManySearches indicates the running search limit was reached.
	ErrTooManySearches = errors.New("too many running searches")

	// ErrHistoryDisabled indicates history was requested but is not configured.
	ErrHistoryDisabled = errors.New("search history disabled")

	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid countdown config")
)
