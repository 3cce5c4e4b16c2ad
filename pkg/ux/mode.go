// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Mode defines how richly the CLI renders output.
type Mode string

const (
	// ModeRich enables colors, boxes and live progress.
	ModeRich Mode = "rich"

	// ModePlain keeps icons and layout but never redraws lines.
	ModePlain Mode = "plain"

	// ModeMachine outputs tab-separated text suitable for scripting.
	ModeMachine Mode = "machine"
)

// ParseMode converts a string to Mode. Unknown names give ModePlain.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rich", "full", "r":
		return ModeRich
	case "machine", "quiet", "q", "tsv":
		return ModeMachine
	default:
		return ModePlain
	}
}

// DetectMode picks the mode for w.
//
// Description:
//
//	COUNTDOWN_OUTPUT wins when set. Otherwise a terminal gets ModeRich and
//	anything else (pipes, files, buffers) gets ModeMachine.
func DetectMode(w io.Writer) Mode {
	if env := os.Getenv("COUNTDOWN_OUTPUT"); env != "" {
		return ParseMode(env)
	}
	if IsTerminal(w) {
		return ModeRich
	}
	return ModeMachine
}

// IsTerminal reports whether w is a terminal, including Cygwin/MSYS ptys.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ShowsLiveProgress reports whether m redraws progress in place.
func (m Mode) ShowsLiveProgress() bool {
	return m == ModeRich
}
