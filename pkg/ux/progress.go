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
	"fmt"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// progressEntry is one tracked search on the live line.
type progressEntry struct {
	key     string
	depth   int
	percent float64
}

// LiveProgress redraws a single status line for any number of running
// searches. Outside ModeRich it only records updates.
//
// Thread Safety: Update and Remove are safe to call from search callbacks
// while the redraw goroutine runs.
type LiveProgress struct {
	printer  *Printer
	interval time.Duration

	// writeMu serializes terminal writes between the redraw goroutine
	// and Print.
	writeMu sync.Mutex

	mu      sync.Mutex
	entries []progressEntry
	running bool
	frame   int
	stop    chan struct{}
	done    chan struct{}
}

// NewLiveProgress creates a live progress line bound to p.
func (p *Printer) NewLiveProgress() *LiveProgress {
	return &LiveProgress{
		printer:  p,
		interval: 80 * time.Millisecond,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Update sets the depth and percentage shown for key.
func (l *LiveProgress) Update(key string, depth int, percent float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		if l.entries[i].key == key {
			l.entries[i].depth = depth
			l.entries[i].percent = percent
			return
		}
	}
	l.entries = append(l.entries, progressEntry{key: key, depth: depth, percent: percent})
}

// Remove drops key from the line.
func (l *LiveProgress) Remove(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		if l.entries[i].key == key {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return
		}
	}
}

// Line renders the current status line without the spinner frame.
func (l *LiveProgress) Line() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	parts := make([]string, len(l.entries))
	for i, e := range l.entries {
		parts[i] = fmt.Sprintf("%s d%d %s", e.key, e.depth, l.printer.ProgressBar(e.percent, 12))
	}
	return strings.Join(parts, Styles.Muted.Render(" │ "))
}

// Start begins redrawing. It does nothing outside ModeRich.
func (l *LiveProgress) Start() {
	l.mu.Lock()
	if l.running || !l.printer.mode.ShowsLiveProgress() {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	go func() {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			select {
			case <-l.stop:
				// Clear the progress line
				l.writeMu.Lock()
				fmt.Fprint(l.printer.out, "\r\033[K")
				l.writeMu.Unlock()
				close(l.done)
				return
			case <-ticker.C:
				frame := Styles.Highlight.Render(spinnerFrames[l.frame])
				line := l.Line()
				l.writeMu.Lock()
				fmt.Fprintf(l.printer.out, "\r\033[K%s %s", frame, line)
				l.writeMu.Unlock()
				l.frame = (l.frame + 1) % len(spinnerFrames)
			}
		}
	}()
}

// Print clears the live line and runs fn, which writes through the printer.
// The line is redrawn on the next tick.
func (l *LiveProgress) Print(fn func()) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	l.mu.Lock()
	running := l.running
	l.mu.Unlock()
	if running {
		fmt.Fprint(l.printer.out, "\r\033[K")
	}
	fn()
}

// Stop halts redrawing and clears the line. Safe to call more than once;
// a stopped LiveProgress cannot be restarted.
func (l *LiveProgress) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.mu.Unlock()

	close(l.stop)
	<-l.done
}
