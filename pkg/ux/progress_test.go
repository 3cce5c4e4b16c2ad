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
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards a strings.Builder for the redraw goroutine.
type syncBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

func TestLiveProgress_Line(t *testing.T) {
	p, _, _ := newTestPrinter(ModeMachine)
	live := p.NewLiveProgress()

	live.Update("100", 1, 10)
	live.Update("250", 2, 50)
	live.Update("100", 2, 75)

	line := live.Line()
	if !strings.Contains(line, "100 d2 75.00%") {
		t.Errorf("line missing updated entry: %q", line)
	}
	if !strings.Contains(line, "250 d2 50.00%") {
		t.Errorf("line missing second entry: %q", line)
	}
	if strings.Index(line, "100") > strings.Index(line, "250") {
		t.Errorf("entries should keep insertion order: %q", line)
	}

	live.Remove("100")
	live.Remove("missing")
	if strings.Contains(live.Line(), "100 d") {
		t.Errorf("removed entry still shown: %q", live.Line())
	}
}

func TestLiveProgress_NoRedrawOutsideRich(t *testing.T) {
	p, out, _ := newTestPrinter(ModePlain)
	live := p.NewLiveProgress()
	live.Start()
	live.Update("7", 1, 50)
	live.Stop()

	if out.Len() != 0 {
		t.Errorf("plain mode should not redraw, wrote %q", out.String())
	}
}

func TestLiveProgress_RedrawAndPrint(t *testing.T) {
	var buf syncBuffer
	p := NewPrinter(&buf, &buf, ModeRich)
	live := p.NewLiveProgress()
	live.interval = 5 * time.Millisecond

	live.Update("42", 3, 20)
	live.Start()
	live.Start()

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(buf.String(), "42 d3") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !strings.Contains(buf.String(), "42 d3") {
		t.Fatalf("live line never drawn: %q", buf.String())
	}

	live.Print(func() { p.Info("finished 42") })
	live.Stop()
	live.Stop()

	if !strings.Contains(buf.String(), "finished 42") {
		t.Errorf("Print output missing: %q", buf.String())
	}
	if !strings.HasSuffix(buf.String(), "\r\033[K") {
		t.Errorf("Stop should clear the line, got tail %q", buf.String())
	}
}
