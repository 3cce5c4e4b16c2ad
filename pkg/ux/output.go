// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders countdown CLI output: solutions, tables and live
// progress, styled with lipgloss on terminals and plain text elsewhere.
package ux

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // titles
	ColorTealDeep    = lipgloss.Color("#16858E") // borders
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box        lipgloss.Style
	WarningBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Printer writes styled output for one mode.
//
// Thread Safety: Not safe for concurrent use; the CLI prints from one
// goroutine.
type Printer struct {
	out  io.Writer
	err  io.Writer
	mode Mode
}

// NewPrinter creates a printer. Machine-mode warnings and errors go to errOut.
func NewPrinter(out, errOut io.Writer, mode Mode) *Printer {
	return &Printer{out: out, err: errOut, mode: mode}
}

// Mode returns the printer's mode.
func (p *Printer) Mode() Mode {
	return p.mode
}

// Out returns the primary writer.
func (p *Printer) Out() io.Writer {
	return p.out
}

// Title prints a styled title
func (p *Printer) Title(text string) {
	if p.mode == ModeMachine {
		return
	}
	fmt.Fprintln(p.out, Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.out, "OK: %s\n", text)
	default:
		fmt.Fprintf(p.out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.err, "WARN: %s\n", text)
	default:
		fmt.Fprintf(p.out, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message
func (p *Printer) Error(text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.err, "ERROR: %s\n", text)
	default:
		fmt.Fprintf(p.out, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational message
func (p *Printer) Info(text string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintln(p.out, text)
	default:
		fmt.Fprintf(p.out, "%s %s\n", Styles.Muted.Render("│"), text)
	}
}

// Box prints text in a rounded box
func (p *Printer) Box(title, content string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.out, "%s: %s\n", title, content)
		return
	}
	fmt.Fprintln(p.out, Styles.Box.Render(Styles.Title.Render(title)+"\n"+content))
}

// SolutionView is what the CLI shows for one finished search.
type SolutionView struct {
	Target      int64
	State       string
	Depth       int
	Count       int64
	Expressions []string
	Elapsed     time.Duration
}

// Solution prints a finished search.
//
// Description:
//
//	Machine mode prints one RESULT line followed by one EXPR line per
//	expression, tab-separated. Other modes print a box with the target as
//	title, a stats line and "target = expression" lines.
func (p *Printer) Solution(v SolutionView) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.out, "RESULT\ttarget=%d\tstate=%s\tdepth=%d\tcount=%d\telapsed=%s\n",
			v.Target, v.State, v.Depth, v.Count, v.Elapsed.Round(time.Millisecond))
		for _, e := range v.Expressions {
			fmt.Fprintf(p.out, "EXPR\t%d\t%s\n", v.Target, e)
		}
		return
	}

	if len(v.Expressions) == 0 {
		body := fmt.Sprintf("%s after depth %d (%s)",
			v.State, v.Depth, v.Elapsed.Round(time.Millisecond))
		fmt.Fprintln(p.out, Styles.WarningBox.Render(
			Styles.Warning.Bold(true).Render(fmt.Sprintf("%d not reached", v.Target))+"\n"+body))
		return
	}

	stats := Styles.Muted.Render(fmt.Sprintf("depth %d · %d trees · %s",
		v.Depth, v.Count, v.Elapsed.Round(time.Millisecond)))
	lines := make([]string, 0, len(v.Expressions)+1)
	lines = append(lines, stats)
	for _, e := range v.Expressions {
		lines = append(lines, fmt.Sprintf("%s %s", IconArrow.Render(), Styles.Highlight.Render(fmt.Sprintf("%d = %s", v.Target, e))))
	}
	fmt.Fprintln(p.out, Styles.Box.Render(
		Styles.Title.Render(fmt.Sprintf("%d", v.Target))+"\n"+strings.Join(lines, "\n")))
}

// Table prints rows with aligned columns. Machine mode separates with tabs.
func (p *Printer) Table(header []string, rows [][]string) {
	if p.mode == ModeMachine {
		for _, row := range rows {
			fmt.Fprintln(p.out, strings.Join(row, "\t"))
		}
		return
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	render := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			w := 0
			if i < len(widths) {
				w = widths[i]
			}
			parts[i] = style.Width(w).Render(cell)
		}
		return strings.Join(parts, "  ")
	}

	fmt.Fprintln(p.out, render(header, Styles.Bold))
	for _, row := range rows {
		fmt.Fprintln(p.out, render(row, lipgloss.NewStyle()))
	}
}

// ProgressBar renders a progress bar for a percentage in [0, 100].
func (p *Printer) ProgressBar(percent float64, width int) string {
	if p.mode == ModeMachine {
		return fmt.Sprintf("%.2f%%", percent)
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * float64(width))
	bar := Styles.Success.Render(strings.Repeat("█", filled)) +
		Styles.Muted.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %6.2f%%", bar, percent)
}
