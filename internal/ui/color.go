// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui provides terminal output helpers for the logmine CLI.
//
// Colors follow the --no-color flag and the NO_COLOR environment variable.
//
// Color usage:
//   - Red: errors, failed repositories
//   - Yellow: warnings, skipped files
//   - Green: success, stored templates
//   - Cyan: counts and template placeholders
//   - Bold: headers and labels
//   - Dim: paths, ids, secondary details
package ui

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/fatih/color"
)

var (
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Green  = color.New(color.FgGreen)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// Output is where the message helpers write. Tests swap it for a buffer.
var Output io.Writer = color.Output

// InitColors configures global color output. Call it right after flag
// parsing.
func InitColors(noColor bool) {
	color.NoColor = noColor
}

// Success prints "✓ msg" in green.
func Success(msg string) {
	_, _ = Green.Fprintln(Output, "✓ "+msg)
}

func Successf(format string, args ...any) {
	_, _ = Green.Fprintf(Output, "✓ "+format+"\n", args...)
}

// Warning prints "⚠ msg" in yellow.
func Warning(msg string) {
	_, _ = Yellow.Fprintln(Output, "⚠ "+msg)
}

func Warningf(format string, args ...any) {
	_, _ = Yellow.Fprintf(Output, "⚠ "+format+"\n", args...)
}

// Error prints "✗ msg" in red.
func Error(msg string) {
	_, _ = Red.Fprintln(Output, "✗ "+msg)
}

func Errorf(format string, args ...any) {
	_, _ = Red.Fprintf(Output, "✗ "+format+"\n", args...)
}

// Info prints "ℹ msg" in cyan.
func Info(msg string) {
	_, _ = Cyan.Fprintln(Output, "ℹ "+msg)
}

func Infof(format string, args ...any) {
	_, _ = Cyan.Fprintf(Output, "ℹ "+format+"\n", args...)
}

// Header prints a bold header underlined with "=".
func Header(text string) {
	_, _ = Bold.Fprintln(Output, text)
	fmt.Fprintln(Output, strings.Repeat("=", len([]rune(text))))
}

func SubHeader(text string) {
	_, _ = Bold.Fprintln(Output, text)
}

// Field prints an indented "label value" line.
func Field(label string, value any) {
	fmt.Fprintf(Output, "  %s %v\n", Label(label), value)
}

func Label(text string) string {
	return Bold.Sprint(text)
}

func DimText(text string) string {
	return Dim.Sprint(text)
}

func CountText(count int) string {
	return Cyan.Sprint(count)
}

// Percent renders part/total as "12.5%". A zero total is "0.0%".
func Percent(part, total int) string {
	if total <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
}

var placeholderRe = regexp.MustCompile(`\{[A-Za-z0-9_]*\}`)

// Template highlights the placeholders of a log template.
func Template(t string) string {
	return placeholderRe.ReplaceAllStringFunc(t, func(p string) string {
		return Cyan.Sprint(p)
	})
}

// Counts prints a titled breakdown such as skip or filter reasons, largest
// first and ties by name. Nothing is printed for an empty map.
func Counts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	SubHeader(title)
	for _, k := range keys {
		fmt.Fprintf(Output, "  %-16s %s\n", k, CountText(counts[k]))
	}
}
