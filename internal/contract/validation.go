// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package contract

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultSoftLimitBytes is the baseline soft limit for one stored record.
	DefaultSoftLimitBytes = 64 << 10 // 64 KiB

	// RunIDMaxBytes is the maximum length for the run_id field.
	RunIDMaxBytes = 128
)

// SoftLimitBytes returns the effective soft limit for a record.
// Controlled via env LOGMINE_SOFT_LIMIT_BYTES; falls back to DefaultSoftLimitBytes.
func SoftLimitBytes() int {
	if v := os.Getenv("LOGMINE_SOFT_LIMIT_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultSoftLimitBytes
}

// ValidationResult represents the result of a validation check.
type ValidationResult struct {
	OK      bool
	Message string
}

// Record is the part of a template row the contract cares about. Parsed
// is the template before typing; its "{}" markers are the placeholders.
// Types, when set, holds one type per argument.
type Record struct {
	Template  string
	Parsed    string
	Arguments []string
	Types     []string
	Raw       string
	RunID     string
}

// CountPlaceholders counts the "{}" markers in a parsed template. Braces
// around text, as in "/users/{id}", are literal message text.
func CountPlaceholders(parsed string) int {
	return strings.Count(parsed, "{}")
}

// ValidateRecord checks a record before it is persisted. A limit of zero
// or less uses SoftLimitBytes.
func ValidateRecord(r Record, limit int) *ValidationResult {
	if limit <= 0 {
		limit = SoftLimitBytes()
	}
	switch {
	case strings.TrimSpace(r.Template) == "":
		return fail("template is empty")
	case strings.TrimSpace(r.Parsed) == "":
		return fail("parsed template is empty")
	case strings.TrimSpace(r.Raw) == "":
		return fail("raw statement is empty")
	case !utf8.ValidString(r.Template) || !utf8.ValidString(r.Parsed) || !utf8.ValidString(r.Raw):
		return fail("record is not valid UTF-8")
	case len(r.RunID) > RunIDMaxBytes:
		return fail(fmt.Sprintf("run_id exceeds %d bytes", RunIDMaxBytes))
	}
	for i, arg := range r.Arguments {
		if !utf8.ValidString(arg) {
			return fail(fmt.Sprintf("argument %d is not valid UTF-8", i))
		}
	}
	if n := CountPlaceholders(r.Parsed); n != len(r.Arguments) {
		return fail(fmt.Sprintf("template has %d placeholders but %d arguments", n, len(r.Arguments)))
	}
	if r.Types != nil && len(r.Types) != len(r.Arguments) {
		return fail(fmt.Sprintf("%d types for %d arguments", len(r.Types), len(r.Arguments)))
	}
	size := len(r.Template) + len(r.Raw)
	for _, arg := range r.Arguments {
		size += len(arg)
	}
	if size > limit {
		return fail(fmt.Sprintf("record is %d bytes, over the %d byte limit", size, limit))
	}
	return &ValidationResult{OK: true}
}

func fail(msg string) *ValidationResult {
	return &ValidationResult{OK: false, Message: msg}
}
