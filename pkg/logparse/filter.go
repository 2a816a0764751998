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

package logparse

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Filter defaults.
const (
	DefaultMinLength       = 12
	DefaultMaxPlaceholders = 12
	DefaultMaxRepeat       = 6
)

// Rejection reasons reported by Filter.Check.
const (
	RejectTooShort      = "too_short"
	RejectNoLetters     = "no_letters"
	RejectKeywordPrefix = "keyword_prefix"
	RejectCommentPrefix = "comment_prefix"
	RejectPlaceholders  = "too_many_placeholders"
	RejectRepeatedRun   = "repeated_run"
)

var (
	keywordPrefix = regexp.MustCompile(`^\s*(static|#include|#define|#if|#endif)`)
	commentPrefix = regexp.MustCompile(`^\s*(//|\*)`)
)

// Filter rejects templates that are unlikely to be real log messages.
type Filter struct {
	// MinLength is the minimum length in runes, not counting "{}" markers.
	MinLength int
	// MaxPlaceholders caps the number of "{}" markers.
	MaxPlaceholders int
	// MaxRepeat rejects any run of this many identical non-space runes.
	// Zero disables the check.
	MaxRepeat int
}

// NewFilter returns a filter with the default thresholds.
func NewFilter() *Filter {
	return &Filter{
		MinLength:       DefaultMinLength,
		MaxPlaceholders: DefaultMaxPlaceholders,
		MaxRepeat:       DefaultMaxRepeat,
	}
}

// Accept reports whether the template passes every check.
func (f *Filter) Accept(template string) bool {
	return f.Check(template) == ""
}

// Check returns the first failed check, or "" when the template is accepted.
func (f *Filter) Check(template string) string {
	if utf8.RuneCountInString(strings.ReplaceAll(template, "{}", "")) < f.MinLength {
		return RejectTooShort
	}
	if !hasLetter(template) {
		return RejectNoLetters
	}
	if keywordPrefix.MatchString(template) {
		return RejectKeywordPrefix
	}
	if commentPrefix.MatchString(template) {
		return RejectCommentPrefix
	}
	if strings.Count(template, "{}") > f.MaxPlaceholders {
		return RejectPlaceholders
	}
	if f.MaxRepeat > 0 && longestRun(template) >= f.MaxRepeat {
		return RejectRepeatedRun
	}
	return ""
}

// hasLetter reports whether s has a letter other than x, which alone
// mostly shows up in hex dumps.
func hasLetter(s string) bool {
	for _, r := range strings.ReplaceAll(s, "{}", "") {
		if unicode.IsLetter(r) && r != 'x' && r != 'X' {
			return true
		}
	}
	return false
}

func longestRun(s string) int {
	longest, run := 0, 0
	var prev rune = -1
	for _, r := range s {
		if r == prev && !unicode.IsSpace(r) {
			run++
		} else {
			run = 1
		}
		prev = r
		if run > longest {
			longest = run
		}
	}
	return longest
}
