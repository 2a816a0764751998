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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode"
	"unicode/utf8"
)

// DefaultBacktrackWarn is the backward-scan distance above which a span is
// reported as a possible mis-scan.
const DefaultBacktrackWarn = 64

var (
	// ErrUnbalanced is returned when the input ends before the call's
	// parentheses close.
	ErrUnbalanced = errors.New("unbalanced parentheses")

	// ErrCommentedOut is returned when the anchor sits inside a line comment.
	ErrCommentedOut = errors.New("anchor inside line comment")
)

// Statement is the exact source text of one complete logging call.
type Statement struct {
	Raw    string
	FileID string
	Start  int
	End    int
}

// Span is a half-open byte range [Start, End).
type Span struct {
	Start int
	End   int
}

// Scanner locates statement boundaries around anchor matches.
type Scanner struct {
	// WarnThreshold is the backtrack distance that triggers a warning.
	WarnThreshold int

	logger *slog.Logger
}

// NewScanner creates a scanner with the default warning threshold.
func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{WarnThreshold: DefaultBacktrackWarn, logger: logger}
}

// Statement returns the statement enclosing the anchor that ends at anchorEnd.
func (s *Scanner) Statement(text string, anchorEnd int, fileID string) (Statement, error) {
	span, err := s.Span(text, anchorEnd)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Raw: text[span.Start:span.End], FileID: fileID, Start: span.Start, End: span.End}, nil
}

// Span computes the statement boundaries for an anchor (a method name
// followed by "(") ending at anchorEnd.
func (s *Scanner) Span(text string, anchorEnd int) (Span, error) {
	if anchorEnd <= 0 || anchorEnd > len(text) {
		return Span{}, fmt.Errorf("anchor offset %d out of range [1, %d]", anchorEnd, len(text))
	}

	start := scanBackward(text, anchorEnd)
	if start >= anchorEnd {
		return Span{}, ErrCommentedOut
	}
	if s.WarnThreshold > 0 && anchorEnd-start > s.WarnThreshold {
		s.logger.Warn("boundary.backtrack.long",
			"anchor", anchorEnd,
			"start", start,
			"distance", anchorEnd-start,
		)
	}

	start, end, err := scanForward(text, start, anchorEnd)
	if err != nil {
		return Span{}, err
	}
	return Span{Start: start, End: end}, nil
}

// scanBackward walks back from the anchor to the nearest terminator and
// returns the first non-space offset after it.
func scanBackward(text string, anchorEnd int) int {
	for i := anchorEnd - 1; i >= 0; i-- {
		switch text[i] {
		case ';', '{', '}', '@', ':':
			return skipSpace(text, i+1, anchorEnd)
		case '/':
			if i == 0 {
				continue
			}
			switch text[i-1] {
			case '/':
				// Line comment: the statement starts on the next line.
				for j := i + 1; j < anchorEnd; j++ {
					if text[j] == '\n' {
						return skipSpace(text, j+1, anchorEnd)
					}
				}
				return anchorEnd
			case '*':
				return skipSpace(text, i+1, anchorEnd)
			}
		case '>':
			if i > 0 && text[i-1] == '-' {
				return skipSpace(text, i+1, anchorEnd)
			}
		}
	}
	return skipSpace(text, 0, anchorEnd)
}

// scanForward lexes from start and returns the offset right after the ")"
// that closes the anchor's call. Parentheses closed before the anchor do not
// end the statement, and a stray ")" before the anchor moves the start past it.
func scanForward(text string, start, anchorEnd int) (int, int, error) {
	lx := NewLexerRange(text, start, len(text))
	depth := 0
	for {
		tok, err := lx.Next()
		if errors.Is(err, io.EOF) {
			return 0, 0, ErrUnbalanced
		}
		if err != nil {
			return 0, 0, err
		}
		if tok.Kind != TokenPunc {
			continue
		}
		switch tok.Text {
		case "(":
			depth++
		case ")":
			depth--
			switch {
			case depth < 0 && tok.End <= anchorEnd:
				depth = 0
				start = skipSpace(text, tok.End, anchorEnd)
			case depth < 0:
				return 0, 0, ErrUnbalanced
			case depth == 0 && tok.End > anchorEnd:
				return start, tok.End, nil
			}
		}
	}
}

func skipSpace(text string, from, limit int) int {
	i := from
	for i < limit {
		r, size := utf8.DecodeRuneInString(text[i:limit])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}
