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
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anchorAfter(t *testing.T, text, needle string) int {
	t.Helper()
	i := strings.Index(text, needle)
	require.GreaterOrEqual(t, i, 0, "needle %q not in text", needle)
	return i + len(needle)
}

func TestScanner_Span(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		needle string
		want   string
	}{
		{
			name:   "after semicolon",
			text:   "foo();\n    logger.info(\"a (b\" + x);\n",
			needle: ".info(",
			want:   `logger.info("a (b" + x)`,
		},
		{
			name:   "start of file",
			text:   `printf("hello %s", who);`,
			needle: "printf(",
			want:   `printf("hello %s", who)`,
		},
		{
			name:   "after opening brace",
			text:   "void run() {\n\tLOG.warn(\"late\");\n}",
			needle: ".warn(",
			want:   `LOG.warn("late")`,
		},
		{
			name:   "line comment on previous line",
			text:   "x = 1; // set up (part one\n  log.info(\"y\");",
			needle: ".info(",
			want:   `log.info("y")`,
		},
		{
			name:   "block comment end",
			text:   "/* banner */ log.error(\"boom\");",
			needle: ".error(",
			want:   `log.error("boom")`,
		},
		{
			name:   "lambda arrow",
			text:   `items.forEach(x -> log.info("v" + x));`,
			needle: ".info(",
			want:   `log.info("v" + x)`,
		},
		{
			name:   "after annotation",
			text:   "@Deprecated\n  warn(\"old api\");",
			needle: "warn(",
			want:   "Deprecated\n  warn(\"old api\")",
		},
		{
			name:   "case label",
			text:   "switch (x) { case 1: warn(\"one\"); }",
			needle: "warn(",
			want:   `warn("one")`,
		},
		{
			name:   "closed parens before anchor",
			text:   "{\n  if (ready) log.info(\"go\");",
			needle: ".info(",
			want:   `if (ready) log.info("go")`,
		},
		{
			name:   "stray close paren before anchor",
			text:   "for (int i = 0; i < n; i++) log.info(\"i\");",
			needle: ".info(",
			want:   `log.info("i")`,
		},
		{
			name:   "multi-line call",
			text:   "a();\nlog.info(\"first \" +\n    second(1, 2) +\n    \"third\");",
			needle: ".info(",
			want:   "log.info(\"first \" +\n    second(1, 2) +\n    \"third\")",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScanner(nil)
			stmt, err := s.Statement(tt.text, anchorAfter(t, tt.text, tt.needle), "Main.java")
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.Raw)
			assert.Equal(t, "Main.java", stmt.FileID)
			assert.Equal(t, tt.text[stmt.Start:stmt.End], stmt.Raw)
		})
	}
}

func TestScanner_Errors(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		needle string
		want   error
	}{
		{name: "commented out", text: `// log.info("x");`, needle: ".info(", want: ErrCommentedOut},
		{name: "unclosed call", text: `log.info("x", foo(`, needle: ".info(", want: ErrUnbalanced},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScanner(nil).Span(tt.text, anchorAfter(t, tt.text, tt.needle))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestScanner_LexErrorDropsStatement(t *testing.T) {
	text := "log.info(\"open\n);"
	_, err := NewScanner(nil).Span(text, anchorAfter(t, text, ".info("))

	var lexErr *LexError
	assert.True(t, errors.As(err, &lexErr))
}

func TestScanner_AnchorOutOfRange(t *testing.T) {
	_, err := NewScanner(nil).Span("abc", 10)
	assert.Error(t, err)
}

func TestScanner_WarnsOnLongBacktrack(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	text := "x = 1;\n" + strings.Repeat("veryLongReceiverName.", 5) + "info(\"deep\");"
	s := NewScanner(logger)
	stmt, err := s.Statement(text, anchorAfter(t, text, "info("), "f")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stmt.Raw, `info("deep")`))
	assert.Contains(t, buf.String(), "boundary.backtrack.long")
}

func TestScanner_SpanIsBalanced(t *testing.T) {
	text := `class A {
    void f(int a) {
        helper(a, (a + 1));
        log.info("a=" + a + " b=" + compute(a, (b)));
        if (a > 0) log.debug(String.format("%d", count(a)));
        list.forEach(x -> log.warn("item " + x.name()));
    }
}`
	s := NewScanner(nil)
	for _, anchor := range slf4jAnchor.FindAllStringIndex(text, -1) {
		span, err := s.Span(text, anchor[1])
		require.NoError(t, err)

		depth := 0
		tokens, err := Tokenize(text[span.Start:span.End])
		require.NoError(t, err)
		for _, tok := range tokens {
			switch {
			case tok.Is(TokenPunc, "("):
				depth++
			case tok.Is(TokenPunc, ")"):
				depth--
			}
			require.GreaterOrEqual(t, depth, 0, text[span.Start:span.End])
		}
		assert.Equal(t, 0, depth, text[span.Start:span.End])
		assert.LessOrEqual(t, span.Start, anchor[0])
		assert.Greater(t, span.End, anchor[1])
	}
}
