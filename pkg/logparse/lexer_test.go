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
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_Kinds(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kinds []TokenKind
		texts []string
	}{
		{
			name:  "method call",
			input: `log.info("x", 42);`,
			kinds: []TokenKind{TokenVar, TokenPunc, TokenVar, TokenPunc, TokenString, TokenPunc, TokenNum, TokenPunc, TokenPunc},
			texts: []string{"log", ".", "info", "(", "x", ",", "42", ")", ";"},
		},
		{
			name:  "operator run",
			input: `a+=b--`,
			kinds: []TokenKind{TokenVar, TokenOp, TokenVar, TokenOp},
			texts: []string{"a", "+=", "b", "--"},
		},
		{
			name:  "escaped quote stays verbatim",
			input: `"say \"hi\"\n"`,
			kinds: []TokenKind{TokenString},
			texts: []string{`say \"hi\"\n`},
		},
		{
			name:  "identifier keeps digits",
			input: `user1 2nd`,
			kinds: []TokenKind{TokenVar, TokenNum, TokenVar},
			texts: []string{"user1", "2", "nd"},
		},
		{
			name:  "char literals are opaque",
			input: `f('(', '\'', x)`,
			kinds: []TokenKind{TokenVar, TokenPunc, TokenVar, TokenPunc, TokenVar, TokenPunc, TokenVar, TokenPunc},
			texts: []string{"f", "(", "'('", ",", `'\''`, ",", "x", ")"},
		},
		{
			name:  "brackets",
			input: `args[0]{}`,
			kinds: []TokenKind{TokenVar, TokenPunc, TokenNum, TokenPunc, TokenPunc, TokenPunc},
			texts: []string{"args", "[", "0", "]", "{", "}"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			require.NoError(t, err)
			require.Len(t, tokens, len(tt.kinds))
			for i, tok := range tokens {
				assert.Equal(t, tt.kinds[i], tok.Kind, "token %d kind", i)
				assert.Equal(t, tt.texts[i], tok.Text, "token %d text", i)
			}
		})
	}
}

func TestTokenize_ReconstructsInput(t *testing.T) {
	inputs := []string{
		`logger.info("User"+name+"loggedin", time);`,
		`printf ( "%d\n" , count ) ;`,
		"if (a >= 10 && !b) {\n\tx = y[2] * 3;\n}",
		`LOG.debug(String.format("a%sb", x.y(z)))`,
	}

	for _, input := range inputs {
		tokens, err := Tokenize(input)
		require.NoError(t, err, input)

		var joined strings.Builder
		for _, tok := range tokens {
			joined.WriteString(input[tok.Start:tok.End])
		}
		assert.Equal(t, stripSpace(input), joined.String(), input)
	}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func TestLexer_EOFAfterLastToken(t *testing.T) {
	for _, input := range []string{"", "   ", "a", `f("x") ;`, "1 + 2"} {
		lx := NewLexer(input)
		tokens, err := Tokenize(input)
		require.NoError(t, err)

		for i := range tokens {
			if lx.EOF() {
				t.Fatalf("%q: EOF reported before token %d", input, i)
			}
			_, err := lx.Next()
			require.NoError(t, err)
		}
		if !lx.EOF() {
			t.Errorf("%q: EOF not reported after last token", input)
		}
	}
}

func TestLexer_PeekDoesNotConsume(t *testing.T) {
	lx := NewLexer("a b")

	first, err := lx.Peek()
	require.NoError(t, err)
	again, err := lx.Peek()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	next, err := lx.Next()
	require.NoError(t, err)
	assert.Equal(t, first, next)

	second, err := lx.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", second.Text)
}

func TestLexer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		offset int
	}{
		{name: "unterminated string", input: `info("abc`, offset: 5},
		{name: "newline in string", input: "x = \"ab\ncd\"", offset: 4},
		{name: "dangling escape", input: `"abc\`, offset: 0},
		{name: "invalid utf8", input: "a \xff", offset: 2},
		{name: "newline in char literal", input: "c = '\n", offset: 4},
		{name: "unterminated char literal", input: `f('x`, offset: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input)
			var lexErr *LexError
			require.True(t, errors.As(err, &lexErr), "expected *LexError, got %v", err)
			assert.Equal(t, tt.offset, lexErr.Offset)
		})
	}
}

func TestLexer_ErrorIsSticky(t *testing.T) {
	lx := NewLexer(`a "open`)
	_, err := lx.Next()
	require.NoError(t, err)

	_, err = lx.Next()
	require.Error(t, err)
	_, err = lx.Peek()
	require.Error(t, err)
	assert.False(t, lx.EOF())
}

func TestToken_IsUnary(t *testing.T) {
	for _, op := range []string{"+", "++", "-", "--", "!"} {
		assert.True(t, Token{Kind: TokenOp, Text: op}.IsUnary(), op)
	}
	for _, op := range []string{"+=", "!=", "*", "&&", "->"} {
		assert.False(t, Token{Kind: TokenOp, Text: op}.IsUnary(), op)
	}
	assert.False(t, Token{Kind: TokenVar, Text: "+"}.IsUnary())
}

func TestNewLexerRange_AbsoluteOffsets(t *testing.T) {
	src := `xx(a, "b")yy`
	lx := NewLexerRange(src, 2, 10)

	tok, err := lx.Next()
	require.NoError(t, err)
	assert.Equal(t, "(", tok.Text)
	assert.Equal(t, 2, tok.Start)

	var last Token
	for !lx.EOF() {
		last, err = lx.Next()
		require.NoError(t, err)
	}
	assert.Equal(t, ")", last.Text)
	assert.Equal(t, 10, last.End)
}
