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
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a lexeme.
type TokenKind int

const (
	TokenString TokenKind = iota
	TokenPunc
	TokenOp
	TokenNum
	TokenVar
)

func (k TokenKind) String() string {
	switch k {
	case TokenString:
		return "str"
	case TokenPunc:
		return "punc"
	case TokenOp:
		return "op"
	case TokenNum:
		return "num"
	case TokenVar:
		return "var"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

const (
	puncChars = ";,.(){}[]"
	opChars   = "+*|^/%=&-<>!"
)

// Token is a single lexeme with absolute byte offsets into the lexed source.
// For string literals Text holds the content between the quotes with escape
// sequences kept verbatim, while Start/End cover the quotes as well. A char
// literal such as '(' is an opaque TokenVar whose Text keeps its quotes.
type Token struct {
	Kind  TokenKind
	Text  string
	Start int
	End   int
}

// Is reports whether the token has the given kind and text.
func (t Token) Is(kind TokenKind, text string) bool {
	return t.Kind == kind && t.Text == text
}

// IsUnary reports whether the token is one of + ++ - -- !.
func (t Token) IsUnary() bool {
	if t.Kind != TokenOp {
		return false
	}
	switch t.Text {
	case "+", "++", "-", "--", "!":
		return true
	}
	return false
}

// LexError reports input the lexer cannot tokenize.
type LexError struct {
	Offset int
	Reason string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at offset %d: %s", e.Offset, e.Reason)
}

// Lexer is a lazy token stream with one token of lookahead. A Lexer is not
// restartable and must not be shared between parser invocations.
type Lexer struct {
	src    string
	pos    int
	limit  int
	peeked *Token
	err    error
}

// NewLexer returns a lexer over the whole of src.
func NewLexer(src string) *Lexer {
	return NewLexerRange(src, 0, len(src))
}

// NewLexerRange returns a lexer over src[start:end]. Token offsets stay
// absolute to src.
func NewLexerRange(src string, start, end int) *Lexer {
	if start < 0 {
		start = 0
	}
	if end > len(src) {
		end = len(src)
	}
	if start > end {
		start = end
	}
	return &Lexer{src: src, pos: start, limit: end}
}

// Peek returns the next token without consuming it. At end of input it
// returns io.EOF; a *LexError is sticky.
func (l *Lexer) Peek() (Token, error) {
	if l.peeked != nil {
		return *l.peeked, nil
	}
	if l.err != nil {
		return Token{}, l.err
	}
	tok, err := l.scan()
	if err != nil {
		l.err = err
		return Token{}, err
	}
	l.peeked = &tok
	return tok, nil
}

// Next consumes and returns the next token.
func (l *Lexer) Next() (Token, error) {
	tok, err := l.Peek()
	if err != nil {
		return Token{}, err
	}
	l.peeked = nil
	return tok, nil
}

// EOF reports whether every token has been consumed. It is false while a
// lex error is pending so callers surface the error through Peek or Next.
func (l *Lexer) EOF() bool {
	_, err := l.Peek()
	return errors.Is(err, io.EOF)
}

// Tokenize lexes all of src.
func Tokenize(src string) ([]Token, error) {
	lx := NewLexer(src)
	var tokens []Token
	for {
		tok, err := lx.Next()
		if errors.Is(err, io.EOF) {
			return tokens, nil
		}
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
	}
}

func (l *Lexer) scan() (Token, error) {
	l.skipSpace()
	if l.pos >= l.limit {
		return Token{}, io.EOF
	}

	start := l.pos
	r, size := utf8.DecodeRuneInString(l.src[l.pos:l.limit])
	switch {
	case r == utf8.RuneError && size <= 1:
		return Token{}, &LexError{Offset: start, Reason: "invalid UTF-8 byte"}
	case r == '"':
		return l.scanString()
	case r == '\'':
		return l.scanChar()
	case isPunc(r):
		l.pos += size
		return l.token(TokenPunc, start), nil
	case isOp(r):
		l.scanWhile(isOp)
		return l.token(TokenOp, start), nil
	case isDigit(r):
		l.scanWhile(isDigit)
		return l.token(TokenNum, start), nil
	case isIdent(r):
		l.scanWhile(isIdent)
		return l.token(TokenVar, start), nil
	}
	return Token{}, &LexError{Offset: start, Reason: fmt.Sprintf("unexpected character %q", r)}
}

func (l *Lexer) token(kind TokenKind, start int) Token {
	return Token{Kind: kind, Text: l.src[start:l.pos], Start: start, End: l.pos}
}

func (l *Lexer) scanString() (Token, error) {
	start := l.pos
	i := start + 1
	for i < l.limit {
		switch l.src[i] {
		case '\\':
			i += 2
			continue
		case '\n':
			return Token{}, &LexError{Offset: start, Reason: "unterminated string literal"}
		case '"':
			l.pos = i + 1
			return Token{Kind: TokenString, Text: l.src[start+1 : i], Start: start, End: l.pos}, nil
		}
		i++
	}
	return Token{}, &LexError{Offset: start, Reason: "unterminated string literal"}
}

func (l *Lexer) scanChar() (Token, error) {
	start := l.pos
	i := start + 1
	for i < l.limit {
		switch l.src[i] {
		case '\\':
			i += 2
			continue
		case '\n':
			return Token{}, &LexError{Offset: start, Reason: "unterminated char literal"}
		case '\'':
			l.pos = i + 1
			return l.token(TokenVar, start), nil
		}
		i++
	}
	return Token{}, &LexError{Offset: start, Reason: "unterminated char literal"}
}

func (l *Lexer) skipSpace() {
	for l.pos < l.limit {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:l.limit])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += size
	}
}

func (l *Lexer) scanWhile(pred func(rune) bool) {
	for l.pos < l.limit {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:l.limit])
		if (r == utf8.RuneError && size <= 1) || !pred(r) {
			return
		}
		l.pos += size
	}
}

func isPunc(r rune) bool { return r < utf8.RuneSelf && strings.ContainsRune(puncChars, r) }
func isOp(r rune) bool   { return r < utf8.RuneSelf && strings.ContainsRune(opChars, r) }
func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdent(r rune) bool {
	return r != '"' && r != '\'' && !unicode.IsSpace(r) && !isPunc(r) && !isOp(r)
}
