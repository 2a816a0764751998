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
	"regexp"
	"strings"
)

// ParsedTemplate is a call site reduced to its message skeleton and the
// source expressions that fill its "{}" placeholders.
type ParsedTemplate struct {
	Template  string
	Arguments []string
	Raw       string
}

// Placeholders counts the "{}" markers in the template.
func (t ParsedTemplate) Placeholders() int {
	return strings.Count(t.Template, "{}")
}

// ParseError reports a statement the parser could not reduce to a template.
type ParseError struct {
	Reason string
	Offset int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error at offset %d: %s: %v", e.Offset, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parser turns call-site statements into templates for a single dialect.
// It holds no per-statement state and is safe for concurrent use.
type Parser struct {
	strategy   Strategy
	directives *regexp.Regexp
}

// NewParser creates a parser for the given strategy.
func NewParser(s Strategy) *Parser {
	directives := cDirectivePattern
	if s.Dialect().Language == LanguageJava {
		directives = javaDirectivePattern
	}
	return &Parser{strategy: s, directives: directives}
}

// Strategy returns the dialect strategy the parser resolves names with.
func (p *Parser) Strategy() Strategy { return p.strategy }

// Parse reduces one statement to a template.
func (p *Parser) Parse(raw string) (ParsedTemplate, error) {
	res, err := p.parseOuter(raw, NewLexer(raw))
	if err != nil {
		return ParsedTemplate{}, err
	}
	return ParsedTemplate{Template: res.template, Arguments: res.args, Raw: raw}, nil
}

type callResult struct {
	template string
	args     []string
}

// variable is the outcome of resolving one operand. A nested variable is a
// recognized call whose own template and arguments replace the operand.
type variable struct {
	expr     string
	nested   bool
	template string
	args     []string
}

// parseOuter finds the first identifier followed by "(" that names a known
// call and parses its argument list. Unknown callees are walked into.
func (p *Parser) parseOuter(src string, lx *Lexer) (callResult, error) {
	for {
		tok, err := lx.Next()
		if errors.Is(err, io.EOF) {
			return callResult{}, &ParseError{Reason: "no recognized call", Offset: len(src)}
		}
		if err != nil {
			return callResult{}, wrapLexError(err, src)
		}
		if tok.Kind != TokenVar {
			continue
		}

		open, err := lx.Peek()
		if errors.Is(err, io.EOF) {
			continue
		}
		if err != nil {
			return callResult{}, wrapLexError(err, src)
		}
		if !open.Is(TokenPunc, "(") {
			continue
		}
		shape, ok := p.strategy.Lookup(tok.Text)
		if !ok {
			continue
		}
		_, _ = lx.Next()
		if shape.Kind == ShapeSimple {
			return callResult{}, nil
		}
		return p.parseCall(src, lx, shape.Roles, open)
	}
}

type callState struct {
	roles    []Role
	cursor   int
	template strings.Builder
	args     []string
	// fresh is true until the current argument has consumed an operand.
	fresh bool
}

func (st *callState) role() Role { return st.roles[st.cursor] }

func (st *callState) literal(text string) {
	switch st.role() {
	case RoleStr:
		st.template.WriteString(text)
	case RoleVariadic:
		st.args = append(st.args, text)
	}
	st.fresh = false
}

func (st *callState) operand(v variable) {
	switch st.role() {
	case RoleStr:
		if v.nested {
			st.template.WriteString(v.template)
			st.args = append(st.args, v.args...)
		} else {
			st.template.WriteString("{}")
			st.args = append(st.args, v.expr)
		}
	case RoleVariadic:
		if v.nested {
			st.args = append(st.args, v.args...)
		} else {
			st.args = append(st.args, v.expr)
		}
	}
	st.fresh = false
}

// extend joins a binary operator and its right operand onto the last
// captured value argument.
func (st *callState) extend(op, text string) {
	if st.role() != RoleVariadic || len(st.args) == 0 {
		return
	}
	last := len(st.args) - 1
	st.args[last] = st.args[last] + " " + op + " " + text
}

// parseCall reads an argument list whose "(" has already been consumed and
// stops after the matching ")".
func (p *Parser) parseCall(src string, lx *Lexer, roles []Role, open Token) (callResult, error) {
	if len(roles) == 0 {
		return callResult{}, &ParseError{Reason: "call shape has no parameter roles", Offset: open.Start}
	}
	st := &callState{roles: roles, fresh: true}

	for {
		tok, err := lx.Next()
		if errors.Is(err, io.EOF) {
			return callResult{}, &ParseError{Reason: "unexpected end of input before closing parenthesis", Offset: len(src)}
		}
		if err != nil {
			return callResult{}, wrapLexError(err, src)
		}

		switch tok.Kind {
		case TokenPunc:
			switch tok.Text {
			case ")":
				return callResult{template: st.template.String(), args: st.args}, nil
			case ",":
				if st.role() != RoleVariadic {
					st.cursor++
					if st.cursor >= len(st.roles) {
						return callResult{}, &ParseError{Reason: "argument count mismatch", Offset: tok.Start}
					}
				}
				st.fresh = true
			case "(":
				v, err := p.resolveVariable(src, lx, tok)
				if err != nil {
					return callResult{}, err
				}
				st.operand(v)
			}

		case TokenString:
			if st.role() == RoleStr {
				st.literal(rewriteDirectives(p.directives, tok.Text))
			} else {
				st.literal(src[tok.Start:tok.End])
			}

		case TokenNum:
			st.literal(tok.Text)

		case TokenVar:
			v, err := p.resolveVariable(src, lx, tok)
			if err != nil {
				return callResult{}, err
			}
			st.operand(v)

		case TokenOp:
			if st.fresh && tok.IsUnary() {
				v, err := p.resolveVariable(src, lx, tok)
				if err != nil {
					return callResult{}, err
				}
				st.operand(v)
				continue
			}
			if st.fresh {
				return callResult{}, &ParseError{Reason: fmt.Sprintf("operator %q cannot start an argument", tok.Text), Offset: tok.Start}
			}
			if err := p.binary(src, lx, st, tok); err != nil {
				return callResult{}, err
			}
		}
	}
}

// binary handles an operator between two operands of the same argument.
func (p *Parser) binary(src string, lx *Lexer, st *callState, op Token) error {
	if !op.Is(TokenOp, "+") && st.role() == RoleStr {
		return &ParseError{Reason: fmt.Sprintf("operator %q in template argument", op.Text), Offset: op.Start}
	}

	next, err := lx.Next()
	if errors.Is(err, io.EOF) {
		return &ParseError{Reason: fmt.Sprintf("trailing operator %q", op.Text), Offset: op.Start}
	}
	if err != nil {
		return wrapLexError(err, src)
	}

	switch {
	case next.Kind == TokenString:
		if st.role() == RoleStr {
			st.template.WriteString(rewriteDirectives(p.directives, next.Text))
		} else {
			st.extend(op.Text, src[next.Start:next.End])
		}
		return nil
	case next.Kind == TokenNum:
		if st.role() == RoleStr {
			st.template.WriteString(next.Text)
		} else {
			st.extend(op.Text, next.Text)
		}
		return nil
	case next.Kind == TokenVar, next.IsUnary(), next.Is(TokenPunc, "("):
		v, err := p.resolveVariable(src, lx, next)
		if err != nil {
			return err
		}
		if st.role() == RoleVariadic && !v.nested {
			st.extend(op.Text, v.expr)
			return nil
		}
		st.operand(v)
		return nil
	}
	return &ParseError{Reason: fmt.Sprintf("%q may not follow %q", next.Text, op.Text), Offset: next.Start}
}

// resolveVariable accumulates an operand starting at first until a
// top-level ",", "+" or ")" and reports whether it is a recognized nested
// call.
func (p *Parser) resolveVariable(src string, lx *Lexer, first Token) (variable, error) {
	depth := 0
	if first.Is(TokenPunc, "(") {
		depth = 1
	}
	prev, last := first, first
	var found *variable

	for {
		tok, err := lx.Peek()
		if errors.Is(err, io.EOF) {
			if depth > 0 {
				return variable{}, &ParseError{Reason: "unbalanced parentheses", Offset: len(src)}
			}
			break
		}
		if err != nil {
			return variable{}, wrapLexError(err, src)
		}
		if depth == 0 && (tok.Is(TokenPunc, ",") || tok.Is(TokenPunc, ")") || tok.Is(TokenOp, "+")) {
			break
		}
		_, _ = lx.Next()

		switch {
		case tok.Is(TokenPunc, "(") && prev.Kind == TokenVar && found == nil:
			v, end, ok, err := p.nestedCall(src, prev, tok)
			if err != nil {
				return variable{}, err
			}
			if !ok {
				depth++
				break
			}
			if err := skipPast(lx, end); err != nil {
				return variable{}, wrapLexError(err, src)
			}
			found = &v
			tok.End = end
		case tok.Is(TokenPunc, "("):
			depth++
		case tok.Is(TokenPunc, ")"):
			depth--
		}
		prev, last = tok, tok
	}

	expr := src[first.Start:last.End]
	if found != nil {
		found.expr = expr
		return *found, nil
	}
	return variable{expr: expr}, nil
}

// nestedCall checks whether name( opens a recognized call and, if so,
// parses it with its own lexer over the bracket-balanced slice. The arity
// decides the roles. It returns the offset right after the closing ")".
func (p *Parser) nestedCall(src string, name, open Token) (variable, int, bool, error) {
	shape, ok := p.strategy.Lookup(name.Text)
	if !ok || shape.Kind != ShapeFormat {
		return variable{}, 0, false, nil
	}
	end, arity, err := balancedSlice(src, open)
	if err != nil {
		return variable{}, 0, false, err
	}
	if arity == 0 {
		return variable{}, 0, false, nil
	}

	inner := NewLexerRange(src, open.End, end)
	res, err := p.parseCall(src, inner, genericShape(arity).Roles, open)
	if err != nil {
		return variable{}, 0, false, err
	}
	return variable{nested: true, template: res.template, args: res.args}, end, true, nil
}

// balancedSlice scans from open with a fresh lexer and returns the offset
// after the matching ")" and the number of top-level arguments.
func balancedSlice(src string, open Token) (int, int, error) {
	lx := NewLexerRange(src, open.Start, len(src))
	depth := 0
	commas := 0
	empty := true
	for {
		tok, err := lx.Next()
		if errors.Is(err, io.EOF) {
			return 0, 0, &ParseError{Reason: "unbalanced parentheses", Offset: open.Start}
		}
		if err != nil {
			return 0, 0, wrapLexError(err, src)
		}
		switch {
		case tok.Is(TokenPunc, "("):
			depth++
			if depth > 1 {
				empty = false
			}
			continue
		case tok.Is(TokenPunc, ")"):
			depth--
			if depth == 0 {
				if empty {
					return tok.End, 0, nil
				}
				return tok.End, commas + 1, nil
			}
		case tok.Is(TokenPunc, ",") && depth == 1:
			commas++
		}
		empty = false
	}
}

// skipPast consumes tokens until one ends at or beyond offset.
func skipPast(lx *Lexer, offset int) error {
	for {
		tok, err := lx.Next()
		if err != nil {
			return err
		}
		if tok.End >= offset {
			return nil
		}
	}
}

func wrapLexError(err error, src string) error {
	var lexErr *LexError
	if errors.As(err, &lexErr) {
		return &ParseError{Reason: "lex error", Offset: lexErr.Offset, Err: lexErr}
	}
	if errors.Is(err, io.EOF) {
		return &ParseError{Reason: "unexpected end of input", Offset: len(src)}
	}
	return &ParseError{Reason: "unexpected error", Offset: len(src), Err: err}
}

// Conversion directives. Java messages drop the space flag: outside format
// calls "50% done" is prose, not "% d".
var (
	cDirectivePattern    = regexp.MustCompile(`%%|%(?:\d+\$)?[-+ #0,(']*(?:\d+|\*)?(?:\.(?:\d+|\*))?(?:hh|h|ll|l|L|q|j|z|t)?[diouxXeEfFgGaAcspb]`)
	javaDirectivePattern = regexp.MustCompile(`%%|%(?:\d+\$)?[-+#0,(]*(?:\d+)?(?:\.\d+)?[diouxXeEfFgGaAcspb]`)
)

// rewriteDirectives replaces the conversions re matches with "{}" and
// unescapes "%%".
func rewriteDirectives(re *regexp.Regexp, s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	return re.ReplaceAllStringFunc(s, func(m string) string {
		if m == "%%" {
			return "%"
		}
		return "{}"
	})
}
