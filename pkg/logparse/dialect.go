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
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Language is a source language the miner understands.
type Language int

const (
	LanguageJava Language = iota
	LanguageC
)

func (l Language) String() string {
	switch l {
	case LanguageJava:
		return "java"
	case LanguageC:
		return "c"
	default:
		return fmt.Sprintf("Language(%d)", int(l))
	}
}

// Extensions returns the file suffixes that hold source for the language.
func (l Language) Extensions() []string {
	switch l {
	case LanguageJava:
		return []string{".java"}
	case LanguageC:
		return []string{".c", ".h"}
	default:
		return nil
	}
}

// ParseLanguage maps a language tag to a Language.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "java":
		return LanguageJava, nil
	case "c":
		return LanguageC, nil
	}
	return 0, fmt.Errorf("unsupported language %q", s)
}

// Framework identifies the logging library a call site belongs to.
type Framework int

const (
	FrameworkLog4j Framework = iota
	FrameworkSlf4j
	FrameworkUtilLogger
	FrameworkPrintf
)

func (f Framework) String() string {
	switch f {
	case FrameworkLog4j:
		return "log4j"
	case FrameworkSlf4j:
		return "slf4j"
	case FrameworkUtilLogger:
		return "utillogger"
	case FrameworkPrintf:
		return "printf"
	default:
		return fmt.Sprintf("Framework(%d)", int(f))
	}
}

// ParseFramework maps a framework indicator to a Framework.
func ParseFramework(s string) (Framework, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "log4j":
		return FrameworkLog4j, nil
	case "slf4j":
		return FrameworkSlf4j, nil
	case "utillogger", "util", "jul":
		return FrameworkUtilLogger, nil
	case "printf":
		return FrameworkPrintf, nil
	}
	return 0, fmt.Errorf("unsupported framework %q", s)
}

// Role is the expected kind of a call argument at a given position.
type Role string

const (
	// RoleStr is the template-literal role.
	RoleStr Role = "str"
	// RoleVariadic captures any number of value arguments.
	RoleVariadic Role = "..."
	// RoleSkip marks an argument that is neither template nor value,
	// such as a stream or a level.
	RoleSkip Role = "skip"
)

// ShapeKind selects how a call's argument list is interpreted.
type ShapeKind int

const (
	ShapeFormat ShapeKind = iota
	ShapeSimple
)

func (k ShapeKind) String() string {
	if k == ShapeSimple {
		return "simple"
	}
	return "format"
}

// Shape describes how to read a recognized call.
type Shape struct {
	Kind  ShapeKind
	Roles []Role
}

func format(roles ...Role) Shape { return Shape{Kind: ShapeFormat, Roles: roles} }

var simple = Shape{Kind: ShapeSimple}

// genericShape is the shape assumed for a nested call from its arity alone.
func genericShape(arity int) Shape {
	switch arity {
	case 0:
		return format()
	case 1:
		return format(RoleStr)
	default:
		return format(RoleStr, RoleVariadic)
	}
}

var agnosticShapes = map[string]Shape{
	"format": format(RoleStr, RoleVariadic),
	"printf": format(RoleStr, RoleVariadic),
}

var log4jShapes = map[string]Shape{
	"trace":  format(RoleStr, RoleVariadic),
	"debug":  format(RoleStr, RoleVariadic),
	"info":   format(RoleStr, RoleVariadic),
	"warn":   format(RoleStr, RoleVariadic),
	"error":  format(RoleStr, RoleVariadic),
	"fatal":  format(RoleStr, RoleVariadic),
	"log":    format(RoleSkip, RoleStr, RoleVariadic),
	"printf": format(RoleSkip, RoleStr, RoleVariadic),
}

var slf4jShapes = map[string]Shape{
	"trace": format(RoleStr, RoleVariadic),
	"debug": format(RoleStr, RoleVariadic),
	"info":  format(RoleStr, RoleVariadic),
	"warn":  format(RoleStr, RoleVariadic),
	"error": format(RoleStr, RoleVariadic),
	"fatal": format(RoleStr, RoleVariadic),
}

var utilLoggerShapes = map[string]Shape{
	"severe":   format(RoleStr),
	"warning":  format(RoleStr),
	"info":     format(RoleStr),
	"config":   format(RoleStr),
	"fine":     format(RoleStr),
	"finer":    format(RoleStr),
	"finest":   format(RoleStr),
	"log":      format(RoleSkip, RoleStr, RoleVariadic),
	"entering": simple,
	"exiting":  simple,
	"throwing": simple,
}

var cShapes = map[string]Shape{
	"printf":          format(RoleStr, RoleVariadic),
	"printk":          format(RoleSkip, RoleStr, RoleVariadic),
	"fprintf":         format(RoleSkip, RoleStr, RoleVariadic),
	"av_log":          format(RoleSkip, RoleSkip, RoleStr, RoleVariadic),
	"log":             format(RoleStr, RoleVariadic),
	"Log_print":       format(RoleStr, RoleVariadic),
	"logf":            format(RoleStr, RoleVariadic),
	"warning":         format(RoleStr, RoleVariadic),
	"warn":            format(RoleStr, RoleVariadic),
	"warnx":           format(RoleStr, RoleVariadic),
	"fatal":           format(RoleStr, RoleVariadic),
	"dfatal":          format(RoleStr, RoleVariadic),
	"debug":           format(RoleSkip, RoleStr, RoleVariadic),
	"LOG_ERR":         format(RoleStr, RoleVariadic),
	"GX_LOG":          format(RoleStr, RoleVariadic),
	"vcos_log_error":  format(RoleStr, RoleVariadic),
	"vcos_log_warn":   format(RoleStr, RoleVariadic),
	"vcos_log_info":   format(RoleStr, RoleVariadic),
	"vcos_log_trace":  format(RoleStr, RoleVariadic),
	"vcos_logc_error": format(RoleStr, RoleVariadic),
	"vcos_logc_warn":  format(RoleStr, RoleVariadic),
	"vcos_logc_info":  format(RoleStr, RoleVariadic),
	"vcos_logc_trace": format(RoleStr, RoleVariadic),
	"GIMP_LOG":        format(RoleSkip, RoleStr, RoleVariadic),
	"Critf":           format(RoleStr, RoleVariadic),
	"Infof":           format(RoleStr, RoleVariadic),
	"Warningf":        format(RoleStr, RoleVariadic),
	"Tracef":          format(RoleStr, RoleVariadic),
	"Debugf":          format(RoleStr, RoleVariadic),
	"Errf":            format(RoleStr, RoleVariadic),
	"Crit":            format(RoleStr, RoleVariadic),
	"Info":            format(RoleStr, RoleVariadic),
	"Warning":         format(RoleStr, RoleVariadic),
	"Trace":           format(RoleStr, RoleVariadic),
	"Debug":           format(RoleStr, RoleVariadic),
	"Err":             format(RoleStr, RoleVariadic),
	"g_log":           format(RoleSkip, RoleSkip, RoleStr, RoleVariadic),
	"srm_printk":      format(RoleStr, RoleVariadic),
	"pr_warn":         format(RoleStr, RoleVariadic),
	"pr_debug":        format(RoleStr, RoleVariadic),
	"dprintk":         format(RoleStr, RoleVariadic),
}

// Dialect is a (language, framework) pair.
type Dialect struct {
	Language  Language
	Framework Framework
}

func (d Dialect) String() string {
	return d.Language.String() + "/" + d.Framework.String()
}

// ParseDialect parses the language and framework tags into a Dialect.
func ParseDialect(language, framework string) (Dialect, error) {
	lang, err := ParseLanguage(language)
	if err != nil {
		return Dialect{}, err
	}
	fw, err := ParseFramework(framework)
	if err != nil {
		return Dialect{}, err
	}
	return Dialect{Language: lang, Framework: fw}, nil
}

// Strategy is the per-dialect behaviour the extractor and parser share.
type Strategy interface {
	// Dialect returns the dialect the strategy was built for.
	Dialect() Dialect
	// Lookup resolves a callee name to its argument shape.
	Lookup(name string) (Shape, bool)
	// Anchor matches the start of a candidate call; a match ends right
	// after the opening parenthesis.
	Anchor() *regexp.Regexp
	// Keep reports whether an extracted statement should be parsed at all.
	Keep(raw string) bool
}

type strategy struct {
	dialect Dialect
	shapes  map[string]Shape
	anchor  *regexp.Regexp
	keep    func(string) bool
}

func (s *strategy) Dialect() Dialect       { return s.dialect }
func (s *strategy) Anchor() *regexp.Regexp { return s.anchor }

func (s *strategy) Keep(raw string) bool {
	if s.keep == nil {
		return true
	}
	return s.keep(raw)
}

func (s *strategy) Lookup(name string) (Shape, bool) {
	if shape, ok := s.shapes[name]; ok {
		return shape, true
	}
	shape, ok := agnosticShapes[name]
	return shape, ok
}

var (
	log4jAnchor      = regexp.MustCompile(`(fatal|info|error|debug|trace|warn|log|printf)\(`)
	slf4jAnchor      = regexp.MustCompile(`\.(fatal|info|error|debug|trace|warn)\(`)
	utilLoggerAnchor = regexp.MustCompile(`\.(severe|warning|info|config|fine|finer|finest|log)\(`)
	javaPrintfAnchor = regexp.MustCompile(`\.(printf|format)\(`)
	cAnchor          = regexp.MustCompile(`\b(` + alternation(cShapes) + `)\s*\(`)
)

// alternation joins map keys into a regexp alternation, longest first so
// that e.g. vcos_logc_info wins over Info.
func alternation(shapes map[string]Shape) string {
	names := make([]string, 0, len(shapes))
	for name := range shapes {
		names = append(names, regexp.QuoteMeta(name))
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return strings.Join(names, "|")
}

func notPreprocessor(raw string) bool {
	return !strings.HasPrefix(strings.TrimSpace(raw), "#")
}

// NewStrategy returns the strategy for a dialect.
func NewStrategy(d Dialect) (Strategy, error) {
	switch d.Language {
	case LanguageJava:
		switch d.Framework {
		case FrameworkLog4j:
			return &strategy{dialect: d, shapes: log4jShapes, anchor: log4jAnchor}, nil
		case FrameworkSlf4j:
			return &strategy{dialect: d, shapes: slf4jShapes, anchor: slf4jAnchor}, nil
		case FrameworkUtilLogger:
			return &strategy{dialect: d, shapes: utilLoggerShapes, anchor: utilLoggerAnchor}, nil
		case FrameworkPrintf:
			return &strategy{dialect: d, shapes: nil, anchor: javaPrintfAnchor}, nil
		}
	case LanguageC:
		if d.Framework == FrameworkPrintf {
			return &strategy{dialect: d, shapes: cShapes, anchor: cAnchor, keep: notPreprocessor}, nil
		}
	}
	return nil, fmt.Errorf("unsupported dialect %s", d)
}

// MustStrategy is like NewStrategy but panics on an unsupported dialect.
func MustStrategy(d Dialect) Strategy {
	s, err := NewStrategy(d)
	if err != nil {
		panic(err)
	}
	return s
}
