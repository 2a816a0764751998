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

// Package logparse reduces logging call sites to message templates.
//
// The package contains four cooperating pieces:
//
//   - Lexer: a one-token-lookahead tokenizer over raw statement text.
//   - Scanner: finds the start and end of the statement around an anchor
//     match such as "log.info(".
//   - Parser: a recursive-descent reader of the call's argument list that
//     yields a template with "{}" placeholders and the argument expressions.
//   - Filter: rejects templates that look like banners, comments or
//     mis-parses.
//
// Call shapes depend on the dialect, a (language, framework) pair such as
// java/slf4j or c/printf. NewStrategy returns the method table and anchor
// pattern for a dialect:
//
//	strategy, err := logparse.NewStrategy(logparse.Dialect{
//	    Language:  logparse.LanguageJava,
//	    Framework: logparse.FrameworkSlf4j,
//	})
//	parser := logparse.NewParser(strategy)
//	tmpl, err := parser.Parse(`logger.info("User " + name + " logged in");`)
//	// tmpl.Template == "User {} logged in", tmpl.Arguments == ["name"]
//
// Every nested call is parsed with its own Lexer positioned over the nested
// argument list, so a nested parse never moves the enclosing call's cursor.
package logparse
