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

package ingestion

import (
	"errors"
	"log/slog"

	"github.com/kraklabs/logmine/pkg/logparse"
)

// ExtractStats counts what the extraction stage saw and dropped.
type ExtractStats struct {
	Files        int
	Anchors      int
	Statements   int
	Nested       int // anchors inside an already extracted statement
	Duplicates   int // identical statements within one file
	Prefiltered  int // rejected by the dialect's Keep
	Unbalanced   int
	CommentedOut int
	Errors       int
}

func (s *ExtractStats) add(o ExtractStats) {
	s.Files += o.Files
	s.Anchors += o.Anchors
	s.Statements += o.Statements
	s.Nested += o.Nested
	s.Duplicates += o.Duplicates
	s.Prefiltered += o.Prefiltered
	s.Unbalanced += o.Unbalanced
	s.CommentedOut += o.CommentedOut
	s.Errors += o.Errors
}

// Extractor finds logging statements in source text. It is safe for
// concurrent use.
type Extractor struct {
	strategy logparse.Strategy
	scanner  *logparse.Scanner
	logger   *slog.Logger
}

// NewExtractor creates an extractor for a dialect strategy. backtrackWarn
// overrides the scanner's warning distance when positive.
func NewExtractor(strategy logparse.Strategy, backtrackWarn int, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	scanner := logparse.NewScanner(logger)
	if backtrackWarn > 0 {
		scanner.WarnThreshold = backtrackWarn
	}
	return &Extractor{strategy: strategy, scanner: scanner, logger: logger}
}

// ExtractFile returns the statements of one file in source order.
func (e *Extractor) ExtractFile(path, content string) ([]logparse.Statement, ExtractStats) {
	stats := ExtractStats{Files: 1}
	fileID := GenerateFileID(path)
	seen := make(map[string]struct{})

	var out []logparse.Statement
	lastEnd := 0
	for _, loc := range e.strategy.Anchor().FindAllStringIndex(content, -1) {
		stats.Anchors++
		anchorEnd := loc[1]
		if anchorEnd <= lastEnd {
			stats.Nested++
			continue
		}

		stmt, err := e.scanner.Statement(content, anchorEnd, fileID)
		switch {
		case errors.Is(err, logparse.ErrUnbalanced):
			stats.Unbalanced++
			e.logger.Debug("extract.statement.unbalanced", "path", path, "offset", anchorEnd)
			continue
		case errors.Is(err, logparse.ErrCommentedOut):
			stats.CommentedOut++
			continue
		case err != nil:
			stats.Errors++
			e.logger.Debug("extract.statement.error", "path", path, "offset", anchorEnd, "err", err)
			continue
		}
		lastEnd = stmt.End

		if !e.strategy.Keep(stmt.Raw) {
			stats.Prefiltered++
			continue
		}
		if _, dup := seen[stmt.Raw]; dup {
			stats.Duplicates++
			continue
		}
		seen[stmt.Raw] = struct{}{}
		out = append(out, stmt)
	}
	stats.Statements = len(out)
	return out, stats
}
