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

package formalize

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/kraklabs/logmine/pkg/logparse"
)

var (
	// ErrEmptyTemplate rejects rows without a template.
	ErrEmptyTemplate = errors.New("empty template")

	// ErrCountMismatch rejects rows whose placeholder and argument counts
	// disagree after truncation.
	ErrCountMismatch = errors.New("placeholder count does not match argument count")
)

// Result is a formalized template. Arguments may be shorter than the parsed
// arguments when trailing over-capture was truncated. Types holds the chosen
// type name per argument, "" where nothing matched.
type Result struct {
	Template  string
	Arguments []string
	Types     []string
	Raw       string
	Parsed    string
	Truncated int
}

// Stats counts what happened to the rows of one Run.
type Stats struct {
	Input      int
	Empty      int
	Mismatched int
	Truncated  int
	Output     int
}

// Formalizer tags placeholders with semantic types. It draws tie-breaks
// from its random source and is not safe for concurrent use.
type Formalizer struct {
	registry *Registry
	rng      *rand.Rand
	logger   *slog.Logger
}

// New creates a formalizer. A nil registry uses DefaultRegistry.
func New(registry *Registry, rng *rand.Rand, logger *slog.Logger) *Formalizer {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Formalizer{registry: registry, rng: rng, logger: logger}
}

// NewSeeded creates a formalizer whose choices are reproducible for seed.
func NewSeeded(registry *Registry, seed uint64, logger *slog.Logger) *Formalizer {
	return New(registry, rand.New(rand.NewPCG(seed, seed)), logger)
}

// Run formalizes rows in order and drops the ones that cannot be formalized.
func (f *Formalizer) Run(rows []logparse.ParsedTemplate) ([]Result, Stats) {
	stats := Stats{Input: len(rows)}
	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		res, err := f.Formalize(row)
		switch {
		case errors.Is(err, ErrEmptyTemplate):
			stats.Empty++
			continue
		case errors.Is(err, ErrCountMismatch):
			stats.Mismatched++
			f.logger.Debug("formalize.row.mismatch",
				"template", row.Template,
				"placeholders", row.Placeholders(),
				"arguments", len(row.Arguments),
			)
			continue
		}
		if res.Truncated > 0 {
			stats.Truncated++
		}
		results = append(results, res)
	}
	stats.Output = len(results)
	return results, stats
}

// Formalize tags a single row.
func (f *Formalizer) Formalize(row logparse.ParsedTemplate) (Result, error) {
	if strings.TrimSpace(row.Template) == "" {
		return Result{}, ErrEmptyTemplate
	}

	args := row.Arguments
	placeholders := placeholderOffsets(row.Template)
	truncated := 0
	if diff := len(args) - len(placeholders); diff > 0 && diff < len(args) {
		args = args[:len(args)-diff]
		truncated = diff
	}
	if len(args) != len(placeholders) {
		return Result{}, ErrCountMismatch
	}

	types := make([]string, len(args))
	var b strings.Builder
	last := 0
	for i, arg := range args {
		at := placeholders[i]
		b.WriteString(row.Template[last:at])
		candidates := f.registry.Match(arg)
		if len(candidates) == 0 {
			b.WriteString("{}")
		} else {
			chosen := candidates[f.rng.IntN(len(candidates))]
			types[i] = chosen.Name
			b.WriteString("{" + chosen.Name + "}")
		}
		last = at + len("{}")
	}
	b.WriteString(row.Template[last:])

	return Result{
		Template:  b.String(),
		Arguments: append([]string(nil), args...),
		Types:     types,
		Raw:       row.Raw,
		Parsed:    row.Template,
		Truncated: truncated,
	}, nil
}

// placeholderOffsets returns the byte offsets of every "{}" in s.
func placeholderOffsets(s string) []int {
	var offsets []int
	for i := 0; i < len(s); {
		j := strings.Index(s[i:], "{}")
		if j < 0 {
			break
		}
		offsets = append(offsets, i+j)
		i += j + len("{}")
	}
	return offsets
}
