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

// Package output renders command results as JSON for --json mode.
//
// Pretty JSON goes to stdout, errors to stderr:
//
//	if err := output.JSON(output.NewRunReport(res)); err != nil {
//	    errors.FatalError(err, true)
//	}
//
// Templates can also be streamed one object per line:
//
//	lines := output.NewJSONLines(os.Stdout)
//	for _, t := range res.Templates {
//	    _ = lines.Write(output.NewTemplateJSON(res.Source, res.RepositoryID, t))
//	}
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kraklabs/logmine/pkg/formalize"
	"github.com/kraklabs/logmine/pkg/ingestion"
)

// JSON writes data as pretty-printed JSON to stdout.
func JSON(data any) error {
	return JSONTo(os.Stdout, data)
}

// JSONTo writes data as pretty-printed JSON to w.
func JSONTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

// JSONLines writes one compact JSON value per line.
type JSONLines struct {
	enc *json.Encoder
	n   int
}

func NewJSONLines(w io.Writer) *JSONLines {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLines{enc: enc}
}

func (l *JSONLines) Write(v any) error {
	if err := l.enc.Encode(v); err != nil {
		return fmt.Errorf("JSON line %d: %w", l.n+1, err)
	}
	l.n++
	return nil
}

// Count is the number of lines written so far.
func (l *JSONLines) Count() int { return l.n }

// ErrorJSON is an error for machine consumption.
type ErrorJSON struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSONError writes err as JSON to stderr.
func JSONError(err error) error {
	return JSONErrorTo(os.Stderr, err)
}

func JSONErrorTo(w io.Writer, err error) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(ErrorJSON{Error: err.Error()}); encErr != nil {
		return fmt.Errorf("JSON error encoding failed: %w", encErr)
	}
	return nil
}

// TemplateJSON is one mined template.
type TemplateJSON struct {
	Source       string   `json:"source"`
	RepositoryID int64    `json:"repository_id,omitempty"`
	Template     string   `json:"template"`
	Arguments    []string `json:"arguments"`
	Types        []string `json:"types,omitempty"`
	Raw          string   `json:"raw"`
	Parsed       string   `json:"parsed"`
}

func NewTemplateJSON(source string, repositoryID int64, t formalize.Result) TemplateJSON {
	args := t.Arguments
	if args == nil {
		args = []string{}
	}
	return TemplateJSON{
		Source:       source,
		RepositoryID: repositoryID,
		Template:     t.Template,
		Arguments:    args,
		Types:        t.Types,
		Raw:          t.Raw,
		Parsed:       t.Parsed,
	}
}

// RunReport is the --json summary of one pipeline run. Durations are in
// milliseconds.
type RunReport struct {
	Source        string           `json:"source"`
	RepositoryID  int64            `json:"repository_id,omitempty"`
	RunID         string           `json:"run_id"`
	Seed          uint64           `json:"seed"`
	Dialect       string           `json:"dialect,omitempty"`
	Framework     string           `json:"detected_framework,omitempty"`
	FilesLoaded   int              `json:"files_loaded"`
	SkipReasons   map[string]int   `json:"skip_reasons,omitempty"`
	DecodeErrors  int              `json:"decode_errors"`
	RoundTrips    int              `json:"sampler_round_trips,omitempty"`
	Statements    int              `json:"statements"`
	LexErrors     int              `json:"lex_errors"`
	ParseErrors   int              `json:"parse_errors"`
	Parsed        int              `json:"parsed"`
	Filtered      int              `json:"filtered"`
	FilterReasons map[string]int   `json:"filter_reasons,omitempty"`
	Formalized    int              `json:"formalized"`
	Truncated     int              `json:"truncated"`
	Rejected      int              `json:"rejected"`
	Duplicates    int              `json:"duplicates"`
	Stored        int              `json:"stored"`
	StageMillis   map[string]int64 `json:"stage_ms,omitempty"`
	TotalMillis   int64            `json:"total_ms"`
	Error         string           `json:"error,omitempty"`
	Templates     []TemplateJSON   `json:"templates,omitempty"`
}

// NewRunReport summarizes res. Templates are left out; callers that want
// them set IncludeTemplates.
func NewRunReport(res *ingestion.Result) RunReport {
	r := RunReport{
		Source:        res.Source,
		RepositoryID:  res.RepositoryID,
		RunID:         res.RunID,
		Seed:          res.Seed,
		Dialect:       res.Dialect,
		Framework:     res.Detection.Framework,
		FilesLoaded:   res.FilesLoaded,
		SkipReasons:   res.SkipReasons,
		DecodeErrors:  res.DecodeErrors,
		RoundTrips:    res.SamplerStats.RoundTrips,
		Statements:    res.Extract.Statements,
		LexErrors:     res.LexErrors,
		ParseErrors:   res.ParseErrors,
		Parsed:        res.Parsed,
		Filtered:      res.Filtered,
		FilterReasons: res.FilterReasons,
		Formalized:    res.Formalize.Output,
		Truncated:     res.Formalize.Truncated,
		Rejected:      res.Rejected,
		Duplicates:    res.Duplicates,
		Stored:        res.Stored,
		TotalMillis:   millis(res.TotalDuration),
	}
	if len(res.StageDurations) > 0 {
		r.StageMillis = make(map[string]int64, len(res.StageDurations))
		for stage, d := range res.StageDurations {
			r.StageMillis[stage] = millis(d)
		}
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	return r
}

// IncludeTemplates attaches the mined templates to the report.
func (r RunReport) IncludeTemplates(res *ingestion.Result) RunReport {
	r.Templates = make([]TemplateJSON, len(res.Templates))
	for i, t := range res.Templates {
		r.Templates[i] = NewTemplateJSON(res.Source, res.RepositoryID, t)
	}
	return r
}

func millis(d time.Duration) int64 { return d.Milliseconds() }
