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

package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/logmine/internal/output"
	"github.com/kraklabs/logmine/internal/ui"
	"github.com/kraklabs/logmine/pkg/ingestion"
)

// reportFlags select how a finished run is rendered.
type reportFlags struct {
	show      int
	templates bool
	jsonl     bool
}

// emitResult writes res as JSON, JSON lines or a colored summary.
func emitResult(res *ingestion.Result, globals GlobalFlags, rf reportFlags) error {
	switch {
	case rf.jsonl:
		lines := output.NewJSONLines(os.Stdout)
		for _, t := range res.Templates {
			if err := lines.Write(output.NewTemplateJSON(res.Source, res.RepositoryID, t)); err != nil {
				return err
			}
		}
		return nil
	case globals.JSON:
		report := output.NewRunReport(res)
		if rf.templates {
			report = report.IncludeTemplates(res)
		}
		return output.JSON(report)
	default:
		printRunResult(res, rf.show)
		return nil
	}
}

// printRunResult prints the run summary and up to show templates.
func printRunResult(res *ingestion.Result, show int) {
	fmt.Fprintln(ui.Output)
	ui.Header("Mining Complete")
	ui.Field("Repository:", res.Source)
	ui.Field("Run ID:    ", ui.DimText(res.RunID))
	ui.Field("Dialect:   ", res.Dialect)
	ui.Field("Seed:      ", res.Seed)
	fmt.Fprintln(ui.Output)

	ui.SubHeader("Pipeline:")
	if res.SamplerStats.RoundTrips > 0 {
		fmt.Fprintf(ui.Output, "  Round trips:   %s\n", ui.CountText(res.SamplerStats.RoundTrips))
	}
	fmt.Fprintf(ui.Output, "  Files:         %s\n", ui.CountText(res.FilesLoaded))
	fmt.Fprintf(ui.Output, "  Statements:    %s\n", ui.CountText(res.Extract.Statements))
	fmt.Fprintf(ui.Output, "  Parsed:        %s\n", ui.CountText(res.Parsed))
	fmt.Fprintf(ui.Output, "  Filtered:      %s (%s)\n", ui.CountText(res.Filtered), ui.Percent(res.Filtered, res.Parsed))
	fmt.Fprintf(ui.Output, "  Formalized:    %s\n", ui.CountText(res.Formalize.Output))
	fmt.Fprintf(ui.Output, "  Stored:        %s\n", ui.CountText(res.Stored))
	if errs := res.LexErrors + res.ParseErrors; errs > 0 {
		ui.Warningf("%d statements could not be parsed (%d lex, %d parse)", errs, res.LexErrors, res.ParseErrors)
	}
	if res.DecodeErrors > 0 {
		ui.Warningf("%d files failed to decode", res.DecodeErrors)
	}
	if res.Duplicates > 0 {
		ui.Infof("%d duplicate templates across files dropped", res.Duplicates)
	}
	if res.Rejected > 0 {
		ui.Warningf("%d records rejected at the storage boundary", res.Rejected)
	}

	ui.Counts("Skipped Files:", res.SkipReasons)
	ui.Counts("Filter Reasons:", res.FilterReasons)

	if len(res.StageDurations) > 0 {
		ui.SubHeader("Timings:")
		for _, stage := range sortedStages(res.StageDurations) {
			fmt.Fprintf(ui.Output, "  %-10s %s\n", stage+":", res.StageDurations[stage].Round(time.Millisecond))
		}
		fmt.Fprintf(ui.Output, "  %-10s %s\n", "total:", res.TotalDuration.Round(time.Millisecond))
	}

	if show > 0 && len(res.Templates) > 0 {
		fmt.Fprintln(ui.Output)
		ui.SubHeader("Templates:")
		for i, t := range res.Templates {
			if i == show {
				fmt.Fprintf(ui.Output, "  %s\n", ui.DimText(fmt.Sprintf("... %d more", len(res.Templates)-show)))
				break
			}
			fmt.Fprintf(ui.Output, "  %s\n", ui.Template(t.Template))
			if len(t.Arguments) > 0 {
				fmt.Fprintf(ui.Output, "    %s\n", ui.DimText(strings.Join(t.Arguments, ", ")))
			}
		}
	}
}

var stageOrder = []string{
	ingestion.StageLoad,
	ingestion.StageDetect,
	ingestion.StageExtract,
	ingestion.StageParse,
	ingestion.StageFilter,
	ingestion.StageFormalize,
	ingestion.StageValidate,
	ingestion.StagePersist,
}

// sortedStages orders stages by pipeline position; unknown stages follow
// by name.
func sortedStages(d map[string]time.Duration) []string {
	rank := func(s string) int {
		for i, o := range stageOrder {
			if o == s {
				return i
			}
		}
		return len(stageOrder)
	}
	out := make([]string, 0, len(d))
	for s := range d {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := rank(out[i]), rank(out[j])
		if ri != rj {
			return ri < rj
		}
		return out[i] < out[j]
	})
	return out
}
