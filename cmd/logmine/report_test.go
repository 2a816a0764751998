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
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/logmine/internal/ui"
	"github.com/kraklabs/logmine/pkg/formalize"
	"github.com/kraklabs/logmine/pkg/ingestion"
)

func captureUI(t *testing.T) *bytes.Buffer {
	t.Helper()
	origColor, origOut := color.NoColor, ui.Output
	t.Cleanup(func() {
		color.NoColor = origColor
		ui.Output = origOut
	})
	color.NoColor = true
	var buf bytes.Buffer
	ui.Output = &buf
	return &buf
}

func TestSortedStages(t *testing.T) {
	got := sortedStages(map[string]time.Duration{
		ingestion.StagePersist: time.Millisecond,
		"zeta":                 time.Millisecond,
		ingestion.StageLoad:    time.Millisecond,
		"alpha":                time.Millisecond,
		ingestion.StageParse:   time.Millisecond,
	})
	assert.Equal(t, []string{ingestion.StageLoad, ingestion.StageParse, ingestion.StagePersist, "alpha", "zeta"}, got)
	assert.Empty(t, sortedStages(nil))
}

func sampleResult() *ingestion.Result {
	return &ingestion.Result{
		Source:        "acme/widget",
		RunID:         "run-1",
		Seed:          7,
		Dialect:       "java/slf4j",
		FilesLoaded:   3,
		SkipReasons:   map[string]int{"excluded": 2},
		Parsed:        4,
		Filtered:      1,
		FilterReasons: map[string]int{"too_short": 1},
		Stored:        3,
		LexErrors:     1,
		Templates: []formalize.Result{
			{Template: "Starting server on port {port}", Arguments: []string{"port"}},
			{Template: "Cache miss for {key}", Arguments: []string{"key"}},
			{Template: "Shutting down"},
		},
		StageDurations: map[string]time.Duration{
			ingestion.StageParse: 2 * time.Millisecond,
			ingestion.StageLoad:  time.Millisecond,
		},
		TotalDuration: 3 * time.Millisecond,
	}
}

func TestPrintRunResult(t *testing.T) {
	buf := captureUI(t)
	printRunResult(sampleResult(), 2)
	out := buf.String()

	assert.Contains(t, out, "Mining Complete")
	assert.Contains(t, out, "acme/widget")
	assert.Contains(t, out, "java/slf4j")
	assert.Contains(t, out, "Filtered:      1 (25.0%)")
	assert.Contains(t, out, "1 statements could not be parsed (1 lex, 0 parse)")
	assert.Contains(t, out, "excluded")
	assert.Contains(t, out, "too_short")
	assert.Contains(t, out, "Starting server on port {port}")
	assert.Contains(t, out, "Cache miss for {key}")
	assert.NotContains(t, out, "Shutting down")
	assert.Contains(t, out, "... 1 more")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("load:")), bytes.Index(buf.Bytes(), []byte("parse:")))
}

func TestPrintRunResult_NoTemplates(t *testing.T) {
	buf := captureUI(t)
	res := sampleResult()
	printRunResult(res, 0)
	assert.NotContains(t, buf.String(), "Templates:")
}
