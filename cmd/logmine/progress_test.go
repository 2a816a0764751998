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
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/logmine/pkg/ingestion"
	"github.com/kraklabs/logmine/pkg/storage"
)

func TestNewProgressConfig(t *testing.T) {
	tests := []struct {
		name        string
		globals     GlobalFlags
		wantNoColor bool
	}{
		{name: "defaults", globals: GlobalFlags{}},
		{name: "quiet", globals: GlobalFlags{Quiet: true}},
		{name: "json implies quiet", globals: GlobalFlags{JSON: true, Quiet: true}},
		{name: "no color propagates", globals: GlobalFlags{NoColor: true}, wantNoColor: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewProgressConfig(tt.globals)
			// stderr is not a TTY under go test.
			assert.False(t, cfg.Enabled)
			assert.Equal(t, tt.wantNoColor, cfg.NoColor)
			assert.Equal(t, os.Stderr, cfg.Writer)
		})
	}
}

func TestNewProgressBar(t *testing.T) {
	assert.Nil(t, NewProgressBar(ProgressConfig{}, 100, "Test"))

	var buf bytes.Buffer
	bar := NewProgressBar(ProgressConfig{Enabled: true, Writer: &buf, NoColor: true}, 10, "Test")
	require.NotNil(t, bar)
	_ = bar.Set(5)
	_ = bar.Finish()

	bar = NewProgressBar(ProgressConfig{Enabled: true, Writer: &buf}, 0, "Empty")
	require.NotNil(t, bar)
	_ = bar.Finish()
}

func TestNewSpinner(t *testing.T) {
	assert.Nil(t, NewSpinner(ProgressConfig{}, "Test"))

	var buf bytes.Buffer
	spinner := NewSpinner(ProgressConfig{Enabled: true, Writer: &buf}, "Test")
	require.NotNil(t, spinner)
	_ = spinner.Add(1)
	_ = spinner.Finish()
}

func TestStageDescription(t *testing.T) {
	tests := []struct {
		stage string
		want  string
	}{
		{ingestion.StageLoad, "Loading files"},
		{ingestion.StageParse, "Parsing log statements"},
		{ingestion.StageFormalize, "Building templates"},
		{"sample", "Sampling repository"},
		{"unknown_stage", "unknown_stage"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			assert.Equal(t, tt.want, stageDescription(tt.stage))
		})
	}
}

func TestQueueProgress(t *testing.T) {
	repo := storage.RepositoryRecord{Owner: "acme", Name: "widget"}

	disabled := newQueueProgress(ProgressConfig{}, 3)
	disabled.OnRepository(repo, &ingestion.Result{Stored: 4}, nil)
	disabled.OnRepository(repo, nil, errors.New("boom"))
	disabled.Finish()
	assert.Equal(t, 4, disabled.templates)
	assert.Equal(t, 1, disabled.failed)

	var buf bytes.Buffer
	enabled := newQueueProgress(ProgressConfig{Enabled: true, Writer: &buf, NoColor: true}, 2)
	enabled.OnRepository(repo, &ingestion.Result{Stored: 1}, nil)
	enabled.Finish()
	assert.Equal(t, 1, enabled.templates)
}
