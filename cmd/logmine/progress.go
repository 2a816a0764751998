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
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/kraklabs/logmine/pkg/ingestion"
	"github.com/kraklabs/logmine/pkg/storage"
)

// ProgressConfig determines if and how progress should be displayed.
type ProgressConfig struct {
	// Enabled is false under --json or --quiet, or when stderr is not a
	// TTY.
	Enabled bool
	Writer  io.Writer
	NoColor bool
}

func NewProgressConfig(globals GlobalFlags) ProgressConfig {
	enabled := !globals.Quiet && isatty.IsTerminal(os.Stderr.Fd())

	return ProgressConfig{
		Enabled: enabled,
		Writer:  os.Stderr,
		NoColor: globals.NoColor,
	}
}

// NewProgressBar returns nil when progress is disabled. Callers check for
// nil before use.
func NewProgressBar(cfg ProgressConfig, total int64, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}

	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// NewSpinner is NewProgressBar for work of unknown size.
func NewSpinner(cfg ProgressConfig, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}

	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
	)
}

// stageDescription is the spinner label for a pipeline stage.
func stageDescription(stage string) string {
	switch stage {
	case ingestion.StageLoad:
		return "Loading files"
	case ingestion.StageDetect:
		return "Detecting logging framework"
	case ingestion.StageExtract, ingestion.StageParse:
		return "Parsing log statements"
	case ingestion.StageFilter, ingestion.StageFormalize:
		return "Building templates"
	case ingestion.StagePersist:
		return "Writing to database"
	case "sample":
		return "Sampling repository"
	default:
		return stage
	}
}

// queueProgress advances a bar per finished repository. A nil bar makes
// every method a no-op.
type queueProgress struct {
	bar       *progressbar.ProgressBar
	failed    int
	templates int
}

func newQueueProgress(cfg ProgressConfig, pending int) *queueProgress {
	return &queueProgress{bar: NewProgressBar(cfg, int64(pending), "Mining repositories")}
}

// OnRepository matches ingestion.QueueRunner.OnRepository.
func (p *queueProgress) OnRepository(repo storage.RepositoryRecord, res *ingestion.Result, err error) {
	if err != nil {
		p.failed++
	} else if res != nil {
		p.templates += res.Stored
	}
	if p.bar == nil {
		return
	}
	p.bar.Describe(repo.FullName())
	_ = p.bar.Add(1)
}

func (p *queueProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
