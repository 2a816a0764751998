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
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/logmine/internal/bootstrap"
	"github.com/kraklabs/logmine/internal/errors"
	"github.com/kraklabs/logmine/internal/output"
	"github.com/kraklabs/logmine/internal/ui"
	"github.com/kraklabs/logmine/pkg/ingestion"
	"github.com/kraklabs/logmine/pkg/storage"
)

// StatusResult is the project status for JSON output.
type StatusResult struct {
	ProjectID  string           `json:"project_id"`
	Database   string           `json:"database"`
	Connected  bool             `json:"connected"`
	Stats      *storage.Stats   `json:"stats,omitempty"`
	Failures   []FailureSummary `json:"failures,omitempty"`
	Lock       *LockInfo        `json:"lock,omitempty"`
	Checkpoint *CheckpointInfo  `json:"checkpoint,omitempty"`
	Error      string           `json:"error,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// FailureSummary is one repository that failed to mine.
type FailureSummary struct {
	Repository string `json:"repository"`
	Reason     string `json:"reason"`
}

// CheckpointInfo describes an interrupted run that "logmine run" will
// resume.
type CheckpointInfo struct {
	RunID     string `json:"run_id"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

const statusFailureLimit = 10

// runStatus shows queue and template counts for the project.
func runStatus(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logmine status [options]

Shows the queue, stored templates, the run lock and any interrupted run.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	asJSON := *jsonOutput || globals.JSON

	cfg, root, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot load configuration", err.Error(), "Run 'logmine init' first", err), asJSON)
	}

	logger := newLogger(GlobalFlags{Quiet: true, Debug: globals.Debug})
	result := collectStatus(context.Background(), cfg, root, logger)

	if asJSON {
		_ = output.JSON(result)
	} else {
		printStatus(result)
	}
	if !result.Connected {
		os.Exit(errors.ExitDatabase)
	}
}

// collectStatus gathers the status. Database errors land in Error so the
// lock and checkpoint are still reported.
func collectStatus(ctx context.Context, cfg *Config, root string, logger *slog.Logger) *StatusResult {
	result := &StatusResult{ProjectID: cfg.ProjectID, Timestamp: time.Now()}

	if lock, err := NewRunLock(ConfigDir(root)); err == nil {
		result.Lock = lock.Holder()
	}
	pcfg := cfg.pipelineConfig(root)
	if cp, err := ingestion.NewCheckpointManager(pcfg.IngestionConfig.CheckpointPath).LoadCheckpoint(cfg.ProjectID); err == nil && cp != nil {
		result.Checkpoint = &CheckpointInfo{RunID: cp.RunID, Completed: len(cp.Completed), Failed: len(cp.Failed)}
	}

	path, err := bootstrap.ResolveDatabasePath(cfg.projectConfig())
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Database = path

	backend, err := cfg.openBackend(logger)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer func() { _ = backend.Close() }()
	result.Connected = true

	stats, err := backend.Stats(ctx)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Stats = stats
	result.Failures, err = recentFailures(ctx, backend, statusFailureLimit)
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func recentFailures(ctx context.Context, backend storage.Backend, limit int) ([]FailureSummary, error) {
	res, err := backend.Query(ctx, `
		SELECT owner || '/' || name, failure_reason
		FROM repositories
		WHERE processed = 1 AND successfully_processed = 0
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	out := make([]FailureSummary, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) < 2 {
			continue
		}
		out = append(out, FailureSummary{Repository: fmt.Sprint(row[0]), Reason: fmt.Sprint(row[1])})
	}
	return out, nil
}

func printStatus(r *StatusResult) {
	ui.Header("logmine Project Status")
	ui.Field("Project ID:", r.ProjectID)
	ui.Field("Database:  ", r.Database)
	fmt.Fprintln(ui.Output)

	if r.Stats != nil {
		ui.SubHeader("Queue:")
		fmt.Fprintf(ui.Output, "  Repositories:  %s\n", ui.CountText(r.Stats.Repositories))
		fmt.Fprintf(ui.Output, "  Pending:       %s\n", ui.CountText(r.Stats.Pending))
		fmt.Fprintf(ui.Output, "  Locked:        %s\n", ui.CountText(r.Stats.Locked))
		fmt.Fprintf(ui.Output, "  Processed:     %s\n", ui.CountText(r.Stats.Processed))
		fmt.Fprintf(ui.Output, "  Successful:    %s (%s)\n", ui.CountText(r.Stats.Successful), ui.Percent(r.Stats.Successful, r.Stats.Processed))
		fmt.Fprintln(ui.Output)
		ui.SubHeader("Templates:")
		fmt.Fprintf(ui.Output, "  Stored:        %s\n", ui.CountText(r.Stats.Templates))
	}

	if len(r.Failures) > 0 {
		fmt.Fprintln(ui.Output)
		ui.SubHeader("Recent Failures:")
		for _, f := range r.Failures {
			fmt.Fprintf(ui.Output, "  %-32s %s\n", f.Repository, ui.DimText(f.Reason))
		}
	}

	if r.Lock != nil {
		fmt.Fprintln(ui.Output)
		ui.Infof("Run in progress: PID %d, running for %s", r.Lock.PID, FormatDuration(time.Since(r.Lock.StartedAt)))
	}
	if r.Checkpoint != nil {
		ui.Warningf("Interrupted run %s: %d completed, %d failed. 'logmine run' resumes it.",
			r.Checkpoint.RunID, r.Checkpoint.Completed, r.Checkpoint.Failed)
	}
	if r.Error != "" {
		ui.Errorf("%s", r.Error)
	}
}
