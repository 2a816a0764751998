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
	"time"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/logmine/internal/errors"
	"github.com/kraklabs/logmine/internal/output"
	"github.com/kraklabs/logmine/internal/ui"
	"github.com/kraklabs/logmine/pkg/ingestion"
)

// runQueue drains the repository queue.
func runQueue(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	seed := fs.Uint64("seed", 0, "Seed for every random choice (default: LOGMINE_SEED or random per repository)")
	fresh := fs.Bool("fresh", false, "Discard the checkpoint of an interrupted run")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logmine run [options]

Claims queued repositories one at a time, samples and mines each, and records
the outcome. An interrupted run keeps its checkpoint and resumes next time.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  logmine add apache/kafka && logmine run
  logmine run --metrics-addr :9090
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, root, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot load configuration", err.Error(), "Run 'logmine init' first", err), globals.JSON)
	}
	if cfg.GitHub.Token == "" {
		errors.FatalError(errors.NewConfigError(
			"GitHub token not set",
			"Queued repositories are sampled over the GitHub GraphQL API",
			"export GITHUB_TOKEN=<token> or add it to .env",
			nil,
		), globals.JSON)
	}

	lock, err := NewRunLock(ConfigDir(root))
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot create run lock", err.Error(), "Check permissions on .logmine/", err), globals.JSON)
	}
	acquired, err := lock.TryAcquire()
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot take run lock", err.Error(), "Check permissions on .logmine/", err), globals.JSON)
	}
	if !acquired {
		cause := "Another 'logmine run' is draining this queue"
		if h := lock.Holder(); h != nil {
			cause = fmt.Sprintf("Process %d has been draining this queue for %s", h.PID, FormatDuration(time.Since(h.StartedAt)))
		}
		errors.FatalError(errors.NewInputError("Queue is busy", cause, "Wait for it to finish or check 'logmine status'"), globals.JSON)
	}
	defer lock.Release()

	pcfg := cfg.pipelineConfig(root)
	if fs.Changed("seed") {
		pcfg.IngestionConfig.Seed = *seed
	}
	pcfg.RunID = uuid.NewString()

	logger := newLogger(globals)
	ctx, cancel := signalContext(logger)
	defer cancel()
	startMetrics(ctx, *metricsAddr, logger)

	backend, err := cfg.openBackend(logger)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError("Cannot open project database", err.Error(), "Run 'logmine init' first", err), globals.JSON)
	}
	defer func() { _ = backend.Close() }()

	checkpoints := ingestion.NewCheckpointManager(pcfg.IngestionConfig.CheckpointPath)
	if *fresh {
		if err := checkpoints.ClearCheckpoint(cfg.ProjectID); err != nil {
			errors.FatalError(errors.NewInternalError("Cannot clear checkpoint", err.Error(), "Remove .logmine/checkpoints by hand", err), globals.JSON)
		}
	}

	stats, err := backend.Stats(ctx)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError("Cannot read queue", err.Error(), "Check the project database", err), globals.JSON)
	}
	if stats.Pending == 0 {
		if globals.JSON {
			_ = output.JSON(ingestion.QueueSummary{})
			return
		}
		ui.Info("Queue is empty. Add repositories with 'logmine add <owner/name>'.")
		return
	}

	miner := ingestion.NewRemoteMiner(cfg.githubClient(logger), pcfg, backend, logger)
	runner := ingestion.NewQueueRunner(backend, checkpoints, cfg.ProjectID, pcfg.RunID, miner.MineRecord, logger)
	progress := newQueueProgress(NewProgressConfig(globals), stats.Pending)
	runner.OnRepository = progress.OnRepository

	start := time.Now()
	summary, err := runner.Drain(ctx)
	progress.Finish()

	if err != nil && globals.JSON {
		errors.FatalError(errors.Classify(err), true)
	}
	if globals.JSON {
		_ = output.JSON(summary)
		return
	}
	printQueueSummary(summary, time.Since(start))
	if err != nil {
		errors.FatalError(errors.Classify(err), false)
	}
}

func printQueueSummary(s ingestion.QueueSummary, elapsed time.Duration) {
	fmt.Fprintln(ui.Output)
	ui.Header("Queue Drained")
	if s.Resumed {
		ui.Info("Resumed an interrupted run")
	}
	ui.Field("Claimed:  ", ui.CountText(s.Claimed))
	ui.Field("Succeeded:", ui.CountText(s.Succeeded))
	ui.Field("Failed:   ", ui.CountText(s.Failed))
	if s.Skipped > 0 {
		ui.Field("Skipped:  ", ui.CountText(s.Skipped))
	}
	ui.Field("Templates:", ui.CountText(s.Templates))
	ui.Field("Elapsed:  ", FormatDuration(elapsed))
	if s.Failed > 0 {
		ui.Warning("Failure reasons are recorded per repository; see 'logmine status'")
	}
}
