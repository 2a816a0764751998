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

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/logmine/internal/errors"
	"github.com/kraklabs/logmine/internal/ui"
	"github.com/kraklabs/logmine/pkg/ingestion"
	"github.com/kraklabs/logmine/pkg/sampler"
)

// runSample mines a GitHub repository through the heuristic sampler
// without cloning it.
func runSample(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("sample", flag.ExitOnError)
	var df dialectFlags
	df.register(fs)
	fileCount := fs.Int("file-count", 0, "Files to keep from the sample (default: sampler.file_count)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logmine sample <owner/name> [options]

Walks the repository tree over the GitHub API, picks a bounded random sample
of source files and mines them. The language defaults to the repository's
primary language.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Environment:
  GITHUB_TOKEN    Token for the GitHub GraphQL API (required)

Examples:
  logmine sample apache/kafka
  logmine sample https://github.com/redis/redis --language c --seed 42
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Missing repository",
			"The sample command takes exactly one owner/name",
			"Run 'logmine sample apache/kafka'",
		), globals.JSON)
	}
	repo, err := sampler.ParseRepository(fs.Arg(0))
	if err != nil {
		errors.FatalError(errors.NewInputError("Invalid repository", err.Error(), "Use the owner/name form"), globals.JSON)
	}

	cfg, root, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot load configuration", err.Error(), "Run 'logmine init' first", err), globals.JSON)
	}
	if cfg.GitHub.Token == "" {
		errors.FatalError(errors.NewConfigError(
			"GitHub token not set",
			"The sampler talks to the GitHub GraphQL API, which requires a token",
			"export GITHUB_TOKEN=<token> or add it to .env",
			nil,
		), globals.JSON)
	}

	pcfg := cfg.pipelineConfig(root)
	df.apply(fs, &pcfg)
	if *fileCount > 0 {
		pcfg.Sampler.FileCount = *fileCount
	}
	if err := pcfg.Sampler.Validate(); err != nil {
		errors.FatalError(errors.NewInputError("Invalid sampler settings", err.Error(), "Check the sampler section of .logmine/project.yaml"), globals.JSON)
	}
	if pcfg.Language != "" {
		if err := validateDialectFlags(pcfg.Language, pcfg.Framework); err != nil {
			errors.FatalError(err, globals.JSON)
		}
	}

	logger := newLogger(globals)
	ctx, cancel := signalContext(logger)
	defer cancel()
	startMetrics(ctx, df.metricsAddr, logger)

	backend, err := cfg.openBackend(logger)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError("Cannot open project database", err.Error(), "Run 'logmine init' first", err), globals.JSON)
	}
	defer func() { _ = backend.Close() }()

	miner := ingestion.NewRemoteMiner(cfg.githubClient(logger), pcfg, backend, logger)
	spinner := NewSpinner(NewProgressConfig(globals), stageDescription("sample"))
	res, err := miner.Mine(ctx, repo)
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		if res != nil && res.Result != nil && globals.JSON {
			_ = emitResult(res.Result, globals, df.report)
		}
		errors.FatalError(errors.Classify(err), globals.JSON)
	}

	if !globals.JSON && !df.report.jsonl {
		printRepositoryInfo(repo, res)
	}
	if err := emitResult(res.Result, globals, df.report); err != nil {
		errors.FatalError(errors.Classify(err), globals.JSON)
	}
}

// printRepositoryInfo prints the metadata that drove a remote run.
func printRepositoryInfo(repo sampler.Repository, res *ingestion.RemoteResult) {
	fmt.Fprintln(ui.Output)
	ui.Header(repo.String())
	if res.Info != nil {
		ui.Field("URL:      ", res.Info.URL)
		ui.Field("Stars:    ", res.Info.Stars)
		ui.Field("Disk (KB):", res.Info.DiskUsage)
		ui.Field("Language: ", res.Info.PrimaryLanguage)
	}
	if res.Qualified {
		ui.Success("Repository qualifies for the dataset")
	} else {
		ui.Warning("Repository does not meet the dataset thresholds")
	}
}
