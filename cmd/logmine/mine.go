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
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/logmine/internal/errors"
	"github.com/kraklabs/logmine/pkg/ingestion"
)

// dialectFlags are shared by the mining commands.
type dialectFlags struct {
	language, framework, source string
	seed                        uint64
	metricsAddr                 string
	report                      reportFlags
}

func (d *dialectFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&d.language, "language", "", "Language to mine (java, c); overrides the config")
	fs.StringVar(&d.framework, "framework", "", "Logging framework (log4j, slf4j, utillogger, printf); detected when empty")
	fs.StringVar(&d.source, "source", "", "Source name stored with every template (default: owner/name or the path)")
	fs.Uint64Var(&d.seed, "seed", 0, "Seed for every random choice (default: LOGMINE_SEED or random)")
	fs.StringVar(&d.metricsAddr, "metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	fs.IntVar(&d.report.show, "show", 10, "Templates to print in the summary")
	fs.BoolVar(&d.report.templates, "templates", false, "Include templates in --json output")
	fs.BoolVar(&d.report.jsonl, "jsonl", false, "Stream templates to stdout as JSON lines")
}

// apply copies the flags that were set onto the pipeline config.
func (d *dialectFlags) apply(fs *flag.FlagSet, pcfg *ingestion.Config) {
	if d.language != "" {
		pcfg.Language = d.language
	}
	if d.framework != "" {
		pcfg.Framework = d.framework
	}
	if d.source != "" {
		pcfg.Source = d.source
	}
	if fs.Changed("seed") {
		pcfg.IngestionConfig.Seed = d.seed
	}
}

// runMine mines a local checkout or a git URL.
func runMine(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("mine", flag.ExitOnError)
	var df dialectFlags
	df.register(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logmine mine <path|git-url> [options]

Mines every source file of a local checkout, or of a shallow clone of a git
URL, and stores the templates in the project database.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  logmine mine .
  logmine mine ../server --language java --framework log4j
  logmine mine https://github.com/acme/widget.git --seed 7
  logmine --json mine . --templates
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Missing repository source",
			"The mine command takes exactly one path or git URL",
			"Run 'logmine mine .' to mine the working directory",
		), globals.JSON)
	}

	cfg, root, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot load configuration", err.Error(), "Run 'logmine init' first", err), globals.JSON)
	}

	pcfg := cfg.pipelineConfig(root)
	df.apply(fs, &pcfg)

	source, err := repoSource(fs.Arg(0))
	if err != nil {
		errors.FatalError(errors.NewInputError("Invalid repository source", err.Error(), "Pass a directory or a git URL"), globals.JSON)
	}
	pcfg.RepoSource = source
	if pcfg.Language == "" {
		errors.FatalError(errors.NewInputError(
			"No language set",
			"Neither --language nor the project configuration names a language",
			"Pass --language java or --language c",
		), globals.JSON)
	}
	if err := validateDialectFlags(pcfg.Language, pcfg.Framework); err != nil {
		errors.FatalError(err, globals.JSON)
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

	p, err := ingestion.NewPipeline(pcfg, backend, logger)
	if err != nil {
		errors.FatalError(errors.NewInputError("Cannot create pipeline", err.Error(), "Check the language and ingestion.registry_path settings"), globals.JSON)
	}
	defer func() { _ = p.Close() }()

	spinner := NewSpinner(NewProgressConfig(globals), stageDescription(ingestion.StageLoad))
	res, err := p.Run(ctx)
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		if res != nil && globals.JSON {
			_ = emitResult(res, globals, df.report)
		}
		errors.FatalError(errors.Classify(err), globals.JSON)
	}

	if err := emitResult(res, globals, df.report); err != nil {
		errors.FatalError(errors.Classify(err), globals.JSON)
	}
}

// repoSource classifies arg as a git URL or a local directory.
func repoSource(arg string) (ingestion.RepoSource, error) {
	for _, prefix := range []string{"https://", "http://", "ssh://", "git@", "file://"} {
		if strings.HasPrefix(arg, prefix) {
			return ingestion.RepoSource{Type: "git_url", Value: arg}, nil
		}
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return ingestion.RepoSource{}, fmt.Errorf("resolve %s: %w", arg, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return ingestion.RepoSource{}, fmt.Errorf("stat %s: %w", arg, err)
	}
	if !info.IsDir() {
		return ingestion.RepoSource{}, fmt.Errorf("%s is not a directory", arg)
	}
	return ingestion.RepoSource{Type: "local_path", Value: abs}, nil
}
