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
	"github.com/kraklabs/logmine/internal/output"
	"github.com/kraklabs/logmine/internal/ui"
	"github.com/kraklabs/logmine/pkg/ingestion"
	"github.com/kraklabs/logmine/pkg/sampler"
	"github.com/kraklabs/logmine/pkg/storage"
)

// addOutcome is one line of "logmine add" output.
type addOutcome struct {
	Repository string `json:"repository"`
	ID         int64  `json:"id,omitempty"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
}

// runAdd enqueues repositories for "logmine run".
func runAdd(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	language := fs.String("language", "", "Language to mine the repositories with")
	framework := fs.String("framework", "", "Logging framework to mine the repositories with")
	languages := fs.String("languages", "", "Accepted primary languages, comma-separated (default: config languages)")
	fetchInfo := fs.Bool("fetch-info", false, "Look up stars, size and languages on GitHub before queueing")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logmine add <owner/name>... [options]

Adds repositories to the mining queue. Repositories already queued are left
untouched.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  logmine add apache/kafka elastic/elasticsearch
  logmine add redis/redis --language c --framework printf
  logmine add --fetch-info apache/zookeeper
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		errors.FatalError(errors.NewInputError(
			"No repositories given",
			"The add command takes one or more owner/name arguments",
			"Run 'logmine add apache/kafka'",
		), globals.JSON)
	}

	cfg, _, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot load configuration", err.Error(), "Run 'logmine init' first", err), globals.JSON)
	}
	if err := validateDialectFlags(*language, *framework); err != nil {
		errors.FatalError(err, globals.JSON)
	}
	allowed := cfg.Languages
	if *languages != "" {
		allowed = ingestion.ParseLanguages(*languages)
	}
	if *fetchInfo && cfg.GitHub.Token == "" {
		errors.FatalError(errors.NewConfigError(
			"GitHub token not set",
			"--fetch-info queries the GitHub GraphQL API, which requires a token",
			"export GITHUB_TOKEN=<token> or add it to .env",
			nil,
		), globals.JSON)
	}

	logger := newLogger(globals)
	ctx, cancel := signalContext(logger)
	defer cancel()

	backend, err := cfg.openBackend(logger)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError("Cannot open project database", err.Error(), "Run 'logmine init' first", err), globals.JSON)
	}
	defer func() { _ = backend.Close() }()

	var client *sampler.GitHubClient
	if *fetchInfo {
		client = cfg.githubClient(logger)
	}

	var outcomes []addOutcome
	for _, arg := range fs.Args() {
		repo, err := sampler.ParseRepository(arg)
		if err != nil {
			outcomes = append(outcomes, addOutcome{Repository: arg, Status: "invalid", Reason: err.Error()})
			continue
		}

		var info *sampler.RepositoryInfo
		if client != nil {
			info, err = client.Info(ctx, repo)
			if err != nil {
				if ctx.Err() != nil {
					errors.FatalError(errors.Classify(ctx.Err()), globals.JSON)
				}
				outcomes = append(outcomes, addOutcome{Repository: repo.String(), Status: "failed", Reason: err.Error()})
				continue
			}
		}

		rec, reason := queueRecord(repo, info, *language, *framework, allowed)
		if reason != "" {
			outcomes = append(outcomes, addOutcome{Repository: repo.String(), Status: "skipped", Reason: reason})
			continue
		}
		id, created, err := backend.AddRepository(ctx, rec)
		if err != nil {
			errors.FatalError(errors.NewDatabaseError("Cannot queue repository", err.Error(), "Check the project database", err), globals.JSON)
		}
		status := "added"
		if !created {
			status = "exists"
		}
		logger.Debug("queue.add", "repo", repo.String(), "id", id, "status", status)
		outcomes = append(outcomes, addOutcome{Repository: repo.String(), ID: id, Status: status})
	}

	if globals.JSON {
		if err := output.JSON(outcomes); err != nil {
			errors.FatalError(errors.Classify(err), true)
		}
		return
	}
	printAddOutcomes(outcomes)
}

// queueRecord builds the queue row for repo. A non-empty reason means the
// repository's primary language is not accepted.
func queueRecord(repo sampler.Repository, info *sampler.RepositoryInfo, language, framework string, allowed ingestion.Languages) (storage.RepositoryRecord, string) {
	rec := storage.RepositoryRecord{
		Owner:        repo.Owner,
		Name:         repo.Name,
		URL:          "https://github.com/" + repo.String(),
		MainLanguage: language,
		Framework:    framework,
	}
	if info == nil {
		return rec, ""
	}
	if info.URL != "" {
		rec.URL = info.URL
	}
	rec.Stars = info.Stars
	rec.DiskUsage = info.DiskUsage
	rec.Languages = []string(ingestion.NewLanguages(info.Languages...))
	if rec.MainLanguage == "" {
		if len(allowed) > 0 && !allowed.Contains(info.PrimaryLanguage) {
			return rec, fmt.Sprintf("primary language %q not in %s", info.PrimaryLanguage, allowed)
		}
		rec.MainLanguage = info.PrimaryLanguage
	}
	return rec, ""
}

func printAddOutcomes(outcomes []addOutcome) {
	var added int
	for _, o := range outcomes {
		switch o.Status {
		case "added":
			added++
			ui.Successf("Queued %s (id %d)", o.Repository, o.ID)
		case "exists":
			ui.Infof("%s is already queued (id %d)", o.Repository, o.ID)
		default:
			ui.Warningf("%s %s: %s", o.Status, o.Repository, o.Reason)
		}
	}
	fmt.Fprintf(ui.Output, "\n%s repositories added. Run 'logmine run' to mine them.\n", ui.CountText(added))
}
