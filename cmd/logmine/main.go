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

// Package main implements the logmine CLI, which mines logging call sites
// from Java and C repositories into log templates.
//
// Usage:
//
//	logmine init                        Create .logmine/project.yaml
//	logmine mine <path|git-url>         Mine a local or cloned checkout
//	logmine sample <owner/name>         Sample and mine a GitHub repository
//	logmine add <owner/name>...         Enqueue repositories
//	logmine run                         Drain the repository queue
//	logmine status [--json]             Show queue and template counts
//	logmine templates <source|id>       List stored templates
//	logmine query <sql>                 Run a read-only SQL query
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/logmine/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags are accepted before the command name and shared by every
// command.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
	Debug   bool
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "", "Path to .logmine/project.yaml (default: search upward from the working directory)")
		envFile     = flag.String("env-file", ".env", "Dotenv file loaded before reading the environment")
		globals     GlobalFlags
	)
	flag.BoolVar(&globals.JSON, "json", false, "Machine-readable JSON output (implies --quiet)")
	flag.BoolVarP(&globals.Quiet, "quiet", "q", false, "Suppress progress output")
	flag.BoolVar(&globals.NoColor, "no-color", false, "Disable colored output")
	flag.BoolVar(&globals.Debug, "debug", false, "Enable debug logging")
	flag.CommandLine.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `logmine - log template miner

logmine finds logging calls in Java (log4j, slf4j, java.util.logging) and
C (printf family) code and turns them into log templates with named
placeholders.

Usage:
  logmine [global options] <command> [options]

Commands:
  init          Create .logmine/project.yaml configuration
  mine          Mine a local checkout or a git URL
  sample        Sample a GitHub repository remotely and mine the sample
  add           Add repositories to the queue
  run           Mine queued repositories until the queue is empty
  status        Show queue and template counts
  templates     List the stored templates of a repository
  query         Run a read-only SQL query against the project database
  completion    Generate shell completion script (bash|zsh|fish)

Global Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  logmine init -y
  logmine mine . --language java
  logmine mine https://github.com/acme/widget.git --framework log4j
  logmine sample acme/widget --seed 7
  logmine add acme/widget acme/gadget && logmine run
  logmine --json status
  logmine templates acme/widget --limit 20

Environment Variables:
  GITHUB_TOKEN   Token for the GitHub GraphQL API (sample, add, run)
  LOGMINE_DB     Database path override
  LOGMINE_SEED   Seed for every random choice of a run

For detailed command help: logmine <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("logmine version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	if globals.JSON {
		globals.Quiet = true
	}
	ui.InitColors(globals.NoColor || os.Getenv("NO_COLOR") != "")
	loadEnvFile(*envFile)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, globals)
	case "mine":
		runMine(cmdArgs, *configPath, globals)
	case "sample":
		runSample(cmdArgs, *configPath, globals)
	case "add":
		runAdd(cmdArgs, *configPath, globals)
	case "run":
		runQueue(cmdArgs, *configPath, globals)
	case "status":
		runStatus(cmdArgs, *configPath, globals)
	case "templates":
		runTemplates(cmdArgs, *configPath, globals)
	case "query":
		runQuery(cmdArgs, *configPath, globals)
	case "completion":
		runCompletion(cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing default file is not an error.
func loadEnvFile(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return
	}
	if err := godotenv.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot load %s: %v\n", path, err)
	}
}
