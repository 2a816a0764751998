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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/logmine/internal/bootstrap"
	"github.com/kraklabs/logmine/internal/errors"
	"github.com/kraklabs/logmine/internal/output"
	"github.com/kraklabs/logmine/internal/ui"
	"github.com/kraklabs/logmine/pkg/logparse"
)

type initFlags struct {
	force, nonInteractive bool
	projectID, language   string
	framework, database   string
}

// runInit creates .logmine/project.yaml in the working directory and
// initializes the project database.
func runInit(args []string, globals GlobalFlags) {
	flags := parseInitFlags(args)

	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot get current directory", err.Error(), "", err), globals.JSON)
	}

	configPath := ConfigPath(cwd)
	if _, err := os.Stat(configPath); err == nil && !flags.force {
		errors.FatalError(errors.NewInputError(
			"Configuration already exists",
			configPath+" is present",
			"Use --force to overwrite it",
		), globals.JSON)
	}

	cfg := createInitConfig(cwd, flags)
	if !flags.nonInteractive && !globals.JSON {
		runInteractiveConfig(bufio.NewReader(os.Stdin), os.Stdout, cfg)
	}
	if err := validateDialectFlags(cfg.Language, cfg.Framework); err != nil {
		errors.FatalError(err, globals.JSON)
	}

	if err := SaveConfig(cfg, configPath); err != nil {
		errors.FatalError(errors.NewConfigError("Cannot save configuration", err.Error(), "Check write permissions on "+ConfigDir(cwd), err), globals.JSON)
	}

	logger := newLogger(globals)
	info, err := bootstrap.InitProject(cfg.projectConfig(), logger)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError("Cannot initialize project database", err.Error(), "Check LOGMINE_DB or the database setting", err), globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(map[string]any{
			"config":         configPath,
			"project_id":     info.ProjectID,
			"database":       info.DatabasePath,
			"schema_version": info.SchemaVersion,
		})
		return
	}

	ui.Successf("Created %s", configPath)
	ui.Successf("Database ready at %s", ui.DimText(info.DatabasePath))
	if addToGitignore(cwd) {
		ui.Info("Added .logmine/ to .gitignore")
	}
	printNextSteps()
}

func parseInitFlags(args []string) initFlags {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	var f initFlags
	fs.BoolVar(&f.force, "force", false, "Overwrite existing configuration")
	fs.BoolVarP(&f.nonInteractive, "yes", "y", false, "Non-interactive mode (use defaults)")
	fs.StringVar(&f.projectID, "project-id", "", "Project identifier (default: directory name)")
	fs.StringVar(&f.language, "language", "", "Pin the language (java, c)")
	fs.StringVar(&f.framework, "framework", "", "Pin the logging framework (log4j, slf4j, utillogger, printf)")
	fs.StringVar(&f.database, "db", "", "SQLite database path (default: ~/.logmine/data/<project_id>/logmine.db)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logmine init [options]

Creates .logmine/project.yaml and the project database.

Examples:
  logmine init                      # Interactive setup
  logmine init -y                   # Use all defaults
  logmine init -y --language java --framework slf4j

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	return f
}

func createInitConfig(cwd string, f initFlags) *Config {
	pid := f.projectID
	if pid == "" {
		pid = filepath.Base(cwd)
	}
	cfg := DefaultConfig(pid)
	cfg.Language = f.language
	cfg.Framework = f.framework
	cfg.Database = f.database
	return cfg
}

func runInteractiveConfig(reader *bufio.Reader, w io.Writer, cfg *Config) {
	fmt.Fprintln(w, "logmine Project Configuration")
	fmt.Fprintln(w, "=============================")
	fmt.Fprintln(w)

	cfg.ProjectID = prompt(reader, w, "Project ID", cfg.ProjectID)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Leave language and framework empty to detect them per repository.")
	cfg.Language = prompt(reader, w, "Language (java, c)", cfg.Language)
	if !strings.EqualFold(cfg.Language, "c") {
		cfg.Framework = prompt(reader, w, "Framework (log4j, slf4j, utillogger)", cfg.Framework)
	}
	fmt.Fprintln(w)
}

// validateDialectFlags rejects unknown language or framework names early.
func validateDialectFlags(language, framework string) error {
	if language != "" {
		if _, err := logparse.ParseLanguage(language); err != nil {
			return errors.NewInputError("Invalid language", err.Error(), "Use java or c")
		}
	}
	if framework != "" {
		if _, err := logparse.ParseFramework(framework); err != nil {
			return errors.NewInputError("Invalid framework", err.Error(), "Use log4j, slf4j, utillogger or printf")
		}
	}
	return nil
}

func printNextSteps() {
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit .logmine/project.yaml if needed")
	fmt.Println("  2. Run 'logmine mine .' to mine this checkout")
	fmt.Println("  3. Or queue GitHub repositories with 'logmine add owner/name' and 'logmine run'")
}

// prompt reads one line, returning defaultValue on empty input.
func prompt(reader *bufio.Reader, w io.Writer, label, defaultValue string) string {
	if defaultValue != "" {
		fmt.Fprintf(w, "%s [%s]: ", label, defaultValue)
	} else {
		fmt.Fprintf(w, "%s: ", label)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultValue
	}
	return input
}

// addToGitignore appends .logmine/ to an existing .gitignore unless an
// equivalent entry is present. It reports whether the file changed.
func addToGitignore(dir string) bool {
	gitignorePath := filepath.Join(dir, ".gitignore")

	content, err := os.ReadFile(gitignorePath) //nolint:gosec // G304: gitignorePath built from repo dir
	if err != nil {
		return false
	}

	for _, line := range strings.Split(string(content), "\n") {
		switch strings.TrimSpace(line) {
		case ".logmine/", ".logmine", "/.logmine/", "/.logmine":
			return false
		}
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_WRONLY, 0600) //nolint:gosec // G304: gitignorePath built from repo dir
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	if len(content) > 0 && content[len(content)-1] != '\n' {
		_, _ = f.WriteString("\n")
	}
	_, err = f.WriteString("\n# logmine project data\n.logmine/\n")
	return err == nil
}
