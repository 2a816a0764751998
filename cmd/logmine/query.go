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
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/logmine/internal/errors"
	"github.com/kraklabs/logmine/internal/output"
	"github.com/kraklabs/logmine/internal/ui"
	"github.com/kraklabs/logmine/pkg/storage"
)

// runTemplates lists the stored templates of one source or queued
// repository.
func runTemplates(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("templates", flag.ExitOnError)
	limit := fs.Int("limit", 0, "Show at most this many templates (0 = all)")
	jsonl := fs.Bool("jsonl", false, "Write templates as JSON lines")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logmine templates <source|repository-id> [options]

Lists stored templates in insertion order. A number selects the templates
linked to that queued repository; anything else is a source: owner/name
for GitHub repositories or the --source given to 'logmine mine'.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Missing source",
			"The templates command takes exactly one source or repository id",
			"Run 'logmine templates acme/widget'",
		), globals.JSON)
	}

	backend := openQueryBackend(configPath, globals)
	defer func() { _ = backend.Close() }()

	records, err := lookupTemplates(context.Background(), backend, fs.Arg(0))
	if err != nil {
		errors.FatalError(errors.NewDatabaseError("Cannot read templates", err.Error(), "Check the project database", err), globals.JSON)
	}
	if *limit > 0 && len(records) > *limit {
		records = records[:*limit]
	}

	switch {
	case *jsonl:
		lines := output.NewJSONLines(os.Stdout)
		for _, r := range records {
			_ = lines.Write(templateRecordJSON(r))
		}
	case globals.JSON:
		out := make([]output.TemplateJSON, len(records))
		for i, r := range records {
			out[i] = templateRecordJSON(r)
		}
		_ = output.JSON(out)
	default:
		printTemplates(ui.Output, fs.Arg(0), records)
	}
}

// lookupTemplates reads by queue row when key is a positive integer and by
// source otherwise.
func lookupTemplates(ctx context.Context, backend *storage.SQLiteBackend, key string) ([]storage.TemplateRecord, error) {
	if id, err := strconv.ParseInt(key, 10, 64); err == nil && id > 0 {
		return backend.RepositoryTemplates(ctx, id)
	}
	return backend.Templates(ctx, key)
}

func templateRecordJSON(r storage.TemplateRecord) output.TemplateJSON {
	args := r.Arguments
	if args == nil {
		args = []string{}
	}
	return output.TemplateJSON{
		Source:       r.Source,
		RepositoryID: r.RepositoryID,
		Template:     r.Template,
		Arguments:    args,
		Raw:          r.Raw,
		Parsed:       r.Parsed,
	}
}

func printTemplates(w io.Writer, key string, records []storage.TemplateRecord) {
	if len(records) == 0 {
		fmt.Fprintf(w, "No templates stored for %s\n", key)
		return
	}
	for _, r := range records {
		fmt.Fprintf(w, "%s\n", ui.Template(r.Template))
		if len(r.Arguments) > 0 {
			fmt.Fprintf(w, "    %s\n", ui.DimText(strings.Join(r.Arguments, ", ")))
		}
	}
	fmt.Fprintf(w, "\n(%d templates)\n", len(records))
}

// runQuery runs a read-only SQL statement against the project database.
func runQuery(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	timeout := fs.Duration("timeout", 30*time.Second, "Query timeout")
	limit := fs.Int("limit", 0, "Append LIMIT to the query (0 = no limit)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logmine query [options] <sql>

Runs a SELECT against the project database. Tables: repositories, templates.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  logmine query "SELECT source, COUNT(*) FROM templates GROUP BY 1"
  logmine query "SELECT owner, name, failure_reason FROM repositories WHERE processed = 1 AND successfully_processed = 0"
  logmine query "SELECT template FROM templates WHERE template LIKE '%%{}%%'" --limit 10
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Missing query",
			"The query command takes exactly one SQL statement",
			"Quote the statement: logmine query \"SELECT ...\"",
		), globals.JSON)
	}

	sql, err := prepareQuery(fs.Arg(0), *limit)
	if err != nil {
		errors.FatalError(errors.NewInputError("Query rejected", err.Error(), "Only SELECT and WITH statements are allowed"), globals.JSON)
	}

	backend := openQueryBackend(configPath, globals)
	defer func() { _ = backend.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := backend.Query(ctx, sql)
	if err != nil {
		errors.FatalError(errors.NewInputError("Query failed", err.Error(), "Check the SQL against the repositories and templates tables"), globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(map[string]any{
			"headers": result.Headers,
			"rows":    result.Rows,
			"count":   len(result.Rows),
		})
		return
	}
	printQueryResult(ui.Output, result)
}

// prepareQuery accepts a single SELECT or WITH statement and appends a
// LIMIT when asked and none is present.
func prepareQuery(sql string, limit int) (string, error) {
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSuffix(sql, ";")
	if strings.Contains(sql, ";") {
		return "", fmt.Errorf("multiple statements are not allowed")
	}
	lower := strings.ToLower(sql)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return "", fmt.Errorf("not a read-only query: %q", firstWord(sql))
	}
	if limit > 0 && !strings.Contains(lower, " limit ") {
		sql = fmt.Sprintf("%s LIMIT %d", sql, limit)
	}
	return sql, nil
}

func firstWord(s string) string {
	if i := strings.IndexAny(s, " \t\n"); i >= 0 {
		return s[:i]
	}
	return s
}

func openQueryBackend(configPath string, globals GlobalFlags) *storage.SQLiteBackend {
	cfg, _, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot load configuration", err.Error(), "Run 'logmine init' first", err), globals.JSON)
	}
	backend, err := cfg.openBackend(newLogger(GlobalFlags{Quiet: true, Debug: globals.Debug}))
	if err != nil {
		errors.FatalError(errors.NewDatabaseError("Cannot open project database", err.Error(), "Run 'logmine init' first", err), globals.JSON)
	}
	return backend
}

func printQueryResult(out io.Writer, result *storage.QueryResult) {
	if len(result.Rows) == 0 {
		fmt.Fprintln(out, "No results")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(result.Headers, "\t")))
	seps := make([]string, len(result.Headers))
	for i := range seps {
		seps[i] = "---"
	}
	fmt.Fprintln(w, strings.Join(seps, "\t"))
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = formatCell(cell)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\n(%d rows)\n", len(result.Rows))
}

// formatCell renders one SQLite value, truncating long text.
func formatCell(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return "<null>"
	case []byte:
		s = string(val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%.2f", val)
	default:
		s = fmt.Sprint(val)
	}
	if r := []rune(s); len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return s
}
