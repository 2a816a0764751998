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

// Package errors provides structured error handling for the logmine CLI.
//
// A UserError carries what went wrong (Message), why (Cause) and what to
// do about it (Fix), plus the process exit code. Commands return plain
// wrapped errors; Classify turns the known pipeline failures into
// UserErrors at the CLI boundary:
//
//	if err := run(ctx); err != nil {
//	    errors.FatalError(errors.Classify(err), jsonMode)
//	}
//
// Rendered for a terminal:
//
//	Error: Cannot sample repository acme/widget
//	Cause: tree abc123 of acme/widget: 502 Bad Gateway
//	Fix:   Check GITHUB_TOKEN and your network, then retry
//
// # Exit Codes
//
//   - ExitSuccess (0)
//   - ExitConfig (1): missing or invalid .logmine/project.yaml
//   - ExitDatabase (2): the SQLite store could not be opened or written
//   - ExitNetwork (3): a remote round trip or clone failed
//   - ExitInput (4): bad arguments or paths
//   - ExitNotFound (6): an unknown repository or project
//   - ExitNoResults (7): a pipeline stage produced nothing
//   - ExitInternal (10): a bug
//   - ExitInterrupted (130): the run was cancelled
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/kraklabs/logmine/pkg/ingestion"
	"github.com/kraklabs/logmine/pkg/sampler"
)

// Exit codes for different error categories.
const (
	ExitSuccess  = 0
	ExitConfig   = 1
	ExitDatabase = 2
	ExitNetwork  = 3
	ExitInput    = 4
	ExitNotFound = 6

	// ExitNoResults means the repository was processed but yielded no
	// templates. Batch scripts usually treat it as a soft failure.
	ExitNoResults = 7

	// ExitInternal signals "this is a bug that should be reported".
	ExitInternal = 10

	// ExitInterrupted follows the shell convention for SIGINT.
	ExitInterrupted = 130
)

// UserError is an error with enough context for an end user to act on.
type UserError struct {
	Message  string
	Cause    string
	Fix      string
	ExitCode int

	// Err is the wrapped error, if any. It keeps errors.Is and errors.As
	// working across the CLI boundary.
	Err error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UserError) Unwrap() error { return e.Err }

func newUserError(code int, msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: code, Err: err}
}

// NewConfigError reports a missing or malformed project configuration.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitConfig, msg, cause, fix, err)
}

// NewDatabaseError reports a failure of the template store.
func NewDatabaseError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitDatabase, msg, cause, fix, err)
}

// NewNetworkError reports a failed remote round trip or clone.
func NewNetworkError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitNetwork, msg, cause, fix, err)
}

// NewInputError reports invalid arguments. Input errors do not wrap.
func NewInputError(msg, cause, fix string) *UserError {
	return newUserError(ExitInput, msg, cause, fix, nil)
}

// NewNotFoundError reports an unknown repository or project.
func NewNotFoundError(msg, cause, fix string) *UserError {
	return newUserError(ExitNotFound, msg, cause, fix, nil)
}

// NewNoResultsError reports a run that ended at an empty stage.
func NewNoResultsError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitNoResults, msg, cause, fix, err)
}

// NewInternalError reports an unexpected failure.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitInternal, msg, cause, fix, err)
}

// Classify maps err to a UserError. An existing UserError anywhere in the
// chain is returned as is. Unknown errors become internal errors.
func Classify(err error) *UserError {
	if err == nil {
		return nil
	}

	var ue *UserError
	if errors.As(err, &ue) {
		return ue
	}

	if errors.Is(err, context.Canceled) {
		return newUserError(ExitInterrupted, "Run interrupted",
			"The run was cancelled before it finished",
			"Re-run the same command; batch runs resume from their checkpoint", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewNetworkError("Run timed out", err.Error(),
			"Raise ingestion.stage_timeout or sampler.request_timeout in .logmine/project.yaml", err)
	}

	var re *sampler.RetrievalError
	if errors.As(err, &re) {
		return NewNetworkError(
			fmt.Sprintf("Cannot retrieve repository %s", re.Repo),
			re.Error(),
			"Check GITHUB_TOKEN and your network, then retry", err)
	}

	var empty *ingestion.EmptyResultError
	if errors.As(err, &empty) {
		return NewNoResultsError("No log templates found", empty.Error(), stageFix(empty.Stage), err)
	}

	return NewInternalError("Unexpected error", err.Error(),
		"This is a bug. Please report it with the output of --debug", err)
}

func stageFix(stage string) string {
	switch stage {
	case ingestion.StageLoad:
		return "Check --language and the exclude globs; no source file matched"
	case ingestion.StageDetect:
		return "Pass --framework explicitly if the repository wraps its logger"
	case ingestion.StageFilter:
		return "Lower ingestion.filter.min_length to keep shorter templates"
	default:
		return ""
	}
}

var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format renders the error for a terminal. Colors are off when noColor is
// set or NO_COLOR is in the environment. Empty Cause and Fix lines are
// omitted.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}
	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}
	return out.String()
}

// ErrorJSON is the --json rendering of a UserError.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// FatalError prints err and exits with its code. Non-UserErrors exit with
// ExitInternal. A nil err is a no-op.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	var ue *UserError
	if errors.As(err, &ue) {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			_ = enc.Encode(ue.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, ue.Format(false))
		}
		os.Exit(ue.ExitCode)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitInternal)
}
