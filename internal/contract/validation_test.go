// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package contract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		limit   int
		wantOK  bool
		wantMsg string
	}{
		{
			name:   "untyped placeholders",
			rec:    Record{Template: "Loaded {} rows from {}", Parsed: "Loaded {} rows from {}", Arguments: []string{"n", "table"}, Raw: `log.info("Loaded {} rows from {}", n, table)`},
			wantOK: true,
		},
		{
			name:   "typed placeholders",
			rec:    Record{Template: "Opened {Path} after {}", Parsed: "Opened {} after {}", Arguments: []string{"file", "ms"}, Types: []string{"Path", ""}, Raw: `log.info("Opened {} after {}", file, ms)`},
			wantOK: true,
		},
		{
			name:   "no arguments",
			rec:    Record{Template: "Shutting down now", Parsed: "Shutting down now", Raw: `log.info("Shutting down now")`},
			wantOK: true,
		},
		{
			name:   "literal braces in message text",
			rec:    Record{Template: "Route /users/{id} not found for {Path}", Parsed: "Route /users/{id} not found for {}", Arguments: []string{"path"}, Types: []string{"Path"}, Raw: `log.warn("Route /users/{id} not found for " + path)`},
			wantOK: true,
		},
		{
			name:    "types do not match arguments",
			rec:     Record{Template: "Opened {Path}", Parsed: "Opened {}", Arguments: []string{"file"}, Types: []string{"Path", "Path"}, Raw: "x"},
			wantMsg: "2 types for 1 arguments",
		},
		{
			name:    "empty parsed template",
			rec:     Record{Template: "Opened {Path}", Arguments: []string{"file"}, Raw: "x"},
			wantMsg: "parsed template is empty",
		},
		{
			name:    "count mismatch",
			rec:     Record{Template: "Loaded {} rows", Parsed: "Loaded {} rows", Arguments: []string{"a", "b"}, Raw: "x"},
			wantMsg: "2 arguments",
		},
		{
			name:    "empty template",
			rec:     Record{Template: "  ", Raw: "x"},
			wantMsg: "template is empty",
		},
		{
			name:    "empty raw",
			rec:     Record{Template: "something happened", Parsed: "something happened"},
			wantMsg: "raw statement is empty",
		},
		{
			name:    "invalid utf-8",
			rec:     Record{Template: "bad \xff byte", Parsed: "bad \xff byte", Raw: "x"},
			wantMsg: "UTF-8",
		},
		{
			name:    "invalid utf-8 argument",
			rec:     Record{Template: "value {}", Parsed: "value {}", Arguments: []string{"\xfe"}, Raw: "x"},
			wantMsg: "argument 0",
		},
		{
			name:    "over limit",
			rec:     Record{Template: strings.Repeat("a", 40), Parsed: strings.Repeat("a", 40), Raw: strings.Repeat("b", 40)},
			limit:   64,
			wantMsg: "over the 64 byte limit",
		},
		{
			name:    "run id too long",
			rec:     Record{Template: "x happened", Parsed: "x happened", Raw: "x", RunID: strings.Repeat("r", RunIDMaxBytes+1)},
			wantMsg: "run_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateRecord(tt.rec, tt.limit)
			assert.Equal(t, tt.wantOK, res.OK)
			if !tt.wantOK {
				assert.Contains(t, res.Message, tt.wantMsg)
			}
		})
	}
}

func TestCountPlaceholders(t *testing.T) {
	assert.Equal(t, 0, CountPlaceholders("plain text"))
	assert.Equal(t, 2, CountPlaceholders("{} and {}"))
	assert.Equal(t, 1, CountPlaceholders("GET /users/{id} from {}"))
	assert.Equal(t, 0, CountPlaceholders("{Path} {Timestamp}"))
	assert.Equal(t, 0, CountPlaceholders("{not closed"))
}

func TestSoftLimitBytes(t *testing.T) {
	t.Setenv("LOGMINE_SOFT_LIMIT_BYTES", "")
	assert.Equal(t, DefaultSoftLimitBytes, SoftLimitBytes())

	t.Setenv("LOGMINE_SOFT_LIMIT_BYTES", "1024")
	assert.Equal(t, 1024, SoftLimitBytes())

	t.Setenv("LOGMINE_SOFT_LIMIT_BYTES", "-5")
	assert.Equal(t, DefaultSoftLimitBytes, SoftLimitBytes())
}
