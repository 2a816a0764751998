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
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLoggerTo_Levels(t *testing.T) {
	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })

	tests := []struct {
		name    string
		globals GlobalFlags
		debug   bool
		info    bool
	}{
		{name: "default", globals: GlobalFlags{}, info: true},
		{name: "debug", globals: GlobalFlags{Debug: true}, debug: true, info: true},
		{name: "quiet", globals: GlobalFlags{Quiet: true}},
		{name: "debug wins over quiet", globals: GlobalFlags{Quiet: true, Debug: true}, debug: true, info: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLoggerTo(&buf, tt.globals)
			ctx := context.Background()
			assert.Equal(t, tt.debug, logger.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tt.info, logger.Enabled(ctx, slog.LevelInfo))
			assert.True(t, logger.Enabled(ctx, slog.LevelWarn))
			assert.Same(t, logger, slog.Default())

			logger.Warn("queue.release.error", "id", 3)
			assert.Contains(t, buf.String(), "msg=queue.release.error")
			assert.Contains(t, buf.String(), "id=3")
		})
	}
}

func TestStartMetrics_Disabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// An empty address starts nothing.
	startMetrics(ctx, "", slog.Default())
}
