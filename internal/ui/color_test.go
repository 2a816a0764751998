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

package ui

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

// capture disables colors and redirects Output for the test.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	origColor, origOut := color.NoColor, Output
	t.Cleanup(func() {
		color.NoColor = origColor
		Output = origOut
	})
	color.NoColor = true
	var buf bytes.Buffer
	Output = &buf
	return &buf
}

func TestInitColors(t *testing.T) {
	original := color.NoColor
	defer func() { color.NoColor = original }()

	InitColors(true)
	assert.True(t, color.NoColor)
	InitColors(false)
	assert.False(t, color.NoColor)
}

func TestPlainHelpers(t *testing.T) {
	capture(t)

	assert.Equal(t, "Repository:", Label("Repository:"))
	assert.Equal(t, "/tmp/repo", DimText("/tmp/repo"))
	assert.Equal(t, "42", CountText(42))
	assert.Equal(t, "-1", CountText(-1))
	assert.Equal(t, "", Label(""))
}

func TestMessages(t *testing.T) {
	buf := capture(t)

	Success("stored 3 templates")
	Warningf("skipped %d files", 2)
	Error("clone failed")
	Infof("seed %d", 7)
	Header("Run")
	Field("Dialect:", "java/slf4j")

	assert.Equal(t, "✓ stored 3 templates\n"+
		"⚠ skipped 2 files\n"+
		"✗ clone failed\n"+
		"ℹ seed 7\n"+
		"Run\n===\n"+
		"  Dialect: java/slf4j\n", buf.String())
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "25.0%", Percent(1, 4))
	assert.Equal(t, "0.0%", Percent(3, 0))
	assert.Equal(t, "100.0%", Percent(7, 7))
}

func TestTemplate(t *testing.T) {
	capture(t)
	assert.Equal(t, "Server on {port} with {}", Template("Server on {port} with {}"))

	color.NoColor = false
	colored := Template("open {file}")
	assert.Contains(t, colored, "\x1b[")
	assert.Contains(t, colored, "{file}")
}

func TestCounts(t *testing.T) {
	buf := capture(t)

	Counts("Skipped:", map[string]int{"too_large": 1, "gitignored": 4, "excluded": 1})
	assert.Equal(t, "Skipped:\n"+
		"  gitignored       4\n"+
		"  excluded         1\n"+
		"  too_large        1\n", buf.String())

	buf.Reset()
	Counts("Filtered:", nil)
	assert.Empty(t, buf.String())
}
