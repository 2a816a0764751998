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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/logmine/internal/errors"
)

func TestCreateInitConfig(t *testing.T) {
	cfg := createInitConfig("/work/widget", initFlags{})
	assert.Equal(t, "widget", cfg.ProjectID)
	assert.Empty(t, cfg.Language)

	cfg = createInitConfig("/work/widget", initFlags{projectID: "acme", language: "java", framework: "log4j", database: "/tmp/a.db"})
	assert.Equal(t, "acme", cfg.ProjectID)
	assert.Equal(t, "java", cfg.Language)
	assert.Equal(t, "log4j", cfg.Framework)
	assert.Equal(t, "/tmp/a.db", cfg.Database)
}

func TestPrompt(t *testing.T) {
	var w bytes.Buffer
	reader := bufio.NewReader(strings.NewReader("\n  custom  \n"))

	assert.Equal(t, "def", prompt(reader, &w, "Name", "def"))
	assert.Equal(t, "custom", prompt(reader, &w, "Name", "def"))
	assert.Equal(t, "", prompt(reader, &w, "Other", ""))
	assert.Equal(t, "Name [def]: Name [def]: Other: ", w.String())
}

func TestRunInteractiveConfig(t *testing.T) {
	t.Run("java asks for framework", func(t *testing.T) {
		cfg := DefaultConfig("widget")
		var w bytes.Buffer
		runInteractiveConfig(bufio.NewReader(strings.NewReader("acme\njava\nslf4j\n")), &w, cfg)
		assert.Equal(t, "acme", cfg.ProjectID)
		assert.Equal(t, "java", cfg.Language)
		assert.Equal(t, "slf4j", cfg.Framework)
	})
	t.Run("c skips framework", func(t *testing.T) {
		cfg := DefaultConfig("widget")
		var w bytes.Buffer
		runInteractiveConfig(bufio.NewReader(strings.NewReader("\nc\n")), &w, cfg)
		assert.Equal(t, "widget", cfg.ProjectID)
		assert.Equal(t, "c", cfg.Language)
		assert.Empty(t, cfg.Framework)
		assert.NotContains(t, w.String(), "Framework")
	})
}

func TestValidateDialectFlags(t *testing.T) {
	assert.NoError(t, validateDialectFlags("", ""))
	assert.NoError(t, validateDialectFlags("java", "slf4j"))
	assert.NoError(t, validateDialectFlags("C", ""))

	for _, tc := range [][2]string{{"haskell", ""}, {"java", "logback"}} {
		err := validateDialectFlags(tc[0], tc[1])
		var ue *errors.UserError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, errors.ExitInput, ue.ExitCode)
	}
}

func TestAddToGitignore(t *testing.T) {
	t.Run("no gitignore", func(t *testing.T) {
		assert.False(t, addToGitignore(t.TempDir()))
	})
	t.Run("appends once", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, ".gitignore")
		require.NoError(t, os.WriteFile(path, []byte("target/"), 0600))

		assert.True(t, addToGitignore(dir))
		assert.False(t, addToGitignore(dir))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(string(data), ".logmine/"))
		assert.Contains(t, string(data), "target/\n")
	})
	t.Run("equivalent entry", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("/.logmine\n"), 0600))
		assert.False(t, addToGitignore(dir))
	})
}
