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
	"os"
	"path/filepath"
	"testing"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/logmine/pkg/ingestion"
)

func TestRepoSource(t *testing.T) {
	for _, url := range []string{
		"https://github.com/acme/widget.git",
		"git@github.com:acme/widget.git",
		"ssh://git@example.com/acme/widget",
		"file:///srv/git/widget",
	} {
		src, err := repoSource(url)
		require.NoError(t, err)
		assert.Equal(t, ingestion.RepoSource{Type: "git_url", Value: url}, src)
	}

	dir := t.TempDir()
	src, err := repoSource(dir)
	require.NoError(t, err)
	assert.Equal(t, "local_path", src.Type)
	assert.Equal(t, dir, src.Value)

	t.Chdir(dir)
	src, err = repoSource(".")
	require.NoError(t, err)
	assert.Equal(t, dir, src.Value)

	file := filepath.Join(dir, "Main.java")
	require.NoError(t, os.WriteFile(file, []byte("class Main {}"), 0600))
	_, err = repoSource(file)
	assert.ErrorContains(t, err, "not a directory")

	_, err = repoSource(filepath.Join(dir, "missing"))
	assert.ErrorContains(t, err, "stat")
}

func TestDialectFlags_Apply(t *testing.T) {
	parse := func(args ...string) (*flag.FlagSet, *dialectFlags) {
		fs := flag.NewFlagSet("mine", flag.ContinueOnError)
		var df dialectFlags
		df.register(fs)
		require.NoError(t, fs.Parse(args))
		return fs, &df
	}

	base := ingestion.Config{Language: "java", Framework: "slf4j"}
	base.IngestionConfig.Seed = 11

	fs, df := parse()
	got := base
	df.apply(fs, &got)
	assert.Equal(t, base, got)
	assert.Equal(t, 10, df.report.show)

	fs, df = parse("--language", "c", "--framework", "printf", "--source", "acme/widget", "--seed", "0", "--templates")
	got = base
	df.apply(fs, &got)
	assert.Equal(t, "c", got.Language)
	assert.Equal(t, "printf", got.Framework)
	assert.Equal(t, "acme/widget", got.Source)
	assert.Equal(t, uint64(0), got.IngestionConfig.Seed, "an explicit --seed 0 still overrides")
	assert.True(t, df.report.templates)
}
