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

package ingestion

import (
	"fmt"
	"strings"
	"time"

	"github.com/kraklabs/logmine/pkg/logparse"
	"github.com/kraklabs/logmine/pkg/sampler"
)

// RepoSource names where repository contents come from.
type RepoSource struct {
	// Type is "local_path" or "git_url".
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// Config is everything a pipeline run needs.
type Config struct {
	// ProjectID namespaces the default database and checkpoint paths.
	ProjectID string `yaml:"project_id"`

	// Source names the mined repository on every template, as owner/name
	// or a normalized path. Defaults to the normalized RepoSource value.
	Source string `yaml:"source"`

	// RepositoryID links stored templates to their repositories row. Set
	// for queue runs only.
	RepositoryID int64 `yaml:"-"`

	RepoSource RepoSource `yaml:"repo_source"`

	// Language and Framework select the dialect. An empty Framework is
	// filled in by the detection stage.
	Language  string `yaml:"language"`
	Framework string `yaml:"framework"`

	// RunID tags every stored record of the run.
	RunID string `yaml:"-"`

	IngestionConfig IngestionConfig `yaml:"ingestion"`
	Sampler         sampler.Config  `yaml:"sampler"`
}

// IngestionConfig tunes the extraction and templating stages.
type IngestionConfig struct {
	ExcludeGlobs     []string `yaml:"exclude_globs"`
	MaxFileSizeBytes int64    `yaml:"max_file_size_bytes"`

	// Encodings are tried in order when decoding source files.
	Encodings []string `yaml:"encodings"`

	Concurrency struct {
		ParseWorkers int `yaml:"parse_workers"`
	} `yaml:"concurrency"`

	Filter struct {
		MinLength       int `yaml:"min_length"`
		MaxPlaceholders int `yaml:"max_placeholders"`
		MaxRepeat       int `yaml:"max_repeat"`
	} `yaml:"filter"`

	// BacktrackWarn is the boundary distance that logs a warning.
	BacktrackWarn int `yaml:"backtrack_warn"`

	// Seed drives every random choice. Zero means a random seed.
	Seed uint64 `yaml:"seed"`

	// RegistryPath overrides the built-in placeholder registry.
	RegistryPath string `yaml:"registry_path"`

	// MaxRecordBytes is the soft size limit for a persisted record.
	MaxRecordBytes int `yaml:"max_record_bytes"`

	// CheckpointPath is the directory for batch-run checkpoints.
	CheckpointPath string `yaml:"checkpoint_path"`

	// DatabasePath overrides the default SQLite location.
	DatabasePath string `yaml:"database_path"`

	// StageTimeout bounds each remote or clone stage.
	StageTimeout time.Duration `yaml:"stage_timeout"`
}

// DefaultConfig returns an IngestionConfig with the stock thresholds.
func DefaultConfig() IngestionConfig {
	var c IngestionConfig
	c.ExcludeGlobs = []string{".git/**", "target/**", "build/**", "node_modules/**", "vendor/**"}
	c.MaxFileSizeBytes = 1024 * 1024
	c.Encodings = []string{"utf-8", "latin1", "latin2", "cp1251"}
	c.Concurrency.ParseWorkers = 4
	c.Filter.MinLength = logparse.DefaultMinLength
	c.Filter.MaxPlaceholders = logparse.DefaultMaxPlaceholders
	c.Filter.MaxRepeat = logparse.DefaultMaxRepeat
	c.BacktrackWarn = logparse.DefaultBacktrackWarn
	c.MaxRecordBytes = 64 * 1024
	c.StageTimeout = 10 * time.Minute
	return c
}

// Dialect resolves the configured language and framework. C always uses
// printf; Java needs an explicit or detected framework.
func (c Config) Dialect() (logparse.Dialect, error) {
	lang, err := logparse.ParseLanguage(c.Language)
	if err != nil {
		return logparse.Dialect{}, err
	}
	fw := strings.TrimSpace(c.Framework)
	if lang == logparse.LanguageC && fw == "" {
		fw = "printf"
	}
	if fw == "" {
		return logparse.Dialect{}, fmt.Errorf("no logging framework set for %s", lang)
	}
	framework, err := logparse.ParseFramework(fw)
	if err != nil {
		return logparse.Dialect{}, err
	}
	return logparse.Dialect{Language: lang, Framework: framework}, nil
}

// newFilter builds the validity filter from the config, falling back to the
// defaults for unset values.
func (c IngestionConfig) newFilter() *logparse.Filter {
	f := logparse.NewFilter()
	if c.Filter.MinLength > 0 {
		f.MinLength = c.Filter.MinLength
	}
	if c.Filter.MaxPlaceholders > 0 {
		f.MaxPlaceholders = c.Filter.MaxPlaceholders
	}
	if c.Filter.MaxRepeat > 0 {
		f.MaxRepeat = c.Filter.MaxRepeat
	}
	return f
}
