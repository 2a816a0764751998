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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/logmine/internal/bootstrap"
	"github.com/kraklabs/logmine/pkg/ingestion"
	"github.com/kraklabs/logmine/pkg/sampler"
	"github.com/kraklabs/logmine/pkg/storage"
)

const (
	configDirName  = ".logmine"
	configFileName = "project.yaml"
	configVersion  = "1"
)

// Config is the contents of .logmine/project.yaml.
type Config struct {
	Version   string `yaml:"version"`
	ProjectID string `yaml:"project_id"`

	// Language and Framework pin the dialect. Empty values are taken from
	// the repository's primary language and the detection stage.
	Language  string `yaml:"language,omitempty"`
	Framework string `yaml:"framework,omitempty"`

	// Languages limits which repositories "add" accepts by primary
	// language.
	Languages ingestion.Languages `yaml:"languages"`

	// Database overrides the SQLite path. LOGMINE_DB overrides this.
	Database string `yaml:"database,omitempty"`

	GitHub    GitHubSettings            `yaml:"github"`
	Ingestion ingestion.IngestionConfig `yaml:"ingestion"`
	Sampler   sampler.Config            `yaml:"sampler"`
}

// GitHubSettings configures the GraphQL client. The token only ever comes
// from GITHUB_TOKEN.
type GitHubSettings struct {
	Endpoint   string        `yaml:"endpoint,omitempty"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	Token      string        `yaml:"-"`
}

// DefaultConfig returns a configuration with the stock thresholds.
func DefaultConfig(projectID string) *Config {
	return &Config{
		Version:   configVersion,
		ProjectID: projectID,
		Languages: ingestion.NewLanguages("java", "c"),
		GitHub: GitHubSettings{
			Timeout:    60 * time.Second,
			MaxRetries: 3,
		},
		Ingestion: ingestion.DefaultConfig(),
		Sampler:   sampler.DefaultConfig(),
	}
}

// ConfigDir returns the .logmine directory under root.
func ConfigDir(root string) string {
	return filepath.Join(root, configDirName)
}

// ConfigPath returns the project.yaml path under root.
func ConfigPath(root string) string {
	return filepath.Join(ConfigDir(root), configFileName)
}

// findConfig walks up from dir to the first directory holding
// .logmine/project.yaml.
func findConfig(dir string) (string, error) {
	for {
		p := ConfigPath(dir)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s/%s found (run 'logmine init' first)", configDirName, configFileName)
		}
		dir = parent
	}
}

// LoadConfig reads the project configuration and applies environment
// overrides. An empty path searches upward from the working directory.
// The returned root is the directory that holds .logmine.
func LoadConfig(path string) (cfg *Config, root string, err error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("get working directory: %w", err)
		}
		if path, err = findConfig(cwd); err != nil {
			return nil, "", err
		}
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: user-supplied config path
	if err != nil {
		return nil, "", fmt.Errorf("read config: %w", err)
	}

	cfg = DefaultConfig("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.ProjectID == "" {
		return nil, "", fmt.Errorf("%s: project_id is required", path)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, "", err
	}
	if err := cfg.Sampler.Validate(); err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}

	root = filepath.Dir(filepath.Dir(path))
	return cfg, root, nil
}

// SaveConfig writes cfg as YAML, creating the .logmine directory.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	header := []byte("# logmine project configuration\n")
	if err := os.WriteFile(path, append(header, data...), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LOGMINE_DB"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("LOGMINE_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("LOGMINE_SEED: %w", err)
		}
		c.Ingestion.Seed = seed
	}
	c.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	return nil
}

// checkpointDir is where batch runs keep their resume state.
func checkpointDir(root string) string {
	return filepath.Join(ConfigDir(root), "checkpoints")
}

// pipelineConfig builds the pipeline input for one repository.
func (c *Config) pipelineConfig(root string) ingestion.Config {
	ing := c.Ingestion
	if ing.CheckpointPath == "" {
		ing.CheckpointPath = checkpointDir(root)
	}
	if ing.DatabasePath == "" {
		ing.DatabasePath = c.Database
	}
	return ingestion.Config{
		ProjectID:       c.ProjectID,
		Language:        c.Language,
		Framework:       c.Framework,
		IngestionConfig: ing,
		Sampler:         c.Sampler,
	}
}

func (c *Config) githubClient(logger *slog.Logger) *sampler.GitHubClient {
	return sampler.NewGitHubClient(sampler.GitHubConfig{
		Token:      c.GitHub.Token,
		Endpoint:   c.GitHub.Endpoint,
		Timeout:    c.GitHub.Timeout,
		MaxRetries: c.GitHub.MaxRetries,
	}, logger)
}

func (c *Config) projectConfig() bootstrap.ProjectConfig {
	return bootstrap.ProjectConfig{ProjectID: c.ProjectID, DatabasePath: c.Database}
}

// openBackend opens the project database created by "logmine init".
func (c *Config) openBackend(logger *slog.Logger) (*storage.SQLiteBackend, error) {
	return bootstrap.OpenProject(c.projectConfig(), logger)
}
