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

package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kraklabs/logmine/pkg/storage"
)

// DatabaseFile is the file name of a project's template store.
const DatabaseFile = "logmine.db"

// ProjectConfig holds configuration for initializing a project.
type ProjectConfig struct {
	// ProjectID is the logical project identifier.
	ProjectID string

	// DatabasePath is the SQLite file. Defaults to
	// ~/.logmine/data/<project_id>/logmine.db
	DatabasePath string
}

// ProjectInfo holds information about an initialized project.
type ProjectInfo struct {
	ProjectID     string
	DatabasePath  string
	SchemaVersion int
	Created       bool
}

// DataRoot is the directory holding one subdirectory per project.
func DataRoot() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(homeDir, ".logmine", "data"), nil
}

func (c *ProjectConfig) resolve() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if c.DatabasePath != "" {
		return nil
	}
	root, err := DataRoot()
	if err != nil {
		return err
	}
	c.DatabasePath = filepath.Join(root, c.ProjectID, DatabaseFile)
	return nil
}

// ResolveDatabasePath returns where the project's database lives.
func ResolveDatabasePath(config ProjectConfig) (string, error) {
	if err := config.resolve(); err != nil {
		return "", err
	}
	return config.DatabasePath, nil
}

// InitProject creates the project database and migrates it to the current
// schema. Calling it again on an existing project is safe.
func InitProject(config ProjectConfig, logger *slog.Logger) (*ProjectInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.resolve(); err != nil {
		return nil, err
	}

	_, statErr := os.Stat(config.DatabasePath)
	created := os.IsNotExist(statErr)

	logger.Info("bootstrap.project.init.start",
		"project_id", config.ProjectID,
		"database", config.DatabasePath,
		"created", created,
	)

	backend, err := storage.NewSQLiteBackend(storage.SQLiteConfig{
		Path:      config.DatabasePath,
		ProjectID: config.ProjectID,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}
	defer func() { _ = backend.Close() }()

	version, err := backend.SchemaVersion(context.Background())
	if err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}

	logger.Info("bootstrap.project.init.success",
		"project_id", config.ProjectID,
		"schema_version", version,
	)

	return &ProjectInfo{
		ProjectID:     config.ProjectID,
		DatabasePath:  config.DatabasePath,
		SchemaVersion: version,
		Created:       created,
	}, nil
}

// OpenProject opens the database of an initialized project. It fails when
// the database file does not exist yet.
func OpenProject(config ProjectConfig, logger *slog.Logger) (*storage.SQLiteBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.resolve(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(config.DatabasePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("project not found: %s (run 'logmine init' first)", config.DatabasePath)
	}

	logger.Debug("bootstrap.project.open",
		"project_id", config.ProjectID,
		"database", config.DatabasePath,
	)

	backend, err := storage.NewSQLiteBackend(storage.SQLiteConfig{
		Path:      config.DatabasePath,
		ProjectID: config.ProjectID,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}
	return backend, nil
}

// ListProjects returns the IDs of projects with a database under DataRoot.
func ListProjects() ([]string, error) {
	root, err := DataRoot()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var projects []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, entry.Name(), DatabaseFile)); err == nil {
			projects = append(projects, entry.Name())
		}
	}
	return projects, nil
}
