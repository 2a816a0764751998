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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitProject(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	info, err := InitProject(ProjectConfig{ProjectID: "acme"}, nil)
	require.NoError(t, err)
	assert.True(t, info.Created)
	assert.Equal(t, filepath.Join(home, ".logmine", "data", "acme", DatabaseFile), info.DatabasePath)
	assert.Positive(t, info.SchemaVersion)

	again, err := InitProject(ProjectConfig{ProjectID: "acme"}, nil)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, info.SchemaVersion, again.SchemaVersion)

	projects, err := ListProjects()
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, projects)
}

func TestOpenProject(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := OpenProject(ProjectConfig{ProjectID: "missing"}, nil)
	assert.ErrorContains(t, err, "logmine init")

	_, err = InitProject(ProjectConfig{ProjectID: "acme"}, nil)
	require.NoError(t, err)

	backend, err := OpenProject(ProjectConfig{ProjectID: "acme"}, nil)
	require.NoError(t, err)
	defer backend.Close()
}

func TestExplicitDatabasePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.db")

	info, err := InitProject(ProjectConfig{ProjectID: "acme", DatabasePath: path}, nil)
	require.NoError(t, err)
	assert.Equal(t, path, info.DatabasePath)

	backend, err := OpenProject(ProjectConfig{ProjectID: "acme", DatabasePath: path}, nil)
	require.NoError(t, err)
	require.NoError(t, backend.Close())
}

func TestProjectIDRequired(t *testing.T) {
	_, err := InitProject(ProjectConfig{}, nil)
	assert.ErrorContains(t, err, "project_id is required")
	_, err = OpenProject(ProjectConfig{}, nil)
	assert.Error(t, err)
}

func TestListProjects_Empty(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	projects, err := ListProjects()
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestResolveDatabasePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := ResolveDatabasePath(ProjectConfig{ProjectID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".logmine", "data", "acme", DatabaseFile), path)

	path, err = ResolveDatabasePath(ProjectConfig{ProjectID: "acme", DatabasePath: "/tmp/x.db"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", path)
}
