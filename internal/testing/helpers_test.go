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

package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/logmine/pkg/sampler"
)

// TestSetupTestBackend verifies the test backend is created correctly.
func TestSetupTestBackend(t *testing.T) {
	backend := SetupTestBackend(t)
	require.NotNil(t, backend)

	result := QueryTemplates(t, backend)
	require.NotNil(t, result)
	assert.Empty(t, result.Rows, "Should start with no templates")
}

// TestInsertTestTemplate verifies template insertion.
func TestInsertTestTemplate(t *testing.T) {
	backend := SetupTestBackend(t)

	InsertTestTemplate(t, backend, "acme/widget", "opened {Path}", "path")
	InsertTestTemplate(t, backend, "acme/widget", "shutting down now")

	result := QueryTemplates(t, backend)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "opened {Path}", result.Rows[0][1])
	assert.Equal(t, `["path"]`, result.Rows[0][2])
	assert.Nil(t, result.Rows[1][2])
	assert.Nil(t, result.Rows[0][3], "not linked to a queued repository")
}

// TestInsertTestRepository verifies queue insertion.
func TestInsertTestRepository(t *testing.T) {
	backend := SetupTestBackend(t)

	id := InsertTestRepository(t, backend, "acme", "widget")
	assert.Positive(t, id)

	result := QueryRepositories(t, backend)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "acme", result.Rows[0][0])
	assert.Equal(t, int64(0), result.Rows[0][2])
}

// TestBackendIsolation verifies each test gets isolated backend.
func TestBackendIsolation(t *testing.T) {
	backend1 := SetupTestBackend(t)
	InsertTestTemplate(t, backend1, "r1", "first template here")

	backend2 := SetupTestBackend(t)
	assert.Empty(t, QueryTemplates(t, backend2).Rows, "Second backend should be isolated from first")
	assert.Len(t, QueryTemplates(t, backend1).Rows, 1)
}

func TestFakeTree(t *testing.T) {
	ctx := context.Background()
	repo := sampler.Repository{Owner: "acme", Name: "widget"}
	boom := errors.New("boom")

	tree := NewFakeTree().
		File("src/main/App.java", "class App {}").
		BinaryFile("lib/native.so", 64).
		FailDir("broken", boom)

	root, err := tree.RootTree(ctx, repo)
	require.NoError(t, err)
	children, _ := root.Children.Get()
	require.Len(t, children, 3)
	assert.Equal(t, "src", children[0].Name)
	assert.Equal(t, sampler.KindTree, children[0].Kind)

	entries, err := tree.ListTree(ctx, repo, children[0].ObjectID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "main", entries[0].Name)

	main, err := tree.ListTree(ctx, repo, entries[0].ObjectID)
	require.NoError(t, err)
	blob, err := tree.FetchBlob(ctx, repo, main[0].ObjectID)
	require.NoError(t, err)
	assert.Equal(t, "class App {}", blob.Text)

	_, err = tree.ListTree(ctx, repo, children[2].ObjectID)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, []string{"broken", "src", "src/main"}, tree.Listed())
	assert.Equal(t, []string{"src/main/App.java"}, tree.Fetched())
}
