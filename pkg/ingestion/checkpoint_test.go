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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointManager_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cm := NewCheckpointManager(dir)

	got, err := cm.LoadCheckpoint("proj")
	require.NoError(t, err)
	assert.Nil(t, got, "no checkpoint yet")

	cp := NewCheckpoint("proj", "run-1")
	cp.MarkCompleted(3, 10)
	cp.MarkCompleted(3, 0)
	cp.MarkFailed(7, "tree: timeout")
	require.NoError(t, cm.SaveCheckpoint(cp))

	_, err = os.Stat(filepath.Join(dir, "checkpoint-proj.json.tmp"))
	assert.True(t, os.IsNotExist(err), "temp file renamed away")

	loaded, err := cm.LoadCheckpoint("proj")
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, []int64{3}, loaded.Completed)
	assert.Equal(t, map[int64]string{7: "tree: timeout"}, loaded.Failed)
	assert.Equal(t, 10, loaded.TemplatesSaved)
	assert.True(t, loaded.Done(3))
	assert.True(t, loaded.Done(7))
	assert.False(t, loaded.Done(8))

	require.NoError(t, cm.ClearCheckpoint("proj"))
	require.NoError(t, cm.ClearCheckpoint("proj"), "clearing twice is fine")
	got, err = cm.LoadCheckpoint("proj")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCheckpoint_RetryAfterFailure(t *testing.T) {
	cp := NewCheckpoint("proj", "run-1")
	cp.MarkFailed(5, "blob: 502")
	cp.MarkCompleted(5, 4)
	assert.Empty(t, cp.Failed)
	assert.Equal(t, []int64{5}, cp.Completed)
}

func TestCheckpointManager_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "checkpoint-proj.json"), []byte("{not json"), 0o644))

	_, err := NewCheckpointManager(dir).LoadCheckpoint("proj")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse checkpoint")
}
