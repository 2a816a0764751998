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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/logmine/internal/bootstrap"
	"github.com/kraklabs/logmine/pkg/ingestion"
	"github.com/kraklabs/logmine/pkg/storage"
)

func TestCollectStatus_NotInitialized(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := DefaultConfig("acme")

	st := collectStatus(context.Background(), cfg, t.TempDir(), nil)
	assert.False(t, st.Connected)
	assert.Contains(t, st.Error, "logmine init")
	assert.Nil(t, st.Stats)
	assert.Nil(t, st.Lock)
	assert.Nil(t, st.Checkpoint)
}

func TestCollectStatus(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	root := t.TempDir()
	cfg := DefaultConfig("acme")
	ctx := context.Background()

	_, err := bootstrap.InitProject(cfg.projectConfig(), nil)
	require.NoError(t, err)

	backend, err := cfg.openBackend(nil)
	require.NoError(t, err)
	for _, name := range []string{"widget", "gadget"} {
		_, _, err := backend.AddRepository(ctx, storage.RepositoryRecord{Owner: "acme", Name: name})
		require.NoError(t, err)
	}
	claimed, err := backend.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, backend.FinishRepository(ctx, claimed.ID, false, "sample: tree: rate limited"))
	require.NoError(t, backend.Close())

	cp := ingestion.NewCheckpoint("acme", "run-9")
	cp.MarkCompleted(1, 4)
	require.NoError(t, ingestion.NewCheckpointManager(checkpointDir(root)).SaveCheckpoint(cp))

	lock, err := NewRunLock(ConfigDir(root))
	require.NoError(t, err)
	ok, err := lock.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)
	defer lock.Release()

	st := collectStatus(ctx, cfg, root, nil)
	require.True(t, st.Connected, st.Error)
	assert.Empty(t, st.Error)
	assert.Equal(t, &storage.Stats{Repositories: 2, Pending: 1, Processed: 1}, st.Stats)
	assert.Equal(t, []FailureSummary{{Repository: "acme/widget", Reason: "sample: tree: rate limited"}}, st.Failures)
	require.NotNil(t, st.Lock)
	require.NotNil(t, st.Checkpoint)
	assert.Equal(t, CheckpointInfo{RunID: "run-9", Completed: 1}, *st.Checkpoint)

	buf := captureUI(t)
	printStatus(st)
	out := buf.String()
	assert.Contains(t, out, "acme/widget")
	assert.Contains(t, out, "Run in progress")
	assert.Contains(t, out, "Interrupted run run-9")
}
