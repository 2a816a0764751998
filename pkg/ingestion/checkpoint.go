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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// Checkpoint tracks a batch run's progress so that an interrupted run can
// resume without redoing finished repositories.
type Checkpoint struct {
	ProjectID      string           `json:"project_id"`
	RunID          string           `json:"run_id"`
	Completed      []int64          `json:"completed"`
	Failed         map[int64]string `json:"failed,omitempty"` // repository id -> reason
	TemplatesSaved int              `json:"templates_saved"`
	StartTime      string           `json:"start_time"`
	LastUpdateTime string           `json:"last_update_time"`
}

// NewCheckpoint starts an empty checkpoint for a run.
func NewCheckpoint(projectID, runID string) *Checkpoint {
	now := time.Now().UTC().Format(time.RFC3339)
	return &Checkpoint{
		ProjectID:      projectID,
		RunID:          runID,
		Failed:         make(map[int64]string),
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Done reports whether the repository was already handled in this run.
func (c *Checkpoint) Done(repoID int64) bool {
	if slices.Contains(c.Completed, repoID) {
		return true
	}
	_, failed := c.Failed[repoID]
	return failed
}

// MarkCompleted records a successfully mined repository.
func (c *Checkpoint) MarkCompleted(repoID int64, templates int) {
	if !slices.Contains(c.Completed, repoID) {
		c.Completed = append(c.Completed, repoID)
	}
	delete(c.Failed, repoID)
	c.TemplatesSaved += templates
}

// MarkFailed records a repository that failed with reason.
func (c *Checkpoint) MarkFailed(repoID int64, reason string) {
	if c.Failed == nil {
		c.Failed = make(map[int64]string)
	}
	c.Failed[repoID] = reason
}

// CheckpointManager manages checkpoint persistence.
type CheckpointManager struct {
	checkpointPath string
}

// NewCheckpointManager creates a new checkpoint manager rooted at dir.
func NewCheckpointManager(checkpointPath string) *CheckpointManager {
	return &CheckpointManager{
		checkpointPath: checkpointPath,
	}
}

// LoadCheckpoint loads a checkpoint from disk. It returns nil, nil when
// none exists.
func (cm *CheckpointManager) LoadCheckpoint(projectID string) (*Checkpoint, error) {
	path := cm.getCheckpointPath(projectID)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	if checkpoint.Failed == nil {
		checkpoint.Failed = make(map[int64]string)
	}
	return &checkpoint, nil
}

// SaveCheckpoint writes the checkpoint atomically (temp file + rename).
func (cm *CheckpointManager) SaveCheckpoint(checkpoint *Checkpoint) error {
	path := cm.getCheckpointPath(checkpoint.ProjectID)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	checkpoint.LastUpdateTime = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// ClearCheckpoint removes a checkpoint file.
func (cm *CheckpointManager) ClearCheckpoint(projectID string) error {
	path := cm.getCheckpointPath(projectID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}
	return nil
}

func (cm *CheckpointManager) getCheckpointPath(projectID string) string {
	if cm.checkpointPath != "" {
		return filepath.Join(cm.checkpointPath, fmt.Sprintf("checkpoint-%s.json", projectID))
	}
	return fmt.Sprintf("checkpoint-%s.json", projectID)
}
