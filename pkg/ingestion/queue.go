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
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kraklabs/logmine/pkg/storage"
)

// MineFunc mines one queued repository.
type MineFunc func(ctx context.Context, repo storage.RepositoryRecord) (*Result, error)

// QueueSummary counts what one Drain did.
type QueueSummary struct {
	Claimed   int  `json:"claimed"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
	Skipped   int  `json:"skipped"`
	Templates int  `json:"templates"`
	Resumed   bool `json:"resumed"`
}

// QueueRunner claims queued repositories one at a time and mines them until
// the queue is empty. Progress is checkpointed after every repository so an
// interrupted run resumes where it stopped.
type QueueRunner struct {
	backend     storage.Backend
	checkpoints *CheckpointManager
	projectID   string
	runID       string
	mine        MineFunc
	logger      *slog.Logger

	// OnRepository, when set, is called after each repository.
	OnRepository func(repo storage.RepositoryRecord, res *Result, err error)
}

// NewQueueRunner creates a queue runner.
func NewQueueRunner(backend storage.Backend, checkpoints *CheckpointManager, projectID, runID string, mine MineFunc, logger *slog.Logger) *QueueRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueRunner{
		backend:     backend,
		checkpoints: checkpoints,
		projectID:   projectID,
		runID:       runID,
		mine:        mine,
		logger:      logger,
	}
}

// Drain processes the queue. A canceled context releases the repository in
// flight and keeps the checkpoint for the next run.
func (q *QueueRunner) Drain(ctx context.Context) (QueueSummary, error) {
	var summary QueueSummary

	cp, err := q.checkpoints.LoadCheckpoint(q.projectID)
	if err != nil {
		return summary, err
	}
	if cp == nil {
		cp = NewCheckpoint(q.projectID, q.runID)
	} else {
		summary.Resumed = true
		q.logger.Info("queue.resume",
			"run_id", cp.RunID,
			"completed", len(cp.Completed),
			"failed", len(cp.Failed),
		)
	}

	for {
		if err := ctx.Err(); err != nil {
			return summary, q.save(cp, err)
		}

		repo, err := q.backend.ClaimNext(ctx)
		if errors.Is(err, storage.ErrQueueEmpty) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("claim repository: %w", err)
		}
		summary.Claimed++

		if cp.Done(repo.ID) {
			// Mined before an interruption but never marked finished.
			reason, failed := cp.Failed[repo.ID]
			if err := q.backend.FinishRepository(ctx, repo.ID, !failed, reason); err != nil {
				return summary, fmt.Errorf("finish repository: %w", err)
			}
			summary.Skipped++
			continue
		}

		q.logger.Info("queue.repository.start", "id", repo.ID, "repo", repo.FullName())
		res, mineErr := q.mine(ctx, *repo)

		if mineErr != nil && ctx.Err() != nil {
			if err := q.backend.ReleaseRepository(context.WithoutCancel(ctx), repo.ID); err != nil {
				q.logger.Warn("queue.release.error", "id", repo.ID, "err", err)
			}
			return summary, q.save(cp, ctx.Err())
		}

		if mineErr != nil {
			summary.Failed++
			cp.MarkFailed(repo.ID, mineErr.Error())
			q.logger.Warn("queue.repository.failed", "id", repo.ID, "repo", repo.FullName(), "err", mineErr)
		} else {
			summary.Succeeded++
			summary.Templates += res.Stored
			cp.MarkCompleted(repo.ID, res.Stored)
			q.logger.Info("queue.repository.complete", "id", repo.ID, "repo", repo.FullName(), "stored", res.Stored)
		}
		if err := q.checkpoints.SaveCheckpoint(cp); err != nil {
			return summary, err
		}

		reason := ""
		if mineErr != nil {
			reason = mineErr.Error()
		}
		if err := q.backend.FinishRepository(ctx, repo.ID, mineErr == nil, reason); err != nil {
			return summary, fmt.Errorf("finish repository: %w", err)
		}
		if q.OnRepository != nil {
			q.OnRepository(*repo, res, mineErr)
		}
	}

	q.logger.Info("queue.drained",
		"claimed", summary.Claimed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"templates", summary.Templates,
	)
	if err := q.checkpoints.ClearCheckpoint(q.projectID); err != nil {
		return summary, err
	}
	return summary, nil
}

func (q *QueueRunner) save(cp *Checkpoint, cause error) error {
	if err := q.checkpoints.SaveCheckpoint(cp); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}
