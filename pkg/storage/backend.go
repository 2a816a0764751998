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

package storage

import (
	"context"
	"errors"
	"time"
)

// ErrQueueEmpty is returned by ClaimNext when no unprocessed, unlocked
// repository remains.
var ErrQueueEmpty = errors.New("repository queue is empty")

// Backend is the interface that all storage backends must implement.
// It holds the repository work queue and the mined templates.
type Backend interface {
	// SaveTemplates inserts one repository's records in a single
	// transaction. Duplicates are ignored. It returns the number inserted.
	SaveTemplates(ctx context.Context, records []TemplateRecord) (int, error)

	// AddRepository enqueues a repository. Adding an existing owner/name
	// returns its id with added=false.
	AddRepository(ctx context.Context, repo RepositoryRecord) (id int64, added bool, err error)

	// ClaimNext locks the oldest unprocessed repository.
	ClaimNext(ctx context.Context) (*RepositoryRecord, error)

	// FinishRepository marks a claimed repository processed and releases it.
	FinishRepository(ctx context.Context, id int64, success bool, reason string) error

	// ReleaseRepository unlocks a claimed repository without marking it
	// processed, so a later run can claim it again.
	ReleaseRepository(ctx context.Context, id int64) error

	// Stats summarizes the queue and template tables.
	Stats(ctx context.Context) (*Stats, error)

	// Query runs a read-only SQL query.
	Query(ctx context.Context, query string, args ...any) (*QueryResult, error)

	// Close releases any resources held by the backend.
	Close() error
}

// TemplateRecord is one persisted template row. Arguments is stored as
// NULL when empty.
//
// Source names where the template was mined (owner/name or a checkout
// path). RepositoryID is the repositories row it came from; zero for runs
// outside the queue, stored as NULL.
type TemplateRecord struct {
	Template     string
	Arguments    []string
	Raw          string
	Source       string
	RepositoryID int64
	Parsed       string
	CrawlDate    time.Time
	RunID        string
}

// RepositoryRecord is one row of the repository queue.
type RepositoryRecord struct {
	ID                    int64
	Owner                 string
	Name                  string
	URL                   string
	Stars                 int
	DiskUsage             int
	Languages             []string
	MainLanguage          string
	Framework             string
	Processed             bool
	SuccessfullyProcessed bool
	Locked                bool
	FailureReason         string
	AddedAt               time.Time
}

// FullName returns owner/name.
func (r RepositoryRecord) FullName() string { return r.Owner + "/" + r.Name }

// Stats counts queue states and stored templates.
type Stats struct {
	Repositories int `json:"repositories"`
	Pending      int `json:"pending"`
	Locked       int `json:"locked"`
	Processed    int `json:"processed"`
	Successful   int `json:"successful"`
	Templates    int `json:"templates"`
}

// QueryResult represents the result of a SQL query.
type QueryResult struct {
	Headers []string
	Rows    [][]any
}

// Column returns the values of the named column, or nil if absent.
func (r *QueryResult) Column(name string) []any {
	idx := -1
	for i, h := range r.Headers {
		if h == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, row[idx])
	}
	return out
}
