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

// Package storage persists the repository work queue and mined templates.
//
// # Backend
//
// Backend is the narrow interface the pipeline and CLI consume.
// SQLiteBackend implements it on a local SQLite file (modernc.org/sqlite,
// no cgo):
//
//	backend, err := storage.NewSQLiteBackend(storage.SQLiteConfig{
//	    ProjectID: "myproject",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Schema
//
// The schema is versioned in schema_version and migrated forward on open.
// Two tables hold the data:
//   - repositories: the work queue with processed, successfully_processed
//     and locked flags
//   - templates: one row per formalized template, unique per source, raw
//     text and template; repository_id links queue runs to their
//     repositories row and is NULL for ad-hoc runs
//
// Template arguments and repository languages are stored as JSON arrays,
// or NULL when empty.
//
// # Queue
//
// ClaimNext locks the oldest pending repository; FinishRepository records
// the outcome and releases the lock. A repository is claimed at most once
// until it is finished.
//
// # Thread Safety
//
// SQLiteBackend is safe for concurrent use. Reads take a read lock and
// writes an exclusive lock over a single database connection.
package storage
