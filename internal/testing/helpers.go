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
	"path/filepath"
	"testing"
	"time"

	"github.com/kraklabs/logmine/pkg/storage"
)

// SetupTestBackend creates a SQLite backend in a temporary directory.
// The backend is automatically closed when the test finishes.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    backend := testing.SetupTestBackend(t)
//
//	    // Backend is ready with the schema migrated
//	    testing.InsertTestRepository(t, backend, "acme", "widget")
//	}
func SetupTestBackend(t *testing.T) *storage.SQLiteBackend {
	t.Helper()

	backend, err := storage.NewSQLiteBackend(storage.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "logmine.db"),
	})
	if err != nil {
		t.Fatalf("failed to create test backend: %v", err)
	}

	t.Cleanup(func() {
		_ = backend.Close()
	})

	return backend
}

// InsertTestRepository enqueues a repository and returns its id.
//
// Example:
//
//	id := testing.InsertTestRepository(t, backend, "acme", "widget")
func InsertTestRepository(t *testing.T, backend storage.Backend, owner, name string) int64 {
	t.Helper()

	id, _, err := backend.AddRepository(context.Background(), storage.RepositoryRecord{
		Owner:        owner,
		Name:         name,
		URL:          "https://github.com/" + owner + "/" + name,
		MainLanguage: "java",
	})
	if err != nil {
		t.Fatalf("failed to insert test repository: %v", err)
	}
	return id
}

// InsertTestTemplate stores a single template row for source. The row is
// not linked to a queued repository.
//
// Example:
//
//	testing.InsertTestTemplate(t, backend, "acme/widget", "opened {Path}", "path")
func InsertTestTemplate(t *testing.T, backend storage.Backend, source, template string, args ...string) {
	t.Helper()

	_, err := backend.SaveTemplates(context.Background(), []storage.TemplateRecord{{
		Template:  template,
		Arguments: args,
		Raw:       template,
		Source:    source,
		Parsed:    template,
		CrawlDate: time.Now(),
	}})
	if err != nil {
		t.Fatalf("failed to insert test template: %v", err)
	}
}

// QueryTemplates returns every stored template as [source, template,
// arguments, repository_id] rows in insertion order.
//
// Example:
//
//	result := testing.QueryTemplates(t, backend)
//	require.Len(t, result.Rows, 2)
func QueryTemplates(t *testing.T, backend storage.Backend) *storage.QueryResult {
	t.Helper()

	result, err := backend.Query(context.Background(),
		`SELECT source, template, arguments, repository_id FROM templates ORDER BY id`)
	if err != nil {
		t.Fatalf("failed to query templates: %v", err)
	}
	return result
}

// QueryRepositories returns every queued repository as [owner, name,
// processed, successfully_processed, locked] rows ordered by id.
func QueryRepositories(t *testing.T, backend storage.Backend) *storage.QueryResult {
	t.Helper()

	result, err := backend.Query(context.Background(),
		`SELECT owner, name, processed, successfully_processed, locked FROM repositories ORDER BY id`)
	if err != nil {
		t.Fatalf("failed to query repositories: %v", err)
	}
	return result
}
