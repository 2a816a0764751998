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

// Package testing provides test helpers for logmine packages.
//
// # Storage
//
// SetupTestBackend creates a migrated SQLite backend in a temp dir:
//
//	func TestMyFeature(t *testing.T) {
//	    backend := testing.SetupTestBackend(t)
//	    testing.InsertTestTemplate(t, backend, "acme/widget", "opened {Path}", "path")
//
//	    rows := testing.QueryTemplates(t, backend)
//	    require.Len(t, rows.Rows, 1)
//	}
//
// Seeding and query helpers:
//   - InsertTestRepository: enqueue a repository
//   - InsertTestTemplate: store one template row
//   - QueryTemplates, QueryRepositories: read tables back in insertion order
//
// # Remote trees
//
// FakeTree is an in-memory sampler.TreeClient built from paths. It records
// every listing and fetch so tests can assert what the sampler visited:
//
//	tree := testing.NewFakeTree().
//	    File("src/App.java", body).
//	    File("module1/Other.java", body)
//	_, err := sampler.New(tree, cfg, nil).Sample(ctx, repo, rng)
//	assert.NotContains(t, tree.Listed(), "module1")
package testing
