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
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestBackendInterface verifies that SQLiteBackend implements the Backend interface.
func TestBackendInterface(t *testing.T) {
	var _ Backend = &SQLiteBackend{}
}

func TestQueryResult_Column(t *testing.T) {
	qr := &QueryResult{
		Headers: []string{"id", "template"},
		Rows: [][]any{
			{int64(1), "opened {}"},
			{int64(2), "closed {}"},
		},
	}

	assert.Equal(t, []any{"opened {}", "closed {}"}, qr.Column("template"))
	assert.Nil(t, qr.Column("missing"))
}

func TestRepositoryRecord_FullName(t *testing.T) {
	assert.Equal(t, "acme/widget", RepositoryRecord{Owner: "acme", Name: "widget"}.FullName())
}
