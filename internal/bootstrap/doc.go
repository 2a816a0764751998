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

// Package bootstrap creates and opens logmine project databases.
//
// Each project keeps its templates and repository queue in one SQLite file,
// by default ~/.logmine/data/<project_id>/logmine.db:
//
//	info, err := bootstrap.InitProject(bootstrap.ProjectConfig{ProjectID: "acme"}, logger)
//	if err != nil {
//	    return err
//	}
//
//	backend, err := bootstrap.OpenProject(bootstrap.ProjectConfig{ProjectID: "acme"}, logger)
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
// InitProject is idempotent. OpenProject refuses to create a database, so a
// typo in the project ID fails instead of mining into an empty store.
package bootstrap
