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

// Package sampler selects a bounded, diverse set of source files from a
// remote repository without cloning it.
//
// The walk starts at the default branch's root. When the root holds a
// priority directory (src, source, or one named after the repository) the
// walk descends into those only; otherwise it picks a few random
// subdirectories. Each level spends one unit of the split budget, after
// which every directory contributes a single random child. Matching files
// are then fetched, binaries and tiny files dropped, and FileCount files
// drawn from the largest 2*FileCount.
//
// Every directory listing and blob fetch is one TreeClient round trip.
// GitHubClient implements TreeClient over the GraphQL API:
//
//	client := sampler.NewGitHubClient(sampler.GitHubConfig{Token: token}, logger)
//	s := sampler.New(client, sampler.DefaultConfig(), logger)
//	res, err := s.Sample(ctx, repo, rand.New(rand.NewPCG(seed, seed)))
package sampler
