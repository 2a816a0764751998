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

// Package ingestion mines log templates from source repositories.
//
// A run moves a repository through a fixed sequence of stages:
//
//  1. Load: read a local checkout or a shallow clone (RepoLoader), or take
//     the files a remote sampler picked (sampler.Result).
//  2. Detect: find which logging framework the code uses (Detector).
//  3. Extract: locate logging calls and cut out their argument text
//     (Extractor).
//  4. Parse: turn each call into a template and argument list
//     (logparse.Parser).
//  5. Filter: drop templates that carry too little text (logparse.Filter).
//  6. Formalize: name the placeholders (formalize.Formalizer).
//  7. Persist: validate and store the records in one transaction.
//
// A stage that produces nothing ends the run with an *EmptyResultError
// naming the stage. Later stages are skipped.
//
// # Quick Start
//
//	cfg := ingestion.Config{
//	    ProjectID:  "demo",
//	    RepoSource: ingestion.RepoSource{Type: "local_path", Value: "/src/app"},
//	    Language:   "java",
//	    IngestionConfig: ingestion.DefaultConfig(),
//	}
//
//	p, err := ingestion.NewPipeline(cfg, backend, logger)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	res, err := p.Run(ctx)
//
// # Remote repositories
//
// RemoteMiner samples a GitHub repository without cloning it and mines the
// sampled files. QueueRunner drains the repository queue held by the
// storage backend, checkpointing after every repository so an interrupted
// run resumes where it stopped.
//
// # Metrics
//
// Every run updates the logmine_* Prometheus collectors registered by this
// package.
package ingestion
