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
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lmtesting "github.com/kraklabs/logmine/internal/testing"
	"github.com/kraklabs/logmine/pkg/formalize"
	"github.com/kraklabs/logmine/pkg/sampler"
)

const serverJava = `import org.slf4j.Logger;
class A {
  void f() {
    log.info("Server started on port {} with {} workers", port, workers);
    log.debug("x");
    log.error("Failed to open {}", file, ex);
  }
}
`

const cacheJava = `import org.slf4j.LoggerFactory;
class B {
  void g() {
    LOG.warn("Cache file missing at " + cachePath);
  }
}
`

func testPipelineConfig(language, framework string) Config {
	ing := DefaultConfig()
	ing.Seed = 42
	return Config{
		ProjectID:       "test",
		Source:          "acme/widget",
		Language:        language,
		Framework:       framework,
		RunID:           "run-1",
		IngestionConfig: ing,
	}
}

func parsedTemplates(res *Result) []string {
	out := make([]string, len(res.Templates))
	for i, t := range res.Templates {
		out[i] = t.Parsed
	}
	return out
}

func TestPipeline_MineFiles(t *testing.T) {
	backend := lmtesting.SetupTestBackend(t)

	p, err := NewPipeline(testPipelineConfig("java", ""), backend, nil)
	require.NoError(t, err)
	defer p.Close()

	files := []SourceFile{
		{Path: "src/B.java", Content: cacheJava},
		{Path: "src/A.java", Content: serverJava},
	}
	res, err := p.MineFiles(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, "java/slf4j", res.Dialect)
	assert.Equal(t, "slf4j", res.Detection.Framework)
	assert.Equal(t, 2, res.FilesLoaded)
	assert.Equal(t, 4, res.Extract.Statements)
	assert.Equal(t, 4, res.Parsed)
	assert.Equal(t, 1, res.Filtered)
	assert.Equal(t, map[string]int{"too_short": 1}, res.FilterReasons)
	assert.Equal(t, 1, res.Formalize.Truncated)
	assert.Equal(t, []string{
		"Server started on port {} with {} workers",
		"Failed to open {}",
		"Cache file missing at {}",
	}, parsedTemplates(res))
	assert.Equal(t, []string{"file"}, res.Templates[1].Arguments)
	assert.Equal(t, 3, res.Stored)
	assert.NoError(t, res.Err)

	rows := lmtesting.QueryTemplates(t, backend)
	require.Len(t, rows.Rows, 3)
	for _, row := range rows.Rows {
		assert.Equal(t, "acme/widget", row[0])
	}

	again, err := p.MineFiles(context.Background(), files)
	require.NoError(t, err)
	assert.Zero(t, again.Stored, "identical records are ignored")
}

func TestPipeline_DuplicatesAcrossFiles(t *testing.T) {
	p, err := NewPipeline(testPipelineConfig("java", "slf4j"), nil, nil)
	require.NoError(t, err)
	defer p.Close()

	res, err := p.MineFiles(context.Background(), []SourceFile{
		{Path: "src/A.java", Content: serverJava},
		{Path: "src/copy/A.java", Content: serverJava},
	})
	require.NoError(t, err)

	assert.Equal(t, 6, res.Extract.Statements)
	assert.Equal(t, 2, res.Duplicates)
	assert.Equal(t, []string{
		"Server started on port {} with {} workers",
		"Failed to open {}",
	}, parsedTemplates(res))
}

func TestPipeline_LiteralBracesSurviveValidation(t *testing.T) {
	backend := lmtesting.SetupTestBackend(t)
	p, err := NewPipeline(testPipelineConfig("java", "slf4j"), backend, nil)
	require.NoError(t, err)
	defer p.Close()

	res, err := p.MineFiles(context.Background(), []SourceFile{{Path: "Router.java", Content: `class Router {
  void route() {
    log.warn("Route /users/{id} not found for request " + path);
  }
}
`}})
	require.NoError(t, err)

	assert.Zero(t, res.Rejected)
	assert.Equal(t, []string{"Route /users/{id} not found for request {}"}, parsedTemplates(res))
	assert.Equal(t, []string{"path"}, res.Templates[0].Arguments)
	assert.Equal(t, 1, res.Stored)
}

func TestPipeline_SeedDeterminism(t *testing.T) {
	files := []SourceFile{{Path: "A.java", Content: serverJava}, {Path: "B.java", Content: cacheJava}}

	run := func() []formalize.Result {
		p, err := NewPipeline(testPipelineConfig("java", "slf4j"), nil, nil)
		require.NoError(t, err)
		res, err := p.MineFiles(context.Background(), files)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), res.Seed)
		return res.Templates
	}

	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("templates differ between seeded runs (-first +second):\n%s", diff)
	}
}

func TestPipeline_EmptyStages(t *testing.T) {
	tests := []struct {
		name      string
		framework string
		files     []SourceFile
		wantStage string
	}{
		{"no files", "slf4j", nil, StageLoad},
		{"no framework detected", "", []SourceFile{{Path: "A.java", Content: "class A { int x; }"}}, StageDetect},
		{"no statements", "slf4j", []SourceFile{{Path: "A.java", Content: "class A { int x; }"}}, StageExtract},
		{"everything filtered", "slf4j", []SourceFile{{Path: "A.java", Content: `class A { void f() { log.info("ok"); } }`}}, StageFilter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPipeline(testPipelineConfig("java", tt.framework), nil, nil)
			require.NoError(t, err)

			res, err := p.MineFiles(context.Background(), tt.files)
			var empty *EmptyResultError
			require.True(t, errors.As(err, &empty), "got %v", err)
			assert.Equal(t, tt.wantStage, empty.Stage)
			require.NotNil(t, res)
			assert.Equal(t, err, res.Err)
			assert.Empty(t, res.Templates)
		})
	}
}

func TestPipeline_CDialect(t *testing.T) {
	src := `#include <stdio.h>
int main(int argc, char **argv) {
    printf("Processing %d files in %s\n", argc, name);
    fprintf(stderr, "Could not open configuration file %s\n", path);
    return 0;
}
`
	p, err := NewPipeline(testPipelineConfig("c", ""), nil, nil)
	require.NoError(t, err)

	res, err := p.MineFiles(context.Background(), []SourceFile{{Path: "main.c", Content: src}})
	require.NoError(t, err)
	assert.Equal(t, "c/printf", res.Dialect)
	assert.Equal(t, []string{
		`Processing {} files in {}\n`,
		`Could not open configuration file {}\n`,
	}, parsedTemplates(res))
}

func TestPipeline_ParallelKeepsFileOrder(t *testing.T) {
	var files []SourceFile
	var want []string
	for i := 0; i < 16; i++ {
		msg := fmt.Sprintf("Worker number %02d finished batch {}", i)
		files = append(files, SourceFile{
			Path:    fmt.Sprintf("src/W%02d.java", i),
			Content: fmt.Sprintf("class W%02d { void f() { log.info(%q, batch); } }", i, msg),
		})
		want = append(want, msg)
	}
	// Reverse so that ordering comes from the pipeline, not the input.
	for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
		files[i], files[j] = files[j], files[i]
	}

	cfg := testPipelineConfig("java", "slf4j")
	cfg.IngestionConfig.Concurrency.ParseWorkers = 4
	p, err := NewPipeline(cfg, nil, nil)
	require.NoError(t, err)

	res, err := p.MineFiles(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, want, parsedTemplates(res))
	assert.Equal(t, 16, res.Extract.Files)
}

func TestPipeline_RunLocalPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/main/A.java", []byte(serverJava))
	writeFile(t, root, "target/generated/B.java", []byte(cacheJava))

	cfg := testPipelineConfig("java", "")
	cfg.Source = ""
	cfg.RepoSource = RepoSource{Type: "local_path", Value: root}

	backend := lmtesting.SetupTestBackend(t)
	p, err := NewPipeline(cfg, backend, nil)
	require.NoError(t, err)
	defer p.Close()

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesLoaded)
	assert.Equal(t, 2, res.Stored)
	assert.Equal(t, normalizePath(root), res.Source)
	assert.Contains(t, res.StageDurations, StageLoad)
	assert.Contains(t, res.StageDurations, StagePersist)
}

func TestPipeline_MineSample(t *testing.T) {
	sample := &sampler.Result{
		Files: []sampler.CandidateFile{
			{Path: "src/A.java", Content: serverJava},
		},
		Stats: sampler.Stats{RoundTrips: 3, Selected: 1},
	}

	p, err := NewPipeline(testPipelineConfig("java", ""), nil, nil)
	require.NoError(t, err)

	res, err := p.MineSample(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, 3, res.SamplerStats.RoundTrips)
	assert.Len(t, res.Templates, 2)
}

func TestPipeline_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := NewPipeline(testPipelineConfig("java", "slf4j"), nil, nil)
	require.NoError(t, err)

	_, err = p.MineFiles(ctx, []SourceFile{{Path: "A.java", Content: serverJava}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewPipeline_Errors(t *testing.T) {
	_, err := NewPipeline(testPipelineConfig("cobol", ""), nil, nil)
	assert.Error(t, err)

	cfg := testPipelineConfig("java", "slf4j")
	cfg.IngestionConfig.RegistryPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = NewPipeline(cfg, nil, nil)
	assert.Error(t, err)
}

func TestNewPipeline_CustomRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.yaml")
	require.NoError(t, os.WriteFile(path, []byte("types:\n  - name: Port\n    keywords: [port]\n"), 0o644))

	cfg := testPipelineConfig("java", "slf4j")
	cfg.IngestionConfig.RegistryPath = path
	p, err := NewPipeline(cfg, nil, nil)
	require.NoError(t, err)

	res, err := p.MineFiles(context.Background(), []SourceFile{{Path: "A.java", Content: serverJava}})
	require.NoError(t, err)
	assert.Equal(t, "Server started on port {Port} with {} workers", res.Templates[0].Template)
}

func TestPipeline_RunIDGenerated(t *testing.T) {
	cfg := testPipelineConfig("java", "slf4j")
	cfg.RunID = ""
	p, err := NewPipeline(cfg, nil, nil)
	require.NoError(t, err)
	assert.Len(t, p.RunID(), 36)
}
