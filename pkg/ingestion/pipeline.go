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
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/logmine/internal/contract"
	"github.com/kraklabs/logmine/pkg/formalize"
	"github.com/kraklabs/logmine/pkg/logparse"
	"github.com/kraklabs/logmine/pkg/sampler"
	"github.com/kraklabs/logmine/pkg/storage"
)

// Pipeline stage names, used in logs, metrics and EmptyResultError.
const (
	StageLoad      = "load"
	StageDetect    = "detect"
	StageExtract   = "extract"
	StageParse     = "parse"
	StageFilter    = "filter"
	StageFormalize = "formalize"
	StageValidate  = "validate"
	StagePersist   = "persist"
)

// EmptyResultError reports a stage that left nothing for the next one. The
// repository is marked unsuccessful and later stages are skipped.
type EmptyResultError struct {
	Stage string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("%s stage produced no results", e.Stage)
}

// Result summarizes one repository run. On failure it still carries the
// counts gathered up to the failing stage.
type Result struct {
	Source       string
	RepositoryID int64
	RunID        string
	Seed         uint64
	Dialect      string

	FilesLoaded  int
	SkipReasons  map[string]int
	DecodeErrors int
	SamplerStats sampler.Stats
	Detection    Detection

	Extract       ExtractStats
	LexErrors     int
	ParseErrors   int
	Parsed        int
	Filtered      int
	FilterReasons map[string]int
	Formalize     formalize.Stats
	Rejected      int
	Duplicates    int // same raw statement and template in more than one file
	Stored        int

	// Templates are the validated records in source order.
	Templates []formalize.Result

	StageDurations map[string]time.Duration
	TotalDuration  time.Duration

	Err error
}

// Pipeline mines one repository: detect, extract, parse, filter, formalize,
// validate and persist. Stages run strictly in sequence; extraction and
// parsing fan out over files.
type Pipeline struct {
	config   Config
	language logparse.Language
	logger   *slog.Logger
	loader   *RepoLoader
	backend  storage.Backend
	registry *formalize.Registry
}

// NewPipeline creates a pipeline. A nil backend runs everything except the
// persist stage. The backend stays owned by the caller.
func NewPipeline(config Config, backend storage.Backend, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	language, err := logparse.ParseLanguage(config.Language)
	if err != nil {
		return nil, fmt.Errorf("language: %w", err)
	}

	registry := formalize.DefaultRegistry()
	if path := config.IngestionConfig.RegistryPath; path != "" {
		registry, err = formalize.LoadRegistry(path)
		if err != nil {
			return nil, fmt.Errorf("load placeholder registry: %w", err)
		}
	}

	if config.RunID == "" {
		config.RunID = uuid.NewString()
	}

	return &Pipeline{
		config:   config,
		language: language,
		logger:   logger,
		loader:   NewRepoLoader(logger),
		backend:  backend,
		registry: registry,
	}, nil
}

// Close removes any clones made by Run.
func (p *Pipeline) Close() error {
	return p.loader.Close()
}

// RunID returns the identifier stored with every record of this pipeline.
func (p *Pipeline) RunID() string { return p.config.RunID }

// Run loads the configured source and mines it.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := p.newResult()

	p.logger.Info("pipeline.start",
		"repository", res.Source,
		"run_id", res.RunID,
		"source", p.config.RepoSource.Value,
	)

	stageStart := time.Now()
	loadCtx, cancel := p.stageContext(ctx)
	loaded, err := p.loader.LoadRepository(loadCtx, p.config.RepoSource, LoadOptions{
		Extensions:   p.language.Extensions(),
		ExcludeGlobs: p.config.IngestionConfig.ExcludeGlobs,
		MaxFileSize:  p.config.IngestionConfig.MaxFileSizeBytes,
		Encodings:    p.config.IngestionConfig.Encodings,
	})
	cancel()
	p.finishStage(res, StageLoad, stageStart)
	if err != nil {
		return p.fail(res, start, fmt.Errorf("load repository: %w", err))
	}
	res.SkipReasons = loaded.SkipReasons
	res.DecodeErrors = loaded.DecodeErrors

	return p.mine(ctx, res, loaded.Files, start)
}

// MineSample mines the files picked by the heuristic sampler.
func (p *Pipeline) MineSample(ctx context.Context, sample *sampler.Result) (*Result, error) {
	start := time.Now()
	res := p.newResult()
	res.SamplerStats = sample.Stats

	files := make([]SourceFile, 0, len(sample.Files))
	for _, cf := range sample.Files {
		files = append(files, SourceFile{
			Path:     cf.Path,
			Content:  cf.Content,
			Size:     int64(len(cf.Content)),
			Language: p.language.String(),
			Encoding: "utf-8",
		})
	}
	return p.mine(ctx, res, files, start)
}

// MineFiles mines already decoded files.
func (p *Pipeline) MineFiles(ctx context.Context, files []SourceFile) (*Result, error) {
	return p.mine(ctx, p.newResult(), files, time.Now())
}

func (p *Pipeline) newResult() *Result {
	seed := p.config.IngestionConfig.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Result{
		Source:         p.source(),
		RepositoryID:   p.config.RepositoryID,
		RunID:          p.config.RunID,
		Seed:           seed,
		SkipReasons:    make(map[string]int),
		FilterReasons:  make(map[string]int),
		StageDurations: make(map[string]time.Duration),
	}
}

func (p *Pipeline) source() string {
	if p.config.Source != "" {
		return p.config.Source
	}
	return normalizePath(p.config.RepoSource.Value)
}

func (p *Pipeline) mine(ctx context.Context, res *Result, files []SourceFile, start time.Time) (*Result, error) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	res.FilesLoaded = len(files)
	if len(files) == 0 {
		return p.fail(res, start, &EmptyResultError{Stage: StageLoad})
	}

	// Detect
	stageStart := time.Now()
	det, err := NewDetector(p.language, p.logger).Detect(ctx, files)
	p.finishStage(res, StageDetect, stageStart)
	if err != nil {
		return p.fail(res, start, fmt.Errorf("detect: %w", err))
	}
	res.Detection = det

	dialect, err := p.dialect(det)
	if err != nil {
		return p.fail(res, start, err)
	}
	res.Dialect = dialect.String()
	strategy, err := logparse.NewStrategy(dialect)
	if err != nil {
		return p.fail(res, start, err)
	}

	// Extract and parse
	stageStart = time.Now()
	parsed, err := p.extractAndParse(ctx, strategy, files, res)
	p.finishStage(res, StageParse, stageStart)
	if err != nil {
		return p.fail(res, start, err)
	}
	if res.Extract.Statements == 0 {
		return p.fail(res, start, &EmptyResultError{Stage: StageExtract})
	}
	if len(parsed) == 0 {
		return p.fail(res, start, &EmptyResultError{Stage: StageParse})
	}

	// Filter
	filter := p.config.IngestionConfig.newFilter()
	kept := make([]logparse.ParsedTemplate, 0, len(parsed))
	for _, pt := range parsed {
		if reason := filter.Check(pt.Template); reason != "" {
			res.Filtered++
			res.FilterReasons[reason]++
			continue
		}
		kept = append(kept, pt)
	}
	if len(kept) == 0 {
		return p.fail(res, start, &EmptyResultError{Stage: StageFilter})
	}

	// Formalize
	stageStart = time.Now()
	templates, stats := formalize.NewSeeded(p.registry, res.Seed, p.logger).Run(kept)
	res.Formalize = stats
	p.finishStage(res, StageFormalize, stageStart)
	if len(templates) == 0 {
		return p.fail(res, start, &EmptyResultError{Stage: StageFormalize})
	}

	// Validate
	crawlDate := time.Now().UTC()
	records := make([]storage.TemplateRecord, 0, len(templates))
	seen := make(map[string]bool, len(templates))
	for _, tpl := range templates {
		key := TemplateKey(res.Source, tpl.Raw, tpl.Template)
		if seen[key] {
			res.Duplicates++
			continue
		}
		seen[key] = true
		v := contract.ValidateRecord(contract.Record{
			Template:  tpl.Template,
			Parsed:    tpl.Parsed,
			Arguments: tpl.Arguments,
			Types:     tpl.Types,
			Raw:       tpl.Raw,
			RunID:     res.RunID,
		}, p.config.IngestionConfig.MaxRecordBytes)
		if !v.OK {
			res.Rejected++
			p.logger.Debug("pipeline.record.rejected", "reason", v.Message, "raw", tpl.Raw)
			continue
		}
		res.Templates = append(res.Templates, tpl)
		records = append(records, storage.TemplateRecord{
			Template:     tpl.Template,
			Arguments:    tpl.Arguments,
			Raw:          tpl.Raw,
			Source:       res.Source,
			RepositoryID: res.RepositoryID,
			Parsed:       tpl.Parsed,
			CrawlDate:    crawlDate,
			RunID:        res.RunID,
		})
	}
	if len(records) == 0 {
		return p.fail(res, start, &EmptyResultError{Stage: StageValidate})
	}

	// Persist
	if p.backend != nil {
		stageStart = time.Now()
		n, err := p.backend.SaveTemplates(ctx, records)
		p.finishStage(res, StagePersist, stageStart)
		if err != nil {
			return p.fail(res, start, fmt.Errorf("save templates: %w", err))
		}
		res.Stored = n
	}

	res.TotalDuration = time.Since(start)
	recordRun(res, res.TotalDuration)
	p.logger.Info("pipeline.complete",
		"repository", res.Source,
		"run_id", res.RunID,
		"dialect", res.Dialect,
		"files", res.FilesLoaded,
		"statements", res.Extract.Statements,
		"parsed", res.Parsed,
		"filtered", res.Filtered,
		"templates", len(res.Templates),
		"duplicates", res.Duplicates,
		"stored", res.Stored,
		"duration_ms", res.TotalDuration.Milliseconds(),
	)
	return res, nil
}

// dialect resolves the configured dialect, taking a Java framework from
// detection when none is configured.
func (p *Pipeline) dialect(det Detection) (logparse.Dialect, error) {
	cfg := p.config
	if cfg.Framework == "" && p.language == logparse.LanguageJava {
		if det.Framework == "" {
			return logparse.Dialect{}, &EmptyResultError{Stage: StageDetect}
		}
		cfg.Framework = det.Framework
		p.logger.Info("pipeline.framework.detected", "framework", det.Framework, "indicators", det.Indicators)
	}
	d, err := cfg.Dialect()
	if err != nil {
		return logparse.Dialect{}, fmt.Errorf("resolve dialect: %w", err)
	}
	return d, nil
}

// fileOutput is the extraction and parse output of one file.
type fileOutput struct {
	parsed      []logparse.ParsedTemplate
	stats       ExtractStats
	lexErrors   int
	parseErrors int
}

// extractAndParse runs extraction and parsing over every file on a bounded
// worker pool and merges the results in file order.
func (p *Pipeline) extractAndParse(ctx context.Context, strategy logparse.Strategy, files []SourceFile, res *Result) ([]logparse.ParsedTemplate, error) {
	extractor := NewExtractor(strategy, p.config.IngestionConfig.BacktrackWarn, p.logger)
	parser := logparse.NewParser(strategy)

	outputs := make([]fileOutput, len(files))
	workers := p.config.IngestionConfig.Concurrency.ParseWorkers
	if workers <= 0 {
		workers = 4
	}

	// For small file sets, process sequentially
	if len(files) < 10 || workers <= 1 {
		for i, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			outputs[i] = p.processFile(extractor, parser, f)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, f := range files {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				outputs[i] = p.processFile(extractor, parser, f)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var parsed []logparse.ParsedTemplate
	for _, out := range outputs {
		res.Extract.add(out.stats)
		res.LexErrors += out.lexErrors
		res.ParseErrors += out.parseErrors
		parsed = append(parsed, out.parsed...)
	}
	res.Parsed = len(parsed)

	p.logger.Info("pipeline.parse.complete",
		"files", len(files),
		"statements", res.Extract.Statements,
		"parsed", res.Parsed,
		"lex_errors", res.LexErrors,
		"parse_errors", res.ParseErrors,
	)
	return parsed, nil
}

func (p *Pipeline) processFile(extractor *Extractor, parser *logparse.Parser, f SourceFile) fileOutput {
	stmts, stats := extractor.ExtractFile(f.Path, f.Content)
	out := fileOutput{stats: stats}
	for _, stmt := range stmts {
		pt, err := parser.Parse(stmt.Raw)
		if err != nil {
			var lexErr *logparse.LexError
			if errors.As(err, &lexErr) {
				out.lexErrors++
			} else {
				out.parseErrors++
			}
			p.logger.Debug("pipeline.parse.error", "path", f.Path, "raw", stmt.Raw, "err", err)
			continue
		}
		out.parsed = append(out.parsed, pt)
	}
	return out
}

func (p *Pipeline) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := p.config.IngestionConfig.StageTimeout; d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func (p *Pipeline) finishStage(res *Result, stage string, start time.Time) {
	d := time.Since(start)
	res.StageDurations[stage] = d
	recordStage(stage, d)
	p.logger.Debug("pipeline.stage.complete", "stage", stage, "duration_ms", d.Milliseconds())
}

func (p *Pipeline) fail(res *Result, start time.Time, err error) (*Result, error) {
	res.Err = err
	res.TotalDuration = time.Since(start)
	recordRun(res, res.TotalDuration)

	var empty *EmptyResultError
	if errors.As(err, &empty) {
		p.logger.Warn("pipeline.empty", "repository", res.Source, "stage", empty.Stage)
	} else {
		p.logger.Error("pipeline.failed", "repository", res.Source, "err", err)
	}
	return res, err
}
