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

	"github.com/kraklabs/logmine/pkg/logparse"
	"github.com/kraklabs/logmine/pkg/sampler"
	"github.com/kraklabs/logmine/pkg/storage"
)

// RepositoryClient is a tree client that also knows repository metadata.
// *sampler.GitHubClient implements it.
type RepositoryClient interface {
	sampler.TreeClient
	Info(ctx context.Context, repo sampler.Repository) (*sampler.RepositoryInfo, error)
}

// RemoteMiner samples a remote repository and mines the sampled files
// without cloning it.
type RemoteMiner struct {
	client  RepositoryClient
	config  Config
	backend storage.Backend
	logger  *slog.Logger
}

// NewRemoteMiner creates a remote miner. config supplies the sampler and
// ingestion settings; its language and repository id are filled in per
// repository.
func NewRemoteMiner(client RepositoryClient, config Config, backend storage.Backend, logger *slog.Logger) *RemoteMiner {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteMiner{client: client, config: config, backend: backend, logger: logger}
}

// RemoteResult is a remote mining run with the metadata that drove it.
type RemoteResult struct {
	*Result
	Info      *sampler.RepositoryInfo
	Qualified bool

	config Config
}

// Mine samples and mines repo. The language comes from the configuration
// or, when unset, from the repository's primary language.
func (m *RemoteMiner) Mine(ctx context.Context, repo sampler.Repository) (*RemoteResult, error) {
	info, err := m.client.Info(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("repository info: %w", err)
	}

	cfg := m.config
	cfg.Source = repo.String()
	cfg.RepoSource = RepoSource{Type: "git_url", Value: info.URL}
	if cfg.Language == "" {
		cfg.Language = info.PrimaryLanguage
	}
	language, err := logparse.ParseLanguage(cfg.Language)
	if err != nil {
		return &RemoteResult{Info: info}, fmt.Errorf("primary language %q: %w", info.PrimaryLanguage, err)
	}
	cfg.Sampler.TargetExtensions = language.Extensions()

	seed := cfg.IngestionConfig.Seed
	if seed == 0 {
		seed = rand.Uint64()
		cfg.IngestionConfig.Seed = seed
	}

	m.logger.Info("remote.mine.start",
		"repo", repo.String(),
		"language", language.String(),
		"stars", info.Stars,
		"disk_usage", info.DiskUsage,
		"seed", seed,
	)

	sampleCtx := ctx
	if d := cfg.IngestionConfig.StageTimeout; d > 0 {
		var cancel context.CancelFunc
		sampleCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	sample, err := sampler.New(m.client, cfg.Sampler, m.logger).Sample(sampleCtx, repo, rng)
	if err != nil {
		return &RemoteResult{Info: info, config: cfg}, fmt.Errorf("sample: %w", err)
	}

	p, err := NewPipeline(cfg, m.backend, m.logger)
	if err != nil {
		return &RemoteResult{Info: info, config: cfg}, err
	}
	defer p.Close()

	res, err := p.MineSample(ctx, sample)
	out := &RemoteResult{Result: res, Info: info, config: cfg}
	if res != nil {
		out.Qualified = res.Detection.Qualifies(info.Stars, info.DiskUsage)
	}
	return out, err
}

// MineRecord adapts Mine to the repository queue. Templates are linked to
// rec.ID. When the sample yields nothing but the repository qualifies, the
// full checkout is cloned and mined; otherwise the run fails as not
// qualified.
func (m *RemoteMiner) MineRecord(ctx context.Context, rec storage.RepositoryRecord) (*Result, error) {
	cfg := m.config
	cfg.RepositoryID = rec.ID
	if cfg.Language == "" && rec.MainLanguage != "" {
		cfg.Language = rec.MainLanguage
	}
	if cfg.Framework == "" && rec.Framework != "" {
		cfg.Framework = rec.Framework
	}
	mm := *m
	mm.config = cfg

	out, err := mm.Mine(ctx, sampler.Repository{Owner: rec.Owner, Name: rec.Name})
	if out == nil {
		return nil, err
	}
	var empty *EmptyResultError
	if err == nil || out.Result == nil || !errors.As(err, &empty) {
		return out.Result, err
	}
	if !out.Qualified {
		return out.Result, fmt.Errorf("repository does not qualify: %w", err)
	}
	cloned, cerr := mm.mineClone(ctx, out)
	if cloned == nil {
		return out.Result, cerr
	}
	return cloned, cerr
}

// mineClone mines the full checkout of a repository whose sample was
// inconclusive. Sampler statistics carry over from the sampled run.
func (m *RemoteMiner) mineClone(ctx context.Context, sampled *RemoteResult) (*Result, error) {
	m.logger.Info("remote.mine.clone",
		"repo", sampled.config.Source,
		"url", sampled.Info.URL,
		"logging_files", sampled.Detection.LoggingFiles,
	)
	p, err := NewPipeline(sampled.config, m.backend, m.logger)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	res, err := p.Run(ctx)
	if res == nil {
		return nil, err
	}
	res.SamplerStats = sampled.SamplerStats
	return res, err
}
