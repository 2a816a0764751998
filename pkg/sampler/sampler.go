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

package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Config controls the heuristic walk.
type Config struct {
	// FileCount is the maximum number of files returned.
	FileCount int `yaml:"file_count"`
	// Splits is how many subdirectories are explored per directory while
	// the split budget lasts.
	Splits int `yaml:"splits"`
	// SplitDepth is the number of levels below the root that still get
	// Splits subdirectories; deeper levels explore a single one.
	SplitDepth int `yaml:"split_depth"`
	// TargetExtensions selects files by suffix, e.g. ".java".
	TargetExtensions []string `yaml:"target_extensions"`
	// PriorityNames are root subdirectories that likely hold primary
	// source. A directory named after the repository is always a priority.
	PriorityNames []string `yaml:"priority_directory_names"`
	// ExcludedNames are never explored. Matching is case-sensitive.
	ExcludedNames []string `yaml:"excluded_directory_names"`
	// SuppressSiblings restricts the root walk to priority directories
	// whenever at least one exists.
	SuppressSiblings bool `yaml:"suppress_siblings"`
	// MinFileSize drops fetched files of this size or smaller.
	MinFileSize int `yaml:"min_file_size"`
	// Concurrency bounds parallel round trips per directory level.
	Concurrency int `yaml:"concurrency"`
	// RequestTimeout bounds each round trip.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DefaultConfig returns the sampler defaults.
func DefaultConfig() Config {
	return Config{
		FileCount:        40,
		Splits:           4,
		SplitDepth:       1,
		TargetExtensions: []string{".java"},
		PriorityNames:    []string{"src", "source"},
		ExcludedNames:    []string{"doc", "docs", "examples", "test", "tests", "testing", "tmp"},
		SuppressSiblings: true,
		MinFileSize:      255,
		Concurrency:      8,
		RequestTimeout:   30 * time.Second,
	}
}

// Validate checks the config for values the walk cannot work with.
func (c Config) Validate() error {
	if c.FileCount <= 0 {
		return fmt.Errorf("file_count must be positive, got %d", c.FileCount)
	}
	if c.Splits <= 0 {
		return fmt.Errorf("splits must be positive, got %d", c.Splits)
	}
	if len(c.TargetExtensions) == 0 {
		return errors.New("target_extensions must not be empty")
	}
	return nil
}

// Stats describes one sampling run.
type Stats struct {
	RoundTrips  int
	Directories int
	Matched     int
	Binary      int
	TooSmall    int
	Selected    int
	Duration    time.Duration
}

// Result is the sampled file set.
type Result struct {
	Files []CandidateFile
	Stats Stats
}

type walkStats struct {
	roundTrips  atomic.Int64
	directories atomic.Int64
	binary      atomic.Int64
}

// Sampler selects a bounded, diverse set of source files from a remote tree
// without listing every directory.
type Sampler struct {
	client TreeClient
	cfg    Config
	logger *slog.Logger
}

// New creates a sampler.
func New(client TreeClient, cfg Config, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Sampler{client: client, cfg: cfg, logger: logger}
}

// Sample walks the repository tree and returns up to FileCount files.
// Every random choice is drawn from rng, so a seeded source reproduces the
// same sample for the same tree. Any failed round trip aborts with a
// *RetrievalError.
func (s *Sampler) Sample(ctx context.Context, repo Repository, rng *rand.Rand) (*Result, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sampler config: %w", err)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	start := time.Now()
	st := &walkStats{}
	s.logger.Info("sampler.start", "repo", repo.String(), "file_count", s.cfg.FileCount)

	var root *Node
	err := s.roundTrip(ctx, st, func(ctx context.Context) error {
		var err error
		root, err = s.client.RootTree(ctx, repo)
		return err
	})
	if err != nil {
		return nil, retrievalError("root tree", repo, "", err)
	}
	st.directories.Add(1)

	blobs, err := s.walkRoot(ctx, repo, root, rng, st)
	if err != nil {
		return nil, err
	}

	fetched, err := s.fetchContents(ctx, repo, blobs, st)
	if err != nil {
		return nil, err
	}

	kept := make([]*Node, 0, len(fetched))
	for _, n := range fetched {
		if size, _ := n.Size.Get(); size > s.cfg.MinFileSize {
			kept = append(kept, n)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		si, _ := kept[i].Size.Get()
		sj, _ := kept[j].Size.Get()
		if si != sj {
			return si > sj
		}
		return kept[i].Path < kept[j].Path
	})

	selected := s.selectFiles(kept, rng)
	files := make([]CandidateFile, 0, len(selected))
	for _, n := range selected {
		content, _ := n.Content.Get()
		files = append(files, CandidateFile{Source: n, Path: n.Path, Content: content})
	}

	stats := Stats{
		RoundTrips:  int(st.roundTrips.Load()),
		Directories: int(st.directories.Load()),
		Matched:     len(blobs),
		Binary:      int(st.binary.Load()),
		TooSmall:    len(fetched) - len(kept),
		Selected:    len(files),
		Duration:    time.Since(start),
	}
	s.logger.Info("sampler.complete",
		"repo", repo.String(),
		"round_trips", stats.RoundTrips,
		"directories", stats.Directories,
		"matched", stats.Matched,
		"binary", stats.Binary,
		"too_small", stats.TooSmall,
		"selected", stats.Selected,
		"duration", stats.Duration,
	)
	return &Result{Files: files, Stats: stats}, nil
}

// walkRoot applies the priority-directory rule at the top level and walks
// the chosen subdirectories.
func (s *Sampler) walkRoot(ctx context.Context, repo Repository, root *Node, rng *rand.Rand, st *walkStats) ([]*Node, error) {
	files := s.matchingFiles(root)
	dirs := s.subdirs(root)

	var priority, rest []*Node
	for _, d := range dirs {
		if s.isPriority(repo, d.Name) {
			priority = append(priority, d)
		} else {
			rest = append(rest, d)
		}
	}

	var chosen []*Node
	switch {
	case len(priority) > 0 && s.cfg.SuppressSiblings:
		chosen = priority
	case len(priority) > 0:
		chosen = append(priority, pick(rest, s.cfg.Splits, rng)...)
	default:
		chosen = pick(dirs, s.cfg.Splits, rng)
	}

	s.logger.Debug("sampler.walk.root",
		"repo", repo.String(),
		"files", len(files),
		"dirs", len(dirs),
		"priority", len(priority),
		"chosen", len(chosen),
	)

	more, err := s.walkChildren(ctx, repo, chosen, s.cfg.SplitDepth-1, rng, st)
	if err != nil {
		return nil, err
	}
	return append(files, more...), nil
}

// walkChildren walks sibling directories concurrently. Each sibling gets
// its own random source derived from rng in listing order, and results are
// concatenated in that order.
func (s *Sampler) walkChildren(ctx context.Context, repo Repository, dirs []*Node, budget int, rng *rand.Rand, st *walkStats) ([]*Node, error) {
	if len(dirs) == 0 {
		return nil, nil
	}
	seeds := make([]uint64, len(dirs))
	for i := range seeds {
		seeds[i] = rng.Uint64()
	}

	results := make([][]*Node, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, dir := range dirs {
		g.Go(func() error {
			child := rand.New(rand.NewPCG(seeds[i], seeds[i]>>1))
			files, err := s.walkDir(gctx, repo, dir, budget, child, st)
			results[i] = files
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var files []*Node
	for _, r := range results {
		files = append(files, r...)
	}
	return files, nil
}

func (s *Sampler) walkDir(ctx context.Context, repo Repository, dir *Node, budget int, rng *rand.Rand, st *walkStats) ([]*Node, error) {
	split := s.cfg.Splits
	if budget < 0 {
		split = 1
	}

	if !dir.Children.IsFetched() {
		var entries []Entry
		err := s.roundTrip(ctx, st, func(ctx context.Context) error {
			var err error
			entries, err = s.client.ListTree(ctx, repo, dir.ObjectID)
			return err
		})
		if err != nil {
			return nil, retrievalError("tree", repo, dir.ObjectID, err)
		}
		dir.setChildren(entries)
	}
	st.directories.Add(1)

	files := s.matchingFiles(dir)
	chosen := pick(s.subdirs(dir), split, rng)
	s.logger.Debug("sampler.walk.dir",
		"repo", repo.String(),
		"path", dir.Path,
		"budget", budget,
		"files", len(files),
		"chosen", len(chosen),
	)

	more, err := s.walkChildren(ctx, repo, chosen, budget-1, rng, st)
	if err != nil {
		return nil, err
	}
	return append(files, more...), nil
}

// fetchContents loads every accumulated file concurrently. Binary files
// are skipped; any other failure aborts the sample.
func (s *Sampler) fetchContents(ctx context.Context, repo Repository, blobs []*Node, st *walkStats) ([]*Node, error) {
	ok := make([]bool, len(blobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, n := range blobs {
		g.Go(func() error {
			var blob Blob
			err := s.roundTrip(gctx, st, func(ctx context.Context) error {
				var err error
				blob, err = s.client.FetchBlob(ctx, repo, n.ObjectID)
				return err
			})
			if errors.Is(err, ErrBinaryContent) || (err == nil && blob.IsBinary) {
				st.binary.Add(1)
				s.logger.Debug("sampler.blob.binary", "repo", repo.String(), "path", n.Path)
				return nil
			}
			if err != nil {
				return retrievalError("blob", repo, n.ObjectID, err)
			}
			n.Size = Fetched(blob.Size)
			n.Content = Fetched(blob.Text)
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fetched := make([]*Node, 0, len(blobs))
	for i, n := range blobs {
		if ok[i] {
			fetched = append(fetched, n)
		}
	}
	return fetched, nil
}

// selectFiles draws FileCount files uniformly from the largest
// 2*FileCount, keeping size order.
func (s *Sampler) selectFiles(files []*Node, rng *rand.Rand) []*Node {
	if len(files) <= s.cfg.FileCount {
		return files
	}
	pool := files[:min(len(files), 2*s.cfg.FileCount)]
	idx := rng.Perm(len(pool))[:s.cfg.FileCount]
	sort.Ints(idx)

	selected := make([]*Node, 0, len(idx))
	for _, i := range idx {
		selected = append(selected, pool[i])
	}
	return selected
}

func (s *Sampler) roundTrip(ctx context.Context, st *walkStats, fn func(context.Context) error) error {
	st.roundTrips.Add(1)
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	return fn(ctx)
}

func (s *Sampler) matchingFiles(dir *Node) []*Node {
	children, _ := dir.Children.Get()
	var files []*Node
	for _, c := range children {
		if c.Kind == KindBlob && hasExtension(c.Name, s.cfg.TargetExtensions) {
			files = append(files, c)
		}
	}
	return files
}

func (s *Sampler) subdirs(dir *Node) []*Node {
	children, _ := dir.Children.Get()
	var dirs []*Node
	for _, c := range children {
		if c.Kind == KindTree && !slices.Contains(s.cfg.ExcludedNames, c.Name) {
			dirs = append(dirs, c)
		}
	}
	return dirs
}

func (s *Sampler) isPriority(repo Repository, name string) bool {
	return slices.Contains(s.cfg.PriorityNames, name) || strings.EqualFold(name, repo.Name)
}

// pick returns n nodes chosen uniformly at random, in listing order, or all
// of them when there are no more than n.
func pick(nodes []*Node, n int, rng *rand.Rand) []*Node {
	if len(nodes) <= n {
		return append([]*Node(nil), nodes...)
	}
	idx := rng.Perm(len(nodes))[:n]
	sort.Ints(idx)
	out := make([]*Node, 0, n)
	for _, i := range idx {
		out = append(out, nodes[i])
	}
	return out
}

func hasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
