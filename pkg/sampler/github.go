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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// DefaultGitHubEndpoint is the public GraphQL endpoint.
const DefaultGitHubEndpoint = "https://api.github.com/graphql"

const (
	rootTreeQuery = `query($owner: String!, $name: String!) {
  repository(owner: $owner, name: $name) {
    defaultBranchRef {
      target {
        ... on Commit {
          oid
          tree { oid entries { type name oid } }
        }
      }
    }
  }
}`
	treeQuery = `query($owner: String!, $name: String!, $oid: GitObjectID!) {
  repository(owner: $owner, name: $name) {
    object(oid: $oid) {
      ... on Tree { entries { type name oid } }
    }
  }
}`
	blobQuery = `query($owner: String!, $name: String!, $oid: GitObjectID!) {
  repository(owner: $owner, name: $name) {
    object(oid: $oid) {
      ... on Blob { isBinary byteSize text }
    }
  }
}`
	infoQuery = `query($owner: String!, $name: String!) {
  repository(owner: $owner, name: $name) {
    url
    stargazerCount
    diskUsage
    primaryLanguage { name }
    languages(first: 10, orderBy: {field: SIZE, direction: DESC}) { nodes { name } }
  }
}`
)

// RepositoryInfo is the repository metadata used to qualify and label a
// repository before mining.
type RepositoryInfo struct {
	URL             string
	Stars           int
	DiskUsage       int
	PrimaryLanguage string
	Languages       []string
}

// GitHubConfig configures the GraphQL client.
type GitHubConfig struct {
	Token      string
	Endpoint   string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// GitHubClient implements TreeClient over the GitHub GraphQL API.
type GitHubClient struct {
	cfg        GitHubConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGitHubClient creates a GraphQL client.
func NewGitHubClient(cfg GitHubConfig, logger *slog.Logger) *GitHubClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultGitHubEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	return &GitHubClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type entryJSON struct {
	Type string `json:"type"`
	Name string `json:"name"`
	OID  string `json:"oid"`
}

// RootTree fetches the default branch's root listing.
func (c *GitHubClient) RootTree(ctx context.Context, repo Repository) (*Node, error) {
	var data struct {
		Repository *struct {
			DefaultBranchRef *struct {
				Target struct {
					OID  string `json:"oid"`
					Tree struct {
						OID     string      `json:"oid"`
						Entries []entryJSON `json:"entries"`
					} `json:"tree"`
				} `json:"target"`
			} `json:"defaultBranchRef"`
		} `json:"repository"`
	}
	if err := c.query(ctx, rootTreeQuery, vars(repo, ""), &data); err != nil {
		return nil, err
	}
	if data.Repository == nil {
		return nil, fmt.Errorf("repository %s not found", repo)
	}
	if data.Repository.DefaultBranchRef == nil {
		return nil, fmt.Errorf("repository %s has no default branch", repo)
	}
	tree := data.Repository.DefaultBranchRef.Target.Tree
	return NewRoot(tree.OID, c.entries(tree.Entries)), nil
}

// ListTree lists a directory.
func (c *GitHubClient) ListTree(ctx context.Context, repo Repository, objectID string) ([]Entry, error) {
	var data struct {
		Repository *struct {
			Object *struct {
				Entries []entryJSON `json:"entries"`
			} `json:"object"`
		} `json:"repository"`
	}
	if err := c.query(ctx, treeQuery, vars(repo, objectID), &data); err != nil {
		return nil, err
	}
	if data.Repository == nil || data.Repository.Object == nil {
		return nil, fmt.Errorf("tree %s not found", objectID)
	}
	return c.entries(data.Repository.Object.Entries), nil
}

// FetchBlob loads a file. Binary files yield ErrBinaryContent.
func (c *GitHubClient) FetchBlob(ctx context.Context, repo Repository, objectID string) (Blob, error) {
	var data struct {
		Repository *struct {
			Object *struct {
				IsBinary bool    `json:"isBinary"`
				ByteSize int     `json:"byteSize"`
				Text     *string `json:"text"`
			} `json:"object"`
		} `json:"repository"`
	}
	if err := c.query(ctx, blobQuery, vars(repo, objectID), &data); err != nil {
		return Blob{}, err
	}
	if data.Repository == nil || data.Repository.Object == nil {
		return Blob{}, fmt.Errorf("blob %s not found", objectID)
	}
	obj := data.Repository.Object
	if obj.IsBinary || obj.Text == nil {
		return Blob{IsBinary: true, Size: obj.ByteSize}, ErrBinaryContent
	}
	return Blob{Size: obj.ByteSize, Text: *obj.Text}, nil
}

// Info fetches repository metadata.
func (c *GitHubClient) Info(ctx context.Context, repo Repository) (*RepositoryInfo, error) {
	var data struct {
		Repository *struct {
			URL             string `json:"url"`
			StargazerCount  int    `json:"stargazerCount"`
			DiskUsage       int    `json:"diskUsage"`
			PrimaryLanguage *struct {
				Name string `json:"name"`
			} `json:"primaryLanguage"`
			Languages struct {
				Nodes []struct {
					Name string `json:"name"`
				} `json:"nodes"`
			} `json:"languages"`
		} `json:"repository"`
	}
	if err := c.query(ctx, infoQuery, vars(repo, ""), &data); err != nil {
		return nil, retrievalError("info", repo, "", err)
	}
	if data.Repository == nil {
		return nil, retrievalError("info", repo, "", fmt.Errorf("repository not found"))
	}

	r := data.Repository
	info := &RepositoryInfo{URL: r.URL, Stars: r.StargazerCount, DiskUsage: r.DiskUsage}
	if r.PrimaryLanguage != nil {
		info.PrimaryLanguage = strings.ToLower(r.PrimaryLanguage.Name)
	}
	for _, n := range r.Languages.Nodes {
		info.Languages = append(info.Languages, n.Name)
	}
	return info, nil
}

// PrimaryLanguage returns the repository's lowercased primary language, or
// "" when GitHub has none.
func (c *GitHubClient) PrimaryLanguage(ctx context.Context, repo Repository) (string, error) {
	info, err := c.Info(ctx, repo)
	if err != nil {
		return "", err
	}
	return info.PrimaryLanguage, nil
}

func (c *GitHubClient) entries(raw []entryJSON) []Entry {
	out := make([]Entry, 0, len(raw))
	for _, e := range raw {
		kind, ok := ParseNodeKind(e.Type)
		if !ok {
			c.logger.Debug("github.entry.skip", "name", e.Name, "type", e.Type)
			continue
		}
		out = append(out, Entry{Name: e.Name, ObjectID: e.OID, Kind: kind})
	}
	return out
}

func vars(repo Repository, oid string) map[string]any {
	v := map[string]any{"owner": repo.Owner, "name": repo.Name}
	if oid != "" {
		v["oid"] = oid
	}
	return v
}

// query runs a GraphQL query with retries on transient failures and
// decodes the data field into out.
func (c *GitHubClient) query(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffWithJitter(c.cfg.BaseDelay, attempt-1, c.cfg.MaxDelay)
			c.logger.Debug("github.query.retry", "attempt", attempt, "delay", delay, "err", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = c.do(ctx, body, out)
		if lastErr == nil || !isRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("github API error (status %d): %s", e.code, e.body)
}

func (c *GitHubClient) do(ctx context.Context, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}

	var gql graphQLResponse
	if err := json.Unmarshal(raw, &gql); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if len(gql.Errors) > 0 {
		msgs := make([]string, 0, len(gql.Errors))
		for _, e := range gql.Errors {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("github API errors: %s", strings.Join(msgs, "; "))
	}
	if err := json.Unmarshal(gql.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// isRetryable classifies transport failures, 429 and 5xx as transient.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "connection refused", "connection reset", "temporarily unavailable", "eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// backoffWithJitter returns base*2^attempt capped at capDur, with full
// jitter.
func backoffWithJitter(base time.Duration, attempt int, capDur time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt && d < capDur; i++ {
		d *= 2
	}
	if d > capDur {
		d = capDur
	}
	if d <= 0 {
		return base
	}
	return time.Duration(rand.Int64N(int64(d) + 1))
}
