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

package sampler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/logmine/pkg/sampler"
)

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// graphQLServer answers each request with the handler's data object.
func graphQLServer(t *testing.T, handle func(req gqlRequest) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "bearer test-token", r.Header.Get("Authorization"))

		var req gqlRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		status, body := handle(req)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newGitHubClient(srv *httptest.Server, retries int) *sampler.GitHubClient {
	return sampler.NewGitHubClient(sampler.GitHubConfig{
		Token:      "test-token",
		Endpoint:   srv.URL,
		MaxRetries: retries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}, nil)
}

func data(v any) map[string]any { return map[string]any{"data": v} }

func entries(es ...[3]string) []map[string]string {
	out := make([]map[string]string, 0, len(es))
	for _, e := range es {
		out = append(out, map[string]string{"type": e[0], "name": e[1], "oid": e[2]})
	}
	return out
}

func TestGitHubClient_RootTree(t *testing.T) {
	srv := graphQLServer(t, func(req gqlRequest) (int, any) {
		assert.Contains(t, req.Query, "defaultBranchRef")
		assert.Equal(t, "acme", req.Variables["owner"])
		assert.Equal(t, "widget", req.Variables["name"])
		return http.StatusOK, data(map[string]any{
			"repository": map[string]any{
				"defaultBranchRef": map[string]any{
					"target": map[string]any{
						"oid": "c0ffee",
						"tree": map[string]any{
							"oid": "root-oid",
							"entries": entries(
								[3]string{"tree", "src", "t1"},
								[3]string{"blob", "pom.xml", "b1"},
								[3]string{"commit", "vendored", "s1"},
							),
						},
					},
				},
			},
		})
	})

	root, err := newGitHubClient(srv, 0).RootTree(context.Background(), repo)
	require.NoError(t, err)
	assert.True(t, root.IsRoot())
	assert.Equal(t, "root-oid", root.ObjectID)

	children, ok := root.Children.Get()
	require.True(t, ok)
	require.Len(t, children, 2, "submodule entries are skipped")
	assert.Equal(t, "src", children[0].Path)
	assert.Equal(t, sampler.KindTree, children[0].Kind)
	assert.Equal(t, sampler.KindBlob, children[1].Kind)
	assert.False(t, children[0].Children.IsFetched())
}

func TestGitHubClient_ListTree(t *testing.T) {
	srv := graphQLServer(t, func(req gqlRequest) (int, any) {
		assert.Equal(t, "t1", req.Variables["oid"])
		return http.StatusOK, data(map[string]any{
			"repository": map[string]any{
				"object": map[string]any{"entries": entries([3]string{"blob", "App.java", "b2"})},
			},
		})
	})

	got, err := newGitHubClient(srv, 0).ListTree(context.Background(), repo, "t1")
	require.NoError(t, err)
	assert.Equal(t, []sampler.Entry{{Name: "App.java", ObjectID: "b2", Kind: sampler.KindBlob}}, got)
}

func TestGitHubClient_FetchBlob(t *testing.T) {
	tests := []struct {
		name    string
		object  map[string]any
		want    sampler.Blob
		wantErr error
	}{
		{
			name:   "text",
			object: map[string]any{"isBinary": false, "byteSize": 5, "text": "hello"},
			want:   sampler.Blob{Size: 5, Text: "hello"},
		},
		{
			name:    "binary",
			object:  map[string]any{"isBinary": true, "byteSize": 900, "text": nil},
			want:    sampler.Blob{IsBinary: true, Size: 900},
			wantErr: sampler.ErrBinaryContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := graphQLServer(t, func(req gqlRequest) (int, any) {
				return http.StatusOK, data(map[string]any{"repository": map[string]any{"object": tt.object}})
			})
			got, err := newGitHubClient(srv, 0).FetchBlob(context.Background(), repo, "b2")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGitHubClient_Info(t *testing.T) {
	srv := graphQLServer(t, func(req gqlRequest) (int, any) {
		assert.Contains(t, req.Query, "stargazerCount")
		return http.StatusOK, data(map[string]any{
			"repository": map[string]any{
				"url":             "https://github.com/acme/widget",
				"stargazerCount":  1200,
				"diskUsage":       300000,
				"primaryLanguage": map[string]any{"name": "Java"},
				"languages": map[string]any{"nodes": []map[string]string{
					{"name": "Java"}, {"name": "Shell"},
				}},
			},
		})
	})

	info, err := newGitHubClient(srv, 0).Info(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, &sampler.RepositoryInfo{
		URL:             "https://github.com/acme/widget",
		Stars:           1200,
		DiskUsage:       300000,
		PrimaryLanguage: "java",
		Languages:       []string{"Java", "Shell"},
	}, info)
}

func TestGitHubClient_GraphQLErrors(t *testing.T) {
	srv := graphQLServer(t, func(req gqlRequest) (int, any) {
		return http.StatusOK, map[string]any{
			"errors": []map[string]string{{"type": "NOT_FOUND", "message": "Could not resolve to a Repository"}},
		}
	})

	_, err := newGitHubClient(srv, 2).RootTree(context.Background(), repo)
	assert.ErrorContains(t, err, "Could not resolve")
}

func TestGitHubClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := graphQLServer(t, func(req gqlRequest) (int, any) {
		if calls.Add(1) < 3 {
			return http.StatusBadGateway, map[string]string{"message": "bad gateway"}
		}
		return http.StatusOK, data(map[string]any{
			"repository": map[string]any{"object": map[string]any{"entries": entries()}},
		})
	})

	_, err := newGitHubClient(srv, 3).ListTree(context.Background(), repo, "t1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGitHubClient_DoesNotRetryAuthFailures(t *testing.T) {
	var calls atomic.Int32
	srv := graphQLServer(t, func(req gqlRequest) (int, any) {
		calls.Add(1)
		return http.StatusUnauthorized, map[string]string{"message": "Bad credentials"}
	})

	_, err := newGitHubClient(srv, 3).ListTree(context.Background(), repo, "t1")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "401"), err.Error())
	assert.Equal(t, int32(1), calls.Load())
}

func TestGitHubClient_DrivesSampler(t *testing.T) {
	body := javaFile(400)
	srv := graphQLServer(t, func(req gqlRequest) (int, any) {
		switch {
		case strings.Contains(req.Query, "defaultBranchRef"):
			return http.StatusOK, data(map[string]any{"repository": map[string]any{
				"defaultBranchRef": map[string]any{"target": map[string]any{
					"oid": "c", "tree": map[string]any{"oid": "r", "entries": entries([3]string{"tree", "src", "t-src"})},
				}},
			}})
		case strings.Contains(req.Query, "on Tree"):
			return http.StatusOK, data(map[string]any{"repository": map[string]any{
				"object": map[string]any{"entries": entries([3]string{"blob", "App.java", "b-app"})},
			}})
		default:
			return http.StatusOK, data(map[string]any{"repository": map[string]any{
				"object": map[string]any{"isBinary": false, "byteSize": len(body), "text": body},
			}})
		}
	})

	res, err := sampler.New(newGitHubClient(srv, 0), testConfig(), nil).
		Sample(context.Background(), repo, seeded(1))
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "src/App.java", res.Files[0].Path)
	assert.Equal(t, body, res.Files[0].Content)
	assert.Equal(t, 3, res.Stats.RoundTrips)
}
