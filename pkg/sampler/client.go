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
	"strings"
)

// Repository names a remote repository.
type Repository struct {
	Owner string
	Name  string
}

func (r Repository) String() string { return r.Owner + "/" + r.Name }

// ParseRepository parses "owner/name", optionally prefixed with a GitHub
// URL.
func ParseRepository(s string) (Repository, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".git")
	for _, prefix := range []string{"https://github.com/", "http://github.com/", "github.com/", "git@github.com:"} {
		s = strings.TrimPrefix(s, prefix)
	}
	owner, name, ok := strings.Cut(strings.Trim(s, "/"), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repository{}, fmt.Errorf("invalid repository %q: expected owner/name", s)
	}
	return Repository{Owner: owner, Name: name}, nil
}

// TreeClient is the remote tree protocol. Each call is one round trip.
type TreeClient interface {
	// RootTree returns the root of the default branch with its listing.
	RootTree(ctx context.Context, repo Repository) (*Node, error)
	// ListTree lists the entries of a directory.
	ListTree(ctx context.Context, repo Repository, objectID string) ([]Entry, error)
	// FetchBlob loads a file.
	FetchBlob(ctx context.Context, repo Repository, objectID string) (Blob, error)
}

// ErrBinaryContent is returned for files that cannot feed the text pipeline.
var ErrBinaryContent = errors.New("binary content")

// RetrievalError is a failed or timed-out round trip. It is fatal for the
// repository being sampled.
type RetrievalError struct {
	Op       string
	Repo     Repository
	ObjectID string
	Err      error
}

func (e *RetrievalError) Error() string {
	if e.ObjectID != "" {
		return fmt.Sprintf("retrieve %s %s (%s): %v", e.Op, e.Repo, e.ObjectID, e.Err)
	}
	return fmt.Sprintf("retrieve %s %s: %v", e.Op, e.Repo, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

func retrievalError(op string, repo Repository, objectID string, err error) error {
	var re *RetrievalError
	if errors.As(err, &re) {
		return err
	}
	return &RetrievalError{Op: op, Repo: repo, ObjectID: objectID, Err: err}
}
