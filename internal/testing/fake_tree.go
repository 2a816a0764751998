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

package testing

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/kraklabs/logmine/pkg/sampler"
)

const (
	treePrefix = "tree:"
	blobPrefix = "blob:"
)

type fakeBlob struct {
	blob sampler.Blob
	err  error
}

// FakeTree is an in-memory sampler.TreeClient. Object IDs are derived from
// paths, and every listing and blob fetch is recorded so tests can assert
// which parts of the tree were visited.
//
// Example:
//
//	tree := testing.NewFakeTree().
//	    File("src/Main.java", body).
//	    Dir("docs")
//	s := sampler.New(tree, sampler.DefaultConfig(), nil)
type FakeTree struct {
	mu       sync.Mutex
	children map[string][]sampler.Entry
	blobs    map[string]fakeBlob
	treeErrs map[string]error
	hang     map[string]bool
	listed   []string
	fetched  []string
}

// NewFakeTree creates an empty tree with just a root.
func NewFakeTree() *FakeTree {
	return &FakeTree{
		children: map[string][]sampler.Entry{"": nil},
		blobs:    make(map[string]fakeBlob),
		treeErrs: make(map[string]error),
		hang:     make(map[string]bool),
	}
}

// Dir adds a directory and any missing parents.
func (f *FakeTree) Dir(p string) *FakeTree {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureDir(p)
	return f
}

// File adds a text file.
func (f *FakeTree) File(p, content string) *FakeTree {
	return f.addBlob(p, fakeBlob{blob: sampler.Blob{Size: len(content), Text: content}})
}

// BinaryFile adds a file the server reports as binary.
func (f *FakeTree) BinaryFile(p string, size int) *FakeTree {
	return f.addBlob(p, fakeBlob{blob: sampler.Blob{IsBinary: true, Size: size}, err: sampler.ErrBinaryContent})
}

// FailingFile adds a file whose fetch returns err.
func (f *FakeTree) FailingFile(p string, err error) *FakeTree {
	return f.addBlob(p, fakeBlob{err: err})
}

// FailDir makes listing the directory at p return err.
func (f *FakeTree) FailDir(p string, err error) *FakeTree {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureDir(p)
	f.treeErrs[p] = err
	return f
}

// HangDir makes listing the directory at p block until the request
// context is done.
func (f *FakeTree) HangDir(p string) *FakeTree {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureDir(p)
	f.hang[p] = true
	return f
}

// Listed returns the sorted paths of every directory that was listed.
func (f *FakeTree) Listed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.listed...)
	sort.Strings(out)
	return out
}

// Fetched returns the sorted paths of every blob that was fetched.
func (f *FakeTree) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.fetched...)
	sort.Strings(out)
	return out
}

// RootTree implements sampler.TreeClient.
func (f *FakeTree) RootTree(ctx context.Context, repo sampler.Repository) (*sampler.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.treeErrs[""]; err != nil {
		return nil, err
	}
	return sampler.NewRoot(treePrefix, append([]sampler.Entry(nil), f.children[""]...)), nil
}

// ListTree implements sampler.TreeClient.
func (f *FakeTree) ListTree(ctx context.Context, repo sampler.Repository, objectID string) ([]sampler.Entry, error) {
	p := strings.TrimPrefix(objectID, treePrefix)

	f.mu.Lock()
	f.listed = append(f.listed, p)
	hang := f.hang[p]
	err := f.treeErrs[p]
	entries := append([]sampler.Entry(nil), f.children[p]...)
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// FetchBlob implements sampler.TreeClient.
func (f *FakeTree) FetchBlob(ctx context.Context, repo sampler.Repository, objectID string) (sampler.Blob, error) {
	if err := ctx.Err(); err != nil {
		return sampler.Blob{}, err
	}
	p := strings.TrimPrefix(objectID, blobPrefix)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, p)
	b := f.blobs[p]
	return b.blob, b.err
}

func (f *FakeTree) addBlob(p string, b fakeBlob) *FakeTree {
	f.mu.Lock()
	defer f.mu.Unlock()
	dir, name := path.Split(p)
	dir = strings.TrimSuffix(dir, "/")
	f.ensureDir(dir)
	f.children[dir] = append(f.children[dir], sampler.Entry{Name: name, ObjectID: blobPrefix + p, Kind: sampler.KindBlob})
	f.blobs[p] = b
	return f
}

func (f *FakeTree) ensureDir(p string) {
	if _, ok := f.children[p]; ok {
		return
	}
	parent, name := path.Split(p)
	parent = strings.TrimSuffix(parent, "/")
	f.ensureDir(parent)
	f.children[parent] = append(f.children[parent], sampler.Entry{Name: name, ObjectID: treePrefix + p, Kind: sampler.KindTree})
	f.children[p] = nil
}
