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
	"path"
	"strings"
)

// NodeKind distinguishes directories from files.
type NodeKind int

const (
	KindTree NodeKind = iota
	KindBlob
)

func (k NodeKind) String() string {
	if k == KindBlob {
		return "blob"
	}
	return "tree"
}

// ParseNodeKind maps a git object type to a NodeKind. Anything other than
// tree or blob (e.g. a submodule commit) is reported as not ok.
func ParseNodeKind(s string) (NodeKind, bool) {
	switch strings.ToLower(s) {
	case "tree":
		return KindTree, true
	case "blob":
		return KindBlob, true
	}
	return 0, false
}

// Loaded is a value that is either not yet fetched or fetched. A fetched
// zero value is distinct from an unfetched one.
type Loaded[T any] struct {
	value   T
	fetched bool
}

// Fetched wraps a loaded value.
func Fetched[T any](v T) Loaded[T] {
	return Loaded[T]{value: v, fetched: true}
}

// Get returns the value and whether it has been fetched.
func (l Loaded[T]) Get() (T, bool) { return l.value, l.fetched }

// IsFetched reports whether the value has been loaded.
func (l Loaded[T]) IsFetched() bool { return l.fetched }

// Node is one entry of a remote repository tree. Children is only used by
// trees, Size and Content only by blobs. The synthetic root has no name.
type Node struct {
	Name     string
	Path     string
	ObjectID string
	Kind     NodeKind

	Children Loaded[[]*Node]
	Size     Loaded[int]
	Content  Loaded[string]
}

// Entry is a single row of a directory listing.
type Entry struct {
	Name     string
	ObjectID string
	Kind     NodeKind
}

// NewRoot creates the synthetic root node from its listing.
func NewRoot(objectID string, entries []Entry) *Node {
	root := &Node{ObjectID: objectID, Kind: KindTree}
	root.setChildren(entries)
	return root
}

// IsRoot reports whether n is the synthetic root.
func (n *Node) IsRoot() bool { return n.Name == "" && n.Path == "" }

func (n *Node) setChildren(entries []Entry) {
	children := make([]*Node, 0, len(entries))
	for _, e := range entries {
		children = append(children, &Node{
			Name:     e.Name,
			Path:     path.Join(n.Path, e.Name),
			ObjectID: e.ObjectID,
			Kind:     e.Kind,
		})
	}
	n.Children = Fetched(children)
}

// Blob is the fetched content of a file.
type Blob struct {
	IsBinary bool
	Size     int
	Text     string
}

// CandidateFile is a sampled file with its content.
type CandidateFile struct {
	Source  *Node
	Path    string
	Content string
}
