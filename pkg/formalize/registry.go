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

package formalize

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed placeholders.yaml
var defaultRegistryYAML []byte

// PlaceholderType is a semantic type an argument can be tagged with.
type PlaceholderType struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Registry is the read-only set of placeholder types, in match order.
type Registry struct {
	types []PlaceholderType
}

type registryFile struct {
	Types []PlaceholderType `yaml:"types"`
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the built-in registry. It is parsed once.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		r, err := ParseRegistry(defaultRegistryYAML)
		if err != nil {
			panic(fmt.Sprintf("formalize: invalid built-in registry: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// LoadRegistry reads a registry from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry parses a YAML registry. Keywords are lowercased; every type
// needs a name and at least one keyword.
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if len(file.Types) == 0 {
		return nil, fmt.Errorf("parse registry: no placeholder types")
	}

	seen := make(map[string]bool, len(file.Types))
	types := make([]PlaceholderType, 0, len(file.Types))
	for i, t := range file.Types {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("parse registry: type %d has no name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("parse registry: duplicate type %q", name)
		}
		seen[name] = true

		keywords := make([]string, 0, len(t.Keywords))
		for _, kw := range t.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if len(keywords) == 0 {
			return nil, fmt.Errorf("parse registry: type %q has no keywords", name)
		}
		types = append(types, PlaceholderType{Name: name, Keywords: keywords})
	}
	return &Registry{types: types}, nil
}

// Types returns a copy of the registered types.
func (r *Registry) Types() []PlaceholderType {
	out := make([]PlaceholderType, len(r.types))
	copy(out, r.types)
	return out
}

// Match returns every type with a keyword contained in expr, in registry
// order.
func (r *Registry) Match(expr string) []PlaceholderType {
	lower := strings.ToLower(expr)
	var matches []PlaceholderType
	for _, t := range r.types {
		for _, kw := range t.Keywords {
			if strings.Contains(lower, kw) {
				matches = append(matches, t)
				break
			}
		}
	}
	return matches
}
