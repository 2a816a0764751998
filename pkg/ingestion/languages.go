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
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Languages is an ordered set of lowercase language tags. It decodes from
// either a comma-separated string or a list, so "Java, C" and [java, c]
// are the same value.
type Languages []string

// ParseLanguages canonicalizes a comma-separated list.
func ParseLanguages(s string) Languages {
	return NewLanguages(strings.Split(s, ",")...)
}

// NewLanguages canonicalizes tags: trimmed, lowercased, empty and
// duplicate entries dropped, first occurrence order kept.
func NewLanguages(tags ...string) Languages {
	var out Languages
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Contains reports whether tag is in the set, case-insensitively.
func (l Languages) Contains(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, t := range l {
		if t == tag {
			return true
		}
	}
	return false
}

func (l Languages) String() string { return strings.Join(l, ",") }

// UnmarshalYAML accepts a scalar or a sequence.
func (l *Languages) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = ParseLanguages(node.Value)
		return nil
	case yaml.SequenceNode:
		var tags []string
		if err := node.Decode(&tags); err != nil {
			return err
		}
		*l = NewLanguages(tags...)
		return nil
	}
	return fmt.Errorf("languages: expected string or list, got %v", node.Tag)
}

// UnmarshalJSON accepts a string or an array.
func (l *Languages) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = ParseLanguages(s)
		return nil
	}
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return fmt.Errorf("languages: expected string or array: %w", err)
	}
	*l = NewLanguages(tags...)
	return nil
}
