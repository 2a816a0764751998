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
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 0; attempt < 8; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, attempt, 200*time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 200*time.Millisecond)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &statusError{code: 429}, true},
		{"server error", &statusError{code: 503}, true},
		{"unauthorized", &statusError{code: 401}, false},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"canceled", fmt.Errorf("http request: %w", context.Canceled), false},
		{"graphql error", errors.New("github API errors: Could not resolve"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestPick(t *testing.T) {
	nodes := make([]*Node, 10)
	for i := range nodes {
		nodes[i] = &Node{Name: fmt.Sprint(i)}
	}
	rng := rand.New(rand.NewPCG(1, 2))

	got := pick(nodes, 4, rng)
	assert.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.Less(t, indexOf(nodes, got[i-1]), indexOf(nodes, got[i]), "listing order kept")
	}
	assert.Len(t, pick(nodes[:3], 4, rng), 3)
}

func TestHasExtension(t *testing.T) {
	assert.True(t, hasExtension("App.JAVA", []string{".java"}))
	assert.True(t, hasExtension("x.h", []string{".c", ".h"}))
	assert.False(t, hasExtension("App.javax", []string{".java"}))
}

func indexOf(nodes []*Node, n *Node) int {
	for i, c := range nodes {
		if c == n {
			return i
		}
	}
	return -1
}
