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
	"crypto/sha256"
	"encoding/hex"
	"io"
	"path/filepath"
	"strings"
)

// GenerateFileID returns the ID statements carry back to their file. Paths
// over 256 bytes are hashed.
func GenerateFileID(filePath string) string {
	normalized := normalizePath(filePath)
	if len(normalized) <= 256 {
		return "file:" + normalized
	}
	sum := sha256.Sum256([]byte(normalized))
	return "file:" + hex.EncodeToString(sum[:16])
}

// TemplateKey identifies a template the way the templates table's unique
// index does: by source, raw statement and template text. Fields are
// NUL-separated so ("ab", "c") and ("a", "bc") differ.
func TemplateKey(source, raw, template string) string {
	h := sha256.New()
	for _, part := range []string{source, raw, template} {
		_, _ = io.WriteString(h, part)
		_, _ = h.Write([]byte{0})
	}
	return "tpl:" + hex.EncodeToString(h.Sum(nil)[:16])
}

// normalizePath makes IDs platform independent: no leading "./" or "/",
// forward slashes, no redundant separators.
func normalizePath(path string) string {
	path = filepath.ToSlash(filepath.Clean(strings.TrimPrefix(path, "./")))
	return strings.TrimPrefix(path, "/")
}
