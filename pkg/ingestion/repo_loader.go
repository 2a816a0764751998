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
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/text/encoding/charmap"
)

var (
	// validGitURLPattern matches valid git URLs (https, ssh, file)
	// Allows: https://github.com/user/repo.git, git@github.com:user/repo.git, file:///path/to/repo
	validGitURLPattern = regexp.MustCompile(`^(https?://|git@|ssh://|file://)[\w.\-@:/%]+$`)

	// dangerousCharsPattern matches characters that could be used for command injection
	dangerousCharsPattern = regexp.MustCompile(`[;&|$` + "`" + `\n\r\\]`)
)

// RepoLoader loads repository contents from git URL or local path.
type RepoLoader struct {
	logger     *slog.Logger
	tempDirs   []string // Track temporary directories for cleanup
	tempDirsMu sync.Mutex
}

// NewRepoLoader creates a new repository loader.
func NewRepoLoader(logger *slog.Logger) *RepoLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &RepoLoader{
		logger:   logger,
		tempDirs: make([]string, 0),
	}
}

// Close cleans up temporary directories created by git clones.
func (rl *RepoLoader) Close() error {
	rl.tempDirsMu.Lock()
	defer rl.tempDirsMu.Unlock()

	var lastErr error
	for _, dir := range rl.tempDirs {
		if err := os.RemoveAll(dir); err != nil {
			rl.logger.Warn("repo.cleanup.error", "dir", dir, "err", err)
			lastErr = err
		}
	}
	rl.tempDirs = nil
	return lastErr
}

// LoadOptions selects which files are read and how they are decoded.
type LoadOptions struct {
	// Extensions restricts loading to these suffixes. Empty loads nothing.
	Extensions   []string
	ExcludeGlobs []string
	MaxFileSize  int64
	// Encodings are tried in order; see DefaultConfig.
	Encodings []string
}

// LoadResult contains the loaded repository information.
type LoadResult struct {
	RootPath     string // Absolute path to repository root
	Files        []SourceFile
	TotalSize    int64
	Languages    map[string]int // Language -> file count
	SkipReasons  map[string]int // Reason -> count (e.g., "excluded", "too_large", "decode_error")
	DecodeErrors int
}

// SourceFile is a decoded source file.
type SourceFile struct {
	Path     string // Relative path from repo root, slash separated
	Content  string
	Size     int64
	Language string
	Encoding string
}

// DecodeError reports a file that no configured encoding could decode.
type DecodeError struct {
	Path  string
	Tried []string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: no encoding in [%s] fits", e.Path, strings.Join(e.Tried, ", "))
}

// LoadRepository loads a repository from the specified source.
// For git URLs, it shallow-clones to a temporary directory.
// For local paths, it reads directly.
func (rl *RepoLoader) LoadRepository(ctx context.Context, source RepoSource, opts LoadOptions) (*LoadResult, error) {
	for _, enc := range opts.Encodings {
		if _, ok := decoders[strings.ToLower(enc)]; !ok {
			return nil, fmt.Errorf("unsupported encoding %q", enc)
		}
	}

	var rootPath string
	var err error

	switch source.Type {
	case "git_url":
		rootPath, err = rl.cloneGitRepo(ctx, source.Value)
		if err != nil {
			return nil, fmt.Errorf("clone git repo: %w", err)
		}
	case "local_path":
		rootPath, err = filepath.Abs(source.Value)
		if err != nil {
			return nil, fmt.Errorf("resolve local path: %w", err)
		}
		if err := rl.validateLocalPath(rootPath); err != nil {
			return nil, fmt.Errorf("invalid local path: %w", err)
		}
		info, err := os.Stat(rootPath)
		if err != nil {
			return nil, fmt.Errorf("stat local path: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("local path is not a directory: %s", rootPath)
		}
	default:
		return nil, fmt.Errorf("unsupported repo source type: %s", source.Type)
	}

	rl.logger.Info("repo.load.start", "root", rootPath, "type", source.Type)

	result, err := rl.walkRepository(ctx, rootPath, opts)
	if err != nil {
		return nil, fmt.Errorf("walk repository: %w", err)
	}

	rl.logger.Info("repo.load.complete",
		"files", len(result.Files),
		"total_size", result.TotalSize,
		"languages", result.Languages,
		"decode_errors", result.DecodeErrors,
	)

	return result, nil
}

// validateGitURL validates a git URL to prevent command injection.
func validateGitURL(gitURL string) error {
	if gitURL == "" {
		return fmt.Errorf("git URL is empty")
	}
	if dangerousCharsPattern.MatchString(gitURL) {
		return fmt.Errorf("git URL contains dangerous characters")
	}

	if strings.HasPrefix(gitURL, "http://") || strings.HasPrefix(gitURL, "https://") {
		parsed, err := url.Parse(gitURL)
		if err != nil {
			return fmt.Errorf("invalid URL format: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("git URL missing host")
		}
		if parsed.User != nil {
			if _, hasPassword := parsed.User.Password(); hasPassword {
				return fmt.Errorf("git URL should not contain embedded password")
			}
		}
		return nil
	}

	if strings.HasPrefix(gitURL, "git@") || strings.HasPrefix(gitURL, "ssh://") {
		if !validGitURLPattern.MatchString(gitURL) {
			return fmt.Errorf("invalid SSH git URL format")
		}
		return nil
	}

	if strings.HasPrefix(gitURL, "file://") {
		return nil
	}

	return fmt.Errorf("unsupported git URL protocol: must be https://, git@, ssh://, or file://")
}

// cloneGitRepo shallow-clones a git repository to a temporary directory.
// The URL is validated to prevent command injection attacks.
func (rl *RepoLoader) cloneGitRepo(ctx context.Context, gitURL string) (string, error) {
	if err := validateGitURL(gitURL); err != nil {
		return "", fmt.Errorf("invalid git URL: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "logmine-clone-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	// #nosec G204 - gitURL is validated above to prevent command injection
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", "--quiet", gitURL, tmpDir)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logURL := gitURL
	if parsed, err := url.Parse(gitURL); err == nil {
		parsed.RawQuery = ""
		if parsed.User != nil {
			parsed.User = url.User("***")
		}
		logURL = parsed.String()
	}

	rl.logger.Info("repo.clone.start", "url", logURL, "temp_dir", tmpDir)

	if err := cmd.Run(); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", fmt.Errorf("git clone failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	rl.logger.Info("repo.clone.success", "url", logURL, "temp_dir", tmpDir)

	rl.tempDirsMu.Lock()
	rl.tempDirs = append(rl.tempDirs, tmpDir)
	rl.tempDirsMu.Unlock()

	return tmpDir, nil
}

// validateLocalPath rejects traversal attempts and sensitive system
// directories.
func (rl *RepoLoader) validateLocalPath(path string) error {
	cleaned := filepath.Clean(path)
	if cleaned != path {
		return fmt.Errorf("path contains traversal attempts: %s", path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cannot resolve absolute path: %w", err)
	}
	if strings.Contains(absPath, "..") {
		return fmt.Errorf("path contains suspicious patterns after resolution: %s", absPath)
	}
	if absPath == "" || absPath == "/" {
		return fmt.Errorf("path is empty or root directory, which is not allowed")
	}

	sensitiveDirs := []string{"/etc", "/sys", "/proc", "/dev", "/boot"}
	for _, sensitive := range sensitiveDirs {
		if strings.HasPrefix(absPath, sensitive+"/") || absPath == sensitive {
			return fmt.Errorf("path is in sensitive system directory: %s", absPath)
		}
	}

	return nil
}

// excluder combines the configured exclude globs with the repository's
// own .gitignore.
type excluder struct {
	globs     *ignore.GitIgnore
	gitignore *ignore.GitIgnore
}

func newExcluder(rootPath string, globs []string) *excluder {
	ex := &excluder{globs: ignore.CompileIgnoreLines(globs...)}
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(rootPath, ".gitignore")); err == nil {
		ex.gitignore = gi
	}
	return ex
}

// match returns the skip reason for a relative path, or "".
func (ex *excluder) match(relPath string) string {
	relPath = filepath.ToSlash(relPath)
	if ex.globs.MatchesPath(relPath) {
		return "excluded"
	}
	if ex.gitignore != nil && ex.gitignore.MatchesPath(relPath) {
		return "gitignored"
	}
	return ""
}

// walkRepository walks the checkout and decodes every target file.
func (rl *RepoLoader) walkRepository(ctx context.Context, rootPath string, opts LoadOptions) (*LoadResult, error) {
	result := &LoadResult{
		RootPath:    rootPath,
		Languages:   make(map[string]int),
		SkipReasons: make(map[string]int),
	}
	ex := newExcluder(rootPath, opts.ExcludeGlobs)
	encodings := opts.Encodings
	if len(encodings) == 0 {
		encodings = []string{"utf-8"}
	}

	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			rl.logger.Warn("repo.walk.error", "path", path, "err", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		relPath, err := filepath.Rel(rootPath, path)
		if err != nil || relPath == "." {
			return nil
		}

		if d.IsDir() {
			if d.Name() == ".git" || ex.match(relPath+"/") != "" {
				result.SkipReasons["excluded_dir"]++
				return filepath.SkipDir
			}
			return nil
		}

		if !hasSuffix(relPath, opts.Extensions) {
			return nil
		}
		if reason := ex.match(relPath); reason != "" {
			result.SkipReasons[reason]++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
			result.SkipReasons["too_large"]++
			rl.logger.Warn("repo.walk.skip_large_file",
				"path", relPath,
				"size", info.Size(),
				"limit", opts.MaxFileSize,
			)
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			result.SkipReasons["unreadable"]++
			rl.logger.Warn("repo.walk.read_error", "path", relPath, "err", err)
			return nil
		}

		content, enc, err := decodeContent(filepath.ToSlash(relPath), data, encodings)
		if err != nil {
			result.DecodeErrors++
			result.SkipReasons["decode_error"]++
			recordDecodeError()
			rl.logger.Warn("repo.walk.decode_error", "path", relPath, "err", err)
			return nil
		}

		language := detectLanguageFromPath(relPath)
		result.Files = append(result.Files, SourceFile{
			Path:     filepath.ToSlash(relPath),
			Content:  content,
			Size:     info.Size(),
			Language: language,
			Encoding: enc,
		})
		result.TotalSize += info.Size()
		if language != "" {
			result.Languages[language]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type decoder func([]byte) (string, bool)

var decoders = map[string]decoder{
	"utf-8":      decodeUTF8,
	"utf8":       decodeUTF8,
	"latin1":     charmapDecoder(charmap.ISO8859_1),
	"iso-8859-1": charmapDecoder(charmap.ISO8859_1),
	"latin2":     charmapDecoder(charmap.ISO8859_2),
	"iso-8859-2": charmapDecoder(charmap.ISO8859_2),
	"cp1251":     charmapDecoder(charmap.Windows1251),
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func decodeUTF8(data []byte) (string, bool) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}

// charmapDecoder fails when a byte has no mapping in the code page.
func charmapDecoder(cm *charmap.Charmap) decoder {
	return func(data []byte) (string, bool) {
		out, err := cm.NewDecoder().Bytes(data)
		if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
			return "", false
		}
		return string(out), true
	}
}

// decodeContent tries each encoding in order.
func decodeContent(path string, data []byte, encodings []string) (string, string, error) {
	for _, enc := range encodings {
		dec, ok := decoders[strings.ToLower(enc)]
		if !ok {
			continue
		}
		if s, ok := dec(data); ok {
			return s, strings.ToLower(enc), nil
		}
	}
	return "", "", &DecodeError{Path: path, Tried: encodings}
}

func hasSuffix(path string, exts []string) bool {
	lower := strings.ToLower(path)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// detectLanguageFromPath detects programming language from file extension.
func detectLanguageFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".java":
		return "java"
	case ".c", ".h":
		return "c"
	case ".cc", ".cpp", ".hpp":
		return "cpp"
	case ".kt":
		return "kotlin"
	case ".scala":
		return "scala"
	}
	return ""
}
