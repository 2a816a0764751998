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

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMs   = 5000
	connMaxLifetime = 30 * time.Minute

	currentSchemaVersion = 3
)

// SQLiteBackend implements Backend on a local SQLite file.
type SQLiteBackend struct {
	db     *sql.DB
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file. Defaults to
	// ~/.logmine/data/<project_id>/logmine.db.
	Path string

	// ProjectID is used to namespace the default path.
	ProjectID string

	Logger *slog.Logger
}

// NewSQLiteBackend opens the database and migrates it to the current schema.
func NewSQLiteBackend(config SQLiteConfig) (*SQLiteBackend, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		dir := filepath.Join(homeDir, ".logmine", "data")
		if config.ProjectID != "" {
			dir = filepath.Join(dir, config.ProjectID)
		}
		config.Path = filepath.Join(dir, "logmine.db")
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", config.Path, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers; one connection avoids lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	b := &SQLiteBackend{db: db, logger: logger}
	if err := b.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return b, nil
}

// SchemaVersion returns the applied schema version.
func (b *SQLiteBackend) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := b.db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return version, err
}

func (b *SQLiteBackend) migrate(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	version, err := b.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}

	b.logger.Info("storage.migrate", "from", version, "to", currentSchemaVersion)
	migrations := []func(context.Context, *sql.Tx) error{migrateV1, migrateV2, migrateV3}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for v := version; v < currentSchemaVersion; v++ {
		if err := migrations[v](ctx, tx); err != nil {
			return fmt.Errorf("migration v%d: %w", v+1, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, currentSchemaVersion); err != nil {
		return err
	}
	return tx.Commit()
}

// migrateV1 creates the queue and template tables.
func migrateV1(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS repositories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		stars INTEGER NOT NULL DEFAULT 0,
		disk_usage INTEGER NOT NULL DEFAULT 0,
		languages TEXT,
		main_language TEXT NOT NULL DEFAULT '',
		framework TEXT NOT NULL DEFAULT '',
		processed INTEGER NOT NULL DEFAULT 0,
		successfully_processed INTEGER NOT NULL DEFAULT 0,
		locked INTEGER NOT NULL DEFAULT 0,
		added_at TEXT NOT NULL,
		UNIQUE (owner, name)
	);

	CREATE TABLE IF NOT EXISTS templates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		template TEXT NOT NULL,
		arguments TEXT,
		raw TEXT NOT NULL,
		repository_id TEXT NOT NULL,
		parsed TEXT NOT NULL,
		crawl_date TEXT NOT NULL,
		UNIQUE (repository_id, raw, template)
	);
	`)
	return err
}

// migrateV2 records failure reasons and run ids, and indexes the queue.
func migrateV2(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range []string{
		`ALTER TABLE repositories ADD COLUMN failure_reason TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE templates ADD COLUMN run_id TEXT NOT NULL DEFAULT ''`,
		`CREATE INDEX IF NOT EXISTS idx_repositories_queue ON repositories (processed, locked)`,
		`CREATE INDEX IF NOT EXISTS idx_templates_repository ON templates (repository_id)`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrateV3 keeps the mining source as text and links templates to the
// queue row they were mined from. Ad-hoc runs leave repository_id NULL.
func migrateV3(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range []string{
		`ALTER TABLE templates RENAME COLUMN repository_id TO source`,
		`ALTER TABLE templates ADD COLUMN repository_id INTEGER REFERENCES repositories (id)`,
		`CREATE INDEX IF NOT EXISTS idx_templates_repository_id ON templates (repository_id)`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveTemplates inserts records in one transaction with ON CONFLICT DO
// NOTHING.
func (b *SQLiteBackend) SaveTemplates(ctx context.Context, records []TemplateRecord) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, fmt.Errorf("backend is closed")
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO templates (template, arguments, raw, source, repository_id, parsed, crawl_date, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for i, r := range records {
		args, err := nullableJSON(r.Arguments)
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		crawl := r.CrawlDate
		if crawl.IsZero() {
			crawl = time.Now()
		}
		repoID := sql.NullInt64{Int64: r.RepositoryID, Valid: r.RepositoryID > 0}
		res, err := stmt.ExecContext(ctx, r.Template, args, r.Raw, r.Source, repoID, r.Parsed,
			crawl.UTC().Format(time.RFC3339), r.RunID)
		if err != nil {
			return 0, fmt.Errorf("insert record %d: %w", i, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	b.logger.Debug("storage.templates.saved", "records", len(records), "inserted", inserted)
	return inserted, nil
}

// Templates returns the records mined from source in insertion order.
func (b *SQLiteBackend) Templates(ctx context.Context, source string) ([]TemplateRecord, error) {
	return b.templates(ctx, `source = ?`, source)
}

// RepositoryTemplates returns the records mined from the queued repository
// id in insertion order.
func (b *SQLiteBackend) RepositoryTemplates(ctx context.Context, id int64) ([]TemplateRecord, error) {
	return b.templates(ctx, `repository_id = ?`, id)
}

func (b *SQLiteBackend) templates(ctx context.Context, where string, arg any) ([]TemplateRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}

	rows, err := b.db.QueryContext(ctx, `
		SELECT template, arguments, raw, source, repository_id, parsed, crawl_date, run_id
		FROM templates WHERE `+where+` ORDER BY id`, arg)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TemplateRecord
	for rows.Next() {
		var (
			r      TemplateRecord
			args   sql.NullString
			repoID sql.NullInt64
			crawl  string
		)
		if err := rows.Scan(&r.Template, &args, &r.Raw, &r.Source, &repoID, &r.Parsed, &crawl, &r.RunID); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		if args.Valid {
			if err := json.Unmarshal([]byte(args.String), &r.Arguments); err != nil {
				return nil, fmt.Errorf("decode arguments: %w", err)
			}
		}
		r.RepositoryID = repoID.Int64
		r.CrawlDate, _ = time.Parse(time.RFC3339, crawl)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddRepository enqueues a repository unless owner/name already exists.
func (b *SQLiteBackend) AddRepository(ctx context.Context, repo RepositoryRecord) (int64, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, false, fmt.Errorf("backend is closed")
	}

	langs, err := nullableJSON(repo.Languages)
	if err != nil {
		return 0, false, err
	}
	res, err := b.db.ExecContext(ctx, `
		INSERT INTO repositories (owner, name, url, stars, disk_usage, languages, main_language, framework, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner, name) DO NOTHING`,
		repo.Owner, repo.Name, repo.URL, repo.Stars, repo.DiskUsage, langs,
		repo.MainLanguage, repo.Framework, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, false, fmt.Errorf("insert repository: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		id, err := res.LastInsertId()
		return id, true, err
	}

	var id int64
	err = b.db.QueryRowContext(ctx, `SELECT id FROM repositories WHERE owner = ? AND name = ?`,
		repo.Owner, repo.Name).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("lookup repository: %w", err)
	}
	return id, false, nil
}

// ClaimNext locks the oldest repository that is neither processed nor
// locked. It returns ErrQueueEmpty when there is none.
func (b *SQLiteBackend) ClaimNext(ctx context.Context) (*RepositoryRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+repositoryColumns+` FROM repositories
		WHERE processed = 0 AND locked = 0
		ORDER BY id LIMIT 1`)
	repo, err := scanRepository(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE repositories SET locked = 1 WHERE id = ?`, repo.ID); err != nil {
		return nil, fmt.Errorf("lock repository: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	repo.Locked = true
	return repo, nil
}

// FinishRepository marks a repository processed, records the outcome, and
// releases its lock.
func (b *SQLiteBackend) FinishRepository(ctx context.Context, id int64, success bool, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("backend is closed")
	}

	res, err := b.db.ExecContext(ctx, `
		UPDATE repositories
		SET processed = 1, successfully_processed = ?, locked = 0, failure_reason = ?
		WHERE id = ?`, success, reason, id)
	if err != nil {
		return fmt.Errorf("finish repository: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish repository: no repository with id %d", id)
	}
	return nil
}

// ReleaseRepository unlocks an unfinished claim.
func (b *SQLiteBackend) ReleaseRepository(ctx context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("backend is closed")
	}

	res, err := b.db.ExecContext(ctx, `UPDATE repositories SET locked = 0 WHERE id = ? AND processed = 0`, id)
	if err != nil {
		return fmt.Errorf("release repository: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("release repository: no unprocessed repository with id %d", id)
	}
	return nil
}

// Repository loads one queue row.
func (b *SQLiteBackend) Repository(ctx context.Context, id int64) (*RepositoryRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}
	row := b.db.QueryRowContext(ctx, `SELECT `+repositoryColumns+` FROM repositories WHERE id = ?`, id)
	return scanRepository(row)
}

// Stats counts queue states and stored templates.
func (b *SQLiteBackend) Stats(ctx context.Context) (*Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}

	var s Stats
	err := b.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN processed = 0 AND locked = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(locked), 0),
			COALESCE(SUM(processed), 0),
			COALESCE(SUM(successfully_processed), 0)
		FROM repositories`).Scan(&s.Repositories, &s.Pending, &s.Locked, &s.Processed, &s.Successful)
	if err != nil {
		return nil, fmt.Errorf("count repositories: %w", err)
	}
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM templates`).Scan(&s.Templates); err != nil {
		return nil, fmt.Errorf("count templates: %w", err)
	}
	return &s, nil
}

// Query runs a read-only SQL query and returns all rows.
func (b *SQLiteBackend) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	headers, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	result := &QueryResult{Headers: headers}
	for rows.Next() {
		vals := make([]any, len(headers))
		ptrs := make([]any, len(headers))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		result.Rows = append(result.Rows, vals)
	}
	return result, rows.Err()
}

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

const repositoryColumns = `id, owner, name, url, stars, disk_usage, languages, main_language, framework,
	processed, successfully_processed, locked, failure_reason, added_at`

func scanRepository(row *sql.Row) (*RepositoryRecord, error) {
	var (
		r     RepositoryRecord
		langs sql.NullString
		added string
	)
	err := row.Scan(&r.ID, &r.Owner, &r.Name, &r.URL, &r.Stars, &r.DiskUsage, &langs,
		&r.MainLanguage, &r.Framework, &r.Processed, &r.SuccessfullyProcessed, &r.Locked,
		&r.FailureReason, &added)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan repository: %w", err)
	}
	if langs.Valid {
		if err := json.Unmarshal([]byte(langs.String), &r.Languages); err != nil {
			return nil, fmt.Errorf("decode languages: %w", err)
		}
	}
	r.AddedAt, _ = time.Parse(time.RFC3339, added)
	return &r, nil
}

// nullableJSON encodes a list as a JSON array, or NULL when empty.
func nullableJSON(values []string) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode list: %w", err)
	}
	return string(data), nil
}
