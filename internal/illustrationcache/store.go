package illustrationcache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale databases are rejected rather than migrated.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by a different build.
var ErrSchemaMismatch = errors.New("illustration cache schema version mismatch")

// Entry is one cached illustration record.
type Entry struct {
	SceneHash  string
	DocumentID string
	UnitID     string
	Style      string
	ImagePath  string
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// Stats summarizes cache contents.
type Stats struct {
	Entries   int
	Documents int
}

// Store manages illustration cache persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// HashScene derives the cache key for a scene. The style participates in the
// hash so restyling a series never reuses old renders.
func HashScene(style, scene string) string {
	h := sha256.New()
	h.Write([]byte(style))
	h.Write([]byte{0})
	h.Write([]byte(scene))
	return hex.EncodeToString(h.Sum(nil))
}

// Open initializes or connects to the cache database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Lookup returns the cached entry for a scene hash, or nil when absent. A
// hit refreshes the last-used timestamp.
func (s *Store) Lookup(ctx context.Context, sceneHash string) (*Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT scene_hash, document_id, unit_id, style, image_path, created_at, last_used_at
         FROM illustrations WHERE scene_hash = ?`,
		sceneHash,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup illustration: %w", err)
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(
		ctx,
		`UPDATE illustrations SET last_used_at = ? WHERE scene_hash = ?`,
		now.Format(time.RFC3339Nano),
		sceneHash,
	); err != nil {
		return nil, fmt.Errorf("touch illustration: %w", err)
	}
	entry.LastUsedAt = now
	return entry, nil
}

// Put records a rendered illustration, replacing any prior entry for the
// same scene hash.
func (s *Store) Put(ctx context.Context, entry Entry) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO illustrations (
            scene_hash, document_id, unit_id, style, image_path, created_at, last_used_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(scene_hash) DO UPDATE SET
            document_id = excluded.document_id,
            unit_id = excluded.unit_id,
            style = excluded.style,
            image_path = excluded.image_path,
            last_used_at = excluded.last_used_at`,
		entry.SceneHash,
		entry.DocumentID,
		entry.UnitID,
		entry.Style,
		entry.ImagePath,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("store illustration: %w", err)
	}
	return nil
}

// EntriesForDocument lists cached entries for one document ordered by unit.
func (s *Store) EntriesForDocument(ctx context.Context, documentID string) ([]*Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT scene_hash, document_id, unit_id, style, image_path, created_at, last_used_at
         FROM illustrations WHERE document_id = ? ORDER BY unit_id`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list illustrations: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// PruneOlderThan removes entries last used before the cutoff and returns the
// number removed. Image files on disk are left alone.
func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM illustrations WHERE last_used_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune illustrations: %w", err)
	}
	return res.RowsAffected()
}

// GetStats returns entry and distinct-document counts.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1), COUNT(DISTINCT document_id) FROM illustrations`)
	var stats Stats
	if err := row.Scan(&stats.Entries, &stats.Documents); err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	return stats, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry       Entry
		createdRaw  string
		lastUsedRaw string
	)
	if err := scanner.Scan(
		&entry.SceneHash,
		&entry.DocumentID,
		&entry.UnitID,
		&entry.Style,
		&entry.ImagePath,
		&createdRaw,
		&lastUsedRaw,
	); err != nil {
		return nil, err
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		entry.CreatedAt = created
	}
	if lastUsed, err := time.Parse(time.RFC3339Nano, lastUsedRaw); err == nil {
		entry.LastUsedAt = lastUsed
	}
	return &entry, nil
}
