package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	herrors "github.com/historian-labs/historian/internal/errors"
	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO
)

// SQLiteStore implements Store on top of modernc.org/sqlite in WAL mode,
// matching the single-writer, busy-timeout discipline of the teacher's
// SQLite-backed index.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	lock   *flock.Flock
	closed bool
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// DB exposes the underlying connection so other subsystems that share this
// database file (query telemetry, say) can run their own migrations and
// statements against it instead of opening a second connection.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Open creates or opens a SQLite-backed store at path. An empty path opens
// an in-memory store (used by tests). A schema_version mismatch against an
// existing on-disk store fails with SchemaMismatch rather than migrating
// silently.
func Open(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var dsn string
	var fileLock *flock.Flock

	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, herrors.StorageError(fmt.Sprintf("failed to create store directory %s", dir), err)
		}

		if validateErr := validateIntegrity(path); validateErr != nil {
			logger.Warn("store corrupted, clearing", "path", path, "error", validateErr)
			_ = os.Remove(path)
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}

		fileLock = flock.New(path + ".lock")
		locked, err := fileLock.TryLock()
		if err != nil {
			return nil, herrors.StorageError("failed to acquire store lock", err)
		}
		if !locked {
			return nil, herrors.StorageError(fmt.Sprintf("store at %s is locked by another process", path), nil)
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		if fileLock != nil {
			_ = fileLock.Unlock()
		}
		return nil, herrors.StorageError("failed to open store database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			if fileLock != nil {
				_ = fileLock.Unlock()
			}
			return nil, herrors.StorageError("failed to configure store pragmas", err)
		}
	}

	s := &SQLiteStore{db: db, path: path, lock: fileLock, logger: logger}
	if err := s.init(); err != nil {
		_ = db.Close()
		if fileLock != nil {
			_ = fileLock.Unlock()
		}
		return nil, err
	}
	return s, nil
}

// validateIntegrity runs a quick PRAGMA integrity_check against an existing
// file before opening it for real, mirroring the teacher's corruption
// detection so a damaged store is auto-cleared rather than wedging startup.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS pages (
	id             TEXT PRIMARY KEY,
	url            TEXT NOT NULL UNIQUE,
	title          TEXT NOT NULL,
	content        TEXT NOT NULL,
	timestamp      INTEGER NOT NULL,
	last_accessed  INTEGER NOT NULL DEFAULT 0,
	visit_count    INTEGER NOT NULL DEFAULT 1,
	dwell_time_sec INTEGER NOT NULL DEFAULT 0,
	inserted_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS passages (
	page_id    TEXT NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	id         TEXT NOT NULL,
	text       TEXT NOT NULL,
	word_count INTEGER NOT NULL,
	quality    REAL NOT NULL,
	embedding  BLOB NOT NULL,
	PRIMARY KEY (page_id, position)
);
`

func (s *SQLiteStore) init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return herrors.StorageError("failed to initialize store schema", err)
	}

	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		_, err = s.db.Exec("INSERT INTO schema_version(version) VALUES (?)", CurrentSchemaVersion)
		if err != nil {
			return herrors.StorageError("failed to stamp schema version", err)
		}
		return nil
	}
	if err != nil {
		return herrors.StorageError("failed to read schema version", err)
	}
	if version != CurrentSchemaVersion {
		return herrors.SchemaMismatch(
			fmt.Sprintf("store schema version %d does not match expected %d", version, CurrentSchemaVersion), nil)
	}
	return nil
}

// Put replaces any existing record sharing page.ID inside a single
// transaction, so readers never observe a half-written page.
func (s *SQLiteStore) Put(ctx context.Context, page *PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return herrors.StorageError("store is closed", nil)
	}
	if len(page.Passages) == 0 {
		return herrors.InvalidArgs("a page with zero passages must not be stored", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return herrors.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	timestamp := page.Timestamp
	visitCount := page.VisitCount
	if visitCount < 1 {
		visitCount = 1
	}

	var existingTimestamp int64
	var existingVisits int
	row := tx.QueryRowContext(ctx, `SELECT timestamp, visit_count FROM pages WHERE id = ?`, page.ID)
	if scanErr := row.Scan(&existingTimestamp, &existingVisits); scanErr == nil {
		timestamp = existingTimestamp
		visitCount = existingVisits + 1
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pages (id, url, title, content, timestamp, last_accessed, visit_count, dwell_time_sec, inserted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			content = excluded.content,
			visit_count = excluded.visit_count,
			dwell_time_sec = excluded.dwell_time_sec
	`, page.ID, page.URL, page.Title, page.Content, timestamp, page.LastAccessed, visitCount, page.DwellTimeSec, timestamp)
	if err != nil {
		return herrors.StorageError(fmt.Sprintf("failed to upsert page %s", page.ID), err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM passages WHERE page_id = ?`, page.ID); err != nil {
		return herrors.StorageError(fmt.Sprintf("failed to clear stale passages for %s", page.ID), err)
	}

	insertPassage, err := tx.PrepareContext(ctx, `
		INSERT INTO passages (page_id, position, id, text, word_count, quality, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return herrors.StorageError("failed to prepare passage insert", err)
	}
	defer insertPassage.Close()

	for _, p := range page.Passages {
		if _, err := insertPassage.ExecContext(ctx, page.ID, p.Position, p.ID, p.Text, p.WordCount, p.Quality, encodeVector(p.Embedding)); err != nil {
			return herrors.StorageError(fmt.Sprintf("failed to insert passage %s", p.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return herrors.StorageError("failed to commit page write", err)
	}
	page.Timestamp = timestamp
	page.VisitCount = visitCount
	return nil
}

// Get returns the full record for id, or (nil, nil) if absent.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, herrors.StorageError("store is closed", nil)
	}
	return s.getLocked(ctx, "id", id)
}

// GetByURL returns the full record for url, or (nil, nil) if absent.
func (s *SQLiteStore) GetByURL(ctx context.Context, url string) (*PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, herrors.StorageError("store is closed", nil)
	}
	return s.getLocked(ctx, "url", url)
}

func (s *SQLiteStore) getLocked(ctx context.Context, column, value string) (*PageRecord, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, url, title, content, timestamp, last_accessed, visit_count, dwell_time_sec
		FROM pages WHERE %s = ?
	`, column), value)

	page := &PageRecord{}
	err := row.Scan(&page.ID, &page.URL, &page.Title, &page.Content, &page.Timestamp, &page.LastAccessed, &page.VisitCount, &page.DwellTimeSec)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, herrors.StorageError("failed to read page", err)
	}

	passages, err := s.loadPassages(ctx, page.ID)
	if err != nil {
		return nil, err
	}
	page.Passages = passages
	return page, nil
}

func (s *SQLiteStore) loadPassages(ctx context.Context, pageID string) ([]Passage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, word_count, quality, position, embedding
		FROM passages WHERE page_id = ? ORDER BY position
	`, pageID)
	if err != nil {
		return nil, herrors.StorageError("failed to read passages", err)
	}
	defer rows.Close()

	var passages []Passage
	for rows.Next() {
		var p Passage
		var blob []byte
		if err := rows.Scan(&p.ID, &p.Text, &p.WordCount, &p.Quality, &p.Position, &blob); err != nil {
			return nil, herrors.StorageError("failed to scan passage", err)
		}
		p.Embedding = decodeVector(blob)
		passages = append(passages, p)
	}
	return passages, rows.Err()
}

// GetMetadataAll streams lightweight metadata without touching passages,
// per spec.md §4.3's requirement that this path never load embeddings.
func (s *SQLiteStore) GetMetadataAll(ctx context.Context) ([]PageMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, herrors.StorageError("store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, title, timestamp, last_accessed, visit_count
		FROM pages ORDER BY inserted_at
	`)
	if err != nil {
		return nil, herrors.StorageError("failed to read page metadata", err)
	}
	defer rows.Close()

	var out []PageMetadata
	for rows.Next() {
		var m PageMetadata
		if err := rows.Scan(&m.ID, &m.URL, &m.Title, &m.Timestamp, &m.LastAccessed, &m.VisitCount); err != nil {
			return nil, herrors.StorageError("failed to scan page metadata", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetAll streams full records in insertion order.
func (s *SQLiteStore) GetAll(ctx context.Context) ([]*PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, herrors.StorageError("store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM pages ORDER BY inserted_at`)
	if err != nil {
		return nil, herrors.StorageError("failed to list pages", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, herrors.StorageError("failed to scan page id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, herrors.StorageError("failed to iterate pages", err)
	}

	out := make([]*PageRecord, 0, len(ids))
	for _, id := range ids {
		page, err := s.getLocked(ctx, "id", id)
		if err != nil {
			return nil, err
		}
		if page != nil {
			out = append(out, page)
		}
	}
	return out, nil
}

// RecordSearchAccess updates last_accessed for id, the only mutation the
// query path (as opposed to the indexer) is allowed to make.
func (s *SQLiteStore) RecordSearchAccess(ctx context.Context, id string, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return herrors.StorageError("store is closed", nil)
	}
	_, err := s.db.ExecContext(ctx, `UPDATE pages SET last_accessed = ? WHERE id = ?`, now, id)
	if err != nil {
		return herrors.StorageError(fmt.Sprintf("failed to record access for %s", id), err)
	}
	return nil
}

// Delete removes a page and all its passages atomically via the passages
// table's ON DELETE CASCADE foreign key.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return herrors.StorageError("store is closed", nil)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id); err != nil {
		return herrors.StorageError(fmt.Sprintf("failed to delete page %s", id), err)
	}
	return nil
}

// Clear removes every page.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return herrors.StorageError("store is closed", nil)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pages`); err != nil {
		return herrors.StorageError("failed to clear store", err)
	}
	return nil
}

// Stats reports aggregate store statistics. SizeBytes approximates the
// on-disk footprint via SQLite's page_count/page_size pragmas so it stays
// monotone under put-then-delete without tracking per-row sizes.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Stats{}, herrors.StorageError("store is closed", nil)
	}

	var st Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(MIN(timestamp), 0),
		       COALESCE(MAX(timestamp), 0),
		       COALESCE(MAX(last_accessed), 0)
		FROM pages
	`)
	if err := row.Scan(&st.TotalPages, &st.OldestTS, &st.NewestTS, &st.LastAccessTS); err != nil {
		return Stats{}, herrors.StorageError("failed to read store stats", err)
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			st.SizeBytes = pageCount * pageSize
		}
	}
	return st, nil
}

// Close releases the DB handle and file lock.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	err := s.db.Close()
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	return err
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
