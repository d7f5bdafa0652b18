// Package store records compile-request history for server/api, backed by
// modernc.org/sqlite (pure Go, no cgo) for entity persistence.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Compile is one recorded grammar compilation: its content hash, rule
// count, and when it ran, so a repeat submission of the same grammar text
// can be recognized without re-running analysis (internal/peg/cache is
// what actually skips the work; this just remembers that it happened).
type Compile struct {
	ID         string
	SourceHash string
	RuleCount  int
	CompiledAt time.Time
	CacheHit   bool
}

// Store persists Compile records.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a sqlite database at path and ensures its
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open compile history store: %w", err)
	}
	st := &Store{db: db}
	if err := st.init(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) init() error {
	stmt := `CREATE TABLE IF NOT EXISTS compiles (
		id TEXT NOT NULL PRIMARY KEY,
		source_hash TEXT NOT NULL,
		rule_count INTEGER NOT NULL,
		compiled_at INTEGER NOT NULL,
		cache_hit INTEGER NOT NULL
	);`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("create compiles table: %w", err)
	}
	stmt = `CREATE INDEX IF NOT EXISTS compiles_by_hash ON compiles (source_hash);`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("create compiles index: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a new Compile under the caller-supplied id, stamped with
// the current time.
func (s *Store) Record(ctx context.Context, id, sourceHash string, ruleCount int, cacheHit bool) (Compile, error) {
	c := Compile{
		ID:         id,
		SourceHash: sourceHash,
		RuleCount:  ruleCount,
		CompiledAt: time.Now(),
		CacheHit:   cacheHit,
	}
	stmt := `INSERT INTO compiles (id, source_hash, rule_count, compiled_at, cache_hit) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, stmt, c.ID, c.SourceHash, c.RuleCount, c.CompiledAt.Unix(), boolToInt(c.CacheHit)); err != nil {
		return Compile{}, fmt.Errorf("record compile: %w", err)
	}
	return c, nil
}

// GetByID retrieves a single compile record by ID.
func (s *Store) GetByID(ctx context.Context, id string) (Compile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, source_hash, rule_count, compiled_at, cache_hit FROM compiles WHERE id = ?`, id)
	return scanCompile(row)
}

// LastForHash retrieves the most recent compile record for a given content
// hash, if one exists.
func (s *Store) LastForHash(ctx context.Context, sourceHash string) (Compile, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, source_hash, rule_count, compiled_at, cache_hit FROM compiles WHERE source_hash = ? ORDER BY compiled_at DESC, rowid DESC LIMIT 1`, sourceHash)
	c, err := scanCompile(row)
	if err == sql.ErrNoRows {
		return Compile{}, false, nil
	}
	if err != nil {
		return Compile{}, false, err
	}
	return c, true, nil
}

func scanCompile(row *sql.Row) (Compile, error) {
	var c Compile
	var compiledAt int64
	var cacheHit int
	if err := row.Scan(&c.ID, &c.SourceHash, &c.RuleCount, &compiledAt, &cacheHit); err != nil {
		if err == sql.ErrNoRows {
			return Compile{}, err
		}
		return Compile{}, fmt.Errorf("scan compile: %w", err)
	}
	c.CompiledAt = time.Unix(compiledAt, 0)
	c.CacheHit = cacheHit != 0
	return c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
