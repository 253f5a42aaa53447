// File path: internal/catalog/store.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store wraps a pooled sqlx.DB connection to the SQLite catalog holding
// parsed program structure, summaries, stories and vector bookkeeping.
type Store struct {
	db *sqlx.DB
}

// Open constructs a Store backed by the SQLite database at the provided
// path. An empty path falls back to the environment configuration. The
// schema is migrated on first use.
func Open(path string) (*Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		cfg.Path = trimmed
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig constructs a Store using the provided configuration.
func OpenWithConfig(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("catalog path required")
	}
	busy := int(cfg.BusyTimeout / time.Millisecond)
	if busy <= 0 {
		busy = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", cfg.Path, busy)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BusyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Setup drops and recreates all catalog tables. Destructive on purpose: the
// setup pipeline step starts every analysis run from a clean slate.
func (s *Store) Setup(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("catalog store not initialised")
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin setup: %w", err)
	}
	for _, table := range []string{
		"audit", "vectors", "stories", "paragraph_calls",
		"paragraphs", "sections", "divisions", "programs",
	} {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			tx.Rollback()
			return fmt.Errorf("drop table %s: %w", table, err)
		}
	}
	if err := execSchema(ctx, tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit setup: %w", err)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	if err := execSchema(ctx, tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

func execSchema(ctx context.Context, tx *sqlx.Tx) error {
	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS programs (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                filename TEXT NOT NULL UNIQUE,
                name TEXT NOT NULL,
                content TEXT NOT NULL,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
	`CREATE TABLE IF NOT EXISTS divisions (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                program_id INTEGER NOT NULL,
                seq INTEGER NOT NULL,
                name TEXT NOT NULL,
                code TEXT NOT NULL,
                summary TEXT,
                mermaid TEXT,
                FOREIGN KEY(program_id) REFERENCES programs(id) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS sections (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                division_id INTEGER NOT NULL,
                seq INTEGER NOT NULL,
                name TEXT NOT NULL,
                code TEXT NOT NULL,
                summary TEXT,
                FOREIGN KEY(division_id) REFERENCES divisions(id) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS paragraphs (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                section_id INTEGER NOT NULL,
                seq INTEGER NOT NULL,
                name TEXT NOT NULL,
                code TEXT NOT NULL,
                summary TEXT,
                FOREIGN KEY(section_id) REFERENCES sections(id) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS paragraph_calls (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                paragraph_id INTEGER NOT NULL,
                seq INTEGER NOT NULL,
                callee TEXT NOT NULL,
                FOREIGN KEY(paragraph_id) REFERENCES paragraphs(id) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS stories (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                program_id INTEGER NOT NULL,
                seq INTEGER NOT NULL,
                title TEXT NOT NULL,
                story_text TEXT NOT NULL,
                FOREIGN KEY(program_id) REFERENCES programs(id) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS vectors (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                kind TEXT NOT NULL,
                entity_id INTEGER NOT NULL,
                vector_id TEXT NOT NULL,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                UNIQUE(kind, entity_id)
        );`,
	`CREATE TABLE IF NOT EXISTS audit (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                action TEXT NOT NULL,
                detail TEXT,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
	`CREATE INDEX IF NOT EXISTS idx_divisions_program ON divisions(program_id);`,
	`CREATE INDEX IF NOT EXISTS idx_sections_division ON sections(division_id);`,
	`CREATE INDEX IF NOT EXISTS idx_paragraphs_section ON paragraphs(section_id);`,
	`CREATE INDEX IF NOT EXISTS idx_paragraph_calls_paragraph ON paragraph_calls(paragraph_id);`,
	`CREATE INDEX IF NOT EXISTS idx_stories_program ON stories(program_id);`,
}
