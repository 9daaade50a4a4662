// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists the corpus in a single SQLite database: datasets,
// publications, their links, download attempts, content extractions,
// pipeline events, and per-source metrics. All pipeline stages write
// through this package so a run can be resumed from the database alone.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store manages the corpus SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the corpus database at dbPath, creating parent
// directories and the schema as needed.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows one writer; serializing through a single connection
	// avoids SQLITE_BUSY under concurrent publication workers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			id TEXT PRIMARY KEY,
			title TEXT,
			organism TEXT,
			platform TEXT,
			sample_count INTEGER,
			submission_date TEXT,
			publication_count INTEGER NOT NULL DEFAULT 0,
			pdfs_downloaded INTEGER NOT NULL DEFAULT 0,
			pdfs_extracted INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			provider_raw TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS publications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			dedup_key TEXT NOT NULL UNIQUE,
			pmid TEXT,
			doi TEXT,
			pmcid TEXT,
			arxiv_id TEXT,
			title TEXT,
			authors TEXT,
			journal TEXT,
			year INTEGER,
			provider_raw TEXT,
			urls TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_publications_pmid ON publications(pmid)`,
		`CREATE INDEX IF NOT EXISTS idx_publications_doi ON publications(doi)`,
		`CREATE TABLE IF NOT EXISTS dataset_publications (
			dataset_id TEXT NOT NULL REFERENCES datasets(id),
			publication_id INTEGER NOT NULL REFERENCES publications(id),
			relationship TEXT NOT NULL,
			strategy TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (dataset_id, publication_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dataset_publications_pub ON dataset_publications(publication_id)`,
		`CREATE INDEX IF NOT EXISTS idx_dataset_publications_rel ON dataset_publications(relationship)`,
		`CREATE TABLE IF NOT EXISTS download_attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			publication_id INTEGER NOT NULL REFERENCES publications(id),
			attempt_number INTEGER NOT NULL,
			url TEXT NOT NULL,
			source TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			file_path TEXT,
			file_size INTEGER,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_download_attempts_pub ON download_attempts(publication_id)`,
		`CREATE INDEX IF NOT EXISTS idx_download_attempts_status ON download_attempts(status)`,
		`CREATE TABLE IF NOT EXISTS content_extractions (
			publication_id INTEGER NOT NULL REFERENCES publications(id),
			dataset_id TEXT NOT NULL REFERENCES datasets(id),
			sections TEXT,
			tables TEXT,
			refs TEXT,
			page_count INTEGER,
			word_count INTEGER,
			quality_score REAL,
			quality_grade TEXT,
			pdf_sha256 TEXT,
			created_at TEXT NOT NULL,
			PRIMARY KEY (publication_id, dataset_id)
		)`,
		`CREATE TABLE IF NOT EXISTS pipeline_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			dataset_id TEXT,
			publication_id INTEGER,
			stage TEXT NOT NULL,
			type TEXT NOT NULL,
			message TEXT,
			duration_ms INTEGER,
			error TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pipeline_events_run ON pipeline_events(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pipeline_events_dataset ON pipeline_events(dataset_id)`,
		`CREATE TABLE IF NOT EXISTS source_metrics (
			source TEXT PRIMARY KEY,
			total_requests INTEGER NOT NULL DEFAULT 0,
			successful_requests INTEGER NOT NULL DEFAULT 0,
			failed_requests INTEGER NOT NULL DEFAULT 0,
			total_seconds REAL NOT NULL DEFAULT 0,
			papers_returned INTEGER NOT NULL DEFAULT 0,
			unique_papers INTEGER NOT NULL DEFAULT 0,
			supports_batch INTEGER NOT NULL DEFAULT 0
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}
