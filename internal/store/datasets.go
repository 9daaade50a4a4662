// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("not found")

// UpsertDataset inserts or refreshes a dataset record. Counters are not
// touched here; RecomputeCounters owns them.
func (s *Store) UpsertDataset(ctx context.Context, ds types.Dataset) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO datasets (id, title, organism, platform, sample_count, submission_date, status, provider_raw, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, organism=excluded.organism, platform=excluded.platform,
			sample_count=excluded.sample_count, submission_date=excluded.submission_date,
			status=excluded.status, provider_raw=excluded.provider_raw,
			updated_at=excluded.updated_at`,
		ds.ID, ds.Title, ds.Organism, ds.Platform, ds.SampleCount, ds.SubmissionDate,
		string(ds.Status), string(ds.ProviderRaw), now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting dataset %s: %w", ds.ID, err)
	}
	return nil
}

// GetDataset returns the dataset row for id, or ErrNotFound.
func (s *Store) GetDataset(ctx context.Context, id string) (*types.Dataset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, organism, platform, sample_count, submission_date,
			publication_count, pdfs_downloaded, pdfs_extracted, status,
			provider_raw, created_at, updated_at
		 FROM datasets WHERE id = ?`, id)

	var ds types.Dataset
	var status, raw, created, updated string
	err := row.Scan(&ds.ID, &ds.Title, &ds.Organism, &ds.Platform, &ds.SampleCount,
		&ds.SubmissionDate, &ds.PublicationCount, &ds.PDFsDownloaded, &ds.PDFsExtracted,
		&status, &raw, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", id, err)
	}

	ds.Status = types.ProcessingStatus(status)
	if raw != "" {
		ds.ProviderRaw = []byte(raw)
	}
	ds.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	ds.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &ds, nil
}

// SetDatasetStatus moves a dataset through the processing lifecycle.
func (s *Store) SetDatasetStatus(ctx context.Context, id string, status types.ProcessingStatus) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE datasets SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), now, id)
	if err != nil {
		return fmt.Errorf("updating dataset status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecomputeCounters rebuilds the dataset's materialized counters from the
// underlying tables. Called at the end of a run so restarts cannot leave
// counters drifted.
func (s *Store) RecomputeCounters(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE datasets SET
			publication_count = (
				SELECT COUNT(*) FROM dataset_publications WHERE dataset_id = ?),
			pdfs_downloaded = (
				SELECT COUNT(DISTINCT dp.publication_id)
				FROM dataset_publications dp
				JOIN download_attempts da ON da.publication_id = dp.publication_id
				WHERE dp.dataset_id = ? AND da.status = 'success'),
			pdfs_extracted = (
				SELECT COUNT(*) FROM content_extractions WHERE dataset_id = ?),
			updated_at = ?
		 WHERE id = ?`,
		id, id, id, now, id)
	if err != nil {
		return fmt.Errorf("recomputing counters for %s: %w", id, err)
	}
	return nil
}
