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

// AppendAttempt records one download attempt. The attempt log is
// append-only; AttemptNumber is assigned here when zero.
func (s *Store) AppendAttempt(ctx context.Context, att types.DownloadAttempt) (int64, error) {
	if att.AttemptNumber == 0 {
		n, err := s.NextAttemptNumber(ctx, att.PublicationID)
		if err != nil {
			return 0, err
		}
		att.AttemptNumber = n
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO download_attempts (publication_id, attempt_number, url, source, status, error, file_path, file_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		att.PublicationID, att.AttemptNumber, att.URL, att.Source, string(att.Status),
		att.Error, att.FilePath, att.FileSize, now)
	if err != nil {
		return 0, fmt.Errorf("appending download attempt: %w", err)
	}
	return res.LastInsertId()
}

// NextAttemptNumber returns one past the highest attempt number recorded
// for the publication.
func (s *Store) NextAttemptNumber(ctx context.Context, publicationID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(attempt_number), 0) FROM download_attempts WHERE publication_id = ?`,
		publicationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("reading attempt count: %w", err)
	}
	return n + 1, nil
}

// HasSuccessfulDownload reports whether the publication already has an
// acquired PDF on disk, with its path. The download stage uses this to
// short-circuit on restart.
func (s *Store) HasSuccessfulDownload(ctx context.Context, publicationID int64) (bool, string, error) {
	var path string
	err := s.db.QueryRowContext(ctx,
		`SELECT file_path FROM download_attempts
		 WHERE publication_id = ? AND status = 'success'
		 ORDER BY id DESC LIMIT 1`, publicationID).Scan(&path)
	if err == nil {
		return true, path, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, "", nil
	}
	return false, "", fmt.Errorf("checking downloads for publication %d: %w", publicationID, err)
}

// AttemptsForPublication returns the publication's attempt log in insertion
// order.
func (s *Store) AttemptsForPublication(ctx context.Context, publicationID int64) ([]types.DownloadAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, publication_id, attempt_number, url, source, status, error, file_path, file_size, created_at
		 FROM download_attempts WHERE publication_id = ? ORDER BY id`, publicationID)
	if err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}
	defer rows.Close()

	var atts []types.DownloadAttempt
	for rows.Next() {
		var a types.DownloadAttempt
		var status, created string
		if err := rows.Scan(&a.ID, &a.PublicationID, &a.AttemptNumber, &a.URL, &a.Source,
			&status, &a.Error, &a.FilePath, &a.FileSize, &created); err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}
		a.Status = types.DownloadStatus(status)
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		atts = append(atts, a)
	}
	return atts, rows.Err()
}
