// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// PutExtraction stores the structured content for one (publication,
// dataset) pair, replacing any prior row wholesale.
func (s *Store) PutExtraction(ctx context.Context, ex types.ContentExtraction) error {
	sectionsJSON, _ := json.Marshal(ex.Sections)
	tablesJSON, _ := json.Marshal(ex.Tables)
	refsJSON, _ := json.Marshal(ex.References)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO content_extractions (publication_id, dataset_id, sections, tables, refs, page_count, word_count, quality_score, quality_grade, pdf_sha256, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(publication_id, dataset_id) DO UPDATE SET
			sections=excluded.sections, tables=excluded.tables, refs=excluded.refs,
			page_count=excluded.page_count, word_count=excluded.word_count,
			quality_score=excluded.quality_score, quality_grade=excluded.quality_grade,
			pdf_sha256=excluded.pdf_sha256, created_at=excluded.created_at`,
		ex.PublicationID, ex.DatasetID, string(sectionsJSON), string(tablesJSON),
		string(refsJSON), ex.PageCount, ex.WordCount, ex.QualityScore, ex.QualityGrade,
		ex.PDFSHA256, now)
	if err != nil {
		return fmt.Errorf("storing extraction for publication %d: %w", ex.PublicationID, err)
	}
	return nil
}

// GetExtraction returns the extraction for one (publication, dataset) pair,
// or ErrNotFound.
func (s *Store) GetExtraction(ctx context.Context, publicationID int64, datasetID string) (*types.ContentExtraction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT publication_id, dataset_id, sections, tables, refs, page_count, word_count, quality_score, quality_grade, pdf_sha256, created_at
		 FROM content_extractions WHERE publication_id = ? AND dataset_id = ?`,
		publicationID, datasetID)

	ex, err := scanExtraction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("extraction for publication %d: %w", publicationID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading extraction: %w", err)
	}
	return ex, nil
}

func scanExtraction(scan func(...any) error) (*types.ContentExtraction, error) {
	var ex types.ContentExtraction
	var sections, tables, refs, created string
	if err := scan(&ex.PublicationID, &ex.DatasetID, &sections, &tables, &refs,
		&ex.PageCount, &ex.WordCount, &ex.QualityScore, &ex.QualityGrade,
		&ex.PDFSHA256, &created); err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(sections), &ex.Sections)
	json.Unmarshal([]byte(tables), &ex.Tables)
	json.Unmarshal([]byte(refs), &ex.References)
	ex.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return &ex, nil
}
