// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/corpus-engine/internal/ident"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// maxURLsPerPublication caps the stored URL list. The cap is also enforced
// upstream; this is the durable bound.
const maxURLsPerPublication = 64

// UpsertPublication inserts a publication or merges it into the existing
// row sharing its deduplication key. Merging fills empty fields only; a
// value already present wins over a later arrival. Returns the surrogate ID.
func (s *Store) UpsertPublication(ctx context.Context, pub types.Publication) (int64, error) {
	key := ident.DedupKey(pub)
	if key == "" {
		return 0, fmt.Errorf("publication has no identifier or title")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := upsertPublicationTx(ctx, tx, key, pub)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing publication upsert: %w", err)
	}
	return id, nil
}

func upsertPublicationTx(ctx context.Context, tx *sql.Tx, key string, pub types.Publication) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	authorsJSON, _ := json.Marshal(pub.Authors)

	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM publications WHERE dedup_key = ?`, key).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO publications (dedup_key, pmid, doi, pmcid, arxiv_id, title, authors, journal, year, provider_raw, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			key, ident.NormalizePMID(pub.PMID), ident.NormalizeDOI(pub.DOI),
			ident.NormalizePMC(pub.PMCID), ident.NormalizeArxiv(pub.ArxivID),
			pub.Title, string(authorsJSON), pub.Journal, pub.Year,
			string(pub.ProviderRaw), now, now)
		if err != nil {
			return 0, fmt.Errorf("inserting publication: %w", err)
		}
		return res.LastInsertId()
	case err != nil:
		return 0, fmt.Errorf("looking up publication: %w", err)
	}

	// Merge: NULLIF makes empty incoming values lose to stored ones.
	_, err = tx.ExecContext(ctx,
		`UPDATE publications SET
			pmid     = COALESCE(NULLIF(pmid, ''), ?),
			doi      = COALESCE(NULLIF(doi, ''), ?),
			pmcid    = COALESCE(NULLIF(pmcid, ''), ?),
			arxiv_id = COALESCE(NULLIF(arxiv_id, ''), ?),
			title    = COALESCE(NULLIF(title, ''), ?),
			authors  = CASE WHEN authors IN ('', 'null', '[]') THEN ? ELSE authors END,
			journal  = COALESCE(NULLIF(journal, ''), ?),
			year     = CASE WHEN year = 0 THEN ? ELSE year END,
			provider_raw = COALESCE(NULLIF(provider_raw, ''), ?),
			updated_at = ?
		 WHERE id = ?`,
		ident.NormalizePMID(pub.PMID), ident.NormalizeDOI(pub.DOI),
		ident.NormalizePMC(pub.PMCID), ident.NormalizeArxiv(pub.ArxivID),
		pub.Title, string(authorsJSON), pub.Journal, pub.Year,
		string(pub.ProviderRaw), now, id)
	if err != nil {
		return 0, fmt.Errorf("merging publication: %w", err)
	}
	return id, nil
}

// Link associates a publication with a dataset, tagging the source that
// first produced the association. Re-linking keeps the first relationship
// and strategy; "original" links are created before "citing" ones, and an
// original paper that also cites stays original.
func (s *Store) Link(ctx context.Context, datasetID string, publicationID int64, rel types.Relationship, strategy string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO dataset_publications (dataset_id, publication_id, relationship, strategy)
		 VALUES (?, ?, ?, ?)`,
		datasetID, publicationID, string(rel), strategy)
	if err != nil {
		return fmt.Errorf("linking publication %d to %s: %w", publicationID, datasetID, err)
	}
	return nil
}

// LinkStrategy returns the strategy tag recorded for one link.
func (s *Store) LinkStrategy(ctx context.Context, datasetID string, publicationID int64) (string, error) {
	var strategy string
	err := s.db.QueryRowContext(ctx,
		`SELECT strategy FROM dataset_publications WHERE dataset_id = ? AND publication_id = ?`,
		datasetID, publicationID).Scan(&strategy)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("link %s/%d: %w", datasetID, publicationID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("reading link strategy: %w", err)
	}
	return strategy, nil
}

// GetPublication returns one publication row with its URL list.
func (s *Store) GetPublication(ctx context.Context, id int64) (*types.Publication, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, pmid, doi, pmcid, arxiv_id, title, authors, journal, year, provider_raw, urls
		 FROM publications WHERE id = ?`, id)
	pub, err := scanPublication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("publication %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading publication %d: %w", id, err)
	}
	return pub, nil
}

// PublicationsForDataset returns the dataset's publications grouped by
// relationship, ordered by surrogate ID for stable output.
func (s *Store) PublicationsForDataset(ctx context.Context, datasetID string) (*types.PublicationGroups, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.pmid, p.doi, p.pmcid, p.arxiv_id, p.title, p.authors, p.journal, p.year, p.provider_raw, p.urls,
			dp.relationship
		 FROM publications p
		 JOIN dataset_publications dp ON dp.publication_id = p.id
		 WHERE dp.dataset_id = ?
		 ORDER BY p.id`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("listing publications for %s: %w", datasetID, err)
	}
	defer rows.Close()

	var groups types.PublicationGroups
	for rows.Next() {
		var pub types.Publication
		var authors, raw, urls, rel string
		if err := rows.Scan(&pub.ID, &pub.PMID, &pub.DOI, &pub.PMCID, &pub.ArxivID,
			&pub.Title, &authors, &pub.Journal, &pub.Year, &raw, &urls, &rel); err != nil {
			return nil, fmt.Errorf("scanning publication: %w", err)
		}
		fillPublication(&pub, authors, raw, urls)
		if types.Relationship(rel) == types.RelOriginal {
			groups.Original = append(groups.Original, pub)
		} else {
			groups.Citing = append(groups.Citing, pub)
		}
	}
	return &groups, rows.Err()
}

// AppendURLs merges newly discovered URLs into the publication's stored
// list. Duplicate URL strings merge: the lower priority wins, confidence
// takes the max, and a concrete shape replaces unknown. The list is capped;
// merges past the cap drop the worst-priority entries.
func (s *Store) AppendURLs(ctx context.Context, publicationID int64, incoming []types.URLDescriptor) error {
	if len(incoming) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var urlsJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT urls FROM publications WHERE id = ?`, publicationID).Scan(&urlsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("publication %d: %w", publicationID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading URLs for publication %d: %w", publicationID, err)
	}

	var existing []types.URLDescriptor
	if urlsJSON != "" && urlsJSON != "[]" {
		if err := json.Unmarshal([]byte(urlsJSON), &existing); err != nil {
			return fmt.Errorf("parsing stored URLs: %w", err)
		}
	}

	merged := MergeURLs(existing, incoming)
	out, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encoding URLs: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`UPDATE publications SET urls = ?, updated_at = ? WHERE id = ?`,
		string(out), now, publicationID); err != nil {
		return fmt.Errorf("writing URLs for publication %d: %w", publicationID, err)
	}
	return tx.Commit()
}

// MergeURLs merges incoming descriptors into existing ones, preserving the
// first-seen order of URL strings. Exported for the collection stage, which
// applies the same semantics before persisting.
func MergeURLs(existing, incoming []types.URLDescriptor) []types.URLDescriptor {
	index := make(map[string]int, len(existing))
	merged := make([]types.URLDescriptor, len(existing))
	copy(merged, existing)
	for i, d := range merged {
		index[d.URL] = i
	}

	for _, in := range incoming {
		if in.URL == "" {
			continue
		}
		i, ok := index[in.URL]
		if !ok {
			index[in.URL] = len(merged)
			merged = append(merged, in)
			continue
		}
		cur := &merged[i]
		if in.Priority < cur.Priority {
			cur.Priority = in.Priority
		}
		if in.Confidence > cur.Confidence {
			cur.Confidence = in.Confidence
		}
		if cur.Shape == types.ShapeUnknown && in.Shape != types.ShapeUnknown {
			cur.Shape = in.Shape
		}
	}

	if len(merged) > maxURLsPerPublication {
		merged = worstTrimmed(merged, maxURLsPerPublication)
	}
	return merged
}

// worstTrimmed drops the worst-priority descriptors until n remain,
// keeping the relative order of survivors.
func worstTrimmed(urls []types.URLDescriptor, n int) []types.URLDescriptor {
	for len(urls) > n {
		worst := 0
		for i, d := range urls {
			if d.Priority > urls[worst].Priority {
				worst = i
			}
		}
		urls = append(urls[:worst], urls[worst+1:]...)
	}
	return urls
}

func scanPublication(row *sql.Row) (*types.Publication, error) {
	var pub types.Publication
	var authors, raw, urls string
	if err := row.Scan(&pub.ID, &pub.PMID, &pub.DOI, &pub.PMCID, &pub.ArxivID,
		&pub.Title, &authors, &pub.Journal, &pub.Year, &raw, &urls); err != nil {
		return nil, err
	}
	fillPublication(&pub, authors, raw, urls)
	return &pub, nil
}

func fillPublication(pub *types.Publication, authors, raw, urls string) {
	if authors != "" && authors != "null" {
		json.Unmarshal([]byte(authors), &pub.Authors)
	}
	if raw != "" {
		pub.ProviderRaw = []byte(raw)
	}
	if urls != "" && urls != "[]" {
		json.Unmarshal([]byte(urls), &pub.URLs)
	}
}
