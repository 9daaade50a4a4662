// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// AppendEvent writes one pipeline event. Events are append-only and totally
// ordered by their surrogate key.
func (s *Store) AppendEvent(ctx context.Context, ev types.PipelineEvent) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_events (run_id, dataset_id, publication_id, stage, type, message, duration_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID, ev.DatasetID, ev.PublicationID, string(ev.Stage), string(ev.Type),
		ev.Message, ev.DurationMS, ev.Error, now)
	if err != nil {
		return fmt.Errorf("appending pipeline event: %w", err)
	}
	return nil
}

// EventFilter narrows an Events query. Zero values mean no constraint.
type EventFilter struct {
	RunID     string
	DatasetID string
	Stage     types.Stage
	Limit     int
}

// Events returns matching pipeline events in write order.
func (s *Store) Events(ctx context.Context, f EventFilter) ([]types.PipelineEvent, error) {
	query := `SELECT id, run_id, dataset_id, publication_id, stage, type, message, duration_ms, error, created_at
		 FROM pipeline_events WHERE 1=1`
	var args []any
	if f.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, f.RunID)
	}
	if f.DatasetID != "" {
		query += ` AND dataset_id = ?`
		args = append(args, f.DatasetID)
	}
	if f.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(f.Stage))
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []types.PipelineEvent
	for rows.Next() {
		var ev types.PipelineEvent
		var stage, typ, created string
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.DatasetID, &ev.PublicationID,
			&stage, &typ, &ev.Message, &ev.DurationMS, &ev.Error, &created); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Stage = types.Stage(stage)
		ev.Type = types.EventType(typ)
		ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// RecordSourceCall updates the running counters for one provider in a
// single upsert. Implements the recorder interface the source clients
// expect.
func (s *Store) RecordSourceCall(source string, ok bool, elapsed time.Duration, papersReturned int, supportsBatch bool) {
	success, failure := 0, 1
	if ok {
		success, failure = 1, 0
	}
	batch := 0
	if supportsBatch {
		batch = 1
	}

	// Source clients call this from request paths; a metrics write must
	// never fail the call, so errors are swallowed here.
	s.db.Exec(
		`INSERT INTO source_metrics (source, total_requests, successful_requests, failed_requests, total_seconds, papers_returned, supports_batch)
		 VALUES (?, 1, ?, ?, ?, ?, ?)
		 ON CONFLICT(source) DO UPDATE SET
			total_requests = total_requests + 1,
			successful_requests = successful_requests + excluded.successful_requests,
			failed_requests = failed_requests + excluded.failed_requests,
			total_seconds = total_seconds + excluded.total_seconds,
			papers_returned = papers_returned + excluded.papers_returned,
			supports_batch = MAX(supports_batch, excluded.supports_batch)`,
		source, success, failure, elapsed.Seconds(), papersReturned, batch)
}

// AddUniquePapers credits a source with papers that survived deduplication.
// The discovery stage calls this once per merge, since uniqueness is only
// known after merging across sources.
func (s *Store) AddUniquePapers(ctx context.Context, source string, n int) error {
	if n <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE source_metrics SET unique_papers = unique_papers + ? WHERE source = ?`,
		n, source)
	if err != nil {
		return fmt.Errorf("crediting unique papers to %s: %w", source, err)
	}
	return nil
}

// SourceMetrics returns all per-source counters, ordered by source name.
func (s *Store) SourceMetrics(ctx context.Context) ([]types.SourceMetric, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, total_requests, successful_requests, failed_requests, total_seconds, papers_returned, unique_papers, supports_batch
		 FROM source_metrics ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("listing source metrics: %w", err)
	}
	defer rows.Close()

	var metrics []types.SourceMetric
	for rows.Next() {
		var m types.SourceMetric
		var batch int
		if err := rows.Scan(&m.Source, &m.TotalRequests, &m.SuccessfulRequests,
			&m.FailedRequests, &m.TotalSeconds, &m.PapersReturned, &m.UniquePapers, &batch); err != nil {
			return nil, fmt.Errorf("scanning source metric: %w", err)
		}
		m.SupportsBatch = batch != 0
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// SourceMetric returns counters for one source, or ErrNotFound.
func (s *Store) SourceMetric(ctx context.Context, source string) (*types.SourceMetric, error) {
	metrics, err := s.SourceMetrics(ctx)
	if err != nil {
		return nil, err
	}
	for i := range metrics {
		if metrics[i].Source == source {
			return &metrics[i], nil
		}
	}
	return nil, fmt.Errorf("source %s: %w", source, ErrNotFound)
}
