// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Stage names the pipeline stages as they appear in the event log.
type Stage string

const (
	StageDiscovery  Stage = "discovery"
	StageCollection Stage = "url_collection"
	StageDownload   Stage = "download"
	StageExtraction Stage = "extraction"
)

// EventType classifies a pipeline event.
type EventType string

const (
	EventStart   EventType = "start"
	EventSuccess EventType = "success"
	EventFailure EventType = "failure"
	EventSkip    EventType = "skip"
)

// PipelineEvent is one append-only audit record. Entries are totally
// ordered by their surrogate key and never mutated after write.
type PipelineEvent struct {
	ID        int64  `json:"id" yaml:"id"`
	RunID     string `json:"run_id" yaml:"run_id"`
	DatasetID string `json:"dataset_id" yaml:"dataset_id"`

	// PublicationID is zero for dataset-level events.
	PublicationID int64 `json:"publication_id,omitempty" yaml:"publication_id,omitempty"`

	Stage      Stage     `json:"stage" yaml:"stage"`
	Type       EventType `json:"type" yaml:"type"`
	Message    string    `json:"message" yaml:"message"`
	DurationMS int64     `json:"duration_ms" yaml:"duration_ms"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// SourceMetric holds running counters for one external provider, persisted
// across runs and updated atomically at the end of each call.
type SourceMetric struct {
	Source             string  `json:"source" yaml:"source"`
	TotalRequests      int64   `json:"total_requests" yaml:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests" yaml:"successful_requests"`
	FailedRequests     int64   `json:"failed_requests" yaml:"failed_requests"`
	TotalSeconds       float64 `json:"total_seconds" yaml:"total_seconds"`
	PapersReturned     int64   `json:"papers_returned" yaml:"papers_returned"`
	UniquePapers       int64   `json:"unique_papers" yaml:"unique_papers"`
	SupportsBatch      bool    `json:"supports_batch" yaml:"supports_batch"`
}

// SuccessRate returns successful/total, or 1.0 when no calls were made.
func (m SourceMetric) SuccessRate() float64 {
	if m.TotalRequests == 0 {
		return 1.0
	}
	return float64(m.SuccessfulRequests) / float64(m.TotalRequests)
}
