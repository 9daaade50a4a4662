// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the corpus-engine pipeline:
// datasets, publications, download attempts, extractions, pipeline events,
// source metrics, and the aggregate view served to frontend consumers.
package types

import (
	"encoding/json"
	"time"
)

// ProcessingStatus tracks where a dataset is in the pipeline lifecycle.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Dataset is an entry in the functional-genomics catalog, keyed by its
// external accession (e.g. "GSE189158"). Counters are a materialized cache
// of row counts and may be recomputed from the underlying tables.
type Dataset struct {
	// ID is the external catalog accession.
	ID string `json:"id" yaml:"id"`

	// Title is the dataset title as returned by the catalog.
	Title string `json:"title" yaml:"title"`

	// Organism is the source organism (e.g. "Homo sapiens").
	Organism string `json:"organism" yaml:"organism"`

	// Platform is the assay platform accession or name.
	Platform string `json:"platform" yaml:"platform"`

	// SampleCount is the number of samples in the dataset.
	SampleCount int `json:"sample_count" yaml:"sample_count"`

	// SubmissionDate is the catalog submission date.
	SubmissionDate string `json:"submission_date" yaml:"submission_date"`

	// PublicationCount counts linked publications (original plus citing).
	PublicationCount int `json:"publication_count" yaml:"publication_count"`

	// PDFsDownloaded counts publications with at least one successful download.
	PDFsDownloaded int `json:"pdfs_downloaded" yaml:"pdfs_downloaded"`

	// PDFsExtracted counts publications with a content extraction row.
	PDFsExtracted int `json:"pdfs_extracted" yaml:"pdfs_extracted"`

	// Status is the pipeline processing status.
	Status ProcessingStatus `json:"status" yaml:"status"`

	// ProviderRaw is the opaque catalog metadata as returned by the provider.
	ProviderRaw json.RawMessage `json:"provider_raw,omitempty" yaml:"-"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}
