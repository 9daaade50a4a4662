// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"time"
)

// URLShape classifies what a discovered URL points at.
type URLShape string

const (
	ShapePDFDirect    URLShape = "pdf_direct"
	ShapeHTMLFullText URLShape = "html_fulltext"
	ShapeLandingPage  URLShape = "landing_page"
	ShapeDOIResolver  URLShape = "doi_resolver"
	ShapeUnknown      URLShape = "unknown"
)

// URLDescriptor is one candidate location for a publication's full text.
// Within one publication the URL string is unique; lower Priority is better.
type URLDescriptor struct {
	URL string `json:"url" yaml:"url"`

	// Source is the provider tag that produced this URL (e.g. "unpaywall").
	Source string `json:"source" yaml:"source"`

	// Priority orders the download waterfall; 1 is best. Values are not
	// required to be dense.
	Priority int `json:"priority" yaml:"priority"`

	Shape URLShape `json:"shape" yaml:"shape"`

	// Confidence is the source's confidence that the URL yields full text,
	// in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// RequiresAuth marks URLs that need institutional or proxy access.
	RequiresAuth bool `json:"requires_auth,omitempty" yaml:"requires_auth,omitempty"`

	// Meta is a small opaque metadata bag (license, OA status, version).
	Meta map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// Publication is a scientific article identified by any of PMID, DOI,
// PMC ID, or arXiv ID. It exists independently of any dataset.
type Publication struct {
	// ID is the surrogate store key; zero until persisted.
	ID int64 `json:"id" yaml:"id"`

	PMID    string `json:"pmid,omitempty" yaml:"pmid,omitempty"`
	DOI     string `json:"doi,omitempty" yaml:"doi,omitempty"`
	PMCID   string `json:"pmc_id,omitempty" yaml:"pmc_id,omitempty"`
	ArxivID string `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`

	Title   string   `json:"title,omitempty" yaml:"title,omitempty"`
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Journal string   `json:"journal,omitempty" yaml:"journal,omitempty"`
	Year    int      `json:"year,omitempty" yaml:"year,omitempty"`

	// ProviderRaw is opaque metadata from whichever source first produced
	// this record. Business logic never branches on its contents.
	ProviderRaw json.RawMessage `json:"provider_raw,omitempty" yaml:"-"`

	// URLs is the accumulated list of candidate full-text locations,
	// unique by URL string and capped by configuration.
	URLs []URLDescriptor `json:"urls,omitempty" yaml:"urls,omitempty"`
}

// HasIdentifier reports whether the publication carries at least one
// external identifier usable for lookup or deduplication.
func (p Publication) HasIdentifier() bool {
	return p.PMID != "" || p.DOI != "" || p.PMCID != "" || p.ArxivID != ""
}

// Relationship links a publication to a dataset: the paper that produced
// the dataset versus a paper that later cites it.
type Relationship string

const (
	RelOriginal Relationship = "original"
	RelCiting   Relationship = "citing"
)

// DownloadStatus is the outcome of one download attempt.
type DownloadStatus string

const (
	DownloadSuccess DownloadStatus = "success"
	DownloadFailed  DownloadStatus = "failed"
	DownloadRetry   DownloadStatus = "retry"
	DownloadSkipped DownloadStatus = "skipped"
)

// DownloadAttempt is one append-only record of a fetch against one URL.
// Rows are never updated or deleted.
type DownloadAttempt struct {
	ID            int64          `json:"id" yaml:"id"`
	PublicationID int64          `json:"publication_id" yaml:"publication_id"`
	URL           string         `json:"url" yaml:"url"`
	Source        string         `json:"source" yaml:"source"`
	Status        DownloadStatus `json:"status" yaml:"status"`

	// FilePath and FileSize are set on success.
	FilePath string `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	FileSize int64  `json:"file_size,omitempty" yaml:"file_size,omitempty"`

	// Error holds the failure detail when Status is failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// AttemptNumber increases monotonically per (publication, url).
	AttemptNumber int `json:"attempt_number" yaml:"attempt_number"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}
