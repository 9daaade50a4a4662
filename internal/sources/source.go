// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources implements one client per external provider: the dataset
// catalog, PMID metadata, five citation-discovery services, and the URL/PDF
// providers. Every client normalizes provider responses into the shared
// publication and URL-descriptor shapes and reports one metric row per call.
package sources

import (
	"context"
	"strings"
	"time"

	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// Priority classes drive the coordinator's adaptive policy. CRITICAL
// sources always run; FALLBACK sources run only after higher classes fail.
type Priority int

const (
	Critical Priority = iota
	High
	Medium
	Low
	Fallback
)

func (p Priority) String() string {
	switch p {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	default:
		return "fallback"
	}
}

// Status is the outcome of one source call. Skipped means a prerequisite
// was missing (e.g. Unpaywall without a DOI) and is not a failure.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// CitationResult is what a citation source returns for one seed.
type CitationResult struct {
	Status       Status
	Publications []types.Publication
	Err          error
}

// URLResult is what a URL source returns for one publication.
type URLResult struct {
	Status Status
	URLs   []types.URLDescriptor
	Err    error
}

// Skipped builds a skipped CitationResult.
func skippedCitations() CitationResult { return CitationResult{Status: StatusSkipped} }

// failedCitations builds a failed CitationResult.
func failedCitations(err error) CitationResult {
	return CitationResult{Status: StatusFailed, Err: err}
}

func skippedURLs() URLResult          { return URLResult{Status: StatusSkipped} }
func failedURLs(err error) URLResult  { return URLResult{Status: StatusFailed, Err: err} }
func okURLs(u []types.URLDescriptor) URLResult {
	return URLResult{Status: StatusOK, URLs: u}
}

// CitationSource discovers papers citing a seed publication.
type CitationSource interface {
	Name() string
	Priority() Priority
	Citations(ctx context.Context, seed types.Publication) CitationResult
}

// URLSource discovers candidate full-text URLs for one publication.
type URLSource interface {
	Name() string
	// BasePriority seeds URL descriptor priorities before shape adjustment;
	// lower is better.
	BasePriority() int
	URLs(ctx context.Context, pub types.Publication) URLResult
}

// MetricRecorder receives one record per source call. The store implements
// this; tests substitute a fake.
type MetricRecorder interface {
	RecordSourceCall(source string, ok bool, elapsed time.Duration, papersReturned int, supportsBatch bool)
}

// nopRecorder is used when no recorder is wired.
type nopRecorder struct{}

func (nopRecorder) RecordSourceCall(string, bool, time.Duration, int, bool) {}

// Set bundles the configured source clients plus the catalog and metadata
// clients the coordinator calls directly.
type Set struct {
	Catalog  *GEOClient
	PubMed   *PubMedClient
	Citation []CitationSource
	URL      []URLSource
}

// NewSet wires every enabled source against the shared HTTP client.
func NewSet(client *httputil.Client, cfg types.SourcesConfig, rec MetricRecorder) *Set {
	if rec == nil {
		rec = nopRecorder{}
	}

	geo := NewGEOClient(client, cfg.NCBIAPIKey, rec)
	pubmed := NewPubMedClient(client, cfg.NCBIAPIKey, rec)
	openalex := NewOpenAlexClient(client, cfg.OpenAlexEmail, rec)

	citation := []CitationSource{
		openalex,
		NewSemanticScholarClient(client, cfg.SemanticScholarAPIKey, rec),
		NewEuropePMCClient(client, rec),
		NewOpenCitationsClient(client, rec),
		pubmed,
	}

	urls := []URLSource{
		NewPMCURLSource(client, rec),
		NewUnpaywallClient(client, cfg.UnpaywallEmail, rec),
		openalex.OA(),
		NewPreprintURLSource(client, rec),
		NewCrossrefURLSource(),
	}
	if cfg.COREAPIKey != "" {
		urls = append(urls, NewCOREClient(client, cfg.COREAPIKey, rec))
	}
	if cfg.InstitutionalProxyURL != "" {
		urls = append(urls, NewInstitutionalURLSource(client))
	}
	if cfg.EnableSciHub {
		urls = append(urls, NewSciHubURLSource())
	}
	if cfg.EnableLibGen {
		urls = append(urls, NewLibGenURLSource())
	}

	return &Set{Catalog: geo, PubMed: pubmed, Citation: citation, URL: urls}
}

// splitTrim splits s on sep, trimming whitespace and trailing periods.
func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSuffix(strings.TrimSpace(p), ".")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// record wraps a call with metric bookkeeping.
func record(rec MetricRecorder, source string, supportsBatch bool, start time.Time, ok bool, papers int) {
	rec.RecordSourceCall(source, ok, time.Since(start), papers, supportsBatch)
}
