// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/internal/ident"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// Preprint server endpoints. Declared as vars so tests can substitute
// httptest servers.
var (
	biorxivAPIBase = "https://api.biorxiv.org/details"
	arxivPDFBase   = "https://arxiv.org/pdf/"
)

// PreprintURLSource finds preprint PDFs. arXiv IDs map directly onto the
// PDF URL scheme; bioRxiv and medRxiv DOIs (prefix 10.1101) go through the
// details API to learn the versioned content URL.
type PreprintURLSource struct {
	client *httputil.Client
	rec    MetricRecorder
}

// NewPreprintURLSource builds the preprint source. No auth required.
func NewPreprintURLSource(client *httputil.Client, rec MetricRecorder) *PreprintURLSource {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &PreprintURLSource{client: client, rec: rec}
}

// Name returns the source tag.
func (p *PreprintURLSource) Name() string { return "preprint" }

// BasePriority seeds preprint URL priorities.
func (p *PreprintURLSource) BasePriority() int { return 4 }

// URLs returns preprint PDF candidates. Skipped for publications that are
// neither arXiv papers nor Cold Spring Harbor preprints.
func (p *PreprintURLSource) URLs(ctx context.Context, pub types.Publication) URLResult {
	if arxivID := ident.NormalizeArxiv(pub.ArxivID); arxivID != "" {
		return okURLs([]types.URLDescriptor{{
			URL:        arxivPDFBase + arxivID,
			Source:     p.Name(),
			Shape:      types.ShapePDFDirect,
			Confidence: 0.95,
		}})
	}

	doi := ident.NormalizeDOI(pub.DOI)
	if !strings.HasPrefix(doi, "10.1101/") {
		return skippedURLs()
	}

	start := time.Now()
	urls, err := p.biorxivURLs(ctx, doi)
	record(p.rec, p.Name(), false, start, err == nil, 0)
	if err != nil {
		return failedURLs(err)
	}
	if len(urls) == 0 {
		return skippedURLs()
	}
	return okURLs(urls)
}

// biorxivURLs resolves a 10.1101 DOI through the bioRxiv details API.
// Unknown DOIs are retried against the medrxiv server, which shares the
// DOI prefix.
func (p *PreprintURLSource) biorxivURLs(ctx context.Context, doi string) ([]types.URLDescriptor, error) {
	for _, server := range []string{"biorxiv", "medrxiv"} {
		reqURL := fmt.Sprintf("%s/%s/%s", biorxivAPIBase, server, doi)
		resp, err := p.client.Get(ctx, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("bioRxiv details: %w", err)
		}

		var env biorxivResponse
		if err := json.Unmarshal(resp.Body, &env); err != nil {
			return nil, fmt.Errorf("parsing bioRxiv response: %w", err)
		}
		if len(env.Collection) == 0 {
			continue
		}

		// The collection lists one entry per version; the last is newest.
		latest := env.Collection[len(env.Collection)-1]
		pdfURL := fmt.Sprintf("https://www.%s.org/content/%sv%s.full.pdf", server, doi, latest.Version)
		return []types.URLDescriptor{{
			URL:        pdfURL,
			Source:     p.Name(),
			Shape:      types.ShapePDFDirect,
			Confidence: 0.9,
		}}, nil
	}
	return nil, nil
}

// bioRxiv API JSON structures.
type biorxivResponse struct {
	Collection []struct {
		DOI     string `json:"doi"`
		Version string `json:"version"`
		Server  string `json:"server"`
	} `json:"collection"`
}
