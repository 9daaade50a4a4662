// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/internal/ident"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// openAlexBase is the OpenAlex works endpoint. Declared as a var so tests
// can substitute an httptest server.
var openAlexBase = "https://api.openalex.org/works"

// openAlexMaxPages caps citation paging; 200 works per page.
const openAlexMaxPages = 5

// OpenAlexClient discovers citations by DOI and open-access URLs via the
// OpenAlex works API. Citation lookup resolves the DOI to a work ID first,
// then pages through filter=cites:W... results.
type OpenAlexClient struct {
	client *httputil.Client
	email  string
	rec    MetricRecorder
}

// NewOpenAlexClient builds an OpenAlex client. email joins the polite pool.
func NewOpenAlexClient(client *httputil.Client, email string, rec MetricRecorder) *OpenAlexClient {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &OpenAlexClient{client: client, email: email, rec: rec}
}

// Name returns the citation source tag.
func (o *OpenAlexClient) Name() string { return "openalex" }

// Priority classifies OpenAlex for the adaptive policy.
func (o *OpenAlexClient) Priority() Priority { return High }

// Citations returns papers citing the seed. A seed without a DOI is
// skipped; OpenAlex citation lookup is DOI-keyed.
func (o *OpenAlexClient) Citations(ctx context.Context, seed types.Publication) CitationResult {
	doi := ident.NormalizeDOI(seed.DOI)
	if doi == "" {
		return skippedCitations()
	}

	start := time.Now()
	pubs, err := o.citations(ctx, doi)
	record(o.rec, o.Name(), false, start, err == nil, len(pubs))
	if err != nil {
		return failedCitations(err)
	}
	return CitationResult{Status: StatusOK, Publications: pubs}
}

func (o *OpenAlexClient) citations(ctx context.Context, doi string) ([]types.Publication, error) {
	work, err := o.fetchWork(ctx, doi)
	if err != nil {
		return nil, fmt.Errorf("resolving DOI %s: %w", doi, err)
	}
	workID := strings.TrimPrefix(work.ID, "https://openalex.org/")
	if workID == "" {
		return nil, fmt.Errorf("no OpenAlex work for DOI %s", doi)
	}

	var pubs []types.Publication
	cursor := "*"
	for page := 0; page < openAlexMaxPages && cursor != ""; page++ {
		params := url.Values{
			"filter":   {"cites:" + workID},
			"per-page": {"200"},
			"cursor":   {cursor},
		}
		if o.email != "" {
			params.Set("mailto", o.email)
		}

		resp, err := o.client.Get(ctx, openAlexBase+"?"+params.Encode(), nil)
		if err != nil {
			return pubs, fmt.Errorf("OpenAlex cites query: %w", err)
		}

		var env openAlexListResponse
		if err := json.Unmarshal(resp.Body, &env); err != nil {
			return pubs, fmt.Errorf("parsing OpenAlex response: %w", err)
		}

		for _, w := range env.Results {
			pubs = append(pubs, w.toPublication())
		}
		cursor = env.Meta.NextCursor
		if len(env.Results) == 0 {
			break
		}
	}
	return pubs, nil
}

// fetchWork retrieves one work record by DOI.
func (o *OpenAlexClient) fetchWork(ctx context.Context, doi string) (*openAlexWork, error) {
	reqURL := openAlexBase + "/https://doi.org/" + doi
	if o.email != "" {
		reqURL += "?mailto=" + url.QueryEscape(o.email)
	}

	resp, err := o.client.Get(ctx, reqURL, nil)
	if err != nil {
		return nil, err
	}

	var work openAlexWork
	if err := json.Unmarshal(resp.Body, &work); err != nil {
		return nil, fmt.Errorf("parsing OpenAlex work: %w", err)
	}
	return &work, nil
}

// OA returns the open-access URL source backed by the same client.
func (o *OpenAlexClient) OA() URLSource { return &openAlexOA{o} }

// openAlexOA exposes OpenAlex OA locations as a URL source.
type openAlexOA struct {
	c *OpenAlexClient
}

func (s *openAlexOA) Name() string { return "openalex_oa" }

// BasePriority seeds URL priorities for OpenAlex OA locations.
func (s *openAlexOA) BasePriority() int { return 3 }

// URLs returns the work's open-access locations. Skipped without a DOI.
func (s *openAlexOA) URLs(ctx context.Context, pub types.Publication) URLResult {
	doi := ident.NormalizeDOI(pub.DOI)
	if doi == "" {
		return skippedURLs()
	}

	start := time.Now()
	work, err := s.c.fetchWork(ctx, doi)
	if err != nil {
		record(s.c.rec, s.Name(), false, start, false, 0)
		return failedURLs(fmt.Errorf("OpenAlex work fetch: %w", err))
	}

	var urls []types.URLDescriptor
	seen := map[string]bool{}
	add := func(raw string, confidence float64) {
		if raw == "" || seen[raw] {
			return
		}
		seen[raw] = true
		urls = append(urls, types.URLDescriptor{
			URL:        raw,
			Source:     s.Name(),
			Shape:      ident.ClassifyURL(raw),
			Confidence: confidence,
		})
	}

	if loc := work.BestOALocation; loc != nil {
		add(loc.PDFURL, 0.9)
		add(loc.LandingPageURL, 0.5)
	}
	for _, loc := range work.Locations {
		add(loc.PDFURL, 0.7)
	}

	record(s.c.rec, s.Name(), false, start, true, 0)
	return okURLs(urls)
}

// OpenAlex API JSON structures.
type openAlexListResponse struct {
	Meta struct {
		Count      int    `json:"count"`
		NextCursor string `json:"next_cursor"`
	} `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID              string               `json:"id"`
	DOI             string               `json:"doi"`
	Title           string               `json:"title"`
	PublicationYear int                  `json:"publication_year"`
	IDs             openAlexIDs          `json:"ids"`
	Authorships     []openAlexAuthorship `json:"authorships"`
	BestOALocation  *openAlexLocation    `json:"best_oa_location"`
	Locations       []openAlexLocation   `json:"locations"`
}

type openAlexIDs struct {
	PMID  string `json:"pmid"`
	PMCID string `json:"pmcid"`
}

type openAlexAuthorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

type openAlexLocation struct {
	PDFURL         string `json:"pdf_url"`
	LandingPageURL string `json:"landing_page_url"`
}

// toPublication normalizes an OpenAlex work into the shared shape.
func (w openAlexWork) toPublication() types.Publication {
	pub := types.Publication{
		Title: w.Title,
		DOI:   ident.NormalizeDOI(w.DOI),
		Year:  w.PublicationYear,
	}
	// OpenAlex serves PMIDs as pubmed.ncbi.nlm.nih.gov URLs.
	if w.IDs.PMID != "" {
		parts := strings.Split(strings.TrimSuffix(w.IDs.PMID, "/"), "/")
		pub.PMID = ident.NormalizePMID(parts[len(parts)-1])
	}
	if w.IDs.PMCID != "" {
		parts := strings.Split(strings.TrimSuffix(w.IDs.PMCID, "/"), "/")
		pub.PMCID = ident.NormalizePMC(parts[len(parts)-1])
	}
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			pub.Authors = append(pub.Authors, a.Author.DisplayName)
		}
	}
	if raw, err := json.Marshal(w); err == nil {
		pub.ProviderRaw = raw
	}
	return pub
}
