// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/internal/ident"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// europePMCBase is the Europe PMC REST search endpoint. Declared as a var
// so tests can substitute an httptest server.
var europePMCBase = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"

const (
	europePMCPageSize = 100
	europePMCMaxPages = 5
)

// EuropePMCClient discovers citations via the REST search API's cites:
// query, which accepts either a PMID (MED source) or a DOI.
type EuropePMCClient struct {
	client *httputil.Client
	rec    MetricRecorder
}

// NewEuropePMCClient builds a Europe PMC client. No auth required.
func NewEuropePMCClient(client *httputil.Client, rec MetricRecorder) *EuropePMCClient {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &EuropePMCClient{client: client, rec: rec}
}

// Name returns the source tag.
func (e *EuropePMCClient) Name() string { return "europepmc" }

// Priority classifies Europe PMC for the adaptive policy.
func (e *EuropePMCClient) Priority() Priority { return High }

// Citations returns papers citing the seed by PMID or DOI.
func (e *EuropePMCClient) Citations(ctx context.Context, seed types.Publication) CitationResult {
	var query string
	if pmid := ident.NormalizePMID(seed.PMID); pmid != "" {
		query = fmt.Sprintf("cites:%s_MED", pmid)
	} else if doi := ident.NormalizeDOI(seed.DOI); doi != "" {
		query = fmt.Sprintf(`cites_doi:"%s"`, doi)
	} else {
		return skippedCitations()
	}

	start := time.Now()
	pubs, err := e.search(ctx, query)
	record(e.rec, e.Name(), false, start, err == nil, len(pubs))
	if err != nil {
		return failedCitations(err)
	}
	return CitationResult{Status: StatusOK, Publications: pubs}
}

func (e *EuropePMCClient) search(ctx context.Context, query string) ([]types.Publication, error) {
	var pubs []types.Publication
	cursor := "*"
	for page := 0; page < europePMCMaxPages && cursor != ""; page++ {
		params := url.Values{
			"query":      {query},
			"format":     {"json"},
			"pageSize":   {fmt.Sprintf("%d", europePMCPageSize)},
			"cursorMark": {cursor},
		}

		resp, err := e.client.Get(ctx, europePMCBase+"?"+params.Encode(), nil)
		if err != nil {
			return pubs, fmt.Errorf("Europe PMC search: %w", err)
		}

		var env europePMCResponse
		if err := json.Unmarshal(resp.Body, &env); err != nil {
			return pubs, fmt.Errorf("parsing Europe PMC response: %w", err)
		}

		for _, r := range env.ResultList.Results {
			pubs = append(pubs, r.toPublication())
		}

		if env.NextCursorMark == "" || env.NextCursorMark == cursor || len(env.ResultList.Results) == 0 {
			break
		}
		cursor = env.NextCursorMark
	}
	return pubs, nil
}

// Europe PMC API JSON structures.
type europePMCResponse struct {
	HitCount       int    `json:"hitCount"`
	NextCursorMark string `json:"nextCursorMark"`
	ResultList     struct {
		Results []europePMCResult `json:"result"`
	} `json:"resultList"`
}

type europePMCResult struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	PMID         string `json:"pmid"`
	PMCID        string `json:"pmcid"`
	DOI          string `json:"doi"`
	Title        string `json:"title"`
	AuthorString string `json:"authorString"`
	JournalTitle string `json:"journalTitle"`
	PubYear      string `json:"pubYear"`
}

// toPublication normalizes a Europe PMC result into the shared shape.
func (r europePMCResult) toPublication() types.Publication {
	pub := types.Publication{
		PMID:    ident.NormalizePMID(r.PMID),
		PMCID:   ident.NormalizePMC(r.PMCID),
		DOI:     ident.NormalizeDOI(r.DOI),
		Title:   r.Title,
		Journal: r.JournalTitle,
	}
	if r.AuthorString != "" {
		pub.Authors = splitAuthorString(r.AuthorString)
	}
	fmt.Sscanf(r.PubYear, "%d", &pub.Year)
	if raw, err := json.Marshal(r); err == nil {
		pub.ProviderRaw = raw
	}
	return pub
}

// splitAuthorString splits Europe PMC's "A, B, C." author string.
func splitAuthorString(s string) []string {
	var authors []string
	for _, part := range splitTrim(s, ",") {
		if part != "" && part != "." {
			authors = append(authors, part)
		}
	}
	return authors
}
