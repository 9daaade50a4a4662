// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/internal/ident"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// semanticBase is the Semantic Scholar graph API base. Declared as a var
// so tests can substitute an httptest server.
var semanticBase = "https://api.semanticscholar.org/graph/v1/paper"

const (
	semanticFields   = "title,year,journal,authors,externalIds"
	semanticPageSize = 100
	semanticMaxPages = 5
)

// SemanticScholarClient discovers citations by DOI or PMID via the graph
// API's /citations endpoint.
type SemanticScholarClient struct {
	client *httputil.Client
	apiKey string
	rec    MetricRecorder
}

// NewSemanticScholarClient builds a Semantic Scholar client. apiKey is
// optional; without it the shared limiter stays at 1 req/s.
func NewSemanticScholarClient(client *httputil.Client, apiKey string, rec MetricRecorder) *SemanticScholarClient {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &SemanticScholarClient{client: client, apiKey: apiKey, rec: rec}
}

// Name returns the source tag.
func (s *SemanticScholarClient) Name() string { return "semantic_scholar" }

// Priority classifies Semantic Scholar for the adaptive policy.
func (s *SemanticScholarClient) Priority() Priority { return High }

// Citations returns papers citing the seed, looked up by DOI when present,
// else PMID. A seed with neither is skipped.
func (s *SemanticScholarClient) Citations(ctx context.Context, seed types.Publication) CitationResult {
	var paperID string
	if doi := ident.NormalizeDOI(seed.DOI); doi != "" {
		paperID = "DOI:" + doi
	} else if pmid := ident.NormalizePMID(seed.PMID); pmid != "" {
		paperID = "PMID:" + pmid
	} else {
		return skippedCitations()
	}

	start := time.Now()
	pubs, err := s.citations(ctx, paperID)
	record(s.rec, s.Name(), false, start, err == nil, len(pubs))
	if err != nil {
		return failedCitations(err)
	}
	return CitationResult{Status: StatusOK, Publications: pubs}
}

func (s *SemanticScholarClient) citations(ctx context.Context, paperID string) ([]types.Publication, error) {
	headers := map[string]string{}
	if s.apiKey != "" {
		headers["x-api-key"] = s.apiKey
	}

	var pubs []types.Publication
	for page := 0; page < semanticMaxPages; page++ {
		reqURL := fmt.Sprintf("%s/%s/citations?fields=%s&limit=%d&offset=%d",
			semanticBase, paperID, semanticFields, semanticPageSize, page*semanticPageSize)

		resp, err := s.client.Get(ctx, reqURL, headers)
		if err != nil {
			return pubs, fmt.Errorf("Semantic Scholar citations: %w", err)
		}

		var env semanticCitationsResponse
		if err := json.Unmarshal(resp.Body, &env); err != nil {
			return pubs, fmt.Errorf("parsing Semantic Scholar response: %w", err)
		}

		for _, item := range env.Data {
			pubs = append(pubs, item.CitingPaper.toPublication())
		}
		if env.Next == 0 || len(env.Data) < semanticPageSize {
			break
		}
	}
	return pubs, nil
}

// Semantic Scholar API JSON structures.
type semanticCitationsResponse struct {
	Offset int                    `json:"offset"`
	Next   int                    `json:"next"`
	Data   []semanticCitationItem `json:"data"`
}

type semanticCitationItem struct {
	CitingPaper semanticPaper `json:"citingPaper"`
}

type semanticPaper struct {
	PaperID string `json:"paperId"`
	Title   string `json:"title"`
	Year    int    `json:"year"`
	Journal struct {
		Name string `json:"name"`
	} `json:"journal"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ExternalIDs struct {
		DOI      string `json:"DOI"`
		PubMed   string `json:"PubMed"`
		PMCID    string `json:"PubMedCentral"`
		ArXiv    string `json:"ArXiv"`
		CorpusID int    `json:"CorpusId"`
	} `json:"externalIds"`
}

// toPublication normalizes a Semantic Scholar paper into the shared shape.
func (p semanticPaper) toPublication() types.Publication {
	pub := types.Publication{
		Title:   p.Title,
		Year:    p.Year,
		Journal: p.Journal.Name,
		DOI:     ident.NormalizeDOI(p.ExternalIDs.DOI),
		PMID:    ident.NormalizePMID(p.ExternalIDs.PubMed),
		PMCID:   ident.NormalizePMC(p.ExternalIDs.PMCID),
		ArxivID: ident.NormalizeArxiv(p.ExternalIDs.ArXiv),
	}
	for _, a := range p.Authors {
		if a.Name != "" {
			pub.Authors = append(pub.Authors, a.Name)
		}
	}
	if raw, err := json.Marshal(p); err == nil {
		pub.ProviderRaw = raw
	}
	return pub
}
