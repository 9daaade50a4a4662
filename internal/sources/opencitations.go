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

// OpenCitations endpoints. Declared as vars so tests can substitute
// httptest servers.
var (
	openCitationsIndexBase = "https://opencitations.net/index/api/v2/citations"
	openCitationsMetaBase  = "https://opencitations.net/meta/api/v1/metadata"
)

// openCitationsMetaBatch is how many DOIs fit in one metadata request;
// more hits the request URL length limit.
const openCitationsMetaBatch = 10

// OpenCitationsClient discovers citations by DOI via the OpenCitations
// index, then hydrates metadata through the Meta batch endpoint.
type OpenCitationsClient struct {
	client *httputil.Client
	rec    MetricRecorder
}

// NewOpenCitationsClient builds an OpenCitations client. No auth required.
func NewOpenCitationsClient(client *httputil.Client, rec MetricRecorder) *OpenCitationsClient {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &OpenCitationsClient{client: client, rec: rec}
}

// Name returns the source tag.
func (o *OpenCitationsClient) Name() string { return "opencitations" }

// Priority classifies OpenCitations for the adaptive policy.
func (o *OpenCitationsClient) Priority() Priority { return Medium }

// Citations returns papers citing the seed DOI. Seeds without a DOI are
// skipped; the OpenCitations index is DOI-keyed.
func (o *OpenCitationsClient) Citations(ctx context.Context, seed types.Publication) CitationResult {
	doi := ident.NormalizeDOI(seed.DOI)
	if doi == "" {
		return skippedCitations()
	}

	start := time.Now()
	pubs, err := o.citations(ctx, doi)
	record(o.rec, o.Name(), true, start, err == nil, len(pubs))
	if err != nil {
		return failedCitations(err)
	}
	return CitationResult{Status: StatusOK, Publications: pubs}
}

func (o *OpenCitationsClient) citations(ctx context.Context, doi string) ([]types.Publication, error) {
	resp, err := o.client.Get(ctx, openCitationsIndexBase+"/doi:"+doi, nil)
	if err != nil {
		return nil, fmt.Errorf("OpenCitations index: %w", err)
	}

	var entries []openCitationsEntry
	if err := json.Unmarshal(resp.Body, &entries); err != nil {
		return nil, fmt.Errorf("parsing OpenCitations response: %w", err)
	}

	// The citing field is a space-separated identifier cluster
	// ("omid:br/06... doi:10.x/y pmid:123").
	var dois []string
	stubs := make(map[string]types.Publication)
	for _, entry := range entries {
		pub := parseIDCluster(entry.Citing)
		if pub.DOI != "" {
			dois = append(dois, pub.DOI)
			stubs[pub.DOI] = pub
		} else if pub.HasIdentifier() {
			stubs[entry.Citing] = pub
		}
	}

	// Hydrate DOIs through the Meta batch endpoint, 10 per call. Metadata
	// failures degrade to identifier stubs.
	for start := 0; start < len(dois); start += openCitationsMetaBatch {
		end := start + openCitationsMetaBatch
		if end > len(dois) {
			end = len(dois)
		}
		metas, err := o.metadataBatch(ctx, dois[start:end])
		if err != nil {
			continue
		}
		for _, m := range metas {
			if m.DOI != "" {
				stubs[m.DOI] = m
			}
		}
	}

	pubs := make([]types.Publication, 0, len(stubs))
	for _, pub := range stubs {
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

// metadataBatch fetches Meta records for up to 10 DOIs in one request.
func (o *OpenCitationsClient) metadataBatch(ctx context.Context, dois []string) ([]types.Publication, error) {
	ids := make([]string, len(dois))
	for i, d := range dois {
		ids[i] = "doi:" + d
	}

	resp, err := o.client.Get(ctx, openCitationsMetaBase+"/"+strings.Join(ids, "__"), nil)
	if err != nil {
		return nil, fmt.Errorf("OpenCitations meta: %w", err)
	}

	var entries []openCitationsMetaEntry
	if err := json.Unmarshal(resp.Body, &entries); err != nil {
		return nil, fmt.Errorf("parsing OpenCitations meta response: %w", err)
	}

	var pubs []types.Publication
	for _, entry := range entries {
		pub := parseIDCluster(entry.ID)
		pub.Title = entry.Title
		pub.Journal = entry.Venue
		if len(entry.PubDate) >= 4 {
			fmt.Sscanf(entry.PubDate[:4], "%d", &pub.Year)
		}
		for _, a := range strings.Split(entry.Author, ";") {
			a = strings.TrimSpace(a)
			if a != "" {
				pub.Authors = append(pub.Authors, a)
			}
		}
		if raw, err := json.Marshal(entry); err == nil {
			pub.ProviderRaw = raw
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

// parseIDCluster extracts identifiers from a space-separated cluster of
// prefixed IDs.
func parseIDCluster(cluster string) types.Publication {
	var pub types.Publication
	for _, tok := range strings.Fields(cluster) {
		switch {
		case strings.HasPrefix(tok, "doi:"):
			pub.DOI = ident.NormalizeDOI(strings.TrimPrefix(tok, "doi:"))
		case strings.HasPrefix(tok, "pmid:"):
			pub.PMID = ident.NormalizePMID(strings.TrimPrefix(tok, "pmid:"))
		case strings.HasPrefix(tok, "pmcid:"):
			pub.PMCID = ident.NormalizePMC(strings.TrimPrefix(tok, "pmcid:"))
		}
	}
	return pub
}

// OpenCitations API JSON structures.
type openCitationsEntry struct {
	Citing   string `json:"citing"`
	Cited    string `json:"cited"`
	Creation string `json:"creation"`
}

type openCitationsMetaEntry struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Venue   string `json:"venue"`
	PubDate string `json:"pub_date"`
}
