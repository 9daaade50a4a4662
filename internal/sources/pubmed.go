// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/internal/ident"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// elinkBase is the E-utilities elink endpoint. Declared as a var so tests
// can substitute an httptest server.
var elinkBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/elink.fcgi"

const (
	// summaryBatchSize is the esummary cap per call.
	summaryBatchSize = 200

	// citedinBatchSize is how many citing PMIDs are hydrated per call.
	citedinBatchSize = 100
)

// PubMedClient fills publication metadata by PMID (batched esummary) and
// discovers citing papers via elink's pubmed_pubmed_citedin link. One PMID
// per elink call; the resulting citing PMIDs are hydrated in batches.
type PubMedClient struct {
	client *httputil.Client
	apiKey string
	rec    MetricRecorder
}

// NewPubMedClient builds a PubMed metadata/citation client.
func NewPubMedClient(client *httputil.Client, apiKey string, rec MetricRecorder) *PubMedClient {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &PubMedClient{client: client, apiKey: apiKey, rec: rec}
}

// Name returns the source tag.
func (p *PubMedClient) Name() string { return "pubmed" }

// Priority classifies PubMed elink for the adaptive policy.
func (p *PubMedClient) Priority() Priority { return High }

// Summaries fetches metadata for up to 200 PMIDs per call and returns one
// publication stub per resolved PMID. Unknown PMIDs are dropped silently.
func (p *PubMedClient) Summaries(ctx context.Context, pmids []string) ([]types.Publication, error) {
	var out []types.Publication
	for start := 0; start < len(pmids); start += summaryBatchSize {
		end := start + summaryBatchSize
		if end > len(pmids) {
			end = len(pmids)
		}
		batch, err := p.summaryBatch(ctx, pmids[start:end])
		if err != nil {
			return out, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (p *PubMedClient) summaryBatch(ctx context.Context, pmids []string) ([]types.Publication, error) {
	start := time.Now()
	pubs, err := p.fetchSummaries(ctx, pmids)
	record(p.rec, p.Name(), true, start, err == nil, len(pubs))
	return pubs, err
}

func (p *PubMedClient) fetchSummaries(ctx context.Context, pmids []string) ([]types.Publication, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"json"},
	}
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}

	resp, err := p.client.Get(ctx, esummaryBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("PubMed esummary: %w", err)
	}

	var env esummaryEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, fmt.Errorf("parsing PubMed esummary: %w", err)
	}

	var out []types.Publication
	for _, pmid := range pmids {
		raw, ok := env.Result[pmid]
		if !ok {
			continue
		}
		var doc pubmedDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		pub := types.Publication{
			PMID:        pmid,
			Title:       doc.Title,
			Journal:     doc.FullJournalName,
			ProviderRaw: raw,
		}
		for _, a := range doc.Authors {
			if a.Name != "" {
				pub.Authors = append(pub.Authors, a.Name)
			}
		}
		for _, aid := range doc.ArticleIDs {
			switch aid.IDType {
			case "doi":
				pub.DOI = ident.NormalizeDOI(aid.Value)
			case "pmc", "pmcid":
				pub.PMCID = ident.NormalizePMC(aid.Value)
			}
		}
		if len(doc.PubDate) >= 4 {
			if y, convErr := strconv.Atoi(doc.PubDate[:4]); convErr == nil {
				pub.Year = y
			}
		}
		out = append(out, pub)
	}
	return out, nil
}

// Citations discovers papers citing the seed PMID. A seed without a PMID
// is skipped; PubMed cannot look up citations by DOI alone.
func (p *PubMedClient) Citations(ctx context.Context, seed types.Publication) CitationResult {
	pmid := ident.NormalizePMID(seed.PMID)
	if pmid == "" {
		return skippedCitations()
	}

	start := time.Now()
	citing, err := p.citedIn(ctx, pmid)
	if err != nil {
		record(p.rec, p.Name(), true, start, false, 0)
		return failedCitations(fmt.Errorf("pubmed citedin: %w", err))
	}

	// Hydrate citing PMIDs in batches. Metadata failures degrade to bare
	// PMID stubs rather than failing the source.
	var pubs []types.Publication
	for batchStart := 0; batchStart < len(citing); batchStart += citedinBatchSize {
		end := batchStart + citedinBatchSize
		if end > len(citing) {
			end = len(citing)
		}
		batch, err := p.fetchSummaries(ctx, citing[batchStart:end])
		if err != nil {
			for _, id := range citing[batchStart:end] {
				pubs = append(pubs, types.Publication{PMID: id})
			}
			continue
		}
		pubs = append(pubs, batch...)
	}

	record(p.rec, p.Name(), true, start, true, len(pubs))
	return CitationResult{Status: StatusOK, Publications: pubs}
}

func (p *PubMedClient) citedIn(ctx context.Context, pmid string) ([]string, error) {
	params := url.Values{
		"dbfrom":   {"pubmed"},
		"linkname": {"pubmed_pubmed_citedin"},
		"id":       {pmid},
		"retmode":  {"json"},
	}
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}

	resp, err := p.client.Get(ctx, elinkBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var env elinkEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, fmt.Errorf("parsing elink response: %w", err)
	}

	var ids []string
	for _, ls := range env.LinkSets {
		for _, db := range ls.LinkSetDBs {
			if db.LinkName != "pubmed_pubmed_citedin" {
				continue
			}
			for _, link := range db.Links {
				if id := ident.NormalizePMID(link.String()); id != "" {
					ids = append(ids, id)
				}
			}
		}
	}
	return ids, nil
}

// PubMed esummary/elink JSON structures.
type pubmedDocument struct {
	Title           string            `json:"title"`
	FullJournalName string            `json:"fulljournalname"`
	PubDate         string            `json:"pubdate"`
	Authors         []pubmedAuthor    `json:"authors"`
	ArticleIDs      []pubmedArticleID `json:"articleids"`
}

type pubmedAuthor struct {
	Name string `json:"name"`
}

type pubmedArticleID struct {
	IDType string `json:"idtype"`
	Value  string `json:"value"`
}

type elinkEnvelope struct {
	LinkSets []struct {
		LinkSetDBs []struct {
			LinkName string       `json:"linkname"`
			Links    []flexString `json:"links"`
		} `json:"linksetdbs"`
	} `json:"linksets"`
}
