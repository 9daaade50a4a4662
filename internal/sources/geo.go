// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/internal/ident"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// Base URLs for the NCBI E-utilities. Declared as vars so tests can
// substitute httptest servers.
var (
	esearchBase  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	esummaryBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esummary.fcgi"
)

// GEOClient fetches dataset metadata from the GEO catalog via the NCBI
// E-utilities (db=gds). With an API key the NCBI budget rises from 3/s
// to 10/s; the shared HTTP client enforces either.
type GEOClient struct {
	client *httputil.Client
	apiKey string
	rec    MetricRecorder
}

// NewGEOClient builds a catalog client. apiKey is optional.
func NewGEOClient(client *httputil.Client, apiKey string, rec MetricRecorder) *GEOClient {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &GEOClient{client: client, apiKey: apiKey, rec: rec}
}

// Name returns the source tag.
func (g *GEOClient) Name() string { return "geo" }

// DatasetResult is the catalog's view of one dataset plus the PMIDs of its
// associated publications.
type DatasetResult struct {
	Dataset types.Dataset
	PMIDs   []string
}

// FetchDataset resolves an accession to its catalog record. The accession
// is normalized first; an unknown accession is an error.
func (g *GEOClient) FetchDataset(ctx context.Context, accession string) (*DatasetResult, error) {
	start := time.Now()
	result, err := g.fetchDataset(ctx, accession)
	record(g.rec, g.Name(), false, start, err == nil, 0)
	return result, err
}

func (g *GEOClient) fetchDataset(ctx context.Context, accession string) (*DatasetResult, error) {
	acc, err := ident.NormalizeDataset(accession)
	if err != nil {
		return nil, err
	}

	uid, err := g.lookupUID(ctx, acc)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", acc, err)
	}

	params := url.Values{
		"db":      {"gds"},
		"id":      {uid},
		"retmode": {"json"},
	}
	if g.apiKey != "" {
		params.Set("api_key", g.apiKey)
	}

	resp, err := g.client.Get(ctx, esummaryBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("GEO esummary: %w", err)
	}

	var env esummaryEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, fmt.Errorf("parsing GEO esummary: %w", err)
	}

	raw, ok := env.Result[uid]
	if !ok {
		return nil, fmt.Errorf("GEO esummary missing record for uid %s", uid)
	}

	var doc gdsDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing GEO record: %w", err)
	}

	ds := types.Dataset{
		ID:             acc,
		Title:          doc.Title,
		Organism:       doc.Taxon,
		Platform:       doc.GPL,
		SubmissionDate: doc.PDAT,
		Status:         types.StatusPending,
		ProviderRaw:    raw,
	}
	if doc.GPL != "" && doc.GPL[0] != 'G' {
		ds.Platform = "GPL" + doc.GPL
	}
	if n, convErr := strconv.Atoi(doc.NSamples.String()); convErr == nil {
		ds.SampleCount = n
	}

	var pmids []string
	for _, id := range doc.PubMedIDs {
		if pmid := ident.NormalizePMID(id.String()); pmid != "" {
			pmids = append(pmids, pmid)
		}
	}

	return &DatasetResult{Dataset: ds, PMIDs: pmids}, nil
}

// lookupUID resolves an accession to its E-utilities UID via esearch.
func (g *GEOClient) lookupUID(ctx context.Context, accession string) (string, error) {
	params := url.Values{
		"db":      {"gds"},
		"term":    {accession + "[Accession]"},
		"retmode": {"json"},
	}
	if g.apiKey != "" {
		params.Set("api_key", g.apiKey)
	}

	resp, err := g.client.Get(ctx, esearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	var env esearchEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return "", fmt.Errorf("parsing esearch response: %w", err)
	}
	if len(env.Result.IDList) == 0 {
		return "", fmt.Errorf("no catalog entry for %s", accession)
	}
	return env.Result.IDList[0], nil
}

// E-utilities JSON structures. esummary keys records by UID, so the result
// map stays raw until the UID is known.
type esummaryEnvelope struct {
	Result map[string]json.RawMessage `json:"result"`
}

type esearchEnvelope struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// flexString tolerates NCBI fields that arrive as either string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	return fmt.Errorf("value %s is neither string nor number", data)
}

func (f flexString) String() string { return string(f) }

type gdsDocument struct {
	Accession string       `json:"accession"`
	Title     string       `json:"title"`
	Taxon     string       `json:"taxon"`
	GPL       string       `json:"gpl"`
	NSamples  flexString   `json:"n_samples"`
	PDAT      string       `json:"pdat"`
	PubMedIDs []flexString `json:"pubmedids"`
}
