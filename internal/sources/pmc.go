// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/internal/ident"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// NCBI PMC endpoints. Declared as vars so tests can substitute httptest
// servers.
var (
	idconvBase     = "https://www.ncbi.nlm.nih.gov/pmc/utils/idconv/v1.0/"
	pmcOABase      = "https://www.ncbi.nlm.nih.gov/pmc/utils/oa/oa.fcgi"
	pmcArticleBase = "https://www.ncbi.nlm.nih.gov/pmc/articles/"
	pmcRenderBase  = "https://europepmc.org/backend/ptpmcrender.fcgi"
)

// PMCURLSource yields PDF URLs for publications held in PubMed Central.
// When only a PMID is known it converts to a PMC ID through the NCBI ID
// converter first. Links from the OA service arrive as FTP URLs and are
// rewritten to their HTTPS mirror.
type PMCURLSource struct {
	client *httputil.Client
	rec    MetricRecorder
}

// NewPMCURLSource builds the PMC URL source. No auth required.
func NewPMCURLSource(client *httputil.Client, rec MetricRecorder) *PMCURLSource {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &PMCURLSource{client: client, rec: rec}
}

// Name returns the source tag.
func (p *PMCURLSource) Name() string { return "pmc" }

// BasePriority seeds PMC URL priorities. PMC is the most reliable free
// full-text host for biomedical papers.
func (p *PMCURLSource) BasePriority() int { return 1 }

// URLs returns candidate PDF locations for the publication's PMC record.
// Skipped when neither a PMC ID nor a PMID is known.
func (p *PMCURLSource) URLs(ctx context.Context, pub types.Publication) URLResult {
	pmcid := ident.NormalizePMC(pub.PMCID)
	pmid := ident.NormalizePMID(pub.PMID)
	if pmcid == "" && pmid == "" {
		return skippedURLs()
	}

	start := time.Now()

	if pmcid == "" {
		converted, err := p.convertPMID(ctx, pmid)
		if err != nil {
			record(p.rec, p.Name(), false, start, false, 0)
			return failedURLs(fmt.Errorf("PMID to PMC conversion: %w", err))
		}
		if converted == "" {
			// Not in PMC; a missing mapping is a prerequisite gap.
			record(p.rec, p.Name(), false, start, true, 0)
			return skippedURLs()
		}
		pmcid = converted
	}

	urls := []types.URLDescriptor{
		{
			URL:        pmcArticleBase + pmcid + "/pdf/",
			Source:     p.Name(),
			Shape:      types.ShapePDFDirect,
			Confidence: 0.85,
		},
		{
			URL:        pmcRenderBase + "?accid=" + pmcid + "&blobtype=pdf",
			Source:     p.Name(),
			Shape:      types.ShapePDFDirect,
			Confidence: 0.8,
		},
	}

	// The OA service lists archive links as ftp:// URLs.
	if oaURL := p.oaLink(ctx, pmcid); oaURL != "" {
		urls = append(urls, types.URLDescriptor{
			URL:        oaURL,
			Source:     p.Name(),
			Shape:      ident.ClassifyURL(oaURL),
			Confidence: 0.9,
		})
	}

	record(p.rec, p.Name(), false, start, true, 0)
	return okURLs(urls)
}

// convertPMID maps a PMID to its PMC ID, or "" when the article is not
// deposited in PMC.
func (p *PMCURLSource) convertPMID(ctx context.Context, pmid string) (string, error) {
	resp, err := p.client.Get(ctx, idconvBase+"?ids="+pmid+"&format=json", nil)
	if err != nil {
		return "", err
	}

	var env idconvResponse
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return "", fmt.Errorf("parsing idconv response: %w", err)
	}
	for _, r := range env.Records {
		if r.PMCID != "" {
			return ident.NormalizePMC(r.PMCID), nil
		}
	}
	return "", nil
}

// oaLink asks the OA service for the article's PDF archive link. Failures
// are tolerated; the other URL patterns remain.
func (p *PMCURLSource) oaLink(ctx context.Context, pmcid string) string {
	resp, err := p.client.Get(ctx, pmcOABase+"?id="+pmcid+"&format=pdf", nil)
	if err != nil {
		return ""
	}

	var env oaResponse
	if err := xml.Unmarshal(resp.Body, &env); err != nil {
		return ""
	}
	for _, link := range env.Records.Record.Links {
		if link.Format == "pdf" && link.Href != "" {
			return rewriteFTP(link.Href)
		}
	}
	return ""
}

// rewriteFTP maps an NCBI ftp:// link onto the HTTPS mirror.
func rewriteFTP(raw string) string {
	if strings.HasPrefix(raw, "ftp://ftp.ncbi.nlm.nih.gov/") {
		return "https://ftp.ncbi.nlm.nih.gov/" + strings.TrimPrefix(raw, "ftp://ftp.ncbi.nlm.nih.gov/")
	}
	return raw
}

// NCBI converter and OA service structures.
type idconvResponse struct {
	Records []struct {
		PMID  string `json:"pmid"`
		PMCID string `json:"pmcid"`
	} `json:"records"`
}

type oaResponse struct {
	Records struct {
		Record struct {
			Links []struct {
				Format string `xml:"format,attr"`
				Href   string `xml:"href,attr"`
			} `xml:"link"`
		} `xml:"record"`
	} `xml:"records"`
}
