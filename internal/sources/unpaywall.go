// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/internal/ident"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// unpaywallBase is the Unpaywall REST endpoint. Declared as a var so tests
// can substitute an httptest server.
var unpaywallBase = "https://api.unpaywall.org/v2"

// UnpaywallClient looks up open-access locations by DOI. Unpaywall requires
// a contact email on every request; without one the source is skipped.
type UnpaywallClient struct {
	client *httputil.Client
	email  string
	rec    MetricRecorder
}

// NewUnpaywallClient builds an Unpaywall client.
func NewUnpaywallClient(client *httputil.Client, email string, rec MetricRecorder) *UnpaywallClient {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &UnpaywallClient{client: client, email: email, rec: rec}
}

// Name returns the source tag.
func (u *UnpaywallClient) Name() string { return "unpaywall" }

// BasePriority seeds Unpaywall URL priorities.
func (u *UnpaywallClient) BasePriority() int { return 2 }

// URLs returns open-access locations for the publication's DOI. Skipped
// when the publication has no DOI or no contact email is configured.
func (u *UnpaywallClient) URLs(ctx context.Context, pub types.Publication) URLResult {
	doi := ident.NormalizeDOI(pub.DOI)
	if doi == "" || u.email == "" {
		return skippedURLs()
	}

	start := time.Now()
	reqURL := fmt.Sprintf("%s/%s?email=%s", unpaywallBase, doi, url.QueryEscape(u.email))

	resp, err := u.client.Get(ctx, reqURL, nil)
	if err != nil {
		// A 404 means Unpaywall does not know the DOI, not that the
		// service failed.
		var he *httputil.Error
		if errors.As(err, &he) && he.Status == 404 {
			record(u.rec, u.Name(), false, start, true, 0)
			return skippedURLs()
		}
		record(u.rec, u.Name(), false, start, false, 0)
		return failedURLs(fmt.Errorf("Unpaywall lookup: %w", err))
	}

	var work unpaywallWork
	if err := json.Unmarshal(resp.Body, &work); err != nil {
		record(u.rec, u.Name(), false, start, false, 0)
		return failedURLs(fmt.Errorf("parsing Unpaywall response: %w", err))
	}

	record(u.rec, u.Name(), false, start, true, 0)
	return okURLs(u.descriptors(work))
}

// descriptors ranks the best OA location first, then the remaining
// locations, deduplicated by URL.
func (u *UnpaywallClient) descriptors(work unpaywallWork) []types.URLDescriptor {
	var urls []types.URLDescriptor
	seen := make(map[string]bool)

	add := func(raw string, shape types.URLShape, conf float64) {
		if raw == "" || seen[raw] {
			return
		}
		seen[raw] = true
		urls = append(urls, types.URLDescriptor{
			URL:        raw,
			Source:     u.Name(),
			Shape:      shape,
			Confidence: conf,
		})
	}

	if best := work.BestOALocation; best != nil {
		add(best.URLForPDF, types.ShapePDFDirect, 0.9)
		add(best.URL, ident.ClassifyURL(best.URL), 0.6)
	}
	for _, loc := range work.OALocations {
		add(loc.URLForPDF, types.ShapePDFDirect, 0.7)
	}
	return urls
}

// Unpaywall API JSON structures.
type unpaywallWork struct {
	DOI            string              `json:"doi"`
	IsOA           bool                `json:"is_oa"`
	BestOALocation *unpaywallLocation  `json:"best_oa_location"`
	OALocations    []unpaywallLocation `json:"oa_locations"`
}

type unpaywallLocation struct {
	URL       string `json:"url"`
	URLForPDF string `json:"url_for_pdf"`
	HostType  string `json:"host_type"`
	Version   string `json:"version"`
}
