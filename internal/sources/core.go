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

// coreBase is the CORE v3 API base. Declared as a var so tests can
// substitute an httptest server.
var coreBase = "https://api.core.ac.uk/v3"

// COREClient searches the CORE aggregator for repository-hosted full text.
// CORE requires an API key, so the source is only wired when one is
// configured.
type COREClient struct {
	client *httputil.Client
	apiKey string
	rec    MetricRecorder
}

// NewCOREClient builds a CORE client.
func NewCOREClient(client *httputil.Client, apiKey string, rec MetricRecorder) *COREClient {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &COREClient{client: client, apiKey: apiKey, rec: rec}
}

// Name returns the source tag.
func (c *COREClient) Name() string { return "core" }

// BasePriority seeds CORE URL priorities.
func (c *COREClient) BasePriority() int { return 5 }

// URLs searches CORE by DOI and returns download links from matching
// works. Skipped without a DOI.
func (c *COREClient) URLs(ctx context.Context, pub types.Publication) URLResult {
	doi := ident.NormalizeDOI(pub.DOI)
	if doi == "" {
		return skippedURLs()
	}

	start := time.Now()
	body := map[string]any{
		"q":     fmt.Sprintf(`doi:"%s"`, doi),
		"limit": 5,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	resp, err := c.client.PostJSON(ctx, coreBase+"/search/works", body, headers)
	if err != nil {
		record(c.rec, c.Name(), false, start, false, 0)
		return failedURLs(fmt.Errorf("CORE search: %w", err))
	}

	var env coreSearchResponse
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		record(c.rec, c.Name(), false, start, false, 0)
		return failedURLs(fmt.Errorf("parsing CORE response: %w", err))
	}

	var urls []types.URLDescriptor
	seen := make(map[string]bool)
	for _, work := range env.Results {
		if work.DownloadURL != "" && !seen[work.DownloadURL] {
			seen[work.DownloadURL] = true
			urls = append(urls, types.URLDescriptor{
				URL:        work.DownloadURL,
				Source:     c.Name(),
				Shape:      ident.ClassifyURL(work.DownloadURL),
				Confidence: 0.6,
			})
		}
	}

	record(c.rec, c.Name(), false, start, true, 0)
	if len(urls) == 0 {
		return skippedURLs()
	}
	return okURLs(urls)
}

// CORE API JSON structures.
type coreSearchResponse struct {
	TotalHits int `json:"totalHits"`
	Results   []struct {
		ID          int    `json:"id"`
		DOI         string `json:"doi"`
		DownloadURL string `json:"downloadUrl"`
	} `json:"results"`
}
