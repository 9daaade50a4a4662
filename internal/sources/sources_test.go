// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// newTestClient builds an HTTP client suitable for httptest servers: no
// retries, short timeout.
func newTestClient(t *testing.T) *httputil.Client {
	t.Helper()
	return httputil.New(types.HTTPConfig{
		Timeout:        5 * time.Second,
		MaxConnections: 4,
		MaxRetries:     0,
		UserAgent:      "corpus-engine-test",
	}, "", map[string]float64{"default": 1000})
}

// captureRecorder records metric calls for assertions.
type captureRecorder struct {
	mu    sync.Mutex
	calls []capturedCall
}

type capturedCall struct {
	source string
	ok     bool
	papers int
}

func (c *captureRecorder) RecordSourceCall(source string, ok bool, _ time.Duration, papers int, _ bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, capturedCall{source: source, ok: ok, papers: papers})
}

func (c *captureRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func TestNewSetWiring(t *testing.T) {
	client := newTestClient(t)

	tests := []struct {
		name     string
		cfg      types.SourcesConfig
		wantURLs int
	}{
		{
			name:     "default sources only",
			cfg:      types.SourcesConfig{UnpaywallEmail: "eng@example.org"},
			wantURLs: 5,
		},
		{
			name: "core enabled by key",
			cfg: types.SourcesConfig{
				UnpaywallEmail: "eng@example.org",
				COREAPIKey:     "k",
			},
			wantURLs: 6,
		},
		{
			name: "all optional sources",
			cfg: types.SourcesConfig{
				UnpaywallEmail:        "eng@example.org",
				COREAPIKey:            "k",
				InstitutionalProxyURL: "https://proxy.example.edu",
				EnableSciHub:          true,
				EnableLibGen:          true,
			},
			wantURLs: 9,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := NewSet(client, tt.cfg, nil)
			if got := len(set.URL); got != tt.wantURLs {
				t.Errorf("URL sources = %d, want %d", got, tt.wantURLs)
			}
			if got := len(set.Citation); got != 5 {
				t.Errorf("citation sources = %d, want 5", got)
			}
			if set.Catalog == nil || set.PubMed == nil {
				t.Error("catalog and pubmed clients must always be wired")
			}
		})
	}
}

func TestSkippedWithoutPrerequisites(t *testing.T) {
	client := newTestClient(t)
	rec := &captureRecorder{}
	noIDs := types.Publication{Title: "untracked paper"}

	citers := []CitationSource{
		NewOpenAlexClient(client, "", rec),
		NewSemanticScholarClient(client, "", rec),
		NewEuropePMCClient(client, rec),
		NewOpenCitationsClient(client, rec),
		NewPubMedClient(client, "", rec),
	}
	for _, src := range citers {
		if got := src.Citations(context.Background(), noIDs); got.Status != StatusSkipped {
			t.Errorf("%s.Citations without identifiers = %q, want skipped", src.Name(), got.Status)
		}
	}

	urlSources := []URLSource{
		NewPMCURLSource(client, rec),
		NewUnpaywallClient(client, "eng@example.org", rec),
		NewPreprintURLSource(client, rec),
		NewCrossrefURLSource(),
		NewSciHubURLSource(),
		NewLibGenURLSource(),
	}
	for _, src := range urlSources {
		if got := src.URLs(context.Background(), noIDs); got.Status != StatusSkipped {
			t.Errorf("%s.URLs without identifiers = %q, want skipped", src.Name(), got.Status)
		}
	}

	// Skips never make a request, so nothing is recorded.
	if rec.count() != 0 {
		t.Errorf("skipped calls recorded %d metric rows, want 0", rec.count())
	}
}

func TestUnpaywallSkippedWithoutEmail(t *testing.T) {
	client := newTestClient(t)
	u := NewUnpaywallClient(client, "", nil)
	pub := types.Publication{DOI: "10.1186/s13059-023-02889-x"}
	if got := u.URLs(context.Background(), pub); got.Status != StatusSkipped {
		t.Errorf("URLs without contact email = %q, want skipped", got.Status)
	}
}

func TestCrossrefResolverURL(t *testing.T) {
	c := NewCrossrefURLSource()
	got := c.URLs(context.Background(), types.Publication{DOI: "10.1038/S41586-021-03819-2"})
	if got.Status != StatusOK || len(got.URLs) != 1 {
		t.Fatalf("URLs = %+v, want one ok descriptor", got)
	}
	d := got.URLs[0]
	if d.URL != "https://doi.org/10.1038/s41586-021-03819-2" {
		t.Errorf("resolver URL = %q, want lowercased DOI under doi.org", d.URL)
	}
	if d.Shape != types.ShapeDOIResolver {
		t.Errorf("shape = %q, want %q", d.Shape, types.ShapeDOIResolver)
	}
}

func TestFallbackSourcesRequireOptIn(t *testing.T) {
	pub := types.Publication{DOI: "10.1101/2023.01.01.522222"}

	sh := NewSciHubURLSource()
	if got := sh.URLs(context.Background(), pub); got.Status != StatusOK || got.URLs[0].Shape != types.ShapeLandingPage {
		t.Errorf("scihub URLs = %+v, want landing page descriptor", got)
	}

	lg := NewLibGenURLSource()
	got := lg.URLs(context.Background(), pub)
	if got.Status != StatusOK || len(got.URLs) != 1 {
		t.Fatalf("libgen URLs = %+v, want one descriptor", got)
	}
	if got.URLs[0].Confidence >= sh.URLs(context.Background(), pub).URLs[0].Confidence {
		t.Error("libgen should rank below scihub by confidence")
	}
}

func TestRewriteFTP(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{
			"ftp://ftp.ncbi.nlm.nih.gov/pub/pmc/oa_pdf/aa/bb/main.pdf",
			"https://ftp.ncbi.nlm.nih.gov/pub/pmc/oa_pdf/aa/bb/main.pdf",
		},
		{
			"https://ftp.ncbi.nlm.nih.gov/pub/pmc/oa_pdf/aa/bb/main.pdf",
			"https://ftp.ncbi.nlm.nih.gov/pub/pmc/oa_pdf/aa/bb/main.pdf",
		},
		{"ftp://other.example.org/file.pdf", "ftp://other.example.org/file.pdf"},
	}
	for _, tt := range tests {
		if got := rewriteFTP(tt.in); got != tt.want {
			t.Errorf("rewriteFTP(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseIDCluster(t *testing.T) {
	pub := parseIDCluster("omid:br/061234 doi:10.7717/PEERJ.4375 pmid:29456894 pmcid:PMC5813002")
	if pub.DOI != "10.7717/peerj.4375" {
		t.Errorf("DOI = %q", pub.DOI)
	}
	if pub.PMID != "29456894" {
		t.Errorf("PMID = %q", pub.PMID)
	}
	if pub.PMCID != "PMC5813002" {
		t.Errorf("PMCID = %q", pub.PMCID)
	}
}

func TestSplitAuthorString(t *testing.T) {
	got := splitAuthorString("Doe J, Roe R, Poe P.")
	want := []string{"Doe J", "Roe R", "Poe P"}
	if len(got) != len(want) {
		t.Fatalf("authors = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("author[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
