// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/corpus-engine/internal/cache"
	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/internal/sources"
	"github.com/pdiddy/corpus-engine/internal/store"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// Fakes for the coordinator's source seams.

type fakeCatalog struct {
	result *sources.DatasetResult
	err    error
}

func (f *fakeCatalog) FetchDataset(context.Context, string) (*sources.DatasetResult, error) {
	return f.result, f.err
}

type fakeMetadata struct {
	pubs []types.Publication
}

func (f *fakeMetadata) Name() string { return "pubmed" }

func (f *fakeMetadata) Summaries(context.Context, []string) ([]types.Publication, error) {
	return f.pubs, nil
}

type fakeCitationSource struct {
	name     string
	priority sources.Priority
	result   sources.CitationResult
	calls    int
}

func (f *fakeCitationSource) Name() string               { return f.name }
func (f *fakeCitationSource) Priority() sources.Priority { return f.priority }
func (f *fakeCitationSource) Citations(context.Context, types.Publication) sources.CitationResult {
	f.calls++
	return f.result
}

type fakeURLSource struct {
	name string
	base int
	urls []types.URLDescriptor
	err  error
}

func (f *fakeURLSource) Name() string      { return f.name }
func (f *fakeURLSource) BasePriority() int { return f.base }
func (f *fakeURLSource) URLs(_ context.Context, _ types.Publication) sources.URLResult {
	if f.err != nil {
		return sources.URLResult{Status: sources.StatusFailed, Err: f.err}
	}
	if len(f.urls) == 0 {
		return sources.URLResult{Status: sources.StatusSkipped}
	}
	return sources.URLResult{Status: sources.StatusOK, URLs: f.urls}
}

// pdfBytes is a payload that passes PDF validation (magic plus size floor).
func pdfBytes() []byte {
	return append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 2048)...)
}

func newTestCoordinator(t *testing.T, catalog catalogSource, meta metadataSource, cites []sources.CitationSource, urls []sources.URLSource) (*Coordinator, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "corpus.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := types.DefaultEngineConfig()
	cfg.Acquisition.PDFsRoot = t.TempDir()
	cfg.Pipeline.EnableExtraction = false
	cfg.HTTP.MaxRetries = 1
	cfg.HTTP.Timeout = 5 * time.Second

	client := httputil.New(cfg.HTTP, "", map[string]float64{"default": 1000})
	vc := cache.New(st.CompleteView, cfg.Cache)

	c := &Coordinator{
		store:    st,
		cache:    vc,
		catalog:  catalog,
		metadata: meta,
		citation: cites,
		urls:     urls,
		client:   client,
		cfg:      cfg,
		log:      zerolog.Nop(),
		policy:   newPolicy(cfg.Pipeline.ReliabilityWindow, cfg.Pipeline.ReliabilityThreshold, cfg.Pipeline.SkipLowReliability),
	}
	return c, st
}

func catalogFor(dsID string, pmids ...string) *fakeCatalog {
	return &fakeCatalog{result: &sources.DatasetResult{
		Dataset: types.Dataset{ID: dsID, Title: "test dataset", Status: types.StatusPending},
		PMIDs:   pmids,
	}}
}

func TestRunEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pdfBytes())
	}))
	defer srv.Close()

	original := types.Publication{PMID: "111", Title: "the original paper"}
	citing := []types.Publication{
		{PMID: "222", DOI: "10.1/a", Title: "citing one"},
		{PMID: "333", DOI: "10.1/b", Title: "citing two"},
	}

	c, st := newTestCoordinator(t,
		catalogFor("GSE1", "111"),
		&fakeMetadata{pubs: []types.Publication{original}},
		[]sources.CitationSource{&fakeCitationSource{
			name: "src_a", priority: sources.High,
			result: sources.CitationResult{Status: sources.StatusOK, Publications: citing},
		}},
		[]sources.URLSource{&fakeURLSource{
			name: "fake_pdf", base: 2,
			urls: []types.URLDescriptor{{URL: srv.URL + "/p.pdf", Source: "fake_pdf", Shape: types.ShapePDFDirect, Confidence: 0.9}},
		}},
	)

	summary, err := c.Run(context.Background(), "GSE1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Publications != 3 || summary.Acquired != 3 {
		t.Errorf("summary = %d publications, %d acquired; want 3, 3", summary.Publications, summary.Acquired)
	}

	ctx := context.Background()
	ds, err := st.GetDataset(ctx, "GSE1")
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if ds.Status != types.StatusCompleted {
		t.Errorf("dataset status = %q", ds.Status)
	}
	if ds.PublicationCount != 3 || ds.PDFsDownloaded != 3 {
		t.Errorf("counters = %d publications, %d downloaded", ds.PublicationCount, ds.PDFsDownloaded)
	}

	groups, _ := st.PublicationsForDataset(ctx, "GSE1")
	if len(groups.Original) != 1 || len(groups.Citing) != 2 {
		t.Errorf("groups = %d original, %d citing", len(groups.Original), len(groups.Citing))
	}

	// PDFs land at <root>/<dataset>/<relationship>/<id>.pdf with manifests.
	path := filepath.Join(c.cfg.Acquisition.PDFsRoot, "GSE1", "original", "111.pdf")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("original pdf missing: %v", err)
	}
	if _, err := os.Stat(path + ".manifest.json"); err != nil {
		t.Errorf("manifest missing: %v", err)
	}

	// Links carry the source that discovered them.
	if s, _ := st.LinkStrategy(ctx, "GSE1", groups.Original[0].ID); s != "pubmed" {
		t.Errorf("original link strategy = %q, want pubmed", s)
	}
	if s, _ := st.LinkStrategy(ctx, "GSE1", groups.Citing[0].ID); s != "src_a" {
		t.Errorf("citing link strategy = %q, want src_a", s)
	}
}

func TestRunRestartIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pdfBytes())
	}))
	defer srv.Close()

	c, st := newTestCoordinator(t,
		catalogFor("GSE1", "111"),
		&fakeMetadata{pubs: []types.Publication{{PMID: "111", Title: "paper"}}},
		[]sources.CitationSource{&fakeCitationSource{
			name: "src_a", priority: sources.High,
			result: sources.CitationResult{Status: sources.StatusOK},
		}},
		[]sources.URLSource{&fakeURLSource{
			name: "fake_pdf", base: 2,
			urls: []types.URLDescriptor{{URL: srv.URL + "/p.pdf", Source: "fake_pdf", Shape: types.ShapePDFDirect}},
		}},
	)

	ctx := context.Background()
	if _, err := c.Run(ctx, "GSE1"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, _ := st.PublicationsForDataset(ctx, "GSE1")
	atts1, _ := st.AttemptsForPublication(ctx, first.Original[0].ID)

	summary, err := c.Run(ctx, "GSE1")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	second, _ := st.PublicationsForDataset(ctx, "GSE1")
	if len(second.Original)+len(second.Citing) != len(first.Original)+len(first.Citing) {
		t.Error("restart duplicated publications")
	}
	atts2, _ := st.AttemptsForPublication(ctx, first.Original[0].ID)
	if len(atts2) != len(atts1) {
		t.Errorf("restart re-downloaded: %d attempts, then %d", len(atts1), len(atts2))
	}
	// The restart still reports the PDF as acquired; it just skips the fetch.
	if summary.Acquired != 1 {
		t.Errorf("second run acquired = %d, want 1", summary.Acquired)
	}

	events, _ := st.Events(ctx, store.EventFilter{RunID: summary.RunID, Stage: types.StageCollection})
	if len(events) == 0 || events[0].Type != types.EventSkip {
		t.Errorf("restart should skip collection, events = %+v", events)
	}
}

func TestRunZeroCitingPapers(t *testing.T) {
	c, st := newTestCoordinator(t,
		catalogFor("GSE1", "111"),
		&fakeMetadata{pubs: []types.Publication{{PMID: "111", Title: "paper"}}},
		[]sources.CitationSource{&fakeCitationSource{
			name: "src_a", priority: sources.High,
			result: sources.CitationResult{Status: sources.StatusOK},
		}},
		[]sources.URLSource{&fakeURLSource{name: "empty", base: 2}},
	)

	summary, err := c.Run(context.Background(), "GSE1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Publications != 1 || summary.Acquired != 0 {
		t.Errorf("summary = %+v", summary)
	}

	// No URLs means both collection and download record skips, not failures.
	events, _ := st.Events(context.Background(), store.EventFilter{RunID: summary.RunID})
	for _, ev := range events {
		if ev.Type == types.EventFailure {
			t.Errorf("unexpected failure event: %+v", ev)
		}
	}
	ds, _ := st.GetDataset(context.Background(), "GSE1")
	if ds.Status != types.StatusCompleted {
		t.Errorf("status = %q, want completed even with nothing acquired", ds.Status)
	}
}

func TestRunUnknownAccessionFails(t *testing.T) {
	c, _ := newTestCoordinator(t,
		&fakeCatalog{err: fmt.Errorf("no catalog entry for GSE0")},
		&fakeMetadata{}, nil, nil,
	)
	if _, err := c.Run(context.Background(), "GSE0"); err == nil {
		t.Fatal("expected dataset-level failure")
	}
}

func TestDownloadWaterfallFallsThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bad.pdf":
			http.Error(w, "gone", http.StatusNotFound)
		case "/good.pdf":
			w.Write(pdfBytes())
		}
	}))
	defer srv.Close()

	c, st := newTestCoordinator(t, catalogFor("GSE1"), &fakeMetadata{}, nil, nil)
	ctx := context.Background()
	id, _ := st.UpsertPublication(ctx, types.Publication{PMID: "5"})

	urls := []types.URLDescriptor{
		{URL: srv.URL + "/bad.pdf", Source: "a", Priority: 1, Shape: types.ShapePDFDirect},
		{URL: srv.URL + "/good.pdf", Source: "b", Priority: 2, Shape: types.ShapePDFDirect},
	}
	path, err := c.downloadPDF(ctx, "run1", types.Dataset{ID: "GSE1"}, types.Publication{ID: id, PMID: "5"}, types.RelCiting, urls)
	if err != nil {
		t.Fatalf("downloadPDF: %v", err)
	}
	if path == "" {
		t.Fatal("waterfall should have succeeded on the second url")
	}

	atts, _ := st.AttemptsForPublication(ctx, id)
	if len(atts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(atts))
	}
	if atts[0].Status != types.DownloadFailed || atts[1].Status != types.DownloadSuccess {
		t.Errorf("attempt statuses = %q, %q", atts[0].Status, atts[1].Status)
	}
}

func TestLandingPageRescue(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, `<!DOCTYPE html><html><head>
				<meta name="citation_pdf_url" content="%s/fulltext.pdf">
				</head><body>landing page</body></html>`, srvURL)
		case "/fulltext.pdf":
			w.Write(pdfBytes())
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	c, st := newTestCoordinator(t, catalogFor("GSE1"), &fakeMetadata{}, nil, nil)
	ctx := context.Background()
	id, _ := st.UpsertPublication(ctx, types.Publication{PMID: "9"})

	urls := []types.URLDescriptor{
		{URL: srv.URL + "/article", Source: "resolver", Priority: 3, Shape: types.ShapeLandingPage},
	}
	path, err := c.downloadPDF(ctx, "run1", types.Dataset{ID: "GSE1"}, types.Publication{ID: id, PMID: "9"}, types.RelOriginal, urls)
	if err != nil {
		t.Fatalf("downloadPDF: %v", err)
	}
	if path == "" {
		t.Fatal("landing-page rescue should have found the embedded pdf")
	}

	// The rescue is its own attempt: one failed row for the landing page,
	// one success row for the embedded link.
	atts, _ := st.AttemptsForPublication(ctx, id)
	if len(atts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(atts))
	}
	if atts[0].Status != types.DownloadFailed || atts[0].URL != srv.URL+"/article" {
		t.Errorf("first attempt = %q %q", atts[0].Status, atts[0].URL)
	}
	if atts[1].Status != types.DownloadSuccess || atts[1].URL != srv.URL+"/fulltext.pdf" {
		t.Errorf("second attempt = %q %q", atts[1].Status, atts[1].URL)
	}
}

func TestDownloadStageDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pdfBytes())
	}))
	defer srv.Close()

	c, st := newTestCoordinator(t, catalogFor("GSE1"), &fakeMetadata{}, nil, nil)
	c.cfg.Pipeline.DownloadDeadline = time.Nanosecond
	ctx := context.Background()
	id, _ := st.UpsertPublication(ctx, types.Publication{PMID: "6"})

	urls := []types.URLDescriptor{
		{URL: srv.URL + "/p.pdf", Source: "a", Priority: 1, Shape: types.ShapePDFDirect},
	}
	path, err := c.downloadPDF(ctx, "run1", types.Dataset{ID: "GSE1"}, types.Publication{ID: id, PMID: "6"}, types.RelCiting, urls)
	if err != nil {
		t.Fatalf("downloadPDF: %v", err)
	}
	if path != "" {
		t.Fatal("expired stage deadline should prevent acquisition")
	}

	atts, _ := st.AttemptsForPublication(ctx, id)
	for _, att := range atts {
		if att.Status == types.DownloadSuccess {
			t.Errorf("success attempt under an expired deadline: %+v", att)
		}
	}
	events, _ := st.Events(ctx, store.EventFilter{RunID: "run1", Stage: types.StageDownload})
	if len(events) != 1 || events[0].Type != types.EventFailure {
		t.Errorf("events = %+v, want one download failure", events)
	}
}

func TestFindPDFLink(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
		ok   bool
	}{
		{
			"citation meta wins",
			`<html><head><meta name="citation_pdf_url" content="https://x.org/a.pdf"></head><body><a href="/other.pdf">x</a></body></html>`,
			"https://x.org/a.pdf", true,
		},
		{
			"anchor fallback resolves relative",
			`<html><body><a href="/files/paper.pdf">PDF</a></body></html>`,
			"https://pub.example/files/paper.pdf", true,
		},
		{
			"embed tag",
			`<html><body><embed src="https://pub.example/e.pdf"></body></html>`,
			"https://pub.example/e.pdf", true,
		},
		{
			"no pdf anywhere",
			`<html><body><a href="/about">About</a></body></html>`,
			"", false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := findPDFLink([]byte(tt.html), "https://pub.example/article")
			if got != tt.want || ok != tt.ok {
				t.Errorf("findPDFLink = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestShapeAdjust(t *testing.T) {
	tests := []struct {
		base  int
		shape types.URLShape
		want  int
	}{
		{3, types.ShapePDFDirect, 2},
		{1, types.ShapePDFDirect, 1},
		{3, types.ShapeLandingPage, 4},
		{3, types.ShapeDOIResolver, 5},
		{3, types.ShapeHTMLFullText, 3},
		{3, types.ShapeUnknown, 3},
	}
	for _, tt := range tests {
		if got := shapeAdjust(tt.base, tt.shape); got != tt.want {
			t.Errorf("shapeAdjust(%d, %s) = %d, want %d", tt.base, tt.shape, got, tt.want)
		}
	}
}

func TestMergerDeduplicates(t *testing.T) {
	m := newMerger()

	added := m.addAll([]types.Publication{
		{DOI: "10.1/x", Title: "rich record", Journal: "Nature", Year: 2021},
		{PMID: "42"},
	}, "src_a")
	if added != 2 {
		t.Fatalf("added = %d, want 2", added)
	}

	// Same DOI again, carrying the PMID the first record lacked.
	added = m.addAll([]types.Publication{{DOI: "10.1/X", PMID: "99"}}, "src_b")
	if added != 0 {
		t.Errorf("duplicate counted as new")
	}

	out := m.ordered()
	if len(out) != 2 {
		t.Fatalf("merged = %d, want 2", len(out))
	}
	if out[0].pub.PMID != "99" || out[0].pub.Title != "rich record" {
		t.Errorf("merge lost fields: %+v", out[0].pub)
	}
	// The record keeps the source that introduced it, not the one that
	// enriched it.
	if out[0].strategy != "src_a" {
		t.Errorf("strategy = %q, want src_a", out[0].strategy)
	}

	// Publications with no identifier and no title cannot be keyed.
	if m.addAll([]types.Publication{{}}, "src_a") != 0 {
		t.Error("keyless publication was merged")
	}
}

func TestMergerOrderedSortsByCanonicalKey(t *testing.T) {
	// Insertion order is completion order, which varies between runs; the
	// output must not depend on it.
	m := newMerger()
	m.addAll([]types.Publication{{PMID: "42"}, {DOI: "10.9/b"}}, "src_one")
	m.addAll([]types.Publication{{DOI: "10.9/a"}}, "src_two")

	out := m.ordered()
	if len(out) != 3 {
		t.Fatalf("merged = %d, want 3", len(out))
	}
	if out[0].pub.DOI != "10.9/a" || out[1].pub.DOI != "10.9/b" || out[2].pub.PMID != "42" {
		t.Errorf("order = %+v", out)
	}
	if out[0].strategy != "src_two" || out[1].strategy != "src_one" {
		t.Errorf("strategies = %q, %q", out[0].strategy, out[1].strategy)
	}
}

func TestPolicyReliability(t *testing.T) {
	p := newPolicy(4, 0.5, false)

	// Partial window is never judged.
	p.record("flaky", false)
	p.record("flaky", false)
	if p.lowReliability("flaky") {
		t.Error("partial window judged low reliability")
	}

	p.record("flaky", false)
	p.record("flaky", false)
	if !p.lowReliability("flaky") {
		t.Error("all-failure window should be low reliability")
	}
	if p.decide("flaky", sources.High) != runDeferred {
		t.Error("low-reliability source should defer when skipping is off")
	}
	if p.decide("flaky", sources.Critical) != runNow {
		t.Error("critical sources always run")
	}

	// Recovery: successes roll the failures out of the window.
	for i := 0; i < 4; i++ {
		p.record("flaky", true)
	}
	if p.lowReliability("flaky") {
		t.Error("recovered source still judged low reliability")
	}

	skip := newPolicy(2, 0.5, true)
	skip.record("dead", false)
	skip.record("dead", false)
	if skip.decide("dead", sources.Medium) != skipSource {
		t.Error("low-reliability source should be skipped when configured")
	}
}

func TestDiscoverCitationsDeferredRunsOnEmpty(t *testing.T) {
	c, _ := newTestCoordinator(t, catalogFor("GSE1"), &fakeMetadata{}, nil, nil)
	c.policy = newPolicy(2, 0.5, false)
	c.policy.record("flaky", false)
	c.policy.record("flaky", false)

	reliable := &fakeCitationSource{
		name: "reliable", priority: sources.High,
		result: sources.CitationResult{Status: sources.StatusOK},
	}
	flaky := &fakeCitationSource{
		name: "flaky", priority: sources.Medium,
		result: sources.CitationResult{Status: sources.StatusOK, Publications: []types.Publication{{PMID: "7"}}},
	}
	c.citation = []sources.CitationSource{reliable, flaky}

	pubs, _, _ := c.discoverCitations(context.Background(), types.Publication{PMID: "1"})
	if flaky.calls != 1 {
		t.Errorf("deferred source called %d times, want 1 (reliable sources found nothing)", flaky.calls)
	}
	if len(pubs) != 1 || pubs[0].pub.PMID != "7" {
		t.Errorf("pubs = %+v", pubs)
	}
}

func TestDiscoverCitationsStableOrder(t *testing.T) {
	c, _ := newTestCoordinator(t, catalogFor("GSE1"), &fakeMetadata{}, nil, nil)
	c.citation = []sources.CitationSource{
		&fakeCitationSource{
			name: "src_one", priority: sources.High,
			result: sources.CitationResult{Status: sources.StatusOK, Publications: []types.Publication{
				{DOI: "10.9/b"}, {DOI: "10.9/a"},
			}},
		},
		&fakeCitationSource{
			name: "src_two", priority: sources.High,
			result: sources.CitationResult{Status: sources.StatusOK, Publications: []types.Publication{
				{DOI: "10.9/c"}, {DOI: "10.9/a"},
			}},
		},
	}

	// Both sources run concurrently; either may report first. The merged
	// output is still sorted by canonical identifier.
	for i := 0; i < 10; i++ {
		pubs, _, _ := c.discoverCitations(context.Background(), types.Publication{PMID: "1"})
		if len(pubs) != 3 {
			t.Fatalf("pubs = %d, want 3", len(pubs))
		}
		if pubs[0].pub.DOI != "10.9/a" || pubs[1].pub.DOI != "10.9/b" || pubs[2].pub.DOI != "10.9/c" {
			t.Fatalf("order = %q, %q, %q", pubs[0].pub.DOI, pubs[1].pub.DOI, pubs[2].pub.DOI)
		}
		if pubs[2].strategy != "src_two" {
			t.Fatalf("strategy for 10.9/c = %q, want src_two", pubs[2].strategy)
		}
	}
}

func TestCollectURLsFailureNamesSources(t *testing.T) {
	c, st := newTestCoordinator(t, catalogFor("GSE1"), &fakeMetadata{}, nil, []sources.URLSource{
		&fakeURLSource{name: "z_src", base: 2, err: fmt.Errorf("upstream 500")},
		&fakeURLSource{name: "a_src", base: 3, err: fmt.Errorf("timeout")},
	})
	ctx := context.Background()
	id, _ := st.UpsertPublication(ctx, types.Publication{PMID: "8"})

	urls, err := c.collectURLs(ctx, "run1", types.Dataset{ID: "GSE1"}, types.Publication{ID: id, PMID: "8"})
	if err != nil {
		t.Fatalf("collectURLs: %v", err)
	}
	if urls != nil {
		t.Errorf("urls = %+v, want none", urls)
	}

	events, _ := st.Events(ctx, store.EventFilter{RunID: "run1", Stage: types.StageCollection})
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Type != types.EventFailure {
		t.Errorf("event type = %q, want failure", events[0].Type)
	}
	if events[0].Message != "a_src,z_src" {
		t.Errorf("event message = %q, want the failing sources", events[0].Message)
	}
}

func TestCollectURLsAllSkippedIsSkip(t *testing.T) {
	c, st := newTestCoordinator(t, catalogFor("GSE1"), &fakeMetadata{}, nil, []sources.URLSource{
		&fakeURLSource{name: "empty", base: 2},
	})
	ctx := context.Background()
	id, _ := st.UpsertPublication(ctx, types.Publication{PMID: "8"})

	if _, err := c.collectURLs(ctx, "run1", types.Dataset{ID: "GSE1"}, types.Publication{ID: id, PMID: "8"}); err != nil {
		t.Fatalf("collectURLs: %v", err)
	}
	events, _ := st.Events(ctx, store.EventFilter{RunID: "run1", Stage: types.StageCollection})
	if len(events) != 1 || events[0].Type != types.EventSkip {
		t.Errorf("events = %+v, want one skip", events)
	}
}
