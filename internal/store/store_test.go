// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "corpus.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedDataset(t *testing.T, s *Store, id string) {
	t.Helper()
	err := s.UpsertDataset(context.Background(), types.Dataset{
		ID:       id,
		Title:    "single-cell atlas",
		Organism: "Homo sapiens",
		Status:   types.StatusPending,
	})
	if err != nil {
		t.Fatalf("UpsertDataset: %v", err)
	}
}

func TestDatasetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDataset(t, s, "GSE189158")

	ds, err := s.GetDataset(ctx, "GSE189158")
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if ds.Title != "single-cell atlas" || ds.Status != types.StatusPending {
		t.Errorf("dataset = %+v", ds)
	}

	if err := s.SetDatasetStatus(ctx, "GSE189158", types.StatusCompleted); err != nil {
		t.Fatalf("SetDatasetStatus: %v", err)
	}
	ds, _ = s.GetDataset(ctx, "GSE189158")
	if ds.Status != types.StatusCompleted {
		t.Errorf("status = %q, want completed", ds.Status)
	}

	if _, err := s.GetDataset(ctx, "GSE999999"); err == nil {
		t.Error("GetDataset for unknown accession should fail")
	}
	if err := s.SetDatasetStatus(ctx, "GSE999999", types.StatusFailed); err == nil {
		t.Error("SetDatasetStatus for unknown accession should fail")
	}
}

func TestUpsertPublicationDeduplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.UpsertPublication(ctx, types.Publication{
		DOI:   "10.1038/s41586-021-03819-2",
		Title: "Original title",
	})
	if err != nil {
		t.Fatalf("UpsertPublication: %v", err)
	}

	// Same DOI with different casing must merge into the same row, filling
	// only fields the first write left empty.
	id2, err := s.UpsertPublication(ctx, types.Publication{
		DOI:     "10.1038/S41586-021-03819-2",
		PMID:    "34265844",
		Title:   "Different title from a later source",
		Journal: "Nature",
		Year:    2021,
	})
	if err != nil {
		t.Fatalf("UpsertPublication (merge): %v", err)
	}
	if id1 != id2 {
		t.Fatalf("ids differ: %d vs %d", id1, id2)
	}

	pub, err := s.GetPublication(ctx, id1)
	if err != nil {
		t.Fatalf("GetPublication: %v", err)
	}
	if pub.Title != "Original title" {
		t.Errorf("title overwritten by merge: %q", pub.Title)
	}
	if pub.PMID != "34265844" || pub.Journal != "Nature" || pub.Year != 2021 {
		t.Errorf("merge did not fill empty fields: %+v", pub)
	}
}

func TestUpsertPublicationWithoutIdentifiers(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpsertPublication(context.Background(), types.Publication{}); err == nil {
		t.Error("publication with no identifiers and no title should be rejected")
	}

	// Title-only publications are keyed by title hash.
	id, err := s.UpsertPublication(context.Background(), types.Publication{Title: "A study of things"})
	if err != nil {
		t.Fatalf("title-only upsert: %v", err)
	}
	if id == 0 {
		t.Error("expected a surrogate id")
	}
}

func TestLinkKeepsFirstRelationship(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDataset(t, s, "GSE189158")

	id, _ := s.UpsertPublication(ctx, types.Publication{PMID: "123456"})
	if err := s.Link(ctx, "GSE189158", id, types.RelOriginal, "pubmed"); err != nil {
		t.Fatalf("Link: %v", err)
	}
	// An original paper later rediscovered as citing stays original, and
	// keeps the strategy that found it first.
	if err := s.Link(ctx, "GSE189158", id, types.RelCiting, "openalex"); err != nil {
		t.Fatalf("Link (second): %v", err)
	}

	groups, err := s.PublicationsForDataset(ctx, "GSE189158")
	if err != nil {
		t.Fatalf("PublicationsForDataset: %v", err)
	}
	if len(groups.Original) != 1 || len(groups.Citing) != 0 {
		t.Errorf("groups = %d original, %d citing; want 1, 0", len(groups.Original), len(groups.Citing))
	}

	strategy, err := s.LinkStrategy(ctx, "GSE189158", id)
	if err != nil {
		t.Fatalf("LinkStrategy: %v", err)
	}
	if strategy != "pubmed" {
		t.Errorf("strategy = %q, want pubmed", strategy)
	}
}

func TestAppendURLsMergeSemantics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.UpsertPublication(ctx, types.Publication{DOI: "10.1/x"})
	first := []types.URLDescriptor{
		{URL: "https://a.example/p.pdf", Source: "pmc", Priority: 4, Shape: types.ShapeUnknown, Confidence: 0.5},
		{URL: "https://b.example/p", Source: "unpaywall", Priority: 2, Shape: types.ShapeLandingPage, Confidence: 0.6},
	}
	if err := s.AppendURLs(ctx, id, first); err != nil {
		t.Fatalf("AppendURLs: %v", err)
	}

	second := []types.URLDescriptor{
		// Duplicate: better priority, concrete shape, higher confidence.
		{URL: "https://a.example/p.pdf", Source: "openalex_oa", Priority: 1, Shape: types.ShapePDFDirect, Confidence: 0.9},
	}
	if err := s.AppendURLs(ctx, id, second); err != nil {
		t.Fatalf("AppendURLs (merge): %v", err)
	}

	pub, _ := s.GetPublication(ctx, id)
	if len(pub.URLs) != 2 {
		t.Fatalf("urls = %d, want 2", len(pub.URLs))
	}
	got := pub.URLs[0]
	if got.Priority != 1 || got.Shape != types.ShapePDFDirect || got.Confidence != 0.9 {
		t.Errorf("merged descriptor = %+v", got)
	}
	if got.Source != "pmc" {
		t.Errorf("merge replaced the first-seen source: %q", got.Source)
	}
}

func TestMergeURLsCap(t *testing.T) {
	existing := make([]types.URLDescriptor, 0, maxURLsPerPublication)
	for i := 0; i < maxURLsPerPublication; i++ {
		existing = append(existing, types.URLDescriptor{
			URL:      string(rune('a'+i%26)) + string(rune('0'+i/26)),
			Priority: i,
		})
	}
	merged := MergeURLs(existing, []types.URLDescriptor{{URL: "https://new.example/p.pdf", Priority: 1}})
	if len(merged) != maxURLsPerPublication {
		t.Fatalf("merged = %d urls, want cap %d", len(merged), maxURLsPerPublication)
	}
	// The worst-priority entry is evicted, not the newcomer.
	for _, d := range merged {
		if d.Priority == maxURLsPerPublication-1 {
			t.Error("worst-priority descriptor survived the cap")
		}
	}
}

func TestAttemptsAndRestart(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.UpsertPublication(ctx, types.Publication{PMID: "777"})

	ok, _, err := s.HasSuccessfulDownload(ctx, id)
	if err != nil || ok {
		t.Fatalf("HasSuccessfulDownload before any attempt = %v, %v", ok, err)
	}

	if _, err := s.AppendAttempt(ctx, types.DownloadAttempt{
		PublicationID: id, URL: "https://a.example/p.pdf", Source: "pmc",
		Status: types.DownloadFailed, Error: "HTTP 403",
	}); err != nil {
		t.Fatalf("AppendAttempt: %v", err)
	}
	if _, err := s.AppendAttempt(ctx, types.DownloadAttempt{
		PublicationID: id, URL: "https://b.example/p.pdf", Source: "unpaywall",
		Status: types.DownloadSuccess, FilePath: "/pdfs/GSE1/original/777.pdf", FileSize: 1 << 20,
	}); err != nil {
		t.Fatalf("AppendAttempt (success): %v", err)
	}

	atts, err := s.AttemptsForPublication(ctx, id)
	if err != nil {
		t.Fatalf("AttemptsForPublication: %v", err)
	}
	if len(atts) != 2 || atts[0].AttemptNumber != 1 || atts[1].AttemptNumber != 2 {
		t.Errorf("attempt numbering = %+v", atts)
	}

	ok, path, err := s.HasSuccessfulDownload(ctx, id)
	if err != nil || !ok || path != "/pdfs/GSE1/original/777.pdf" {
		t.Errorf("HasSuccessfulDownload = %v, %q, %v", ok, path, err)
	}
}

func TestExtractionReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDataset(t, s, "GSE1")
	id, _ := s.UpsertPublication(ctx, types.Publication{PMID: "42"})

	put := func(score float64, grade string) {
		t.Helper()
		err := s.PutExtraction(ctx, types.ContentExtraction{
			PublicationID: id,
			DatasetID:     "GSE1",
			Sections:      map[string]string{"abstract": "We measured things."},
			PageCount:     12,
			WordCount:     4800,
			QualityScore:  score,
			QualityGrade:  grade,
			PDFSHA256:     "abc123",
		})
		if err != nil {
			t.Fatalf("PutExtraction: %v", err)
		}
	}
	put(0.6, "C")
	put(0.9, "A")

	ex, err := s.GetExtraction(ctx, id, "GSE1")
	if err != nil {
		t.Fatalf("GetExtraction: %v", err)
	}
	if ex.QualityGrade != "A" || ex.Sections["abstract"] == "" {
		t.Errorf("extraction = %+v", ex)
	}
}

func TestEventsFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, ev := range []types.PipelineEvent{
		{RunID: "r1", DatasetID: "GSE1", Stage: types.StageDiscovery, Type: types.EventStart},
		{RunID: "r1", DatasetID: "GSE1", Stage: types.StageDownload, Type: types.EventFailure, Error: "no urls"},
		{RunID: "r2", DatasetID: "GSE2", Stage: types.StageDiscovery, Type: types.EventSuccess},
	} {
		if err := s.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	got, err := s.Events(ctx, EventFilter{RunID: "r1"})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("run filter = %d events, want 2", len(got))
	}
	if got[0].ID >= got[1].ID {
		t.Error("events not in write order")
	}

	got, _ = s.Events(ctx, EventFilter{Stage: types.StageDiscovery, Limit: 1})
	if len(got) != 1 || got[0].RunID != "r1" {
		t.Errorf("stage filter = %+v", got)
	}
}

func TestSourceMetricsAccumulate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.RecordSourceCall("openalex", true, 120*time.Millisecond, 40, false)
	s.RecordSourceCall("openalex", false, 80*time.Millisecond, 0, false)
	s.RecordSourceCall("pubmed", true, 50*time.Millisecond, 10, true)
	if err := s.AddUniquePapers(ctx, "openalex", 25); err != nil {
		t.Fatalf("AddUniquePapers: %v", err)
	}

	m, err := s.SourceMetric(ctx, "openalex")
	if err != nil {
		t.Fatalf("SourceMetric: %v", err)
	}
	if m.TotalRequests != 2 || m.SuccessfulRequests != 1 || m.FailedRequests != 1 {
		t.Errorf("openalex counters = %+v", m)
	}
	if m.SuccessfulRequests+m.FailedRequests != m.TotalRequests {
		t.Error("success+failure must equal total")
	}
	if m.PapersReturned != 40 || m.UniquePapers != 25 {
		t.Errorf("paper counts = %+v", m)
	}
	if m.SuccessRate() != 0.5 {
		t.Errorf("success rate = %v", m.SuccessRate())
	}

	pm, _ := s.SourceMetric(ctx, "pubmed")
	if !pm.SupportsBatch {
		t.Error("pubmed should be marked batch-capable")
	}
}

func TestRecomputeCountersAndView(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDataset(t, s, "GSE1")

	orig, _ := s.UpsertPublication(ctx, types.Publication{PMID: "1"})
	citing, _ := s.UpsertPublication(ctx, types.Publication{PMID: "2"})
	s.Link(ctx, "GSE1", orig, types.RelOriginal, "pubmed")
	s.Link(ctx, "GSE1", citing, types.RelCiting, "openalex")

	s.AppendURLs(ctx, orig, []types.URLDescriptor{{URL: "https://a/p.pdf", Priority: 1, Shape: types.ShapePDFDirect}})
	s.AppendAttempt(ctx, types.DownloadAttempt{
		PublicationID: orig, URL: "https://a/p.pdf", Source: "pmc",
		Status: types.DownloadSuccess, FilePath: "/pdfs/GSE1/original/1.pdf",
	})
	s.PutExtraction(ctx, types.ContentExtraction{
		PublicationID: orig, DatasetID: "GSE1",
		Sections: map[string]string{"abstract": "text"}, QualityScore: 0.8, QualityGrade: "B",
	})

	if err := s.RecomputeCounters(ctx, "GSE1"); err != nil {
		t.Fatalf("RecomputeCounters: %v", err)
	}
	ds, _ := s.GetDataset(ctx, "GSE1")
	if ds.PublicationCount != 2 || ds.PDFsDownloaded != 1 || ds.PDFsExtracted != 1 {
		t.Errorf("counters = %d/%d/%d", ds.PublicationCount, ds.PDFsDownloaded, ds.PDFsExtracted)
	}

	view, err := s.CompleteView(ctx, "GSE1")
	if err != nil {
		t.Fatalf("CompleteView: %v", err)
	}
	if view.Counts.PublicationsTotal != 2 || view.Counts.PDFsAcquired != 1 || view.Counts.PDFsExtracted != 1 {
		t.Errorf("view counts = %+v", view.Counts)
	}
	if len(view.Publications.Original) != 1 || len(view.Publications.Citing) != 1 {
		t.Errorf("view groups = %+v", view.Publications)
	}
	detail, ok := view.PerPublication[strconv.FormatInt(orig, 10)]
	if !ok {
		t.Fatal("per-publication detail missing for original paper")
	}
	if len(detail.URLs) != 1 || len(detail.Downloads) != 1 || detail.Extraction == nil {
		t.Errorf("detail = %+v", detail)
	}
}
