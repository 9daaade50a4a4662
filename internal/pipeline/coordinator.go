// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the four-stage acquisition flow for one dataset:
// citation discovery, URL collection, PDF download, and content extraction.
// The coordinator owns stage ordering, per-publication parallelism, the
// adaptive source policy, and the event log. Stage failures for one
// publication never abort the run.
package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/corpus-engine/internal/cache"
	"github.com/pdiddy/corpus-engine/internal/extract"
	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/internal/sources"
	"github.com/pdiddy/corpus-engine/internal/store"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// catalogSource resolves dataset accessions; the GEO client satisfies it.
type catalogSource interface {
	FetchDataset(ctx context.Context, accession string) (*sources.DatasetResult, error)
}

// metadataSource hydrates PMIDs into publications; the PubMed client
// satisfies it.
type metadataSource interface {
	Name() string
	Summaries(ctx context.Context, pmids []string) ([]types.Publication, error)
}

// Coordinator drives pipeline runs against a shared store, source set, and
// view cache.
type Coordinator struct {
	store    *store.Store
	cache    *cache.ViewCache
	catalog  catalogSource
	metadata metadataSource
	citation []sources.CitationSource
	urls     []sources.URLSource
	client   *httputil.Client
	cfg      types.EngineConfig
	log      zerolog.Logger
	policy   *policy
}

// New wires a coordinator. The cache may be nil when no view consumers run
// in this process.
func New(st *store.Store, vc *cache.ViewCache, set *sources.Set, client *httputil.Client, cfg types.EngineConfig, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:    st,
		cache:    vc,
		catalog:  set.Catalog,
		metadata: set.PubMed,
		citation: set.Citation,
		urls:     set.URL,
		client:   client,
		cfg:      cfg,
		log:      log,
		policy: newPolicy(cfg.Pipeline.ReliabilityWindow,
			cfg.Pipeline.ReliabilityThreshold, cfg.Pipeline.SkipLowReliability),
	}
}

// Run processes one dataset accession end to end. Only dataset-level
// failures (unknown accession, store unavailable) surface as errors;
// per-publication and per-source failures land in the event log and the
// returned summary.
func (c *Coordinator) Run(ctx context.Context, accession string) (*types.RunSummary, error) {
	runID := uuid.NewString()
	summary := &types.RunSummary{RunID: runID, Started: time.Now()}
	defer func() { summary.Duration = time.Since(summary.Started) }()

	result, err := c.catalog.FetchDataset(ctx, accession)
	if err != nil {
		return summary, fmt.Errorf("fetching dataset %s: %w", accession, err)
	}
	ds := result.Dataset
	summary.DatasetID = ds.ID

	ds.Status = types.StatusProcessing
	if err := c.store.UpsertDataset(ctx, ds); err != nil {
		return summary, err
	}
	c.log.Info().Str("run", runID).Str("dataset", ds.ID).
		Int("pmids", len(result.PMIDs)).Msg("run started")

	if c.cfg.Pipeline.EnableDiscovery {
		if _, err := c.runDiscovery(ctx, runID, ds, result.PMIDs); err != nil {
			c.log.Error().Err(err).Str("dataset", ds.ID).Msg("discovery failed")
		}
	}

	// Work from the store, not the discovery return value, so a restarted
	// run picks up publications linked by earlier runs.
	groups, err := c.store.PublicationsForDataset(ctx, ds.ID)
	if err != nil {
		c.finish(ctx, ds.ID, types.StatusFailed)
		return summary, err
	}

	type job struct {
		pub types.Publication
		rel types.Relationship
	}
	var jobs []job
	for _, p := range groups.Original {
		jobs = append(jobs, job{pub: p, rel: types.RelOriginal})
	}
	for _, p := range groups.Citing {
		jobs = append(jobs, job{pub: p, rel: types.RelCiting})
	}
	summary.Publications = len(jobs)

	workers := c.cfg.Pipeline.MaxParallelPublications
	if workers <= 0 {
		workers = 3
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	acquired, extracted := 0, 0

	for _, j := range jobs {
		g.Go(func() error {
			gotPDF, gotExtract := c.processPublication(gctx, runID, ds, j.pub, j.rel)
			mu.Lock()
			if gotPDF {
				acquired++
			}
			if gotExtract {
				extracted++
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	summary.Acquired = acquired
	summary.Extracted = extracted

	if err := c.store.RecomputeCounters(ctx, ds.ID); err != nil {
		c.log.Error().Err(err).Str("dataset", ds.ID).Msg("recomputing counters")
	}
	c.finish(ctx, ds.ID, types.StatusCompleted)
	c.tally(ctx, runID, summary)

	c.log.Info().Str("run", runID).Str("dataset", ds.ID).
		Int("publications", summary.Publications).
		Int("acquired", summary.Acquired).
		Int("extracted", summary.Extracted).
		Dur("elapsed", time.Since(summary.Started)).Msg("run finished")
	return summary, nil
}

// processPublication takes one publication through collection, download,
// and extraction. Failures are recorded and absorbed.
func (c *Coordinator) processPublication(ctx context.Context, runID string, ds types.Dataset, pub types.Publication, rel types.Relationship) (gotPDF, gotExtract bool) {
	var urls []types.URLDescriptor
	var err error

	if c.cfg.Pipeline.EnableCollection {
		urls, err = c.collectURLs(ctx, runID, ds, pub)
		if err != nil {
			c.log.Warn().Err(err).Int64("publication", pub.ID).Msg("url collection failed")
			return false, false
		}
	} else {
		urls = pub.URLs
	}

	if !c.cfg.Pipeline.EnableDownload {
		return false, false
	}
	path, err := c.downloadPDF(ctx, runID, ds, pub, rel, urls)
	if err != nil {
		c.log.Warn().Err(err).Int64("publication", pub.ID).Msg("download failed")
		return false, false
	}
	if path == "" {
		return false, false
	}

	if !c.cfg.Pipeline.EnableExtraction {
		return true, false
	}
	return true, c.extractContent(ctx, runID, ds, pub, path)
}

// extractContent runs the extraction stage for one acquired PDF. Unchanged
// PDFs (by content hash) skip re-extraction.
func (c *Coordinator) extractContent(ctx context.Context, runID string, ds types.Dataset, pub types.Publication, pdfPath string) bool {
	start := time.Now()

	if prev, err := c.store.GetExtraction(ctx, pub.ID, ds.ID); err == nil && prev.PDFSHA256 != "" {
		if data, rerr := os.ReadFile(pdfPath); rerr == nil {
			if fmt.Sprintf("%x", sha256.Sum256(data)) == prev.PDFSHA256 {
				c.event(ctx, runID, ds.ID, pub.ID, types.StageExtraction, types.EventSkip, "pdf unchanged", start, nil)
				return true
			}
		}
	}

	type exResult struct {
		ex  types.ContentExtraction
		err error
	}
	ch := make(chan exResult, 1)
	go func() {
		ex, err := extract.FromPDF(pdfPath, ds.ID, pub.ID)
		ch <- exResult{ex: ex, err: err}
	}()

	deadline := c.cfg.Pipeline.ExtractionDeadline
	if deadline <= 0 {
		deadline = time.Minute
	}
	var ex types.ContentExtraction
	var err error
	select {
	case res := <-ch:
		ex, err = res.ex, res.err
	case <-time.After(deadline):
		ex, err = types.ContentExtraction{
			DatasetID: ds.ID, PublicationID: pub.ID,
			QualityGrade: "F", CreatedAt: time.Now().UTC(),
		}, fmt.Errorf("extraction exceeded %s deadline", deadline)
	case <-ctx.Done():
		ex, err = types.ContentExtraction{
			DatasetID: ds.ID, PublicationID: pub.ID,
			QualityGrade: "F", CreatedAt: time.Now().UTC(),
		}, ctx.Err()
	}
	if err != nil {
		// The zero-quality row is still recorded so the failure is queryable.
		c.store.PutExtraction(ctx, ex)
		c.event(ctx, runID, ds.ID, pub.ID, types.StageExtraction, types.EventFailure, "", start, err)
		return false
	}
	if perr := c.store.PutExtraction(ctx, ex); perr != nil {
		c.event(ctx, runID, ds.ID, pub.ID, types.StageExtraction, types.EventFailure, "", start, perr)
		return false
	}
	c.event(ctx, runID, ds.ID, pub.ID, types.StageExtraction, types.EventSuccess, ex.QualityGrade, start, nil)
	return true
}

// finish moves the dataset to its terminal status and drops the cached view.
func (c *Coordinator) finish(ctx context.Context, datasetID string, status types.ProcessingStatus) {
	if err := c.store.SetDatasetStatus(ctx, datasetID, status); err != nil {
		c.log.Error().Err(err).Str("dataset", datasetID).Msg("setting dataset status")
	}
	if c.cache != nil {
		c.cache.Invalidate(datasetID)
	}
}

// event appends one pipeline event with its elapsed duration.
func (c *Coordinator) event(ctx context.Context, runID, datasetID string, pubID int64, stage types.Stage, typ types.EventType, msg string, start time.Time, err error) {
	ev := types.PipelineEvent{
		RunID:         runID,
		DatasetID:     datasetID,
		PublicationID: pubID,
		Stage:         stage,
		Type:          typ,
		Message:       msg,
		DurationMS:    time.Since(start).Milliseconds(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if aerr := c.store.AppendEvent(ctx, ev); aerr != nil {
		c.log.Error().Err(aerr).Msg("appending pipeline event")
	}
}

// tally folds the run's event log into per-stage summary counters.
func (c *Coordinator) tally(ctx context.Context, runID string, summary *types.RunSummary) {
	events, err := c.store.Events(ctx, store.EventFilter{RunID: runID})
	if err != nil {
		c.log.Error().Err(err).Msg("reading run events")
		return
	}
	for _, ev := range events {
		sc := summary.StageFor(ev.Stage)
		switch ev.Type {
		case types.EventSuccess:
			sc.Success++
		case types.EventFailure:
			sc.Failure++
			if ev.Error != "" {
				sc.LastError = ev.Error
			}
		case types.EventSkip:
			sc.Skip++
		}
	}
}
