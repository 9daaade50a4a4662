// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pdiddy/corpus-engine/internal/ident"
	"github.com/pdiddy/corpus-engine/internal/sources"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// sourceOutcome is one citation source's contribution to a seed.
type sourceOutcome struct {
	source string
	result sources.CitationResult
}

// discoverCitations fans the seed publication out to every citation source
// and merges the results as they complete. Each source gets its own
// deadline; one slow provider never stalls the stage. Results come back
// sorted by canonical identifier so downstream writes happen in the same
// order no matter which source finished first. The returned map credits
// each source with the papers it contributed that survived deduplication.
func (c *Coordinator) discoverCitations(ctx context.Context, seed types.Publication) ([]discovered, map[string]int, []error) {
	var deferred []sources.CitationSource
	outcomes := make(chan sourceOutcome, 2*len(c.citation))
	var wg sync.WaitGroup

	launch := func(src sources.CitationSource) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, c.cfg.Pipeline.DiscoveryDeadline)
			defer cancel()
			res := src.Citations(callCtx, seed)
			if res.Status != sources.StatusSkipped {
				c.policy.record(src.Name(), res.Status == sources.StatusOK)
			}
			outcomes <- sourceOutcome{source: src.Name(), result: res}
		}()
	}

	launched := 0
	for _, src := range c.citation {
		switch c.policy.decide(src.Name(), src.Priority()) {
		case runNow:
			launch(src)
			launched++
		case runDeferred:
			deferred = append(deferred, src)
		case skipSource:
			c.log.Debug().Str("source", src.Name()).Msg("skipping low-reliability source")
		}
	}

	merged := newMerger()
	var errs []error
	collect := func(n int) {
		for i := 0; i < n; i++ {
			out := <-outcomes
			switch out.result.Status {
			case sources.StatusOK:
				added := merged.addAll(out.result.Publications, out.source)
				merged.credit(out.source, added)
			case sources.StatusFailed:
				errs = append(errs, out.result.Err)
			}
		}
	}
	collect(launched)

	// Deferred sources run only when the reliable ones produced nothing.
	if merged.len() == 0 && len(deferred) > 0 {
		for _, src := range deferred {
			launch(src)
		}
		collect(len(deferred))
	}

	go func() { wg.Wait(); close(outcomes) }()

	return merged.ordered(), merged.credits, errs
}

// discovered pairs a merged publication with the source that first
// contributed it.
type discovered struct {
	pub      types.Publication
	strategy string
}

// merger deduplicates publications across sources by their canonical key,
// merging richer fields into the first-seen record. Each record remembers
// the source that introduced it.
type merger struct {
	index   map[string]int
	keys    []string
	pubs    []types.Publication
	srcs    []string
	credits map[string]int
}

func newMerger() *merger {
	return &merger{index: make(map[string]int), credits: make(map[string]int)}
}

func (m *merger) len() int { return len(m.pubs) }

// addAll merges a batch and returns how many were new.
func (m *merger) addAll(pubs []types.Publication, source string) int {
	added := 0
	for _, p := range pubs {
		if m.add(p, source) {
			added++
		}
	}
	return added
}

func (m *merger) add(p types.Publication, source string) bool {
	key := ident.DedupKey(p)
	if key == "" {
		return false
	}
	i, ok := m.index[key]
	if !ok {
		m.index[key] = len(m.pubs)
		m.keys = append(m.keys, key)
		m.pubs = append(m.pubs, p)
		m.srcs = append(m.srcs, source)
		return true
	}

	// Fill fields the first record was missing.
	cur := &m.pubs[i]
	if cur.PMID == "" {
		cur.PMID = ident.NormalizePMID(p.PMID)
	}
	if cur.DOI == "" {
		cur.DOI = ident.NormalizeDOI(p.DOI)
	}
	if cur.PMCID == "" {
		cur.PMCID = ident.NormalizePMC(p.PMCID)
	}
	if cur.ArxivID == "" {
		cur.ArxivID = ident.NormalizeArxiv(p.ArxivID)
	}
	if cur.Title == "" {
		cur.Title = p.Title
	}
	if len(cur.Authors) == 0 {
		cur.Authors = p.Authors
	}
	if cur.Journal == "" {
		cur.Journal = p.Journal
	}
	if cur.Year == 0 {
		cur.Year = p.Year
	}
	if len(cur.ProviderRaw) == 0 {
		cur.ProviderRaw = p.ProviderRaw
	}
	return false
}

func (m *merger) credit(source string, n int) {
	if n > 0 {
		m.credits[source] += n
	}
}

// ordered returns the merged records sorted by canonical key. Sources
// finish in arbitrary order; sorting here keeps persistence reproducible
// across runs of the same inputs.
func (m *merger) ordered() []discovered {
	idx := make([]int, len(m.pubs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return m.keys[idx[a]] < m.keys[idx[b]] })

	out := make([]discovered, len(idx))
	for i, j := range idx {
		out[i] = discovered{pub: m.pubs[j], strategy: m.srcs[j]}
	}
	return out
}

// runDiscovery executes the discovery stage for one dataset: resolve the
// original publications from the catalog's PMIDs, then find citing papers
// for each original, persisting and linking everything found.
func (c *Coordinator) runDiscovery(ctx context.Context, runID string, ds types.Dataset, pmids []string) ([]types.Publication, error) {
	start := time.Now()

	originals, err := c.metadata.Summaries(ctx, pmids)
	if err != nil {
		c.event(ctx, runID, ds.ID, 0, types.StageDiscovery, types.EventFailure, "resolving original publications", start, err)
		return nil, err
	}

	var all []types.Publication
	for _, orig := range originals {
		id, err := c.store.UpsertPublication(ctx, orig)
		if err != nil {
			return nil, err
		}
		orig.ID = id
		if err := c.store.Link(ctx, ds.ID, id, types.RelOriginal, c.metadata.Name()); err != nil {
			return nil, err
		}
		all = append(all, orig)
	}

	citingSeen := 0
	seenIDs := make(map[int64]bool, len(all))
	for _, orig := range all {
		seenIDs[orig.ID] = true
	}
	for _, orig := range originals {
		citing, credits, errs := c.discoverCitations(ctx, orig)
		for source, n := range credits {
			c.store.AddUniquePapers(ctx, source, n)
		}
		for _, derr := range errs {
			c.log.Warn().Err(derr).Str("dataset", ds.ID).Msg("citation source failed")
		}

		for _, d := range citing {
			if c.cfg.Pipeline.MaxCitingPapers > 0 && citingSeen >= c.cfg.Pipeline.MaxCitingPapers {
				break
			}
			id, err := c.store.UpsertPublication(ctx, d.pub)
			if err != nil {
				c.log.Warn().Err(err).Msg("persisting citing publication")
				continue
			}
			d.pub.ID = id
			if err := c.store.Link(ctx, ds.ID, id, types.RelCiting, d.strategy); err != nil {
				return nil, err
			}
			if seenIDs[id] {
				continue
			}
			seenIDs[id] = true
			all = append(all, d.pub)
			citingSeen++
		}
	}

	c.event(ctx, runID, ds.ID, 0, types.StageDiscovery, types.EventSuccess, "", start, nil)
	return all, nil
}
