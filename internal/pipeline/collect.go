// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/corpus-engine/internal/ident"
	"github.com/pdiddy/corpus-engine/internal/sources"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// shapeAdjust tunes a descriptor's priority by what the URL points at: a
// direct PDF beats its source's base rank, resolvers and landing pages fall
// behind it.
func shapeAdjust(base int, shape types.URLShape) int {
	switch shape {
	case types.ShapePDFDirect:
		base--
	case types.ShapeLandingPage:
		base++
	case types.ShapeDOIResolver:
		base += 2
	}
	if base < 1 {
		base = 1
	}
	return base
}

// collectURLs fans one publication out to every URL source, assigns final
// priorities, and persists the merged list. Returns the publication's URL
// list after the merge, sorted for the download waterfall.
func (c *Coordinator) collectURLs(ctx context.Context, runID string, ds types.Dataset, pub types.Publication) ([]types.URLDescriptor, error) {
	start := time.Now()

	// Restart shortcut: a publication with an acquired PDF needs no more URLs.
	if done, _, err := c.store.HasSuccessfulDownload(ctx, pub.ID); err != nil {
		return nil, err
	} else if done {
		c.event(ctx, runID, ds.ID, pub.ID, types.StageCollection, types.EventSkip, "already acquired", start, nil)
		return nil, nil
	}

	type urlOutcome struct {
		source string
		base   int
		result sources.URLResult
	}
	outcomes := make(chan urlOutcome, len(c.urls))
	var wg sync.WaitGroup
	for _, src := range c.urls {
		wg.Add(1)
		go func(src sources.URLSource) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, c.cfg.Pipeline.CollectionDeadline)
			defer cancel()
			outcomes <- urlOutcome{source: src.Name(), base: src.BasePriority(), result: src.URLs(callCtx, pub)}
		}(src)
	}
	go func() { wg.Wait(); close(outcomes) }()

	var discovered []types.URLDescriptor
	var failed []string
	for out := range outcomes {
		switch out.result.Status {
		case sources.StatusOK:
			for _, d := range out.result.URLs {
				if d.Shape == "" {
					d.Shape = ident.ClassifyURL(d.URL)
				}
				if d.Shape == types.ShapeUnknown && c.cfg.Sources.ProbeUnknownURLs {
					d.Shape = c.probeShape(ctx, d.URL)
				}
				d.Priority = shapeAdjust(out.base, d.Shape)
				discovered = append(discovered, d)
			}
		case sources.StatusFailed:
			failed = append(failed, out.source)
			c.log.Debug().Err(out.result.Err).Str("source", out.source).Int64("publication", pub.ID).Msg("url source failed")
		}
	}

	if len(discovered) == 0 {
		// Nothing collected. Source failures make that a stage failure
		// naming the sources; an all-skip round is a plain skip.
		if len(failed) > 0 {
			sort.Strings(failed)
			c.event(ctx, runID, ds.ID, pub.ID, types.StageCollection, types.EventFailure,
				strings.Join(failed, ","), start,
				fmt.Errorf("%d url source(s) failed, no urls collected", len(failed)))
			return nil, nil
		}
		c.event(ctx, runID, ds.ID, pub.ID, types.StageCollection, types.EventSkip, "no urls discovered", start, nil)
		return nil, nil
	}

	// Stable order before the merge so equal-priority URLs keep a
	// deterministic sequence regardless of goroutine completion order.
	sort.SliceStable(discovered, func(i, j int) bool {
		if discovered[i].Priority != discovered[j].Priority {
			return discovered[i].Priority < discovered[j].Priority
		}
		if discovered[i].Confidence != discovered[j].Confidence {
			return discovered[i].Confidence > discovered[j].Confidence
		}
		return discovered[i].URL < discovered[j].URL
	})

	if err := c.store.AppendURLs(ctx, pub.ID, discovered); err != nil {
		c.event(ctx, runID, ds.ID, pub.ID, types.StageCollection, types.EventFailure, "", start, err)
		return nil, err
	}

	stored, err := c.store.GetPublication(ctx, pub.ID)
	if err != nil {
		return nil, err
	}

	waterfall := make([]types.URLDescriptor, len(stored.URLs))
	copy(waterfall, stored.URLs)
	sort.SliceStable(waterfall, func(i, j int) bool {
		if waterfall[i].Priority != waterfall[j].Priority {
			return waterfall[i].Priority < waterfall[j].Priority
		}
		return waterfall[i].Confidence > waterfall[j].Confidence
	})

	c.event(ctx, runID, ds.ID, pub.ID, types.StageCollection, types.EventSuccess, "", start, nil)
	return waterfall, nil
}

// probeShape classifies an unknown URL by its Content-Type.
func (c *Coordinator) probeShape(ctx context.Context, rawURL string) types.URLShape {
	resp, err := c.client.Head(ctx, rawURL)
	if err != nil {
		return types.ShapeUnknown
	}
	switch {
	case contentTypeIs(resp.Header.Get("Content-Type"), "application/pdf"):
		return types.ShapePDFDirect
	case contentTypeIs(resp.Header.Get("Content-Type"), "text/html"):
		return types.ShapeLandingPage
	}
	return types.ShapeUnknown
}

func contentTypeIs(header, want string) bool {
	return len(header) >= len(want) && header[:len(want)] == want
}
