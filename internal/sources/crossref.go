// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"

	"github.com/pdiddy/corpus-engine/internal/ident"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// doiResolverBase is the Crossref content-negotiation resolver.
var doiResolverBase = "https://doi.org/"

// CrossrefURLSource emits the publisher resolver URL for any publication
// with a DOI. It makes no network calls itself; the resolver redirects to
// the publisher landing page at download time.
type CrossrefURLSource struct{}

// NewCrossrefURLSource builds the resolver source.
func NewCrossrefURLSource() *CrossrefURLSource { return &CrossrefURLSource{} }

// Name returns the source tag.
func (c *CrossrefURLSource) Name() string { return "crossref" }

// BasePriority seeds resolver URL priorities. Resolver URLs usually land
// behind a paywall, so they rank after the open-access sources.
func (c *CrossrefURLSource) BasePriority() int { return 6 }

// URLs returns the doi.org resolver URL, or skipped without a DOI.
func (c *CrossrefURLSource) URLs(_ context.Context, pub types.Publication) URLResult {
	doi := ident.NormalizeDOI(pub.DOI)
	if doi == "" {
		return skippedURLs()
	}
	return okURLs([]types.URLDescriptor{{
		URL:        doiResolverBase + doi,
		Source:     c.Name(),
		Shape:      types.ShapeDOIResolver,
		Confidence: 0.3,
	}})
}
