// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"

	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/internal/ident"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// Shadow-library mirrors. Declared as vars so tests can substitute
// httptest servers; mirrors rotate often enough that deployments override
// them in config anyway.
var (
	sciHubBase = "https://sci-hub.se/"
	libGenBase = "https://libgen.rs/scimag/"
)

// InstitutionalURLSource rewrites publisher resolver URLs through the
// configured library proxy. Proxy URLs require the user's institutional
// session, so descriptors are marked RequiresAuth and only attempted when
// the proxy is reachable from the runtime environment.
type InstitutionalURLSource struct {
	client *httputil.Client
}

// NewInstitutionalURLSource builds the proxy source; the proxy URL lives
// on the shared HTTP client.
func NewInstitutionalURLSource(client *httputil.Client) *InstitutionalURLSource {
	return &InstitutionalURLSource{client: client}
}

// Name returns the source tag.
func (i *InstitutionalURLSource) Name() string { return "institutional" }

// BasePriority seeds proxy URL priorities. Proxy access sits behind the
// open sources but ahead of the shadow libraries.
func (i *InstitutionalURLSource) BasePriority() int { return 7 }

// URLs returns the proxied resolver URL for the publication's DOI.
func (i *InstitutionalURLSource) URLs(_ context.Context, pub types.Publication) URLResult {
	doi := ident.NormalizeDOI(pub.DOI)
	if doi == "" {
		return skippedURLs()
	}
	proxied := i.client.ProxyRewrite(doiResolverBase + doi)
	if proxied == "" {
		return skippedURLs()
	}
	return okURLs([]types.URLDescriptor{{
		URL:          proxied,
		Source:       i.Name(),
		Shape:        types.ShapeDOIResolver,
		Confidence:   0.5,
		RequiresAuth: true,
	}})
}

// SciHubURLSource emits Sci-Hub lookup URLs. Disabled by default; the
// operator opts in per deployment.
type SciHubURLSource struct{}

// NewSciHubURLSource builds the Sci-Hub source.
func NewSciHubURLSource() *SciHubURLSource { return &SciHubURLSource{} }

// Name returns the source tag.
func (s *SciHubURLSource) Name() string { return "scihub" }

// BasePriority puts Sci-Hub last before LibGen.
func (s *SciHubURLSource) BasePriority() int { return 9 }

// URLs returns the Sci-Hub landing URL for the publication's DOI. The
// page embeds the PDF; the landing-page rescue extracts it.
func (s *SciHubURLSource) URLs(_ context.Context, pub types.Publication) URLResult {
	doi := ident.NormalizeDOI(pub.DOI)
	if doi == "" {
		return skippedURLs()
	}
	return okURLs([]types.URLDescriptor{{
		URL:        sciHubBase + doi,
		Source:     s.Name(),
		Shape:      types.ShapeLandingPage,
		Confidence: 0.4,
	}})
}

// LibGenURLSource emits Library Genesis scimag lookup URLs. Disabled by
// default; the operator opts in per deployment.
type LibGenURLSource struct{}

// NewLibGenURLSource builds the LibGen source.
func NewLibGenURLSource() *LibGenURLSource { return &LibGenURLSource{} }

// Name returns the source tag.
func (l *LibGenURLSource) Name() string { return "libgen" }

// BasePriority puts LibGen last overall.
func (l *LibGenURLSource) BasePriority() int { return 10 }

// URLs returns the LibGen scimag search URL for the publication's DOI.
func (l *LibGenURLSource) URLs(_ context.Context, pub types.Publication) URLResult {
	doi := ident.NormalizeDOI(pub.DOI)
	if doi == "" {
		return skippedURLs()
	}
	return okURLs([]types.URLDescriptor{{
		URL:        libGenBase + "?q=" + doi,
		Source:     l.Name(),
		Shape:      types.ShapeLandingPage,
		Confidence: 0.3,
	}})
}
