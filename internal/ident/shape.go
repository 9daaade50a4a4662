// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ident

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// pdfHosts are servers that serve PDFs directly regardless of path shape.
var pdfHosts = map[string]bool{
	"arxiv.org":            true,
	"export.arxiv.org":     true,
	"ftp.ncbi.nlm.nih.gov": true,
}

// doiResolverHosts resolve a DOI to a publisher landing page.
var doiResolverHosts = map[string]bool{
	"doi.org":    true,
	"dx.doi.org": true,
}

// landingHosts are known article landing-page servers.
var landingHosts = map[string]bool{
	"www.ncbi.nlm.nih.gov":    true,
	"pubmed.ncbi.nlm.nih.gov": true,
	"link.springer.com":       true,
	"www.nature.com":          true,
	"onlinelibrary.wiley.com": true,
}

// ClassifyURL determines the shape of a URL from the string alone. The
// classification is idempotent: reclassifying a URL yields the same shape.
func ClassifyURL(rawURL string) types.URLShape {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return types.ShapeUnknown
	}

	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)

	if doiResolverHosts[host] {
		return types.ShapeDOIResolver
	}
	if strings.HasSuffix(path, ".pdf") || strings.Contains(path, "/pdf/") || strings.HasSuffix(path, "/pdf") {
		return types.ShapePDFDirect
	}
	if pdfHosts[host] {
		return types.ShapePDFDirect
	}
	if strings.Contains(path, "/fulltext") || strings.Contains(path, "/full/") || strings.HasSuffix(path, "/full") {
		return types.ShapeHTMLFullText
	}
	if landingHosts[host] || strings.Contains(path, "/article") || strings.Contains(path, "/abs/") {
		return types.ShapeLandingPage
	}
	return types.ShapeUnknown
}

const (
	// MinPDFSize and MaxPDFSize bound acceptable PDF payloads.
	MinPDFSize = 1 << 10   // 1 KB
	MaxPDFSize = 100 << 20 // 100 MB
)

var pdfMagic = []byte("%PDF")

// ValidatePDF checks that body is a plausible PDF: size within bounds and
// the four-byte magic present. The error detail distinguishes HTML bodies
// so callers can attempt a landing-page rescue.
func ValidatePDF(body []byte) error {
	if len(body) < MinPDFSize {
		return fmt.Errorf("pdf too small: %d bytes", len(body))
	}
	if len(body) > MaxPDFSize {
		return fmt.Errorf("pdf too large: %d bytes", len(body))
	}
	if bytes.HasPrefix(body, pdfMagic) {
		return nil
	}
	if IsHTML(body) {
		return fmt.Errorf("body is HTML, not PDF")
	}
	return fmt.Errorf("missing %%PDF magic")
}

// IsHTML reports whether body starts with an HTML document marker.
func IsHTML(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	lower := bytes.ToLower(trimmed)
	return bytes.HasPrefix(lower, []byte("<!doctype")) || bytes.HasPrefix(lower, []byte("<html"))
}
