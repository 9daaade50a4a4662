// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ident canonicalizes dataset and publication identifiers, classifies
// URL shapes, validates PDF bytes, and derives filesystem-safe names.
package ident

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// datasetPattern matches catalog accessions: "GSE189158", "GDS5072".
var datasetPattern = regexp.MustCompile(`^G(?:SE|DS|SM|PL)\d+$`)

// pmidPattern matches bare PubMed IDs.
var pmidPattern = regexp.MustCompile(`^\d{1,9}$`)

// doiPattern matches DOIs: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// pmcPattern matches PMC IDs with or without the prefix.
var pmcPattern = regexp.MustCompile(`^(?:PMC)?(\d{4,9})$`)

// arxivPattern matches arXiv IDs: "2301.07041", "arXiv:2301.07041", "2301.07041v2".
var arxivPattern = regexp.MustCompile(`^(?:arXiv:)?(\d{4}\.\d{4,5})(v\d+)?$`)

// NormalizeDataset validates and uppercases a catalog accession.
func NormalizeDataset(id string) (string, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if !datasetPattern.MatchString(id) {
		return "", fmt.Errorf("unrecognized dataset accession: %q", id)
	}
	return id, nil
}

// NormalizePMID strips whitespace and validates a PubMed ID.
func NormalizePMID(pmid string) string {
	pmid = strings.TrimSpace(pmid)
	if pmidPattern.MatchString(pmid) {
		return pmid
	}
	return ""
}

// NormalizeDOI lowercases a DOI and strips resolver prefixes and the
// optional "doi:" scheme. Returns "" when the result is not a DOI.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		if strings.HasPrefix(strings.ToLower(doi), prefix) {
			doi = doi[len(prefix):]
			break
		}
	}
	doi = strings.ToLower(doi)
	if !doiPattern.MatchString(doi) {
		return ""
	}
	return doi
}

// NormalizePMC returns the canonical "PMC"-prefixed form, or "".
func NormalizePMC(id string) string {
	id = strings.TrimSpace(strings.ToUpper(id))
	if m := pmcPattern.FindStringSubmatch(id); m != nil {
		return "PMC" + m[1]
	}
	return ""
}

// NormalizeArxiv strips the "arXiv:" prefix. The version suffix is kept.
func NormalizeArxiv(id string) string {
	id = strings.TrimSpace(id)
	if m := arxivPattern.FindStringSubmatch(id); m != nil {
		return m[1] + m[2]
	}
	return ""
}

// DedupKey returns the canonical deduplication key for a publication:
// lowercased DOI, else PMID, else a hash of the normalized title. The
// arXiv version suffix never participates in the key.
func DedupKey(p types.Publication) string {
	if doi := NormalizeDOI(p.DOI); doi != "" {
		return "doi:" + doi
	}
	if pmid := NormalizePMID(p.PMID); pmid != "" {
		return "pmid:" + pmid
	}
	if title := NormalizeTitle(p.Title); title != "" {
		h := sha256.Sum256([]byte(title))
		return fmt.Sprintf("title:%x", h[:8])
	}
	return ""
}

// NormalizeTitle returns a lowercased, punctuation-stripped version of the title.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// UniversalID returns the filename stem for a publication's PDF: PMID if
// present, else DOI slug, else PMC ID, else arXiv ID, else a content-hash
// prefix over whatever fields exist.
func UniversalID(p types.Publication) string {
	if pmid := NormalizePMID(p.PMID); pmid != "" {
		return pmid
	}
	if doi := NormalizeDOI(p.DOI); doi != "" {
		return DOISlug(doi)
	}
	if pmc := NormalizePMC(p.PMCID); pmc != "" {
		return pmc
	}
	if ax := NormalizeArxiv(p.ArxivID); ax != "" {
		return ax
	}
	h := sha256.Sum256([]byte(p.Title + "|" + p.Journal))
	return fmt.Sprintf("pub-%x", h[:8])
}

// DOISlug converts a DOI to a filesystem-safe slug.
func DOISlug(doi string) string {
	return SanitizeFilename(strings.NewReplacer("/", "-", ":", "-").Replace(doi))
}

// SanitizeFilename strips characters that are unsafe in file names.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	s := strings.Trim(b.String(), "-.")
	if s == "" {
		return "unnamed"
	}
	if len(s) > 128 {
		s = s[:128]
	}
	return s
}
