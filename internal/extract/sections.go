// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"regexp"
	"strings"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// sectionLexicon maps heading variants to canonical section names. Matching
// is case-insensitive against the whole heading line after numbering is
// stripped.
var sectionLexicon = map[string]string{
	"abstract":                "abstract",
	"summary":                 "abstract",
	"introduction":            "introduction",
	"background":              "introduction",
	"methods":                 "methods",
	"materials and methods":   "methods",
	"methods and materials":   "methods",
	"experimental procedures": "methods",
	"star methods":            "methods",
	"results":                 "results",
	"results and discussion":  "results",
	"discussion":              "discussion",
	"conclusion":              "discussion",
	"conclusions":             "discussion",
	"references":              "references",
	"bibliography":            "references",
	"literature cited":        "references",
}

// headingNumberRe strips leading section numbering like "1.", "2.3", "IV.".
var headingNumberRe = regexp.MustCompile(`^(?:\d+(?:\.\d+)*\.?|[IVX]+\.)\s*`)

// SplitSections buckets text into canonical sections by scanning for
// heading lines. Text before the first recognized heading and text under
// unrecognized headings lands in "other".
func SplitSections(text string) map[string]string {
	sections := make(map[string]string)
	current := "other"
	var buf strings.Builder

	flush := func() {
		if body := strings.TrimSpace(buf.String()); body != "" {
			if prev := sections[current]; prev != "" {
				sections[current] = prev + "\n" + body
			} else {
				sections[current] = body
			}
		}
		buf.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		if name, ok := matchHeading(line); ok {
			flush()
			current = name
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	flush()
	return sections
}

// matchHeading reports whether the line is a recognized section heading.
// Heading lines are short; a lexicon word inside running prose does not
// start a section.
func matchHeading(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || len(trimmed) > 60 {
		return "", false
	}
	trimmed = headingNumberRe.ReplaceAllString(trimmed, "")
	key := strings.ToLower(strings.TrimRight(trimmed, ":. "))
	name, ok := sectionLexicon[key]
	return name, ok
}

// tableCaptionRe matches table captions like "Table 1." or "Table S2:".
var tableCaptionRe = regexp.MustCompile(`^Table\s+S?\d+[.:]\s*(.*)$`)

// ParseTables finds table captions and collects the following lines as raw
// rows until a blank line or the next caption.
func ParseTables(text string) []types.Table {
	var tables []types.Table
	var current *types.Table

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := tableCaptionRe.FindStringSubmatch(trimmed); m != nil {
			if current != nil {
				tables = append(tables, *current)
			}
			current = &types.Table{Caption: strings.TrimSpace(m[0])}
			continue
		}
		if current == nil {
			continue
		}
		if trimmed == "" {
			tables = append(tables, *current)
			current = nil
			continue
		}
		current.Rows = append(current.Rows, trimmed)
	}
	if current != nil {
		tables = append(tables, *current)
	}
	return tables
}

// Reference parsing patterns.
var (
	// refEntryRe matches numbered bibliography entries: "1. Doe J ..." or
	// "[1] Doe J ...".
	refEntryRe = regexp.MustCompile(`(?m)^\s*(?:\[\d+\]|\d{1,3}\.)\s+(.+)$`)

	// doiInTextRe finds a DOI anywhere in an entry.
	doiInTextRe = regexp.MustCompile(`10\.\d{4,9}/[^\s;,]+`)

	// pmidInTextRe finds an explicit PMID marker.
	pmidInTextRe = regexp.MustCompile(`PMID:?\s*(\d{1,9})`)
)

// ParseReferences parses numbered bibliography entries from the references
// section, pulling out DOIs and PMIDs where present.
func ParseReferences(refText string) []types.Reference {
	if strings.TrimSpace(refText) == "" {
		return nil
	}

	var refs []types.Reference
	for _, m := range refEntryRe.FindAllStringSubmatch(refText, -1) {
		raw := strings.TrimSpace(m[1])
		if raw == "" {
			continue
		}
		ref := types.Reference{Raw: raw}
		if doi := doiInTextRe.FindString(raw); doi != "" {
			ref.DOI = strings.ToLower(strings.TrimRight(doi, "."))
		}
		if pm := pmidInTextRe.FindStringSubmatch(raw); pm != nil {
			ref.PMID = pm[1]
		}
		refs = append(refs, ref)
	}
	return refs
}
