// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract pulls structured content out of acquired PDFs: named
// sections, tables, bibliography entries, and a deterministic quality
// score. Extraction is pure text heuristics; the same PDF always produces
// the same extraction.
package extract

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// FromPDF extracts structured content from the PDF at path for one
// (dataset, publication) pair. The returned extraction carries the PDF's
// content hash so unchanged files can skip re-extraction.
func FromPDF(path, datasetID string, publicationID int64) (types.ContentExtraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return failed(datasetID, publicationID), fmt.Errorf("reading PDF: %w", err)
	}
	sum := sha256.Sum256(data)

	pages, err := readPages(path)
	if err != nil {
		return failed(datasetID, publicationID), fmt.Errorf("parsing PDF %s: %w", path, err)
	}

	ex := Build(datasetID, publicationID, pages)
	ex.PDFSHA256 = fmt.Sprintf("%x", sum)
	return ex, nil
}

// failed is the zero-quality extraction recorded when a PDF cannot be
// parsed, so the failure is visible in the corpus rather than silent.
func failed(datasetID string, publicationID int64) types.ContentExtraction {
	return types.ContentExtraction{
		DatasetID:     datasetID,
		PublicationID: publicationID,
		QualityScore:  0.0,
		QualityGrade:  "F",
		CreatedAt:     time.Now().UTC(),
	}
}

// readPages returns the plain text of each page.
func readPages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// A single unreadable page degrades that page, not the document.
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// Build assembles an extraction from per-page text. Separated from the PDF
// reader so the heuristics are testable on plain strings.
func Build(datasetID string, publicationID int64, pages []string) types.ContentExtraction {
	text := strings.Join(pages, "\n")

	sections := SplitSections(text)
	refs := ParseReferences(sections["references"])

	ex := types.ContentExtraction{
		DatasetID:     datasetID,
		PublicationID: publicationID,
		Sections:      sections,
		Tables:        ParseTables(text),
		References:    refs,
		PageCount:     len(pages),
		WordCount:     len(strings.Fields(text)),
		CreatedAt:     time.Now().UTC(),
	}
	ex.QualityScore = Score(ex)
	ex.QualityGrade = Grade(ex.QualityScore)
	return ex
}

// Score computes the deterministic quality score in [0,1] from four
// signals, equally weighted: core sections found, text volume, references
// parsed, and pages with any text.
func Score(ex types.ContentExtraction) float64 {
	var score float64

	// Core sections present (abstract, methods, results count most).
	core := []string{"abstract", "introduction", "methods", "results", "discussion"}
	found := 0
	for _, name := range core {
		if strings.TrimSpace(ex.Sections[name]) != "" {
			found++
		}
	}
	score += 0.25 * float64(found) / float64(len(core))

	// Text volume: a research article below ~1000 words is likely a failed
	// or partial extraction.
	switch {
	case ex.WordCount >= 3000:
		score += 0.25
	case ex.WordCount >= 1000:
		score += 0.25 * float64(ex.WordCount-1000) / 2000
	}

	// Bibliography parsed.
	switch {
	case len(ex.References) >= 10:
		score += 0.25
	case len(ex.References) > 0:
		score += 0.25 * float64(len(ex.References)) / 10
	}

	// Page coverage: fraction of pages that yielded any text.
	if ex.PageCount > 0 {
		withText := 0
		total := 0
		for _, body := range ex.Sections {
			total += len(strings.Fields(body))
		}
		if total > 0 {
			// Approximate coverage by words per page against a scanned-page
			// floor of 80 words.
			perPage := float64(total) / float64(ex.PageCount)
			if perPage >= 80 {
				withText = ex.PageCount
			} else {
				withText = int(float64(ex.PageCount) * perPage / 80)
			}
		}
		score += 0.25 * float64(withText) / float64(ex.PageCount)
	}

	if score > 1 {
		score = 1
	}
	return score
}

// Grade maps a quality score to its letter grade.
func Grade(score float64) string {
	switch {
	case score >= 0.85:
		return "A"
	case score >= 0.70:
		return "B"
	case score >= 0.55:
		return "C"
	case score >= 0.40:
		return "D"
	default:
		return "F"
	}
}
