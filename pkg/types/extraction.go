// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Table is one table extracted from a PDF: a caption plus raw rows.
type Table struct {
	Caption string   `json:"caption" yaml:"caption"`
	Rows    []string `json:"rows" yaml:"rows"`
}

// Reference is one bibliography entry with whatever identifiers were parsable.
type Reference struct {
	Raw  string `json:"raw" yaml:"raw"`
	DOI  string `json:"doi,omitempty" yaml:"doi,omitempty"`
	PMID string `json:"pmid,omitempty" yaml:"pmid,omitempty"`
}

// ContentExtraction holds the structured content pulled from one acquired
// PDF, keyed by (dataset, publication). Re-extraction replaces the row
// wholesale.
type ContentExtraction struct {
	DatasetID     string `json:"dataset_id" yaml:"dataset_id"`
	PublicationID int64  `json:"publication_id" yaml:"publication_id"`

	// Sections maps a section name (abstract, methods, ...) to its text.
	// Text under unrecognized headings is bucketed as "other".
	Sections map[string]string `json:"sections" yaml:"sections"`

	Tables     []Table     `json:"tables,omitempty" yaml:"tables,omitempty"`
	References []Reference `json:"references,omitempty" yaml:"references,omitempty"`

	PageCount int `json:"page_count" yaml:"page_count"`
	WordCount int `json:"word_count" yaml:"word_count"`

	// QualityScore is a deterministic score in [0,1]; QualityGrade is its
	// letter mapping (A >= 0.85, B >= 0.70, C >= 0.55, D >= 0.40, else F).
	QualityScore float64 `json:"quality_score" yaml:"quality_score"`
	QualityGrade string  `json:"quality_grade" yaml:"quality_grade"`

	// PDFSHA256 is the content hash of the PDF the extraction came from;
	// re-extraction is skipped while the hash is unchanged.
	PDFSHA256 string `json:"pdf_sha256,omitempty" yaml:"pdf_sha256,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}
