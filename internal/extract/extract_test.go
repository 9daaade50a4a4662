// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"strings"
	"testing"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

const samplePaper = `A single-cell atlas of the human kidney

Abstract
We profiled 40,000 cells from twelve donors and identified novel cell states.

1. Introduction
Kidney disease affects millions of people worldwide.

2. Materials and Methods
Samples were dissociated and sequenced on a 10x Chromium platform.

Table 1. Donor characteristics.
Donor Age Sex
D1 54 F
D2 61 M

3. Results
We identified 28 distinct cell populations.

4. Discussion
Our atlas extends previous maps of the nephron.

References
1. Doe J, Roe R. Kidney cell types revisited. Nat Methods. 2020. doi:10.1038/s41592-020-0825-9
2. Poe P. Single-cell protocols. PMID: 31178118
3. Moe M. An entry with no identifiers. J Hist Stud. 1999.
`

func TestSplitSections(t *testing.T) {
	sections := SplitSections(samplePaper)

	tests := []struct {
		section string
		want    string
	}{
		{"abstract", "We profiled 40,000 cells"},
		{"introduction", "Kidney disease"},
		{"methods", "10x Chromium"},
		{"results", "28 distinct cell populations"},
		{"discussion", "extends previous maps"},
		{"references", "Kidney cell types revisited"},
	}
	for _, tt := range tests {
		if !strings.Contains(sections[tt.section], tt.want) {
			t.Errorf("section %q = %q, want it to contain %q", tt.section, sections[tt.section], tt.want)
		}
	}

	// The title line precedes any heading and must land in "other".
	if !strings.Contains(sections["other"], "single-cell atlas of the human kidney") {
		t.Errorf("other = %q", sections["other"])
	}
}

func TestMatchHeading(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"Abstract", "abstract", true},
		{"ABSTRACT:", "abstract", true},
		{"2. Materials and Methods", "methods", true},
		{"IV. Results", "results", true},
		{"Literature Cited", "references", true},
		{"The methods we used were standard.", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := matchHeading(tt.line)
		if got != tt.want || ok != tt.ok {
			t.Errorf("matchHeading(%q) = %q, %v; want %q, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseTables(t *testing.T) {
	tables := ParseTables(samplePaper)
	if len(tables) != 1 {
		t.Fatalf("tables = %d, want 1", len(tables))
	}
	if !strings.HasPrefix(tables[0].Caption, "Table 1.") {
		t.Errorf("caption = %q", tables[0].Caption)
	}
	if len(tables[0].Rows) != 3 {
		t.Errorf("rows = %v", tables[0].Rows)
	}
}

func TestParseReferences(t *testing.T) {
	sections := SplitSections(samplePaper)
	refs := ParseReferences(sections["references"])
	if len(refs) != 3 {
		t.Fatalf("references = %d, want 3", len(refs))
	}
	if refs[0].DOI != "10.1038/s41592-020-0825-9" {
		t.Errorf("ref DOI = %q", refs[0].DOI)
	}
	if refs[1].PMID != "31178118" {
		t.Errorf("ref PMID = %q", refs[1].PMID)
	}
	if refs[2].DOI != "" || refs[2].PMID != "" {
		t.Errorf("plain ref picked up identifiers: %+v", refs[2])
	}

	if got := ParseReferences(""); got != nil {
		t.Errorf("empty references = %v", got)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	pages := []string{samplePaper}
	a := Build("GSE1", 7, pages)
	b := Build("GSE1", 7, pages)
	if a.QualityScore != b.QualityScore || a.WordCount != b.WordCount {
		t.Errorf("extraction not deterministic: %v vs %v", a.QualityScore, b.QualityScore)
	}
	if a.PageCount != 1 {
		t.Errorf("page count = %d", a.PageCount)
	}
	if a.QualityGrade != Grade(a.QualityScore) {
		t.Errorf("grade %q does not match score %v", a.QualityGrade, a.QualityScore)
	}
}

func TestScoreSignals(t *testing.T) {
	// A rich extraction scores high.
	rich := types.ContentExtraction{
		Sections: map[string]string{
			"abstract":     strings.Repeat("word ", 200),
			"introduction": strings.Repeat("word ", 600),
			"methods":      strings.Repeat("word ", 900),
			"results":      strings.Repeat("word ", 900),
			"discussion":   strings.Repeat("word ", 600),
		},
		WordCount:  3200,
		PageCount:  10,
		References: make([]types.Reference, 35),
	}
	if got := Score(rich); got < 0.85 {
		t.Errorf("rich extraction scored %v, want >= 0.85", got)
	}

	// An empty extraction scores zero.
	if got := Score(types.ContentExtraction{}); got != 0 {
		t.Errorf("empty extraction scored %v, want 0", got)
	}

	// Scores are monotone in references.
	few := rich
	few.References = make([]types.Reference, 2)
	if Score(few) >= Score(rich) {
		t.Error("fewer references should not score higher")
	}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.95, "A"}, {0.85, "A"}, {0.84, "B"}, {0.70, "B"},
		{0.60, "C"}, {0.45, "D"}, {0.39, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		if got := Grade(tt.score); got != tt.want {
			t.Errorf("Grade(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestFromPDFFailureYieldsZeroQuality(t *testing.T) {
	ex, err := FromPDF("/nonexistent/paper.pdf", "GSE1", 3)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if ex.QualityScore != 0 || ex.QualityGrade != "F" {
		t.Errorf("failed extraction = %+v, want zero quality", ex)
	}
	if ex.DatasetID != "GSE1" || ex.PublicationID != 3 {
		t.Errorf("failed extraction lost its keys: %+v", ex)
	}
}
