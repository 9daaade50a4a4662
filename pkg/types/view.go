// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// PublicationGroups splits a dataset's publications by relationship.
type PublicationGroups struct {
	Original []Publication `json:"original" yaml:"original"`
	Citing   []Publication `json:"citing" yaml:"citing"`
}

// PublicationDetail is the per-publication subtree of the aggregate view:
// every discovered URL, every download attempt, and the extraction if any.
type PublicationDetail struct {
	URLs       []URLDescriptor    `json:"urls" yaml:"urls"`
	Downloads  []DownloadAttempt  `json:"downloads" yaml:"downloads"`
	Extraction *ContentExtraction `json:"extraction,omitempty" yaml:"extraction,omitempty"`
}

// ViewCounts are the derived counts included with the aggregate view.
type ViewCounts struct {
	PublicationsTotal int `json:"publications_total" yaml:"publications_total"`
	PDFsAcquired      int `json:"pdfs_acquired" yaml:"pdfs_acquired"`
	PDFsExtracted     int `json:"pdfs_extracted" yaml:"pdfs_extracted"`
}

// AggregateView bundles a dataset and its full downstream subtree in one
// object, shaped for frontend consumption. Keys of PerPublication are the
// decimal publication IDs.
type AggregateView struct {
	Dataset        Dataset                      `json:"dataset" yaml:"dataset"`
	Publications   PublicationGroups            `json:"publications" yaml:"publications"`
	PerPublication map[string]PublicationDetail `json:"per_publication" yaml:"per_publication"`
	Counts         ViewCounts                   `json:"counts" yaml:"counts"`
}

// StageCount summarizes one stage's outcomes across a run.
type StageCount struct {
	Success int `json:"success" yaml:"success"`
	Failure int `json:"failure" yaml:"failure"`
	Skip    int `json:"skip" yaml:"skip"`

	// LastError is a representative error message from the stage, if any.
	LastError string `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// RunSummary is returned by the coordinator for one dataset run. The
// coordinator never fails past its boundary; per-stage outcomes land here.
type RunSummary struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	DatasetID string    `json:"dataset_id" yaml:"dataset_id"`
	Started   time.Time `json:"started" yaml:"started"`

	Duration time.Duration `json:"duration" yaml:"duration"`

	Publications int `json:"publications" yaml:"publications"`
	Acquired     int `json:"acquired" yaml:"acquired"`
	Extracted    int `json:"extracted" yaml:"extracted"`

	Stages map[Stage]*StageCount `json:"stages" yaml:"stages"`
}

// StageFor returns the summary counter for stage, creating it on first use.
func (r *RunSummary) StageFor(stage Stage) *StageCount {
	if r.Stages == nil {
		r.Stages = make(map[Stage]*StageCount)
	}
	sc, ok := r.Stages[stage]
	if !ok {
		sc = &StageCount{}
		r.Stages[stage] = sc
	}
	return sc
}
