// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// CompleteView assembles the dataset's full downstream subtree: the dataset
// record, its publications grouped by relationship, and per-publication
// URLs, download attempts, and extraction. Counts are derived from the rows
// read, not from the materialized counters, so the view is internally
// consistent even mid-run.
func (s *Store) CompleteView(ctx context.Context, datasetID string) (*types.AggregateView, error) {
	ds, err := s.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	groups, err := s.PublicationsForDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	view := &types.AggregateView{
		Dataset:        *ds,
		Publications:   *groups,
		PerPublication: make(map[string]types.PublicationDetail),
	}

	all := make([]types.Publication, 0, len(groups.Original)+len(groups.Citing))
	all = append(all, groups.Original...)
	all = append(all, groups.Citing...)
	view.Counts.PublicationsTotal = len(all)

	for _, pub := range all {
		detail := types.PublicationDetail{URLs: pub.URLs}

		detail.Downloads, err = s.AttemptsForPublication(ctx, pub.ID)
		if err != nil {
			return nil, fmt.Errorf("assembling view for %s: %w", datasetID, err)
		}
		for _, att := range detail.Downloads {
			if att.Status == types.DownloadSuccess {
				view.Counts.PDFsAcquired++
				break
			}
		}

		ex, err := s.GetExtraction(ctx, pub.ID, datasetID)
		switch {
		case err == nil:
			detail.Extraction = ex
			view.Counts.PDFsExtracted++
		case !errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("assembling view for %s: %w", datasetID, err)
		}

		view.PerPublication[strconv.FormatInt(pub.ID, 10)] = detail
	}

	return view, nil
}
