// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/corpus-engine/internal/ident"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// manifest sits next to each acquired PDF and records where it came from.
type manifest struct {
	PublicationID int64     `json:"publication_id"`
	DatasetID     string    `json:"dataset_id"`
	URL           string    `json:"url"`
	Source        string    `json:"source"`
	SHA256        string    `json:"sha256"`
	FileSize      int64     `json:"file_size"`
	DownloadedAt  time.Time `json:"downloaded_at"`
}

// downloadPDF walks the publication's URL waterfall until one yields a
// valid PDF, logging every attempt. The whole waterfall runs under the
// stage's download deadline. Returns the stored path, or "" when every
// candidate failed.
func (c *Coordinator) downloadPDF(ctx context.Context, runID string, ds types.Dataset, pub types.Publication, rel types.Relationship, urls []types.URLDescriptor) (string, error) {
	start := time.Now()

	if done, path, err := c.store.HasSuccessfulDownload(ctx, pub.ID); err != nil {
		return "", err
	} else if done {
		c.event(ctx, runID, ds.ID, pub.ID, types.StageDownload, types.EventSkip, "already acquired", start, nil)
		return path, nil
	}
	if len(urls) == 0 {
		c.event(ctx, runID, ds.ID, pub.ID, types.StageDownload, types.EventSkip, "no urls", start, nil)
		return "", nil
	}

	maxAttempts := c.cfg.Acquisition.MaxAttemptsPerPublication
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	deadline := c.cfg.Pipeline.DownloadDeadline
	if deadline <= 0 {
		deadline = 2 * time.Minute
	}
	dlCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	attempts := 0
	for _, d := range urls {
		if attempts >= maxAttempts || dlCtx.Err() != nil {
			break
		}
		attempts++

		body, finalURL, err := c.fetchPDF(dlCtx, d.URL)
		if err == nil {
			if path, ok := c.finishDownload(ctx, runID, ds, pub, rel, d, d.URL, body, start); ok {
				return path, nil
			}
			continue
		}
		c.store.AppendAttempt(ctx, types.DownloadAttempt{
			PublicationID: pub.ID,
			URL:           d.URL,
			Source:        d.Source,
			Status:        types.DownloadFailed,
			Error:         err.Error(),
		})

		// Landing-page rescue: scan the HTML for an embedded PDF link and
		// fetch it as a separate attempt with its own row.
		if !ident.IsHTML(body) || attempts >= maxAttempts || dlCtx.Err() != nil {
			continue
		}
		link, ok := findPDFLink(body, finalURL)
		if !ok {
			continue
		}
		attempts++
		rescued, _, rerr := c.fetchPDF(dlCtx, link)
		if rerr != nil {
			c.store.AppendAttempt(ctx, types.DownloadAttempt{
				PublicationID: pub.ID,
				URL:           link,
				Source:        d.Source,
				Status:        types.DownloadFailed,
				Error:         rerr.Error(),
			})
			continue
		}
		if path, ok := c.finishDownload(ctx, runID, ds, pub, rel, d, link, rescued, start); ok {
			return path, nil
		}
	}

	c.event(ctx, runID, ds.ID, pub.ID, types.StageDownload, types.EventFailure, "waterfall exhausted", start,
		fmt.Errorf("no valid pdf after %d attempts", attempts))
	return "", nil
}

// fetchPDF fetches one URL under its own deadline and validates the body
// as a PDF. On validation failure the body and final URL come back anyway
// so the caller can attempt a landing-page rescue.
func (c *Coordinator) fetchPDF(ctx context.Context, rawURL string) ([]byte, string, error) {
	urlDeadline := c.cfg.Acquisition.URLDeadline
	if urlDeadline <= 0 {
		urlDeadline = time.Minute
	}
	fetchCtx, cancel := context.WithTimeout(ctx, urlDeadline)
	defer cancel()

	resp, err := c.client.Get(fetchCtx, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	if verr := ident.ValidatePDF(resp.Body); verr != nil {
		return resp.Body, resp.FinalURL, verr
	}
	return resp.Body, resp.FinalURL, nil
}

// finishDownload saves a validated PDF, records the successful attempt,
// and emits the stage event. fetchedURL is the URL the bytes actually came
// from, which differs from d.URL after a landing-page rescue.
func (c *Coordinator) finishDownload(ctx context.Context, runID string, ds types.Dataset, pub types.Publication, rel types.Relationship, d types.URLDescriptor, fetchedURL string, body []byte, start time.Time) (string, bool) {
	dd := d
	dd.URL = fetchedURL
	att := types.DownloadAttempt{
		PublicationID: pub.ID,
		URL:           fetchedURL,
		Source:        d.Source,
	}

	path, size, sum, err := c.savePDF(ds.ID, rel, pub, dd, body)
	if err != nil {
		att.Status = types.DownloadFailed
		att.Error = err.Error()
		c.store.AppendAttempt(ctx, att)
		return "", false
	}

	att.Status = types.DownloadSuccess
	att.FilePath = path
	att.FileSize = size
	c.store.AppendAttempt(ctx, att)
	c.event(ctx, runID, ds.ID, pub.ID, types.StageDownload, types.EventSuccess, d.Source, start, nil)
	c.log.Info().Str("dataset", ds.ID).Int64("publication", pub.ID).
		Str("source", d.Source).Str("sha256", sum[:12]).Msg("pdf acquired")
	return path, true
}

// findPDFLink scans an HTML page for its full-text PDF: the
// citation_pdf_url meta tag that scholarly pages carry, else the first
// anchor or embed that points at a .pdf.
func findPDFLink(body []byte, pageURL string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}

	if href, ok := doc.Find(`meta[name="citation_pdf_url"]`).Attr("content"); ok && href != "" {
		return absoluteURL(pageURL, href), true
	}

	var found string
	doc.Find("a[href], embed[src], iframe[src]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			href, ok = sel.Attr("src")
		}
		if !ok {
			return true
		}
		if strings.Contains(strings.ToLower(href), ".pdf") {
			found = absoluteURL(pageURL, href)
			return false
		}
		return true
	})
	return found, found != ""
}

// absoluteURL resolves href against the page it appeared on.
func absoluteURL(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// savePDF writes the PDF under <root>/<dataset>/<relationship>/<id>.pdf
// with a temp-file-then-rename so a crash never leaves a partial PDF at the
// final path, and drops a manifest next to it.
func (c *Coordinator) savePDF(datasetID string, rel types.Relationship, pub types.Publication, d types.URLDescriptor, body []byte) (string, int64, string, error) {
	dir := filepath.Join(c.cfg.Acquisition.PDFsRoot, ident.SanitizeFilename(datasetID), string(rel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, "", fmt.Errorf("creating pdf directory: %w", err)
	}

	final := filepath.Join(dir, ident.UniversalID(pub)+".pdf")

	tmp, err := os.CreateTemp(dir, ".download-*.pdf")
	if err != nil {
		return "", 0, "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", 0, "", fmt.Errorf("writing pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", 0, "", fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", 0, "", fmt.Errorf("moving pdf into place: %w", err)
	}

	sum := fmt.Sprintf("%x", sha256.Sum256(body))
	m := manifest{
		PublicationID: pub.ID,
		DatasetID:     datasetID,
		URL:           d.URL,
		Source:        d.Source,
		SHA256:        sum,
		FileSize:      int64(len(body)),
		DownloadedAt:  time.Now().UTC(),
	}
	if data, err := json.MarshalIndent(m, "", "  "); err == nil {
		// Manifest write failures are tolerable; the attempt row has the facts.
		os.WriteFile(final+".manifest.json", data, 0o644)
	}

	return final, int64(len(body)), sum, nil
}
