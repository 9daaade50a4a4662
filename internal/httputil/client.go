// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the shared rate-limited HTTP client used by all
// source clients and the download stage. It enforces per-host-group token
// buckets, a global concurrency cap, and a bounded retry policy for
// transient failures. Errors never escape untyped.
package httputil

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// transient failures. Tests override this to avoid real sleeps.
var RetryBaseDelay = 500 * time.Millisecond

// maxBody caps response bodies read into memory. Slightly above the PDF
// size bound so oversize payloads are detected rather than truncated.
const maxBody = 101 << 20

// ErrorKind classifies a request failure.
type ErrorKind string

const (
	KindTimeout          ErrorKind = "timeout"
	KindNetwork          ErrorKind = "network"
	KindHTTPStatus       ErrorKind = "http_status"
	KindTooManyRedirects ErrorKind = "too_many_redirects"
	KindInvalidResponse  ErrorKind = "invalid_response"
)

// Error is the typed failure returned by the client. It never wraps a
// panic; every failure mode maps to a kind.
type Error struct {
	Kind   ErrorKind
	Status int
	Detail string

	retryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// KindOf returns the error kind, or "" for a nil or foreign error.
func KindOf(err error) ErrorKind {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind
	}
	return ""
}

// Response is a completed HTTP exchange. FinalURL reflects redirects.
type Response struct {
	Status   int
	Body     []byte
	FinalURL string
	Header   http.Header
}

// hostGroups maps known provider hosts to a rate-limit group. Hosts not
// listed here are limited individually under the default rate.
var hostGroups = map[string]string{
	"eutils.ncbi.nlm.nih.gov":  "ncbi",
	"www.ncbi.nlm.nih.gov":     "ncbi",
	"pubmed.ncbi.nlm.nih.gov":  "ncbi",
	"api.openalex.org":         "openalex",
	"api.semanticscholar.org":  "semanticscholar",
	"www.ebi.ac.uk":            "europepmc",
	"europepmc.org":            "europepmc",
	"opencitations.net":        "opencitations",
	"api.unpaywall.org":        "unpaywall",
	"api.core.ac.uk":           "core",
	"api.crossref.org":         "crossref",
	"api.biorxiv.org":          "biorxiv",
	"export.arxiv.org":         "arxiv",
	"arxiv.org":                "arxiv",
}

// defaultRates are requests-per-second budgets per group.
var defaultRates = map[string]float64{
	"ncbi":            3,
	"openalex":        10,
	"semanticscholar": 1,
	"europepmc":       10,
	"opencitations":   3,
	"unpaywall":       5,
	"core":            3,
	"crossref":        5,
	"biorxiv":         3,
	"arxiv":           1,
	"default":         5,
}

// Client is the shared outbound HTTP client.
type Client struct {
	httpClient *http.Client
	cfg        types.HTTPConfig

	// sem caps total concurrent outbound requests.
	sem chan struct{}

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rates    map[string]float64

	// proxyURL, when set, enables ProxyRewrite for institutional access.
	proxyURL string

	// now and sleep are test seams.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Client from config. rateOverrides adjusts per-group budgets
// (e.g. ncbi 3→10 when an API key is present).
func New(cfg types.HTTPConfig, proxyURL string, rateOverrides map[string]float64) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 16
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	rates := make(map[string]float64, len(defaultRates))
	for k, v := range defaultRates {
		rates[k] = v
	}
	for k, v := range rateOverrides {
		if v > 0 {
			rates[k] = v
		}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.DisableTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errTooManyRedirects
				}
				return nil
			},
		},
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.MaxConnections),
		limiters: make(map[string]*rate.Limiter),
		rates:    rates,
		proxyURL: proxyURL,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
}

var errTooManyRedirects = errors.New("stopped after 10 redirects")

// limiter returns the token bucket for the URL's host group, creating it
// on first use.
func (c *Client) limiter(host string) *rate.Limiter {
	group, ok := hostGroups[strings.ToLower(host)]
	if !ok {
		group = strings.ToLower(host)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.limiters[group]; ok {
		return l
	}
	rps, ok := c.rates[group]
	if !ok {
		rps = c.rates["default"]
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	l := rate.NewLimiter(rate.Limit(rps), burst)
	c.limiters[group] = l
	return l
}

// Get fetches rawURL with the client's retry and rate-limit policy.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodGet, rawURL, nil, "", headers)
}

// Head issues a HEAD request, used to probe URLs of unknown shape.
func (c *Client) Head(ctx context.Context, rawURL string) (*Response, error) {
	return c.do(ctx, http.MethodHead, rawURL, nil, "", nil)
}

// PostJSON sends payload as a JSON body.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload any, headers map[string]string) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Kind: KindInvalidResponse, Detail: fmt.Sprintf("encoding request body: %v", err)}
	}
	return c.do(ctx, http.MethodPost, rawURL, body, "application/json", headers)
}

// ProxyRewrite rewrites target into the institutional proxy login form,
// or returns target unchanged when no proxy is configured.
func (c *Client) ProxyRewrite(target string) string {
	if c.proxyURL == "" {
		return target
	}
	return strings.TrimSuffix(c.proxyURL, "/") + "/login?url=" + url.QueryEscape(target)
}

// HasProxy reports whether an institutional proxy is configured.
func (c *Client) HasProxy() bool { return c.proxyURL != "" }

// retryableStatus reports whether an HTTP status is worth retrying.
// 4xx other than 408/429 never retries.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, contentType string, headers map[string]string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &Error{Kind: KindInvalidResponse, Detail: fmt.Sprintf("bad url %q", rawURL)}
	}
	lim := c.limiter(u.Hostname())

	var lastErr *Error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, backoffDelay(attempt, lastErr)); err != nil {
				return nil, &Error{Kind: KindTimeout, Detail: err.Error()}
			}
		}

		if err := lim.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindTimeout, Detail: err.Error()}
		}

		resp, herr := c.once(ctx, method, rawURL, body, contentType, headers)
		if herr == nil {
			return resp, nil
		}
		lastErr = herr
		if !retryable(herr) {
			return nil, herr
		}
	}
	return nil, lastErr
}

// once performs a single attempt under the global semaphore.
func (c *Client) once(ctx context.Context, method, rawURL string, body []byte, contentType string, headers map[string]string) (*Response, *Error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, &Error{Kind: KindTimeout, Detail: ctx.Err().Error()}
	}
	defer func() { <-c.sem }()

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, rawURL, reader)
	if err != nil {
		return nil, &Error{Kind: KindInvalidResponse, Detail: err.Error()}
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, errTooManyRedirects):
			return nil, &Error{Kind: KindTooManyRedirects, Detail: err.Error()}
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			return nil, &Error{Kind: KindTimeout, Detail: err.Error()}
		default:
			var ue *url.Error
			if errors.As(err, &ue) && ue.Timeout() {
				return nil, &Error{Kind: KindTimeout, Detail: err.Error()}
			}
			return nil, &Error{Kind: KindNetwork, Detail: err.Error()}
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Detail: fmt.Sprintf("reading body: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := &Error{Kind: KindHTTPStatus, Status: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
		if resp.StatusCode == http.StatusTooManyRequests {
			if ra := parseRetryAfter(resp.Header.Get("Retry-After")); ra > 0 {
				e.Detail = fmt.Sprintf("retry-after %s", ra)
				e.retryAfter = ra
			}
		}
		return nil, e
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Response{Status: resp.StatusCode, Body: data, FinalURL: finalURL, Header: resp.Header}, nil
}

// RetryAfter returns the server-requested wait from a 429, or zero.
func (e *Error) RetryAfter() time.Duration { return e.retryAfter }

// retryable reports whether the failure is transient.
func retryable(e *Error) bool {
	switch e.Kind {
	case KindNetwork:
		return true
	case KindHTTPStatus:
		return retryableStatus(e.Status)
	}
	return false
}

// backoffDelay computes the wait before retry attempt n (1-based).
// A 429 with Retry-After is honored exactly; otherwise exponential backoff
// with ±20% jitter.
func backoffDelay(attempt int, last *Error) time.Duration {
	if last != nil && last.retryAfter > 0 {
		return last.retryAfter
	}
	d := RetryBaseDelay << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(d)/5+1)) - time.Duration(int64(d)/10)
	return d + jitter
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
