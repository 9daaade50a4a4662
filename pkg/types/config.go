// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by every source client.
type HTTPConfig struct {
	// Timeout is the per-attempt HTTP request timeout (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "corpus-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxConnections caps total concurrent outbound sockets (default 16).
	MaxConnections int `json:"max_connections" yaml:"max_connections"`

	// MaxRetries bounds retry attempts for transient failures (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// DisableTLSVerify disables certificate verification. Development only,
	// for environments behind TLS-inspecting proxies.
	DisableTLSVerify bool `json:"disable_tls_verify" yaml:"disable_tls_verify"`
}

// SourcesConfig holds per-provider credentials, enable flags, and rate
// limits for the external source clients.
type SourcesConfig struct {
	// NCBIAPIKey raises the NCBI rate limit from 3/s to 10/s. Optional.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty"`

	// SemanticScholarAPIKey raises the Semantic Scholar rate limit. Optional.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`

	// COREAPIKey enables the CORE URL source.
	COREAPIKey string `json:"core_api_key,omitempty" yaml:"core_api_key,omitempty"`

	// UnpaywallEmail is required to use the Unpaywall source.
	UnpaywallEmail string `json:"unpaywall_email,omitempty" yaml:"unpaywall_email,omitempty"`

	// OpenAlexEmail is sent as the mailto parameter for polite pool access.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty"`

	// InstitutionalProxyURL enables the proxy-rewrite URL source. Targets
	// are rewritten to "<proxy>/login?url=<encoded>".
	InstitutionalProxyURL string `json:"institutional_proxy_url,omitempty" yaml:"institutional_proxy_url,omitempty"`

	// EnableSciHub and EnableLibGen switch on the gray-area fallback
	// sources. Both default to off.
	EnableSciHub bool `json:"enable_scihub" yaml:"enable_scihub"`
	EnableLibGen bool `json:"enable_libgen" yaml:"enable_libgen"`

	// ProbeUnknownURLs issues a HEAD request to classify URLs whose shape
	// cannot be determined from the URL string alone.
	ProbeUnknownURLs bool `json:"probe_unknown_urls" yaml:"probe_unknown_urls"`

	// RateLimits overrides the built-in per-host-group request rates
	// (requests per second), keyed by host group name.
	RateLimits map[string]float64 `json:"rate_limits,omitempty" yaml:"rate_limits,omitempty"`
}

// StoreConfig holds settings for the unified store.
type StoreConfig struct {
	// DBPath is the SQLite database file path (default "corpus.db").
	DBPath string `json:"db_path" yaml:"db_path"`
}

// CacheConfig holds settings for the tier-1 aggregate-view cache.
type CacheConfig struct {
	// TTL is the lifetime of a cached aggregate view (default 1h).
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// MaxEntries bounds the in-process LRU (default 256).
	MaxEntries int `json:"max_entries" yaml:"max_entries"`

	// Disabled degrades the cache to always-miss/never-write.
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// AcquisitionConfig holds settings for URL collection and PDF download.
type AcquisitionConfig struct {
	// PDFsRoot is the base directory for downloaded PDFs
	// (layout: <root>/<dataset>/<relationship>/<universal_id>.pdf).
	PDFsRoot string `json:"pdfs_root" yaml:"pdfs_root"`

	// MaxURLsPerPublication caps a publication's URL list (default 64).
	MaxURLsPerPublication int `json:"max_urls_per_publication" yaml:"max_urls_per_publication"`

	// MaxAttemptsPerPublication bounds total download attempts across all
	// URLs of one publication (default 10).
	MaxAttemptsPerPublication int `json:"max_attempts_per_publication" yaml:"max_attempts_per_publication"`

	// URLDeadline is the per-URL download deadline (default 60s).
	URLDeadline time.Duration `json:"url_deadline" yaml:"url_deadline"`
}

// PipelineConfig holds coordinator-level settings.
type PipelineConfig struct {
	// MaxParallelPublications bounds the per-dataset worker pool (default 3).
	MaxParallelPublications int `json:"max_parallel_publications" yaml:"max_parallel_publications"`

	// MaxCitingPapers caps how many citing papers are processed per run;
	// zero means no cap.
	MaxCitingPapers int `json:"max_citing_papers" yaml:"max_citing_papers"`

	// Per-stage deadlines applied per publication.
	DiscoveryDeadline  time.Duration `json:"discovery_deadline" yaml:"discovery_deadline"`
	CollectionDeadline time.Duration `json:"collection_deadline" yaml:"collection_deadline"`
	DownloadDeadline   time.Duration `json:"download_deadline" yaml:"download_deadline"`
	ExtractionDeadline time.Duration `json:"extraction_deadline" yaml:"extraction_deadline"`

	// ReliabilityWindow and ReliabilityThreshold drive the adaptive source
	// policy: a source whose success rate over the last ReliabilityWindow
	// calls falls below the threshold is marked low-reliability.
	ReliabilityWindow    int     `json:"reliability_window" yaml:"reliability_window"`
	ReliabilityThreshold float64 `json:"reliability_threshold" yaml:"reliability_threshold"`

	// SkipLowReliability skips low-reliability sources entirely instead of
	// deferring them behind higher-priority sources.
	SkipLowReliability bool `json:"skip_low_reliability" yaml:"skip_low_reliability"`

	// Per-stage enable flags; all default to on.
	EnableDiscovery  bool `json:"enable_discovery" yaml:"enable_discovery"`
	EnableCollection bool `json:"enable_collection" yaml:"enable_collection"`
	EnableDownload   bool `json:"enable_download" yaml:"enable_download"`
	EnableExtraction bool `json:"enable_extraction" yaml:"enable_extraction"`
}

// EngineConfig groups all configuration for the corpus engine.
type EngineConfig struct {
	HTTP        HTTPConfig        `json:"http" yaml:"http"`
	Sources     SourcesConfig     `json:"sources" yaml:"sources"`
	Store       StoreConfig       `json:"store" yaml:"store"`
	Cache       CacheConfig       `json:"cache" yaml:"cache"`
	Acquisition AcquisitionConfig `json:"acquisition" yaml:"acquisition"`
	Pipeline    PipelineConfig    `json:"pipeline" yaml:"pipeline"`
}

// DefaultEngineConfig returns the documented defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		HTTP: HTTPConfig{
			Timeout:        30 * time.Second,
			UserAgent:      "corpus-engine/0.1",
			MaxConnections: 16,
			MaxRetries:     3,
		},
		Store: StoreConfig{DBPath: "corpus.db"},
		Cache: CacheConfig{TTL: time.Hour, MaxEntries: 256},
		Acquisition: AcquisitionConfig{
			PDFsRoot:                  "pdfs",
			MaxURLsPerPublication:     64,
			MaxAttemptsPerPublication: 10,
			URLDeadline:               60 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxParallelPublications: 3,
			DiscoveryDeadline:       30 * time.Second,
			CollectionDeadline:      30 * time.Second,
			DownloadDeadline:        120 * time.Second,
			ExtractionDeadline:      60 * time.Second,
			ReliabilityWindow:       20,
			ReliabilityThreshold:    0.2,
			EnableDiscovery:         true,
			EnableCollection:        true,
			EnableDownload:          true,
			EnableExtraction:        true,
		},
	}
}
