package types

import "time"

// Well-known Planetary Computer endpoints and defaults.
const (
	// DefaultCatalogURL is the production STAC API root.
	DefaultCatalogURL = "https://planetarycomputer.microsoft.com/api/stac/v1"

	// DefaultSignerURL is the SAS token service root.
	DefaultSignerURL = "https://planetarycomputer.microsoft.com/api/sas/v1"

	// DefaultCollection is the imagery collection searched when the
	// configuration names none.
	DefaultCollection = "sentinel-2-l2a"
)

// HTTPConfig holds shared HTTP settings for components that make network requests.
type HTTPConfig struct {
	// Timeout bounds connection setup and time to response headers.
	// Body streaming is bounded by the request context instead, so large
	// asset downloads are not cut off mid-stream.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "scene-fetch/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RetryConfig controls retry behavior for transient HTTP failures.
type RetryConfig struct {
	// MaxRetries is the number of attempts beyond the first (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Backoff is the base delay before the first retry; each subsequent
	// retry doubles it (default 500ms).
	Backoff time.Duration `json:"backoff" yaml:"backoff"`

	// Statuses lists the HTTP status codes that trigger a retry. An empty
	// list disables status-triggered retries; network errors still retry.
	Statuses []int `json:"statuses,omitempty" yaml:"statuses,omitempty"`
}

// ClientConfig holds settings for a catalog client.
type ClientConfig struct {
	HTTPConfig `yaml:",inline"`

	// CatalogURL is the STAC API root (default DefaultCatalogURL).
	CatalogURL string `json:"catalog_url" yaml:"catalog_url"`

	// SignerURL is the token service root (default DefaultSignerURL).
	SignerURL string `json:"signer_url" yaml:"signer_url"`

	// Collections lists the collection identifiers to search
	// (default [DefaultCollection]).
	Collections []string `json:"collections" yaml:"collections"`

	// LogLevel sets logging verbosity: debug, info, warn, or error (default info).
	LogLevel string `json:"log_level" yaml:"log_level"`

	// PageSize is the item limit requested per search page (default 100).
	PageSize int `json:"page_size" yaml:"page_size"`

	// MaxItems caps the total items a search returns; 0 means unlimited.
	MaxItems int `json:"max_items" yaml:"max_items"`

	// ChunkSize is the asset download write size in bytes (default 32 KiB).
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// LedgerPath is the SQLite history database path. Empty disables history.
	LedgerPath string `json:"ledger_path,omitempty" yaml:"ledger_path,omitempty"`

	// SecretsDir is the directory holding credential files (default ".secrets/").
	SecretsDir string `json:"secrets_dir,omitempty" yaml:"secrets_dir,omitempty"`

	// SubscriptionKey is an optional Planetary Computer subscription key
	// for higher rate limits. Loaded from SecretsDir when empty.
	SubscriptionKey string `json:"subscription_key,omitempty" yaml:"subscription_key,omitempty"`

	// Retry controls transient-failure retries on the shared HTTP session.
	Retry RetryConfig `json:"retry" yaml:"retry"`
}

// DefaultClientConfig returns the production configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HTTPConfig: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "scene-fetch/0.1",
		},
		CatalogURL:  DefaultCatalogURL,
		SignerURL:   DefaultSignerURL,
		Collections: []string{DefaultCollection},
		LogLevel:    "info",
		PageSize:    100,
		ChunkSize:   32 * 1024,
		SecretsDir:  ".secrets/",
		Retry: RetryConfig{
			MaxRetries: 5,
			Backoff:    500 * time.Millisecond,
			Statuses:   []int{429, 500, 502, 503, 504},
		},
	}
}

// WithDefaults fills zero-valued fields from DefaultClientConfig. The
// Statuses list is only defaulted when MaxRetries is also unset, so an
// explicit empty list with a retry budget still disables status retries.
func (c ClientConfig) WithDefaults() ClientConfig {
	def := DefaultClientConfig()
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
	if c.CatalogURL == "" {
		c.CatalogURL = def.CatalogURL
	}
	if c.SignerURL == "" {
		c.SignerURL = def.SignerURL
	}
	if len(c.Collections) == 0 {
		c.Collections = def.Collections
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.PageSize <= 0 {
		c.PageSize = def.PageSize
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}
	if c.SecretsDir == "" {
		c.SecretsDir = def.SecretsDir
	}
	if c.Retry.MaxRetries == 0 && c.Retry.Backoff == 0 && c.Retry.Statuses == nil {
		c.Retry = def.Retry
	}
	if c.Retry.Backoff <= 0 {
		c.Retry.Backoff = def.Retry.Backoff
	}
	return c
}
