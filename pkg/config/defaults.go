package config

// FetchConfig bounds how the HTTP fetcher talks to the certification
// directory site: rate limit, timeout, retries, and politeness fields
// named directly in the persisted config layout. MaxRetries and
// FollowRedirects are loaded and validated but are not passed to the
// fetch adapter.
type FetchConfig struct {
	MaxRequestsPerSecond  float64 `yaml:"max_requests_per_second"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
	MaxRetries            int     `yaml:"max_retries"`
	UserAgent             string  `yaml:"user_agent"`
	FollowRedirects       bool    `yaml:"follow_redirects"`
}

// DefaultFetchConfig returns the built-in fetch defaults.
func DefaultFetchConfig() *FetchConfig {
	return &FetchConfig{
		MaxRequestsPerSecond:  2,
		RequestTimeoutSeconds: 30,
		MaxRetries:            3,
		UserAgent:             "matter-crawler/1.0",
		FollowRedirects:       true,
	}
}

// SiteConfig points the fetcher at the certification directory's pages.
// Not itself one of spec.md's named config fields, but required ambient
// wiring so the fetch adapter knows what site to crawl.
type SiteConfig struct {
	BaseURL        string `yaml:"base_url"`
	StatusPath     string `yaml:"status_path"`
	ListPathFormat string `yaml:"list_path_format"`
}

// DefaultSiteConfig returns placeholder site settings; a real deployment
// always overrides base_url in crawler.yaml.
func DefaultSiteConfig() *SiteConfig {
	return &SiteConfig{
		StatusPath:     "/",
		ListPathFormat: "/products?page=%d",
	}
}

// PlanningConfig controls how the Planner partitions the site into
// batches.
type PlanningConfig struct {
	BatchSize        int `yaml:"batch_size"`
	ConcurrencyLimit int `yaml:"concurrency_limit"`
	ProductsPerPage  int `yaml:"products_per_page"`
}

// DefaultPlanningConfig returns the built-in planning defaults.
func DefaultPlanningConfig() *PlanningConfig {
	return &PlanningConfig{
		BatchSize:        20,
		ConcurrencyLimit: 5,
		ProductsPerPage:  12,
	}
}

// SessionConfig bounds the Session Actor's admission control and resume
// behavior.
type SessionConfig struct {
	MaxConcurrentSessions int    `yaml:"max_concurrent_sessions"`
	SessionParallelism    int    `yaml:"session_parallelism"`
	ReplanOnGrowth        bool   `yaml:"replan_on_growth"`
	ResumeDir             string `yaml:"resume_dir"`
}

// DefaultSessionConfig returns the built-in session defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		MaxConcurrentSessions: 1,
		SessionParallelism:    2,
		ReplanOnGrowth:        false,
		ResumeDir:             "./data/resume",
	}
}

// RetryConfig bounds the Stage Actor's jittered exponential backoff.
type RetryConfig struct {
	MaxAttempts   int `yaml:"max_attempts"`
	BaseBackoffMS int `yaml:"base_backoff_ms"`
	MaxBackoffMS  int `yaml:"max_backoff_ms"`
}

// DefaultRetryConfig returns the built-in retry defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		BaseBackoffMS: 250,
		MaxBackoffMS:  5000,
	}
}
