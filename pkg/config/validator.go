package config

import "fmt"

// Validator validates configuration comprehensively with clear error
// messages, failing fast at the first invalid section.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast — stops at the
// first error).
func (v *Validator) ValidateAll() error {
	if err := v.validateFetch(); err != nil {
		return fmt.Errorf("fetch validation failed: %w", err)
	}
	if err := v.validatePlanning(); err != nil {
		return fmt.Errorf("planning validation failed: %w", err)
	}
	if err := v.validateSession(); err != nil {
		return fmt.Errorf("session validation failed: %w", err)
	}
	if err := v.validateRetry(); err != nil {
		return fmt.Errorf("retry validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateFetch() error {
	f := v.cfg.Fetch
	if f == nil {
		return NewValidationError("fetch", "", fmt.Errorf("fetch configuration is nil"))
	}
	if f.MaxRequestsPerSecond <= 0 {
		return NewValidationError("fetch", "max_requests_per_second",
			fmt.Errorf("must be positive, got %v", f.MaxRequestsPerSecond))
	}
	if f.RequestTimeoutSeconds <= 0 {
		return NewValidationError("fetch", "request_timeout_seconds",
			fmt.Errorf("must be positive, got %d", f.RequestTimeoutSeconds))
	}
	if f.MaxRetries < 0 {
		return NewValidationError("fetch", "max_retries",
			fmt.Errorf("must be non-negative, got %d", f.MaxRetries))
	}
	if f.UserAgent == "" {
		return NewValidationError("fetch", "user_agent", fmt.Errorf("must not be empty"))
	}
	return nil
}

func (v *Validator) validatePlanning() error {
	p := v.cfg.Planning
	if p == nil {
		return NewValidationError("planning", "", fmt.Errorf("planning configuration is nil"))
	}
	if p.BatchSize < 1 {
		return NewValidationError("planning", "batch_size",
			fmt.Errorf("must be at least 1, got %d", p.BatchSize))
	}
	if p.ConcurrencyLimit < 1 {
		return NewValidationError("planning", "concurrency_limit",
			fmt.Errorf("must be at least 1, got %d", p.ConcurrencyLimit))
	}
	if p.ConcurrencyLimit > 32 {
		return NewValidationError("planning", "concurrency_limit",
			fmt.Errorf("must be at most 32, got %d", p.ConcurrencyLimit))
	}
	if p.ProductsPerPage < 1 {
		return NewValidationError("planning", "products_per_page",
			fmt.Errorf("must be at least 1, got %d", p.ProductsPerPage))
	}
	return nil
}

func (v *Validator) validateSession() error {
	s := v.cfg.Session
	if s == nil {
		return NewValidationError("session", "", fmt.Errorf("session configuration is nil"))
	}
	if s.MaxConcurrentSessions < 1 {
		return NewValidationError("session", "max_concurrent_sessions",
			fmt.Errorf("must be at least 1, got %d", s.MaxConcurrentSessions))
	}
	if s.SessionParallelism < 1 {
		return NewValidationError("session", "session_parallelism",
			fmt.Errorf("must be at least 1, got %d", s.SessionParallelism))
	}
	if s.ResumeDir == "" {
		return NewValidationError("session", "resume_dir", fmt.Errorf("must not be empty"))
	}
	return nil
}

func (v *Validator) validateRetry() error {
	r := v.cfg.Retry
	if r == nil {
		return NewValidationError("retry", "", fmt.Errorf("retry configuration is nil"))
	}
	if r.MaxAttempts < 1 {
		return NewValidationError("retry", "max_attempts",
			fmt.Errorf("must be at least 1, got %d", r.MaxAttempts))
	}
	if r.BaseBackoffMS < 0 {
		return NewValidationError("retry", "base_backoff_ms",
			fmt.Errorf("must be non-negative, got %d", r.BaseBackoffMS))
	}
	if r.MaxBackoffMS < r.BaseBackoffMS {
		return NewValidationError("retry", "max_backoff_ms",
			fmt.Errorf("must be at least base_backoff_ms (%d), got %d", r.BaseBackoffMS, r.MaxBackoffMS))
	}
	return nil
}
