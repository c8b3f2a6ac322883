package api

import (
	"github.com/codeready-toolchain/matter-crawler/pkg/adapters/store"
	"github.com/codeready-toolchain/matter-crawler/pkg/domain"
)

// SessionResponse is returned by every session-starting command
// (start_unified_crawling, start_partial_sync, start_validation,
// resume_from_token).
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// CancelResponse is returned by cancel_session.
type CancelResponse struct {
	OK bool `json:"ok"`
}

// ProductsPageResponse is returned by get_products_page.
type ProductsPageResponse struct {
	Products []domain.ProductRecord `json:"products"`
	Total    int                    `json:"total"`
}

// MismatchReportResponse is returned by the scan_pagination_mismatches
// maintenance command.
type MismatchReportResponse struct {
	Mismatches []store.Mismatch `json:"mismatches"`
}

// CleanupResponse is returned by the cleanup_duplicate_urls maintenance
// command.
type CleanupResponse struct {
	Removed int `json:"removed"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Checks  map[string]HealthCheck `json:"checks"`
}

// HealthCheck represents the status of a single health check component.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
