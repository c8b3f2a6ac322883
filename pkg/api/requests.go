package api

// StartCrawlRequest is the body for start_unified_crawling. Both fields are
// optional; a zero value falls back to the session manager's configured
// defaults.
type StartCrawlRequest struct {
	BatchSize        int `json:"batch_size,omitempty"`
	ConcurrencyLimit int `json:"concurrency_limit,omitempty"`
}

// StartPartialSyncRequest is the body for start_partial_sync.
type StartPartialSyncRequest struct {
	Ranges string `json:"ranges" binding:"required"`
}

// StartValidationRequest is the body for start_validation.
type StartValidationRequest struct {
	ScanDepth int `json:"scan_depth"`
}

// ResumeFromTokenRequest is the body for resume_from_token. Token carries the
// raw JSON of a v1 or v2 ResumeToken.
type ResumeFromTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// CancelSessionRequest is the optional body for cancel_session; the session
// id itself comes from the :id path parameter.
type CancelSessionRequest struct {
	Reason string `json:"reason"`
}
