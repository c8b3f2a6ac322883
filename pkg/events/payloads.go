package events

// BasePayload is embedded in every typed payload; Seq is the monotonic,
// per-channel sequence number the Event Bridge stamps at publish time.
type BasePayload struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
	Timestamp string `json:"timestamp"` // RFC3339Nano
}

// SessionStartedPayload announces a Session Actor beginning a crawl, plan
// sync, or validation run.
type SessionStartedPayload struct {
	BasePayload
	PlanHash            string `json:"plan_hash"`
	TotalPages          int    `json:"total_pages"`
	BatchCount          int    `json:"batch_count"`
	ActorContractVersion int   `json:"actor_contract_version"`
}

// BatchStartedPayload announces a Batch Actor claiming a page range.
type BatchStartedPayload struct {
	BasePayload
	BatchID   int `json:"batch_id"`
	StartPage int `json:"start_page"`
	EndPage   int `json:"end_page"`
}

// StageStartedPayload announces a Batch entering one of the five pipeline
// stages.
type StageStartedPayload struct {
	BasePayload
	BatchID   int    `json:"batch_id"`
	Stage     string `json:"stage"`
	ItemCount int    `json:"item_count"`
}

// TaskLifecyclePayload reports one item's progress through a stage: a
// retry, a terminal success, or a terminal permanent failure.
type TaskLifecyclePayload struct {
	BasePayload
	BatchID  int    `json:"batch_id"`
	Stage    string `json:"stage"`
	TaskID   string `json:"task_id"` // page number or detail url
	Status   string `json:"status"`
	Attempt  int    `json:"attempt"`
	Progress float64 `json:"progress,omitempty"` // 0..1, set on succeeded
	Error    string  `json:"error,omitempty"`
}

// StageCompletedPayload reports a stage's terminal counts for a batch.
type StageCompletedPayload struct {
	BasePayload
	BatchID   int    `json:"batch_id"`
	Stage     string `json:"stage"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// BatchCompletedPayload reports a batch's outcome.
type BatchCompletedPayload struct {
	BasePayload
	BatchID  int  `json:"batch_id"`
	Saved    int  `json:"saved"`
	Aborted  bool `json:"aborted"`
	ErrorMsg string `json:"error,omitempty"`
}

// SessionTerminalPayload is shared by session.completed, session.cancelled
// and session.failed — the three terminal session events.
type SessionTerminalPayload struct {
	BasePayload
	Status        string  `json:"status"`
	ItemsSaved    int     `json:"items_saved"`
	DurationSecs  float64 `json:"duration_seconds"`
	Reason        string  `json:"reason,omitempty"`
}

// ValidationEventPayload reports one record failing or passing
// DataValidation.
type ValidationEventPayload struct {
	BasePayload
	URL        string   `json:"url"`
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations,omitempty"`
}
