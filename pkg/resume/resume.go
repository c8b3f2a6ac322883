// Package resume persists and loads ResumeTokens, the serialized residual
// work that lets a cancelled or crashed session continue exactly where it
// left off. Writes are atomic (write to a .tmp file, then rename) and
// reads transparently migrate v1 tokens to the current shape.
package resume

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codeready-toolchain/matter-crawler/pkg/domain"
)

// Store reads and writes ResumeTokens to a single JSON file on disk.
type Store struct {
	path string
}

// NewStore returns a Store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save writes token to disk atomically: it writes the full contents to a
// sibling .tmp file, then renames it over the final path so a reader never
// observes a partially written token.
func (s *Store) Save(token domain.ResumeToken) error {
	token.Version = domain.CurrentResumeTokenVersion
	token.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal resume token: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create resume token directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write resume token tmp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename resume token into place: %w", err)
	}
	return nil
}

// rawToken models the on-disk shape loosely, with the detail-tracking
// fields as pointers so the decoder can tell "absent" (a v1 token) apart
// from "present but empty" (a v2 token with nothing pending).
type rawToken struct {
	Version            int             `json:"version"`
	PlanHash           string          `json:"plan_hash"`
	RemainingPages     []int           `json:"remaining_pages"`
	BatchSize          int             `json:"batch_size"`
	ConcurrencyLimit   int             `json:"concurrency_limit"`
	RetriesPerPage     map[int]int     `json:"retries_per_page"`
	FailedPages        []int           `json:"failed_pages"`
	RetryingPages      []int           `json:"retrying_pages"`
	RemainingDetailIDs *[]string       `json:"remaining_detail_ids"`
	DetailRetryCounts  *map[string]int `json:"detail_retry_counts"`
	DetailRetriesTotal *uint64         `json:"detail_retries_total"`
}

// Load reads the token at path. A v1 token (one that omits the detail-
// tracking fields entirely) is accepted and those fields default to
// empty, matching the v1→v2 migration the store performs transparently.
func (s *Store) Load() (domain.ResumeToken, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return domain.ResumeToken{}, fmt.Errorf("read resume token: %w", err)
	}
	return ParseToken(data)
}

// ParseToken decodes a ResumeToken from raw JSON, accepting either a v1 or
// v2 token. Used both by Store.Load (file-backed) and by the
// resume_from_token RPC, which carries the token as a request field rather
// than a file path.
func ParseToken(data []byte) (domain.ResumeToken, error) {
	var raw rawToken
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.ResumeToken{}, fmt.Errorf("unmarshal resume token: %w", err)
	}

	token := domain.ResumeToken{
		Version:          raw.Version,
		PlanHash:         raw.PlanHash,
		RemainingPages:   raw.RemainingPages,
		BatchSize:        raw.BatchSize,
		ConcurrencyLimit: raw.ConcurrencyLimit,
		RetriesPerPage:   raw.RetriesPerPage,
		FailedPages:      raw.FailedPages,
		RetryingPages:    raw.RetryingPages,
	}
	if token.Version == 0 {
		token.Version = domain.ResumeTokenV1
	}

	if raw.RemainingDetailIDs != nil {
		token.RemainingDetailIDs = *raw.RemainingDetailIDs
	} else {
		token.RemainingDetailIDs = []string{}
	}
	if raw.DetailRetryCounts != nil {
		token.DetailRetryCounts = *raw.DetailRetryCounts
	} else {
		token.DetailRetryCounts = map[string]int{}
	}
	if raw.DetailRetriesTotal != nil {
		token.DetailRetriesTotal = *raw.DetailRetriesTotal
	}
	return token, nil
}

// Exists reports whether a resume token file is present at path.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}
