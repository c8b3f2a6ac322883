// Package domain holds the plain data types shared across the crawl engine:
// plans, batches, stage items, product records and the resume token that
// lets a session pick up where it left off.
package domain

import (
	"fmt"
	"time"
)

// StageType identifies one of the five crawl pipeline stages.
type StageType string

const (
	StageStatusCheck          StageType = "status_check"
	StageListPageCrawling     StageType = "list_page_crawling"
	StageProductDetailCrawling StageType = "product_detail_crawling"
	StageDataValidation       StageType = "data_validation"
	StageDataSaving           StageType = "data_saving"
)

// Stages lists the five stages in execution order.
var Stages = []StageType{
	StageStatusCheck,
	StageListPageCrawling,
	StageProductDetailCrawling,
	StageDataValidation,
	StageDataSaving,
}

// Plan is the immutable outcome of planning a crawl: how many pages the
// site has and how those pages are sliced into batches.
type Plan struct {
	PlanHash          string    `json:"plan_hash"`
	TotalPages        int       `json:"total_pages"`
	ProductsOnLastPage int      `json:"products_on_last_page"`
	ProductsPerPage   int       `json:"products_per_page"`
	BatchSize         int       `json:"batch_size"`
	Batches           []Batch   `json:"batches"`
	CreatedAt         time.Time `json:"created_at"`
}

// Batch is a contiguous range of physical pages owned by one batch actor.
type Batch struct {
	ID         int `json:"id"`
	StartPage  int `json:"start_page"`
	EndPage    int `json:"end_page"`
}

// PageCount returns the number of physical pages covered by the batch.
func (b Batch) PageCount() int {
	return b.StartPage - b.EndPage + 1
}

// StageItemKind discriminates the two shapes a stage item can take.
type StageItemKind int

const (
	// ItemPage identifies a physical list page to crawl.
	ItemPage StageItemKind = iota
	// ItemDetailURL identifies a single product detail page, already
	// carrying its assigned coordinate.
	ItemDetailURL
)

// StageItem is one unit of work dispatched to a stage actor. It mirrors the
// original Rust prototype's two-variant enum as a tagged Go struct.
type StageItem struct {
	Kind        StageItemKind
	Page        int
	URL         string
	PageID      int
	IndexInPage int
}

// NewPageItem builds a StageItem carrying a physical page number.
func NewPageItem(page int) StageItem {
	return StageItem{Kind: ItemPage, Page: page}
}

// NewDetailItem builds a StageItem carrying a product detail URL with its
// already-assigned coordinate.
func NewDetailItem(url string, pageID, indexInPage int) StageItem {
	return StageItem{Kind: ItemDetailURL, URL: url, PageID: pageID, IndexInPage: indexInPage}
}

// ProductUrl pairs a discovered detail URL with the coordinate it was
// assigned when its list page was crawled.
type ProductUrl struct {
	URL         string `json:"url"`
	PageID      int    `json:"page_id"`
	IndexInPage int    `json:"index_in_page"`
}

// String renders the url the way the original prototype's fmt::Display
// impl did, which is what shows up in log lines and failure events.
func (p ProductUrl) String() string {
	return fmt.Sprintf("%s (page: %d, index: %d)", p.URL, p.PageID, p.IndexInPage)
}

// QualityFlag records the outcome of DataValidation for a product record.
type QualityFlag string

const (
	QualityUnset   QualityFlag = ""
	QualityPassed  QualityFlag = "passed"
	QualityFailed  QualityFlag = "failed"
)

// ProductRecord is the fully parsed, validated representation of one
// product detail page, ready to be persisted.
type ProductRecord struct {
	URL          string            `json:"url"`
	PageID       int               `json:"page_id"`
	IndexInPage  int               `json:"index_in_page"`
	Name         string            `json:"name"`
	Manufacturer string            `json:"manufacturer"`
	Model        string            `json:"model"`
	Certificate  string            `json:"certificate_id"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Quality      QualityFlag       `json:"quality_flag"`
	FetchedAt    time.Time         `json:"fetched_at"`
}

// ResumeToken captures enough state to resume a crawl session after a
// restart. V1 tokens predate the detail-tracking fields below (everything
// from RemainingDetailIDs onward) and load with those fields defaulted to
// empty/zero.
type ResumeToken struct {
	Version             int            `json:"version"`
	PlanHash            string         `json:"plan_hash"`
	RemainingPages      []int          `json:"remaining_pages"`
	BatchSize           int            `json:"batch_size"`
	ConcurrencyLimit    int            `json:"concurrency_limit"`
	RetriesPerPage      map[int]int    `json:"retries_per_page,omitempty"`
	FailedPages         []int          `json:"failed_pages,omitempty"`
	RetryingPages       []int          `json:"retrying_pages,omitempty"`
	RemainingDetailIDs  []string       `json:"remaining_detail_ids"`
	DetailRetryCounts   map[string]int `json:"detail_retry_counts"`
	DetailRetriesTotal  uint64         `json:"detail_retries_total"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// CurrentResumeTokenVersion is the version stamped on tokens written by
// this build. Readers accept both this and ResumeTokenV1.
const CurrentResumeTokenVersion = 2

// ResumeTokenV1 is the version stamp of tokens written before per-stage
// detail fields existed.
const ResumeTokenV1 = 1

// SessionStatus is the lifecycle state of a running or finished session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
	SessionFailed    SessionStatus = "failed"
)

// SystemState is the live status snapshot exposed through get_system_status.
type SystemState struct {
	IsRunning              bool    `json:"is_running"`
	TotalPages             int     `json:"total_pages"`
	DBTotalProducts        int     `json:"db_total_products"`
	LastDBCursor           int     `json:"last_db_cursor"`
	SessionTargetItems     int     `json:"session_target_items"`
	SessionCollectedItems  int     `json:"session_collected_items"`
	SessionETASeconds      float64 `json:"session_eta_seconds"`
	ItemsPerMinute         float64 `json:"items_per_minute"`
	CurrentStage           string  `json:"current_stage"`
}
