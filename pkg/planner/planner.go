// Package planner discovers a site's size, partitions it into batches of
// contiguous physical pages, and computes the plan_hash that ties a
// ResumeToken to the plan it was produced from. It also parses the
// partial-sync range strings accepted by start_partial_sync.
package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/codeready-toolchain/matter-crawler/pkg/domain"
)

// dashReplacer normalizes the Unicode dash and wave-dash variants seen in
// real partial-sync input (en dash, em dash, full-width tilde/wave dash)
// to a plain ASCII hyphen before parsing.
var dashReplacer = strings.NewReplacer(
	"–", "-", // en dash –
	"—", "-", // em dash —
	"〜", "-", // wave dash 〜
	"～", "-", // fullwidth tilde ～
	"~", "-",
)

// PageRange is an inclusive, descending [Hi, Lo] range of physical pages.
type PageRange struct {
	Hi int
	Lo int
}

// ParseRange parses a partial-sync range string such as
// "498-492,489,487-485" (or the same shape using en dashes / wave dashes)
// into an ordered list of page ranges.
func ParseRange(s string) ([]PageRange, error) {
	segments := strings.Split(s, ",")
	ranges := make([]PageRange, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		normalized := dashReplacer.Replace(seg)
		parts := strings.SplitN(normalized, "-", 2)
		hi, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("parse range %q: %w", seg, err)
		}
		lo := hi
		if len(parts) == 2 {
			lo, err = strconv.Atoi(strings.TrimSpace(parts[1]))
			if err != nil {
				return nil, fmt.Errorf("parse range %q: %w", seg, err)
			}
		}
		if lo > hi {
			hi, lo = lo, hi
		}
		ranges = append(ranges, PageRange{Hi: hi, Lo: lo})
	}
	return ranges, nil
}

// FormatRange renders ranges back into the canonical "hi-lo,hi-lo" form
// ParseRange accepts, used for the idempotence property
// parse(emit(parse(s))) == parse(s).
func FormatRange(ranges []PageRange) string {
	parts := make([]string, 0, len(ranges))
	for _, r := range ranges {
		if r.Hi == r.Lo {
			parts = append(parts, strconv.Itoa(r.Hi))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", r.Hi, r.Lo))
		}
	}
	return strings.Join(parts, ",")
}

// Pages expands a list of ranges into the individual descending page
// numbers it covers, in the order the ranges were given.
func Pages(ranges []PageRange) []int {
	var pages []int
	for _, r := range ranges {
		for p := r.Hi; p >= r.Lo; p-- {
			pages = append(pages, p)
		}
	}
	return pages
}

// Options configures plan partitioning.
type Options struct {
	BatchSize          int
	ProductsPerPage    int
	ConcurrencyLimit   int
}

// BuildPlan partitions [totalPages..1] (descending, newest first) into
// batches of at most BatchSize contiguous pages and computes a stable
// plan_hash over the normalized inputs.
func BuildPlan(totalPages, productsOnLastPage int, opts Options) domain.Plan {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	var batches []domain.Batch
	id := 0
	for hi := totalPages; hi >= 1; hi -= batchSize {
		lo := hi - batchSize + 1
		if lo < 1 {
			lo = 1
		}
		batches = append(batches, domain.Batch{ID: id, StartPage: hi, EndPage: lo})
		id++
	}

	return domain.Plan{
		PlanHash:           PlanHash(totalPages, productsOnLastPage, opts),
		TotalPages:         totalPages,
		ProductsOnLastPage: productsOnLastPage,
		ProductsPerPage:    opts.ProductsPerPage,
		BatchSize:          batchSize,
		Batches:            batches,
	}
}

// BuildPartialPlan partitions an explicit set of descending page ranges
// (as parsed by ParseRange) into batches of at most BatchSize contiguous
// pages, for start_partial_sync. Unlike BuildPlan, it never touches pages
// outside the given ranges.
func BuildPartialPlan(ranges []PageRange, totalPages, productsOnLastPage int, opts Options) domain.Plan {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	var batches []domain.Batch
	id := 0
	for _, r := range ranges {
		for hi := r.Hi; hi >= r.Lo; hi -= batchSize {
			lo := hi - batchSize + 1
			if lo < r.Lo {
				lo = r.Lo
			}
			batches = append(batches, domain.Batch{ID: id, StartPage: hi, EndPage: lo})
			id++
		}
	}

	canonical := fmt.Sprintf("total_pages=%d;products_on_last_page=%d;products_per_page=%d;batch_size=%d;concurrency_limit=%d;ranges=%s",
		totalPages, productsOnLastPage, opts.ProductsPerPage, opts.BatchSize, opts.ConcurrencyLimit, FormatRange(ranges))
	sum := sha256.Sum256([]byte(canonical))

	return domain.Plan{
		PlanHash:           hex.EncodeToString(sum[:]),
		TotalPages:         totalPages,
		ProductsOnLastPage: productsOnLastPage,
		ProductsPerPage:    opts.ProductsPerPage,
		BatchSize:          batchSize,
		Batches:            batches,
	}
}

// PlanHash computes a content hash over the normalized inputs that define
// a plan, so a ResumeToken can detect whether the site it was written
// against still matches the one being resumed.
func PlanHash(totalPages, productsOnLastPage int, opts Options) string {
	canonical := fmt.Sprintf("total_pages=%d;products_on_last_page=%d;products_per_page=%d;batch_size=%d;concurrency_limit=%d",
		totalPages, productsOnLastPage, opts.ProductsPerPage, opts.BatchSize, opts.ConcurrencyLimit)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
