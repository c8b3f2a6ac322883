package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/matter-crawler/pkg/adapters/store"
	"github.com/codeready-toolchain/matter-crawler/pkg/domain"
	"github.com/codeready-toolchain/matter-crawler/pkg/strategy"
)

// ListPageScanner re-derives every stored product's coordinate by freshly
// crawling the site's list pages, grounding scan_pagination_mismatches in
// live data rather than the recorded-at-crawl-time coordinate.
type ListPageScanner struct {
	Factory *strategy.Factory
	Repo    store.Repository
}

// Scan walks every physical list page with the current site size, builds a
// url -> (page_id, index_in_page) map, and hands it to the repository as the
// expect function for ScanPaginationMismatches.
func (l *ListPageScanner) Scan(ctx context.Context) ([]store.Mismatch, error) {
	statusLogic, err := l.Factory.LogicFor(domain.StageStatusCheck)
	if err != nil {
		return nil, err
	}
	statusOut, err := statusLogic.Execute(ctx, strategy.Input{Stage: domain.StageStatusCheck})
	if err != nil {
		return nil, err
	}

	listLogic, err := l.Factory.LogicFor(domain.StageListPageCrawling)
	if err != nil {
		return nil, err
	}

	expected := make(map[string]domain.ProductUrl)
	for page := 1; page <= statusOut.TotalPages; page++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		out, err := listLogic.Execute(ctx, strategy.Input{
			Stage: domain.StageListPageCrawling, Item: domain.NewPageItem(page),
			TotalPages: statusOut.TotalPages, ProductsOnLastPage: statusOut.ProductsOnLastPage,
		})
		if err != nil {
			return nil, err
		}
		for _, u := range out.ProductURLs {
			expected[u.URL] = u
		}
	}

	return l.Repo.ScanPaginationMismatches(ctx, func(url string) (pageID, indexInPage int, ok bool) {
		u, found := expected[url]
		if !found {
			return 0, 0, false
		}
		return u.PageID, u.IndexInPage, true
	})
}

// scanPaginationMismatchesHandler handles POST
// /api/v1/maintenance/scan-pagination-mismatches.
func (s *Server) scanPaginationMismatchesHandler(c *gin.Context) {
	if s.mismatcher == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "mismatch scanner not wired"})
		return
	}
	mismatches, err := s.mismatcher.Scan(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, MismatchReportResponse{Mismatches: mismatches})
}

// cleanupDuplicateURLsHandler handles POST
// /api/v1/maintenance/cleanup-duplicate-urls.
func (s *Server) cleanupDuplicateURLsHandler(c *gin.Context) {
	removed, err := s.repo.CleanupDuplicateURLs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, CleanupResponse{Removed: removed})
}
