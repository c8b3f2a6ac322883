package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultProductsPageSize = 50

// getSystemStatusHandler handles GET /api/v1/system/status (get_system_status).
func (s *Server) getSystemStatusHandler(c *gin.Context) {
	state := s.sessionMgr.GetStatus(c.Request.Context())
	c.JSON(http.StatusOK, state)
}

// getProductsPageHandler handles GET /api/v1/products (get_products_page).
// Query params: page (1-based, default 1), size (default 50).
func (s *Server) getProductsPageHandler(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultProductsPageSize)))
	if err != nil || size < 1 {
		size = defaultProductsPageSize
	}

	offset := (page - 1) * size
	records, total, err := s.repo.ListProducts(c.Request.Context(), offset, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ProductsPageResponse{Products: records, Total: total})
}
