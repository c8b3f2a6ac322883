// Package api provides the HTTP API handlers for the crawler: UI-facing RPC
// commands over gin and a WebSocket endpoint delivering events from the
// Event Bridge.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/matter-crawler/pkg/adapters/store"
	"github.com/codeready-toolchain/matter-crawler/pkg/database"
	"github.com/codeready-toolchain/matter-crawler/pkg/events"
	"github.com/codeready-toolchain/matter-crawler/pkg/session"
)

// Server is the HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	dbClient   *database.Client
	sessionMgr *session.Manager
	repo       store.Repository
	bridge     *events.Bridge
	mismatcher MismatchScanner // nil until set (SetMismatchScanner)
}

// MismatchScanner recomputes expected coordinates for the pagination
// mismatch scan, typically by re-crawling the current list pages.
type MismatchScanner interface {
	Scan(ctx context.Context) ([]store.Mismatch, error)
}

// NewServer creates a new API server wired with the services it dispatches
// RPCs to.
func NewServer(
	dbClient *database.Client,
	sessionMgr *session.Manager,
	repo store.Repository,
	bridge *events.Bridge,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		dbClient:   dbClient,
		sessionMgr: sessionMgr,
		repo:       repo,
		bridge:     bridge,
	}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

// SetMismatchScanner wires the scan_pagination_mismatches dependency. It is
// optional; when unset, that RPC returns 503.
func (s *Server) SetMismatchScanner(m MismatchScanner) {
	s.mismatcher = m
}

// ValidateWiring checks that every required service has been wired. Call
// this after construction and before Start/StartWithListener so that wiring
// gaps are caught at startup rather than surfacing as panics or 500s later.
func (s *Server) ValidateWiring() error {
	var missing []string
	if s.sessionMgr == nil {
		missing = append(missing, "sessionMgr")
	}
	if s.repo == nil {
		missing = append(missing, "repo")
	}
	if s.bridge == nil {
		missing = append(missing, "bridge")
	}
	if s.dbClient == nil {
		missing = append(missing, "dbClient")
	}
	if len(missing) > 0 {
		return fmt.Errorf("server wiring incomplete: missing %v", missing)
	}
	return nil
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	s.engine.Use(securityHeaders())
	s.engine.MaxMultipartMemory = 2 << 20 // 2 MB

	s.engine.GET("/health", s.healthHandler)

	v1 := s.engine.Group("/api/v1")
	v1.POST("/sessions/crawl", s.startCrawlHandler)
	v1.POST("/sessions/partial-sync", s.startPartialSyncHandler)
	v1.POST("/sessions/validation", s.startValidationHandler)
	v1.POST("/sessions/resume", s.resumeFromTokenHandler)
	v1.POST("/sessions/:id/cancel", s.cancelSessionHandler)

	v1.GET("/system/status", s.getSystemStatusHandler)
	v1.GET("/products", s.getProductsPageHandler)

	v1.POST("/maintenance/scan-pagination-mismatches", s.scanPaginationMismatchesHandler)
	v1.POST("/maintenance/cleanup-duplicate-urls", s.cleanupDuplicateURLsHandler)

	v1.GET("/ws", s.wsHandler)
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener. Used
// by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.engine}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
