package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// startCrawlHandler handles POST /api/v1/sessions/crawl (start_unified_crawling).
func (s *Server) startCrawlHandler(c *gin.Context) {
	var req StartCrawlRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	sessionID, err := s.sessionMgr.StartCrawl(c.Request.Context(), req.BatchSize, req.ConcurrencyLimit)
	if err != nil {
		status, body := mapSessionError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusAccepted, SessionResponse{SessionID: sessionID})
}

// startPartialSyncHandler handles POST /api/v1/sessions/partial-sync (start_partial_sync).
func (s *Server) startPartialSyncHandler(c *gin.Context) {
	var req StartPartialSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	sessionID, err := s.sessionMgr.StartPartialSync(c.Request.Context(), req.Ranges)
	if err != nil {
		status, body := mapSessionError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusAccepted, SessionResponse{SessionID: sessionID})
}

// startValidationHandler handles POST /api/v1/sessions/validation (start_validation).
func (s *Server) startValidationHandler(c *gin.Context) {
	var req StartValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	sessionID, err := s.sessionMgr.StartValidation(c.Request.Context(), req.ScanDepth)
	if err != nil {
		status, body := mapSessionError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusAccepted, SessionResponse{SessionID: sessionID})
}

// resumeFromTokenHandler handles POST /api/v1/sessions/resume (resume_from_token).
func (s *Server) resumeFromTokenHandler(c *gin.Context) {
	var req ResumeFromTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	sessionID, err := s.sessionMgr.ResumeFromToken(c.Request.Context(), req.Token)
	if err != nil {
		status, body := mapSessionError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusAccepted, SessionResponse{SessionID: sessionID})
}

// cancelSessionHandler handles POST /api/v1/sessions/:id/cancel (cancel_session).
func (s *Server) cancelSessionHandler(c *gin.Context) {
	sessionID := c.Param("id")
	var req CancelSessionRequest
	_ = c.ShouldBindJSON(&req) // reason is optional; body may be empty

	ok := s.sessionMgr.Cancel(sessionID, req.Reason)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "session not found or already finished"})
		return
	}
	c.JSON(http.StatusOK, CancelResponse{OK: true})
}
