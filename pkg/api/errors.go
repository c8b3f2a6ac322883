package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/codeready-toolchain/matter-crawler/pkg/crawlerrors"
	"github.com/codeready-toolchain/matter-crawler/pkg/session"
)

// errorResponse is the JSON body for every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// mapSessionError maps session/engine errors to an HTTP status and JSON body.
func mapSessionError(err error) (int, errorResponse) {
	var valErr *crawlerrors.ValidationError
	switch {
	case errors.Is(err, session.ErrAtCapacity):
		return http.StatusServiceUnavailable, errorResponse{Error: err.Error()}
	case errors.As(err, &valErr):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case crawlerrors.IsFatal(err):
		return http.StatusInternalServerError, errorResponse{Error: err.Error()}
	}

	slog.Error("unexpected session error", "error", err)
	return http.StatusBadRequest, errorResponse{Error: err.Error()}
}
