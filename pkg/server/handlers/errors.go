package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/notegraph"
	"github.com/soundprediction/notegraph/pkg/notes"
	"github.com/soundprediction/notegraph/pkg/server/dto"
	"github.com/soundprediction/notegraph/pkg/types"
)

// userIDFrom returns the user set by the context middleware.
func userIDFrom(c *gin.Context) (string, bool) {
	userID, _ := c.Request.Context().Value(types.ContextKeyUserID).(string)
	if !dto.ValidUserID(userID) {
		writeErrorJSON(c, http.StatusBadRequest, "invalid_request", "X-User-ID header is required")
		return "", false
	}
	return userID, true
}

// writeErrorJSON writes an error response as JSON
func writeErrorJSON(c *gin.Context, status int, errCode, message string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Error:   errCode,
		Message: message,
		Code:    status,
	})
}

// writeError maps err to a status code and writes it.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(c.Request.Context(), "Request failed",
			"path", c.FullPath(),
			"status", status,
			"error", err)
	}
	writeErrorJSON(c, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, types.ErrEmptyUserID),
		errors.Is(err, types.ErrEmptyText),
		errors.Is(err, types.ErrEmptyID),
		errors.Is(err, types.ErrExtractionMalformed),
		errors.Is(err, notes.ErrEmptyTitle),
		errors.Is(err, notes.ErrTitleTooLong),
		errors.Is(err, dto.ErrEmptyText),
		errors.Is(err, dto.ErrTextTooLong),
		errors.Is(err, dto.ErrInvalidPayload):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, types.ErrNodeNotFound), errors.Is(err, notes.ErrNoteNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, types.ErrPromptInjection):
		return http.StatusUnprocessableEntity, "prompt_injection"
	case errors.Is(err, types.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, notegraph.ErrNoExtractor):
		return http.StatusServiceUnavailable, "extractor_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
