package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/notegraph"
	"github.com/soundprediction/notegraph/pkg/server/dto"
	"github.com/soundprediction/notegraph/pkg/types"
)

// GraphHandler serves materialization, analysis and graph reads.
type GraphHandler struct {
	graph  notegraph.NoteGraph
	logger *slog.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(g notegraph.NoteGraph, logger *slog.Logger) *GraphHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphHandler{graph: g, logger: logger}
}

// Materialize handles POST /api/v1/materialize. The body is an extraction;
// missing or mistyped concept and relationship lists are treated as empty.
func (h *GraphHandler) Materialize(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, dto.MaxContentLength+1))
	if err != nil {
		writeErrorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(body) > dto.MaxContentLength {
		writeError(c, h.logger, dto.ErrTextTooLong)
		return
	}
	ex, err := types.DecodeExtraction(body)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	result, err := h.graph.Materialize(c.Request.Context(), userID, ex)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Analyze handles POST /api/v1/analyze
func (h *GraphHandler) Analyze(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	var req dto.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, h.logger, err)
		return
	}

	result, err := h.graph.Analyze(c.Request.Context(), userID, req.Text)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetGraph handles GET /api/v1/graph
func (h *GraphHandler) GetGraph(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	sub, err := h.graph.GetUserGraph(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewGraphResponse(userID, sub))
}

// GetNeighbors handles GET /api/v1/graph/neighbors/:id
func (h *GraphHandler) GetNeighbors(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	sub, err := h.graph.GetNeighbors(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewGraphResponse(userID, sub))
}

// DeleteGraph handles DELETE /api/v1/graph
func (h *GraphHandler) DeleteGraph(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	if err := h.graph.DeleteUserGraph(c.Request.Context(), userID); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Graph deleted",
		"user_id": userID,
	})
}
