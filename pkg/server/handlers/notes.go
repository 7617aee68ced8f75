package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/notegraph/pkg/notes"
	"github.com/soundprediction/notegraph/pkg/server/dto"
)

// NotesHandler serves the notes API.
type NotesHandler struct {
	service *notes.Service
	logger  *slog.Logger
}

// NewNotesHandler creates a new notes handler
func NewNotesHandler(service *notes.Service, logger *slog.Logger) *NotesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotesHandler{service: service, logger: logger}
}

// Create handles POST /api/v1/notes
func (h *NotesHandler) Create(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	var req dto.CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, h.logger, err)
		return
	}

	note, analysis, err := h.service.Create(c.Request.Context(), userID, req.Title, req.Content, req.Tags)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NoteResponse{Note: note, Analysis: analysis})
}

// Get handles GET /api/v1/notes/:id
func (h *NotesHandler) Get(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	id, ok := noteID(c)
	if !ok {
		return
	}
	note, err := h.service.Get(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NoteResponse{Note: note})
}

// List handles GET /api/v1/notes
func (h *NotesHandler) List(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(dto.DefaultPageSize)))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := h.service.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NoteListResponse{Notes: list, Limit: limit, Offset: offset})
}

// Update handles PATCH /api/v1/notes/:id
func (h *NotesHandler) Update(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	id, ok := noteID(c)
	if !ok {
		return
	}
	var upd notes.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		writeErrorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if upd.Content != nil && len(*upd.Content) > dto.MaxContentLength {
		writeError(c, h.logger, dto.ErrTextTooLong)
		return
	}

	note, analysis, err := h.service.Update(c.Request.Context(), userID, id, upd)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NoteResponse{Note: note, Analysis: analysis})
}

// Delete handles DELETE /api/v1/notes/:id
func (h *NotesHandler) Delete(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	id, ok := noteID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), userID, id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func noteID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeErrorJSON(c, http.StatusBadRequest, "invalid_request", "note id must be a positive integer")
		return 0, false
	}
	return id, true
}
