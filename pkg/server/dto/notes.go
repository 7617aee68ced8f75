package dto

import (
	"github.com/soundprediction/notegraph/pkg/notes"
	"github.com/soundprediction/notegraph/pkg/types"
)

// CreateNoteRequest is the body of POST /api/v1/notes.
type CreateNoteRequest struct {
	Title   string   `json:"title" binding:"required"`
	Content string   `json:"content" binding:"required"`
	Tags    []string `json:"tags"`
}

// Validate performs validation on CreateNoteRequest
func (r *CreateNoteRequest) Validate() error {
	if len(r.Content) > MaxContentLength {
		return ErrTextTooLong
	}
	return nil
}

// NoteResponse is a note together with the analysis its content produced.
type NoteResponse struct {
	Note     *notes.Note           `json:"note"`
	Analysis *types.AnalysisResult `json:"analysis,omitempty"`
}

// NoteListResponse is a page of notes.
type NoteListResponse struct {
	Notes  []notes.Note `json:"notes"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}
