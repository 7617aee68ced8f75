// Package dto holds the request and response bodies of the HTTP API.
package dto

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Validation errors
var (
	ErrEmptyText      = errors.New("text cannot be empty")
	ErrTextTooLong    = errors.New("text exceeds maximum length (1MB)")
	ErrInvalidPayload = errors.New("request body must be a JSON object")
)

// Maximum field lengths
const (
	MaxContentLength = 1024 * 1024 // 1MB
	MaxUserIDLength  = 256
	DefaultPageSize  = 50
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	Text string `json:"text" binding:"required"`
}

// Validate performs validation on AnalyzeRequest
func (r *AnalyzeRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	if len(r.Text) > MaxContentLength {
		return ErrTextTooLong
	}
	return nil
}

// ValidUserID reports whether id can be used as a user id.
func ValidUserID(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && utf8.RuneCountInString(id) <= MaxUserIDLength
}
