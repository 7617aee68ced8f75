// Package notes stores user notes and feeds their content to the knowledge
// graph. Creating a note, or changing its content, runs an analysis whose
// tags are merged into the note's tags.
package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/soundprediction/notegraph/pkg/types"
)

// MaxTitleLength is the longest accepted title in runes.
const MaxTitleLength = 255

var (
	ErrNoteNotFound = errors.New("note not found")
	ErrEmptyTitle   = errors.New("title cannot be empty")
	ErrTitleTooLong = fmt.Errorf("title exceeds %d characters", MaxTitleLength)
)

// Note is a user's note.
type Note struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Update holds the fields to change; nil fields are left as they are.
type Update struct {
	Title   *string   `json:"title,omitempty"`
	Content *string   `json:"content,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

// Repository persists notes. Every method is scoped to one user.
type Repository interface {
	Create(ctx context.Context, note *Note) error
	Get(ctx context.Context, userID string, id int64) (*Note, error)
	Update(ctx context.Context, note *Note) error
	List(ctx context.Context, userID string, limit, offset int) ([]Note, error)
	Delete(ctx context.Context, userID string, id int64) error
}

// Analyzer turns note content into graph knowledge.
type Analyzer interface {
	Analyze(ctx context.Context, userID, text string) (*types.AnalysisResult, error)
}

// Service combines note storage with analysis.
type Service struct {
	repo     Repository
	analyzer Analyzer
	logger   *slog.Logger
}

// NewService creates a service. A nil analyzer stores notes without
// analysing them.
func NewService(repo Repository, analyzer Analyzer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, analyzer: analyzer, logger: logger}
}

// Create stores a note and analyses its content. An analysis failure is
// logged and leaves the stored note unchanged; the returned analysis is then
// nil.
func (s *Service) Create(ctx context.Context, userID, title, content string, tags []string) (*Note, *types.AnalysisResult, error) {
	if userID == "" {
		return nil, nil, types.ErrEmptyUserID
	}
	title = strings.TrimSpace(title)
	if err := validateTitle(title); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil, types.ErrEmptyText
	}

	note := &Note{
		UserID:  userID,
		Title:   title,
		Content: content,
		Tags:    types.StringSet(tags),
	}
	if err := s.repo.Create(ctx, note); err != nil {
		return nil, nil, fmt.Errorf("failed to create note: %w", err)
	}
	s.logger.InfoContext(ctx, "Created note", "user_id", userID, "note_id", note.ID)

	analysis := s.analyze(ctx, note)
	return note, analysis, nil
}

// Get returns one note.
func (s *Service) Get(ctx context.Context, userID string, id int64) (*Note, error) {
	if userID == "" {
		return nil, types.ErrEmptyUserID
	}
	return s.repo.Get(ctx, userID, id)
}

// List returns the user's notes, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Note, error) {
	if userID == "" {
		return nil, types.ErrEmptyUserID
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, userID, limit, offset)
}

// Update changes a note. A content change triggers a new analysis.
func (s *Service) Update(ctx context.Context, userID string, id int64, upd Update) (*Note, *types.AnalysisResult, error) {
	note, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if err := validateTitle(title); err != nil {
			return nil, nil, err
		}
		note.Title = title
	}
	if upd.Content != nil {
		if strings.TrimSpace(*upd.Content) == "" {
			return nil, nil, types.ErrEmptyText
		}
		note.Content = *upd.Content
	}
	if upd.Tags != nil {
		note.Tags = types.StringSet(*upd.Tags)
	}
	if err := s.repo.Update(ctx, note); err != nil {
		return nil, nil, fmt.Errorf("failed to update note: %w", err)
	}

	if upd.Content == nil {
		return note, nil, nil
	}
	return note, s.analyze(ctx, note), nil
}

// Delete removes a note. The graph knowledge it produced is kept.
func (s *Service) Delete(ctx context.Context, userID string, id int64) error {
	if userID == "" {
		return types.ErrEmptyUserID
	}
	return s.repo.Delete(ctx, userID, id)
}

func (s *Service) analyze(ctx context.Context, note *Note) *types.AnalysisResult {
	if s.analyzer == nil {
		return nil
	}
	analysis, err := s.analyzer.Analyze(ctx, note.UserID, note.Content)
	if err != nil {
		s.logger.WarnContext(ctx, "Note analysis failed",
			"user_id", note.UserID,
			"note_id", note.ID,
			"error", err)
		return nil
	}
	if len(analysis.Tags) == 0 {
		return analysis
	}

	merged := types.StringSet(note.Tags, analysis.Tags)
	if len(merged) == len(note.Tags) {
		return analysis
	}
	previous := note.Tags
	note.Tags = merged
	if err := s.repo.Update(ctx, note); err != nil {
		note.Tags = previous
		s.logger.WarnContext(ctx, "Failed to store analysis tags",
			"user_id", note.UserID,
			"note_id", note.ID,
			"error", err)
	}
	return analysis
}

func validateTitle(title string) error {
	if title == "" {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}
