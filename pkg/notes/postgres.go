package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/soundprediction/notegraph/pkg/config"
)

const schema = `CREATE TABLE IF NOT EXISTS notes (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	title VARCHAR(255) NOT NULL,
	content TEXT NOT NULL,
	tags TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS notes_user_id_idx ON notes (user_id);
CREATE INDEX IF NOT EXISTS notes_title_idx ON notes (title)`

// Open connects to Postgres with the configured pool settings and checks
// the connection.
func Open(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// PostgresRepository is a Repository over the notes table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates the notes table if needed.
func NewPostgresRepository(ctx context.Context, db *sql.DB) (*PostgresRepository, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create notes schema: %w", err)
	}
	return &PostgresRepository{db: db}, nil
}

// Create implements Repository.
func (r *PostgresRepository) Create(ctx context.Context, note *Note) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO notes (user_id, title, content, tags)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		note.UserID, note.Title, note.Content, pq.Array(note.Tags),
	).Scan(&note.ID, &note.CreatedAt, &note.UpdatedAt)
}

// Get implements Repository.
func (r *PostgresRepository) Get(ctx context.Context, userID string, id int64) (*Note, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, content, tags, created_at, updated_at
		FROM notes WHERE user_id = $1 AND id = $2`, userID, id)
	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoteNotFound
	}
	return note, err
}

// Update implements Repository.
func (r *PostgresRepository) Update(ctx context.Context, note *Note) error {
	var updated time.Time
	err := r.db.QueryRowContext(ctx,
		`UPDATE notes SET title = $3, content = $4, tags = $5, updated_at = now()
		WHERE user_id = $1 AND id = $2
		RETURNING updated_at`,
		note.UserID, note.ID, note.Title, note.Content, pq.Array(note.Tags),
	).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoteNotFound
	}
	if err != nil {
		return err
	}
	note.UpdatedAt = updated
	return nil
}

// List implements Repository.
func (r *PostgresRepository) List(ctx context.Context, userID string, limit, offset int) ([]Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, content, tags, created_at, updated_at
		FROM notes WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *note)
	}
	return notes, rows.Err()
}

// Delete implements Repository.
func (r *PostgresRepository) Delete(ctx context.Context, userID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoteNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*Note, error) {
	var note Note
	var tags pq.StringArray
	if err := s.Scan(&note.ID, &note.UserID, &note.Title, &note.Content, &tags, &note.CreatedAt, &note.UpdatedAt); err != nil {
		return nil, err
	}
	note.Tags = []string(tags)
	if note.Tags == nil {
		note.Tags = []string{}
	}
	return &note, nil
}

var _ Repository = (*PostgresRepository)(nil)
