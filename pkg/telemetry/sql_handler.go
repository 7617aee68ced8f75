package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"regexp"
)

// DefaultTable receives error records when no table name is given.
const DefaultTable = "error_logs"

var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SQLHandler is a slog.Handler that inserts error records into a Postgres
// table.
type SQLHandler struct {
	next   slog.Handler
	db     *sql.DB
	table  string
	insert string
	attrs  []slog.Attr
}

// NewSQLHandler creates the table if needed and returns the handler.
func NewSQLHandler(ctx context.Context, next slog.Handler, db *sql.DB, table string) (*SQLHandler, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid telemetry table name %q", table)
	}
	h := &SQLHandler{
		next:  next,
		db:    db,
		table: table,
		insert: fmt.Sprintf(`INSERT INTO %s
			(id, ts, level, message, user_id, session_id, run_id, request_source, source_file, line_number, attributes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, table),
	}
	if err := h.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure telemetry table: %w", err)
	}
	return h, nil
}

func (h *SQLHandler) ensureTable(ctx context.Context) error {
	_, err := h.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id UUID PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		level VARCHAR(10) NOT NULL,
		message TEXT NOT NULL,
		user_id TEXT,
		session_id TEXT,
		run_id TEXT,
		request_source TEXT,
		source_file TEXT,
		line_number INT,
		attributes JSONB
	)`, h.table))
	return err
}

// Enabled implements slog.Handler.
func (h *SQLHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler. Insert failures are reported on stderr and
// never fail the logging call.
func (h *SQLHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.next.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level < slog.LevelError {
		return nil
	}

	rec := newRecord(ctx, r, h.attrs)
	_, err := h.db.ExecContext(context.WithoutCancel(ctx), h.insert,
		rec.ID,
		rec.Timestamp,
		rec.Level,
		rec.Message,
		rec.UserID,
		rec.SessionID,
		rec.RunID,
		rec.RequestSource,
		rec.SourceFile,
		rec.LineNumber,
		rec.Attributes,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write log record to %s: %v\n", h.table, err)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *SQLHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	clone.attrs = appendAttrs(h.attrs, attrs)
	return &clone
}

// WithGroup implements slog.Handler.
func (h *SQLHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	return &clone
}
