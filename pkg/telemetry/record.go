// Package telemetry keeps error-level log records beyond the console: as
// Parquet files and in a SQL table. Both handlers pass every record on to
// the wrapped handler first.
package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/notegraph/pkg/types"
)

// LogRecord is one persisted error record.
type LogRecord struct {
	ID            string    `parquet:"id"`
	Timestamp     time.Time `parquet:"timestamp"`
	Level         string    `parquet:"level"`
	Message       string    `parquet:"message"`
	UserID        string    `parquet:"user_id"`
	SessionID     string    `parquet:"session_id"`
	RunID         string    `parquet:"run_id"`
	RequestSource string    `parquet:"request_source"`
	SourceFile    string    `parquet:"source_file"`
	LineNumber    int       `parquet:"line_number"`
	Attributes    string    `parquet:"attributes"`
}

// newRecord captures r together with the request values carried by ctx.
// attrs are the handler's own attributes, added before the record's.
func newRecord(ctx context.Context, r slog.Record, attrs []slog.Attr) LogRecord {
	fields := make(map[string]any, len(attrs)+r.NumAttrs())
	for _, a := range attrs {
		fields[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.Any()
		return true
	})
	encoded, err := json.Marshal(fields)
	if err != nil {
		encoded = []byte("{}")
	}

	rec := LogRecord{
		ID:            uuid.NewString(),
		Timestamp:     r.Time.UTC(),
		Level:         r.Level.String(),
		Message:       r.Message,
		UserID:        contextString(ctx, types.ContextKeyUserID),
		SessionID:     contextString(ctx, types.ContextKeySessionID),
		RunID:         contextString(ctx, types.ContextKeyRunID),
		RequestSource: contextString(ctx, types.ContextKeyRequestSource),
		Attributes:    string(encoded),
	}
	if r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		rec.SourceFile = f.File
		rec.LineNumber = f.Line
	}
	return rec
}

func contextString(ctx context.Context, key types.ContextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func appendAttrs(base, extra []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}
