package telemetry

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/notegraph/pkg/types"
)

func requestContext() context.Context {
	ctx := context.WithValue(context.Background(), types.ContextKeyUserID, "u1")
	ctx = context.WithValue(ctx, types.ContextKeySessionID, "s1")
	ctx = context.WithValue(ctx, types.ContextKeyRunID, "run-1")
	return context.WithValue(ctx, types.ContextKeyRequestSource, "server")
}

func TestParquetHandler(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	h, err := NewParquetHandler(slog.NewTextHandler(&console, nil), dir, 2)
	require.NoError(t, err)

	logger := slog.New(h).With("component", "store")
	ctx := requestContext()

	logger.InfoContext(ctx, "not persisted")
	logger.ErrorContext(ctx, "first failure", "op", "upsert_node")
	assert.Contains(t, console.String(), "not persisted")

	recs, err := ReadRecords(dir)
	require.NoError(t, err)
	assert.Empty(t, recs, "below batch size nothing is written")

	logger.ErrorContext(ctx, "second failure")
	recs, err = ReadRecords(dir)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "first failure", recs[0].Message)
	assert.Equal(t, "ERROR", recs[0].Level)
	assert.Equal(t, "u1", recs[0].UserID)
	assert.Equal(t, "s1", recs[0].SessionID)
	assert.Equal(t, "run-1", recs[0].RunID)
	assert.Equal(t, "server", recs[0].RequestSource)
	assert.NotEmpty(t, recs[0].ID)

	var attrs map[string]any
	require.NoError(t, json.Unmarshal([]byte(recs[0].Attributes), &attrs))
	assert.Equal(t, "store", attrs["component"])
	assert.Equal(t, "upsert_node", attrs["op"])

	logger.Error("left in buffer")
	require.NoError(t, h.Close())
	recs, err = ReadRecords(dir)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

// recordingDriver is a database/sql driver that records executed statements.
type recordingDriver struct {
	mu    sync.Mutex
	execs []recordedExec
	fail  bool
}

type recordedExec struct {
	query string
	args  []driver.NamedValue
}

func (d *recordingDriver) Open(string) (driver.Conn, error) { return &recordingConn{d: d}, nil }

type recordingConn struct{ d *recordingDriver }

func (c *recordingConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (c *recordingConn) Close() error                        { return nil }
func (c *recordingConn) Begin() (driver.Tx, error)           { return nil, errors.New("not supported") }

func (c *recordingConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if c.d.fail && strings.HasPrefix(strings.TrimSpace(query), "INSERT") {
		return nil, errors.New("disk full")
	}
	c.d.execs = append(c.d.execs, recordedExec{query: query, args: args})
	return driver.RowsAffected(1), nil
}

var (
	registerOnce sync.Once
	testDriver   = &recordingDriver{}
)

func openRecordingDB(t *testing.T) (*sql.DB, *recordingDriver) {
	t.Helper()
	registerOnce.Do(func() { sql.Register("telemetry-recording", testDriver) })
	testDriver.mu.Lock()
	testDriver.execs = nil
	testDriver.fail = false
	testDriver.mu.Unlock()

	db, err := sql.Open("telemetry-recording", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, testDriver
}

func TestSQLHandler(t *testing.T) {
	db, drv := openRecordingDB(t)

	h, err := NewSQLHandler(context.Background(), slog.NewTextHandler(&bytes.Buffer{}, nil), db, "")
	require.NoError(t, err)
	require.Len(t, drv.execs, 1)
	assert.Contains(t, drv.execs[0].query, "CREATE TABLE IF NOT EXISTS error_logs")

	logger := slog.New(h)
	logger.WarnContext(requestContext(), "skipped")
	logger.ErrorContext(requestContext(), "store failed", "op", "count_edges")

	drv.mu.Lock()
	defer drv.mu.Unlock()
	require.Len(t, drv.execs, 2)
	insert := drv.execs[1]
	assert.Contains(t, insert.query, "INSERT INTO error_logs")
	require.Len(t, insert.args, 11)
	assert.Equal(t, "ERROR", insert.args[2].Value)
	assert.Equal(t, "store failed", insert.args[3].Value)
	assert.Equal(t, "u1", insert.args[4].Value)
	assert.Equal(t, "run-1", insert.args[6].Value)
}

func TestSQLHandler_InsertFailureDoesNotFailLogging(t *testing.T) {
	db, drv := openRecordingDB(t)
	h, err := NewSQLHandler(context.Background(), slog.NewTextHandler(&bytes.Buffer{}, nil), db, "errors")
	require.NoError(t, err)

	drv.mu.Lock()
	drv.fail = true
	drv.mu.Unlock()

	assert.NoError(t, h.Handle(context.Background(), slog.Record{Level: slog.LevelError, Message: "boom"}))
}

func TestSQLHandler_RejectsTableName(t *testing.T) {
	db, _ := openRecordingDB(t)
	_, err := NewSQLHandler(context.Background(), slog.NewTextHandler(&bytes.Buffer{}, nil), db, "logs; DROP TABLE notes")
	assert.Error(t, err)
}
