// Package dbexec opens database handles for the supported drivers and runs
// rendered statements against them.
package dbexec

import (
	"context"
	"database/sql"
	"log/slog"
	"time"
)

// Rows abstracts sql.Rows to allow wrapped cleanup behavior.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Err() error
	Close() error
}

// QueryExecutor is what introspection and statement execution run against.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Conn is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Conn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Executor runs statements on a Conn.
type Executor struct {
	conn Conn
}

// NewExecutor wraps conn. A nil conn yields sql.ErrConnDone on every call.
func NewExecutor(conn Conn) *Executor {
	return &Executor{conn: conn}
}

func (e *Executor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.conn == nil {
		return nil, sql.ErrConnDone
	}
	return e.conn.QueryContext(ctx, query, args...)
}

func (e *Executor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if e.conn == nil {
		return nil, sql.ErrConnDone
	}
	return e.conn.ExecContext(ctx, query, args...)
}

// LoggingExecutor logs every statement at debug level with its duration.
// Failures are logged at warn level.
type LoggingExecutor struct {
	next   QueryExecutor
	logger *slog.Logger
}

// NewLoggingExecutor wraps next. A nil logger uses slog.Default.
func NewLoggingExecutor(next QueryExecutor, logger *slog.Logger) *LoggingExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingExecutor{next: next, logger: logger}
}

func (e *LoggingExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	start := time.Now()
	rows, err := e.next.QueryContext(ctx, query, args...)
	e.log(ctx, "query", query, len(args), start, err)
	return rows, err
}

func (e *LoggingExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := e.next.ExecContext(ctx, query, args...)
	e.log(ctx, "exec", query, len(args), start, err)
	return res, err
}

func (e *LoggingExecutor) log(ctx context.Context, kind, query string, args int, start time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("kind", kind),
		slog.String("statement", query),
		slog.Int("args", args),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		e.logger.LogAttrs(ctx, slog.LevelWarn, "statement failed", attrs...)
		return
	}
	e.logger.LogAttrs(ctx, slog.LevelDebug, "statement executed", attrs...)
}
