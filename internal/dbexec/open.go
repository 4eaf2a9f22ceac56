package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// OpenConfig describes how to reach the database.
type OpenConfig struct {
	// Dialect is a canonical dialect name: mysql, postgres or sqlite.
	Dialect        string
	DSN            string
	MaxOpen        int
	MaxIdle        int
	MaxLifetime    time.Duration
	TracingEnabled bool
	MetricsEnabled bool
	ConnectTimeout time.Duration
}

// Handle is an open database plus the instrumentation registered for it.
type Handle struct {
	DB       *sql.DB
	statsReg interface{ Unregister() error }
}

// Close unregisters pool metrics and closes the pool.
func (h *Handle) Close() error {
	if h.statsReg != nil {
		_ = h.statsReg.Unregister()
	}
	return h.DB.Close()
}

// driverFor maps a dialect to the database/sql driver name and the DSN that
// driver expects.
func driverFor(dialect, dsn string) (string, string, attribute.KeyValue, error) {
	switch dialect {
	case "mysql":
		return "mysql", dsn, semconv.DBSystemMySQL, nil
	case "postgres":
		config, err := pgx.ParseConfig(dsn)
		if err != nil {
			return "", "", attribute.KeyValue{}, fmt.Errorf("invalid postgres DSN: %w", err)
		}
		return "pgx", stdlib.RegisterConnConfig(config), semconv.DBSystemPostgreSQL, nil
	case "sqlite":
		return "sqlite", dsn, semconv.DBSystemSqlite, nil
	default:
		return "", "", attribute.KeyValue{}, fmt.Errorf("no driver for dialect %q", dialect)
	}
}

// Open opens and pings the database. When tracing or metrics are enabled the
// driver is wrapped with otelsql.
func Open(ctx context.Context, cfg OpenConfig, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver, dsn, system, err := driverFor(cfg.Dialect, cfg.DSN)
	if err != nil {
		return nil, err
	}

	handle := &Handle{}
	if cfg.MetricsEnabled || cfg.TracingEnabled {
		opts := []otelsql.Option{otelsql.WithAttributes(system)}
		if cfg.TracingEnabled {
			opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{
				DisableErrSkip: true,
			}))
		}
		handle.DB, err = otelsql.Open(driver, dsn, opts...)
		if err != nil {
			return nil, err
		}
		if cfg.MetricsEnabled {
			handle.statsReg, err = otelsql.RegisterDBStatsMetrics(handle.DB, otelsql.WithAttributes(system))
			if err != nil {
				logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
			}
		}
		logger.Debug("database instrumentation enabled",
			slog.String("driver", driver),
			slog.Bool("metrics", cfg.MetricsEnabled),
			slog.Bool("tracing", cfg.TracingEnabled),
		)
	} else {
		handle.DB, err = sql.Open(driver, dsn)
		if err != nil {
			return nil, err
		}
	}

	if cfg.MaxOpen > 0 {
		handle.DB.SetMaxOpenConns(cfg.MaxOpen)
	}
	if cfg.MaxIdle > 0 {
		handle.DB.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.MaxLifetime > 0 {
		handle.DB.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := handle.DB.PingContext(pingCtx); err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Dialect, err)
	}
	return handle, nil
}
