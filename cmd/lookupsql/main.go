package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"lookupsql/internal/config"
	"lookupsql/internal/dbexec"
	"lookupsql/internal/dialect"
	"lookupsql/internal/introspection"
	"lookupsql/internal/logging"
	"lookupsql/internal/lookup"
	"lookupsql/internal/lookupjson"
	"lookupsql/internal/observability"
	"lookupsql/internal/query"
	"lookupsql/internal/relation"
	"lookupsql/internal/schemafilter"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("lookupsql error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// options holds the command flags that describe one statement.
type options struct {
	version  bool
	table    string
	alias    string
	mode     string
	selects  []string
	distinct bool
	where    []string
	or       []string
	exclude  []string
	set      string
	order    []string
	group    []string
	limit    int
	offset   int
	execute  bool
	metrics  bool
}

func defineFlags(fs *pflag.FlagSet) *options {
	o := &options{}
	config.RegisterFlags(fs)
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	fs.StringVar(&o.table, "table", "", "Target table")
	fs.StringVar(&o.alias, "alias", "", "Alias for the target table")
	fs.StringVar(&o.mode, "mode", "select", "Statement kind (select, update, delete, insert)")
	fs.StringSliceVar(&o.selects, "select", nil, "Columns to select")
	fs.BoolVar(&o.distinct, "distinct", false, "SELECT DISTINCT")
	fs.StringArrayVar(&o.where, "where", nil, "JSON lookup object ANDed into WHERE (repeatable)")
	fs.StringArrayVar(&o.or, "or", nil, "JSON lookup object ORed into WHERE (repeatable)")
	fs.StringArrayVar(&o.exclude, "exclude", nil, "JSON lookup object negated into WHERE (repeatable)")
	fs.StringVar(&o.set, "set", "", "JSON object of column values for update and insert")
	fs.StringSliceVar(&o.order, "order", nil, "Order terms; -col descends, ? is random")
	fs.StringSliceVar(&o.group, "group", nil, "GROUP BY columns")
	fs.IntVar(&o.limit, "limit", 0, "LIMIT")
	fs.IntVar(&o.offset, "offset", 0, "OFFSET")
	fs.BoolVar(&o.execute, "execute", false, "Run the statement against the database")
	fs.BoolVar(&o.metrics, "metrics", false, "Print collected metrics to stderr on exit")
	return o
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("lookupsql", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := defineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.version {
		fmt.Fprintf(stdout, "lookupsql %s (%s)\n", Version, Commit)
		return nil
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Observability.ServiceVersion == "" || cfg.Observability.ServiceVersion == "dev" {
		cfg.Observability.ServiceVersion = Version
	}

	otelCfg := observabilityConfig(cfg)
	var logProvider *observability.LoggerProvider
	logCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: stderr,
	}
	if cfg.Observability.LogExportEnabled && cfg.Observability.OTLP.Endpoint != "" {
		if logProvider, err = observability.InitLoggerProvider(ctx, otelCfg); err != nil {
			return fmt.Errorf("failed to initialize log export: %w", err)
		}
		logCfg.LoggerProvider = logProvider.Provider()
	}

	runID := logging.NewRunID()
	logger := logging.NewLogger(logCfg).WithRunID(runID)
	if logProvider != nil {
		defer func() {
			_ = logProvider.Shutdown(context.WithoutCancel(ctx), logger.Logger)
		}()
	}
	ctx = logging.WithRunIDContext(logging.WithLogger(ctx, logger), runID)

	validationResult := cfg.Validate()
	for _, warn := range validationResult.Warnings {
		logger.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}
	if validationResult.HasErrors() {
		for _, err := range validationResult.Errors {
			logger.Error("configuration error",
				slog.String("field", err.Field),
				slog.String("message", err.Message),
				slog.String("hint", err.Hint),
			)
		}
		return fmt.Errorf("configuration validation failed")
	}

	if opts.table == "" {
		return fmt.Errorf("--table is required")
	}

	app, err := newApp(ctx, cfg, opts, logger, stderr)
	if err != nil {
		return err
	}
	defer app.close(ctx)

	return app.render(ctx, stdout)
}

// app holds the collaborators wired for one invocation.
type app struct {
	cfg      *config.Config
	opts     *options
	logger   *logging.Logger
	stderr   io.Writer
	adapter  dialect.Adapter
	registry *lookup.Registry
	resolver *relation.Resolver
	handle   *dbexec.Handle
	meters   *observability.MeterProvider
	tracer   *observability.TracerProvider
	metrics  *observability.Metrics
}

func newApp(ctx context.Context, cfg *config.Config, opts *options, logger *logging.Logger, stderr io.Writer) (a *app, err error) {
	a = &app{cfg: cfg, opts: opts, logger: logger, stderr: stderr}
	defer func() {
		if err != nil {
			a.close(ctx)
		}
	}()

	otelCfg := observabilityConfig(cfg)
	if cfg.Observability.MetricsEnabled {
		if a.meters, err = observability.InitMeterProvider(otelCfg); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
		if a.metrics, err = observability.NewMetrics(a.meters.Meter("lookupsql")); err != nil {
			return nil, err
		}
	}
	if cfg.Observability.TracingEnabled {
		if a.tracer, err = observability.InitTracerProvider(ctx, otelCfg, logger.Logger); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if a.adapter, err = dialect.New(cfg.Database.Dialect); err != nil {
		return nil, err
	}
	a.registry = lookup.NewRegistry(lookup.WithSeparator(cfg.Query.LookupSeparator))

	if !cfg.Query.Introspect && !opts.execute {
		return a, nil
	}
	if err = a.open(ctx); err != nil {
		return nil, err
	}
	if cfg.Query.Introspect {
		if err = a.introspect(ctx); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func observabilityConfig(cfg *config.Config) observability.Config {
	o := cfg.Observability
	return observability.Config{
		ServiceName:      o.ServiceName,
		ServiceVersion:   o.ServiceVersion,
		TraceSampleRatio: o.TraceSampleRatio,
		OTLP: observability.OTLPConfig{
			Endpoint:    o.OTLP.Endpoint,
			Protocol:    o.OTLP.Protocol,
			Insecure:    o.OTLP.Insecure,
			CAFile:      o.OTLP.CAFile,
			Headers:     o.OTLP.Headers,
			Timeout:     o.OTLP.Timeout,
			Compression: o.OTLP.Compression,
		},
	}
}

func (a *app) open(ctx context.Context) error {
	if err := a.cfg.Database.RegisterTLS(); err != nil {
		return err
	}
	dsn, err := a.cfg.Database.DSN()
	if err != nil {
		return err
	}
	a.handle, err = dbexec.Open(ctx, dbexec.OpenConfig{
		Dialect:        a.adapter.Name(),
		DSN:            dsn,
		MaxOpen:        a.cfg.Database.Pool.MaxOpen,
		MaxIdle:        a.cfg.Database.Pool.MaxIdle,
		MaxLifetime:    a.cfg.Database.Pool.MaxLifetime,
		TracingEnabled: a.cfg.Observability.TracingEnabled,
		MetricsEnabled: a.cfg.Observability.MetricsEnabled,
		ConnectTimeout: a.cfg.Database.ConnectionTimeout,
	}, a.logger.Logger)
	return err
}

func (a *app) introspect(ctx context.Context) error {
	kind, err := query.ParseJoinKind(a.cfg.Query.JoinKind)
	if err != nil {
		return err
	}
	namer := relation.NewNamer(a.registry, a.cfg.Naming, a.logger.Logger)
	schema, err := introspection.New(a.executor(a.handle.DB), a.adapter,
		introspection.WithLogger(a.logger.Logger),
		introspection.WithMetrics(a.metrics),
		introspection.WithNamer(namer),
	).IntrospectSchema(ctx)
	if err != nil {
		return fmt.Errorf("failed to introspect schema: %w", err)
	}
	if report := schemafilter.Apply(ctx, schema, a.cfg.SchemaFilters, namer); report.Hidden() {
		a.logger.Debug("schema filters applied",
			slog.Any("hidden_tables", report.HiddenTables),
			slog.Any("hidden_columns", report.HiddenColumns),
			slog.Any("dropped_relations", report.DroppedRelations),
			slog.Any("empty_tables", report.EmptyTablesPruned),
		)
	}
	if _, ok := schema.Table(a.opts.table); !ok {
		return fmt.Errorf("%w: %s", introspection.ErrTableNotFound, a.opts.table)
	}
	a.resolver = relation.New(schema, relation.WithJoinKind(kind), relation.WithLogger(a.logger.Logger))
	return nil
}

// build assembles the statement described by the command flags.
func (a *app) build() (*query.Builder, error) {
	builderOpts := []query.Option{
		query.WithLookups(a.registry),
		query.WithLogger(a.logger.Logger),
	}
	var columns lookupjson.ColumnFunc
	if a.resolver != nil {
		builderOpts = append(builderOpts, query.WithRelationResolver(a.resolver))
		columns = func(path []string) (introspection.Column, bool) {
			return a.resolver.Column(a.opts.table, path)
		}
	}
	decoder := lookupjson.New(a.registry, columns)

	mode, err := query.ParseMode(a.opts.mode)
	if err != nil {
		return nil, err
	}
	b := query.New(a.adapter, builderOpts...).From(a.opts.table).As(a.opts.alias)

	for _, group := range []struct {
		docs []string
		add  func(...query.Condition) *query.Builder
	}{
		{a.opts.where, b.Where},
		{a.opts.or, b.OrWhere},
		{a.opts.exclude, b.Exclude},
	} {
		for _, doc := range group.docs {
			leaf, err := decoder.Decode([]byte(doc))
			if err != nil {
				return nil, err
			}
			if len(leaf) > 0 {
				group.add(leaf)
			}
		}
	}

	switch mode {
	case query.ModeSelect:
		if a.opts.distinct {
			b.Distinct()
		}
		b.Select(a.opts.selects...).GroupBy(a.opts.group...).OrderBy(a.opts.order...)
		if a.opts.limit > 0 {
			b.Limit(a.opts.limit)
		}
		if a.opts.offset > 0 {
			b.Offset(a.opts.offset)
		}
	case query.ModeUpdate, query.ModeInsert:
		if a.opts.set == "" {
			return nil, fmt.Errorf("--set is required for %s", mode)
		}
		values, err := lookupjson.DecodeValues([]byte(a.opts.set))
		if err != nil {
			return nil, err
		}
		if mode == query.ModeUpdate {
			b.Update(values)
			break
		}
		cols := make([]string, 0, len(values))
		for c := range values {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		row := make([]any, len(cols))
		for i, c := range cols {
			row[i] = values[c]
		}
		b.Insert(cols, row)
	case query.ModeDelete:
		b.Delete()
	}
	return b, nil
}

func (a *app) render(ctx context.Context, stdout io.Writer) error {
	b, err := a.build()
	if err != nil {
		return err
	}

	start := time.Now()
	sql, err := b.ToSQL()
	a.metrics.RecordRender(ctx, a.adapter.Name(), string(b.Mode()), time.Since(start), err)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, sql)

	if !a.opts.execute {
		return nil
	}
	return a.execute(ctx, stdout, b.Mode(), sql)
}

func (a *app) execute(ctx context.Context, stdout io.Writer, mode query.Mode, sql string) error {
	start := time.Now()

	if mode != query.ModeSelect {
		affected, err := dbexec.Exec(ctx, a.executor(a.handle.DB), sql)
		a.metrics.RecordExecution(ctx, a.adapter.Name(), string(mode), time.Since(start), err)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%d rows affected\n", affected)
		return nil
	}

	result, err := dbexec.Query(ctx, a.executor(a.handle.DB), sql)
	a.metrics.RecordExecution(ctx, a.adapter.Name(), string(mode), time.Since(start), err)
	if err != nil {
		return err
	}
	return writeResult(stdout, result)
}

func (a *app) executor(conn dbexec.Conn) dbexec.QueryExecutor {
	return dbexec.NewLoggingExecutor(dbexec.NewExecutor(conn), a.logger.Logger)
}

// writeResult prints rows as tab-aligned columns with a header line.
func writeResult(w io.Writer, result *dbexec.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, c := range result.Columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprintln(tw)
	for _, row := range result.Rows {
		for i, v := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			if v == nil {
				fmt.Fprint(tw, "NULL")
			} else {
				fmt.Fprint(tw, v)
			}
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func (a *app) close(ctx context.Context) {
	if a.handle != nil {
		if err := a.handle.Close(); err != nil {
			a.logger.Warn("failed to close database", slog.String("error", err.Error()))
		}
		a.handle = nil
	}
	if a.meters != nil {
		if a.opts.metrics {
			if err := observability.WriteText(a.stderr, a.meters.Gatherer()); err != nil {
				a.logger.Warn("failed to write metrics", slog.String("error", err.Error()))
			}
		}
		_ = a.meters.Shutdown(ctx, a.logger.Logger)
		a.meters = nil
	}
	if a.tracer != nil {
		_ = a.tracer.Shutdown(ctx, a.logger.Logger)
		a.tracer = nil
	}
}
