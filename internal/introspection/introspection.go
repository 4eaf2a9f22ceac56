// Package introspection discovers tables, columns, foreign keys and unique
// indexes through a dialect adapter's catalog queries. Constraint discovery
// reads the dialect's CREATE statement text and pattern-matches it.
package introspection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lookupsql/internal/dbexec"
	"lookupsql/internal/dialect"
	"lookupsql/internal/naming"
	"lookupsql/internal/observability"
	"lookupsql/internal/sqltype"
)

var (
	// ErrTableNotFound is returned by callers that need a table to exist,
	// such as the CLI when --table is absent from the introspected schema.
	// The Introspector itself reports missing tables as ok=false.
	ErrTableNotFound = errors.New("table not found")
	// ErrMalformedCatalog means a catalog query returned an unexpected shape.
	ErrMalformedCatalog = errors.New("malformed catalog response")
)

// Column represents a database column
type Column struct {
	Name string
	// DataType is the physical type reported by the catalog, e.g. "varchar(255)".
	DataType      string
	Type          sqltype.Type
	IsNullable    bool
	IsPrimaryKey  bool
	HasDefault    bool
	ColumnDefault string
}

// Index represents a unique index or constraint with ordered columns.
type Index struct {
	Name    string
	Unique  bool
	Columns []string
}

// ForeignKey represents one column of a foreign key constraint
type ForeignKey struct {
	ColumnName       string // e.g., "product_id"
	ReferencedTable  string // e.g., "products"
	ReferencedColumn string // e.g., "id"
	ConstraintName   string // e.g., "test_ibfk_1"
	OrdinalPosition  int    // Column position within the FK constraint
}

// Relationship represents either direction of a FK relationship
type Relationship struct {
	// Name is the lookup path segment that follows this relationship.
	Name        string
	IsManyToOne bool
	IsOneToMany bool
	// LocalColumns/RemoteColumns are ordered positional mappings between local and remote keys.
	LocalColumns   []string // For many-to-one: FK columns; for one-to-many: referenced key columns on local table
	RemoteTable    string
	RemoteColumns  []string // For many-to-one: referenced columns; for one-to-many: FK columns in remote table
	ConstraintName string
}

// Table represents a database table
type Table struct {
	Name          string
	Columns       []Column
	ForeignKeys   []ForeignKey
	Indexes       []Index
	Relationships []Relationship
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Relationship returns the relationship with the given lookup name.
func (t *Table) Relationship(name string) (*Relationship, bool) {
	for i := range t.Relationships {
		if t.Relationships[i].Name == name {
			return &t.Relationships[i], true
		}
	}
	return nil, false
}

// Schema represents the introspected database schema
type Schema struct {
	Dialect string
	Tables  []Table
}

// Table returns the named table.
func (s *Schema) Table(name string) (*Table, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// Queryer provides query access for schema introspection.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (dbexec.Rows, error)
}

// Introspector reads catalog metadata for one dialect.
type Introspector struct {
	db      Queryer
	adapter dialect.Adapter
	logger  *slog.Logger
	metrics *observability.Metrics
	namer   *naming.Namer
}

// Option configures an Introspector.
type Option func(*Introspector)

// WithLogger sets the logger used for best-effort warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Introspector) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithMetrics records introspection counts and durations.
func WithMetrics(m *observability.Metrics) Option {
	return func(i *Introspector) {
		i.metrics = m
	}
}

// WithNamer sets the namer used to name relationships.
func WithNamer(n *naming.Namer) Option {
	return func(i *Introspector) {
		if n != nil {
			i.namer = n
		}
	}
}

// New creates an Introspector that queries db with adapter's catalog queries.
func New(db Queryer, adapter dialect.Adapter, opts ...Option) *Introspector {
	i := &Introspector{
		db:      db,
		adapter: adapter,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.namer == nil {
		i.namer = naming.New(naming.DefaultConfig(), i.logger)
	}
	return i
}

// TableNames lists the base tables of the current schema in name order.
func (i *Introspector) TableNames(ctx context.Context) ([]string, error) {
	ctx, span := startSpan(ctx, "introspection.table_names",
		attribute.String("db.system", i.adapter.Name()),
	)
	defer span.End()

	query, args, err := i.adapter.TableNamesQuery()
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return names, nil
}

// TableExists reports whether table is a base table of the current schema.
func (i *Introspector) TableExists(ctx context.Context, table string) (bool, error) {
	query, args, err := i.adapter.TableExistsQuery(table)
	if err != nil {
		return false, err
	}
	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = rows.Close()
	}()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return false, err
		}
		return false, fmt.Errorf("%w: table existence query returned no rows", ErrMalformedCatalog)
	}
	var count int64
	if err := rows.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, rows.Err()
}

// Columns reads column metadata in ordinal order. Physical types are mapped
// to abstract types through the adapter; unknown types become strings.
func (i *Introspector) Columns(ctx context.Context, table string) ([]Column, error) {
	ctx, span := startSpan(ctx, "introspection.columns",
		attribute.String("db.system", i.adapter.Name()),
		attribute.String("db.table", table),
	)
	defer span.End()

	query, args, err := i.adapter.ColumnsQuery(table)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var columns []Column
	for rows.Next() {
		var col Column
		var isNullable string
		var columnDefault sql.NullString
		var primaryKey int64
		if err := rows.Scan(&col.Name, &col.DataType, &isNullable, &columnDefault, &primaryKey); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		col.Type = i.adapter.AbstractType(col.DataType)
		col.IsNullable = strings.EqualFold(isNullable, "YES")
		col.IsPrimaryKey = primaryKey != 0
		if columnDefault.Valid {
			col.ColumnDefault = columnDefault.String
			col.HasDefault = true
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return columns, nil
}

// CreateTableSQL returns the constraint DDL text for table. ok is false when
// the table does not exist. Multiple DDL rows (SQLite index definitions) are
// joined with ",\n".
func (i *Introspector) CreateTableSQL(ctx context.Context, table string) (string, bool, error) {
	query, args, err := i.adapter.CreateStatementQuery(table)
	if err != nil {
		return "", false, err
	}
	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		if i.adapter.IsTableNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	defer func() {
		_ = rows.Close()
	}()

	columns, err := rows.Columns()
	if err != nil {
		return "", false, err
	}
	ddlIndex := -1
	for n, c := range columns {
		if strings.EqualFold(c, i.adapter.DDLColumn()) {
			ddlIndex = n
			break
		}
	}
	if ddlIndex < 0 {
		return "", false, fmt.Errorf("%w: no %q column in %v", ErrMalformedCatalog, i.adapter.DDLColumn(), columns)
	}

	var parts []string
	seen := 0
	for rows.Next() {
		seen++
		values := make([]sql.NullString, len(columns))
		dest := make([]any, len(columns))
		for n := range values {
			dest[n] = &values[n]
		}
		if err := rows.Scan(dest...); err != nil {
			return "", false, err
		}
		if v := values[ddlIndex]; v.Valid && strings.TrimSpace(v.String) != "" {
			parts = append(parts, v.String)
		}
	}
	if err := rows.Err(); err != nil {
		if i.adapter.IsTableNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if seen == 0 {
		return "", false, nil
	}
	if len(parts) == 0 {
		// An aggregate row with no text is either a table without
		// constraints or no table at all.
		exists, err := i.TableExists(ctx, table)
		if err != nil {
			return "", false, err
		}
		return "", exists, nil
	}
	return strings.Join(parts, ",\n"), true, nil
}

// Constraints discovers foreign keys and unique indexes for table from its
// DDL text. ok is false when the table does not exist; a table whose DDL
// matches nothing yields empty Constraints.
func (i *Introspector) Constraints(ctx context.Context, table string) (dialect.Constraints, bool, error) {
	ctx, span := startSpan(ctx, "introspection.constraints",
		attribute.String("db.system", i.adapter.Name()),
		attribute.String("db.table", table),
	)
	defer span.End()

	ddl, ok, err := i.CreateTableSQL(ctx, table)
	if err != nil {
		recordSpanError(span, err)
		return dialect.Constraints{}, false, err
	}
	if !ok {
		span.SetAttributes(attribute.Bool("db.table.found", false))
		return dialect.Constraints{}, false, nil
	}
	constraints := i.adapter.ParseConstraints(ddl)
	span.SetAttributes(
		attribute.Int("db.table.foreign_keys", len(constraints.ForeignKeys)),
		attribute.Int("db.table.unique_indexes", len(constraints.Unique)),
	)
	return constraints, true, nil
}

// LoadTable reads columns and constraints for one table. ok is false when
// the table does not exist.
func (i *Introspector) LoadTable(ctx context.Context, name string) (*Table, bool, error) {
	constraints, ok, err := i.Constraints(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read constraints for %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}
	columns, err := i.Columns(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get columns for %s: %w", name, err)
	}
	table := &Table{
		Name:        name,
		Columns:     columns,
		ForeignKeys: foreignKeysFromConstraints(constraints),
		Indexes:     indexesFromConstraints(constraints),
	}
	return table, true, nil
}

// IntrospectSchema loads every base table and builds relationships between
// them. Tables dropped between listing and loading are skipped.
func (i *Introspector) IntrospectSchema(ctx context.Context) (schema *Schema, err error) {
	ctx, span := startSpan(ctx, "introspection.build_schema",
		attribute.String("db.system", i.adapter.Name()),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		tables := 0
		if schema != nil {
			tables = len(schema.Tables)
		}
		i.metrics.RecordIntrospection(ctx, i.adapter.Name(), tables, time.Since(start), err)
	}()

	names, err := i.TableNames(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	schema = &Schema{Dialect: i.adapter.Name(), Tables: make([]Table, 0, len(names))}
	for _, name := range names {
		table, ok, err := i.LoadTable(ctx, name)
		if err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		if !ok {
			i.logger.Warn("table disappeared during introspection", slog.String("table", name))
			continue
		}
		schema.Tables = append(schema.Tables, *table)
	}

	BuildRelationships(ctx, schema, i.namer)
	span.SetAttributes(attribute.Int("db.tables", len(schema.Tables)))
	i.logger.Debug("schema introspected",
		slog.String("dialect", schema.Dialect),
		slog.Int("tables", len(schema.Tables)),
	)
	return schema, nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("lookupsql/introspection")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
