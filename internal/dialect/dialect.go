// Package dialect renders the vendor-specific parts of SQL: identifier and
// value quoting, JOIN and LIMIT syntax, type names, catalog queries and DDL
// constraint discovery. Adapters are immutable and safe to share.
package dialect

import (
	"errors"
	"fmt"
	"strings"

	"lookupsql/internal/sqltype"

	sq "github.com/Masterminds/squirrel"
)

// ErrUnknownDialect is returned by New for names no adapter claims.
var ErrUnknownDialect = errors.New("unknown dialect")

// ErrUnsupportedValue is returned when a Go value has no SQL literal form.
var ErrUnsupportedValue = errors.New("unsupported value type")

// UnsupportedFeatureError reports a construct the dialect cannot express.
type UnsupportedFeatureError struct {
	Dialect string
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("%s: %s is not supported", e.Dialect, e.Feature)
}

// Expression is raw SQL that QuoteValue passes through without quoting.
// [[column]] and {{table}} placeholders inside it are still quoted.
type Expression string

// SQLer is implemented by nested query builders; QuoteValue renders them as
// a parenthesized sub-select.
type SQLer interface {
	ToSQL() (string, error)
}

// Adapter is the capability set the query builder and introspection rely on.
type Adapter interface {
	// Name is the canonical dialect name: mysql, postgres or sqlite.
	Name() string

	QuoteTableName(name string) string
	QuoteColumn(name string) string
	QuoteValue(v any) (string, error)
	// QuoteSQL quotes [[column]] and {{table}} placeholders in raw SQL.
	QuoteSQL(raw string) string

	Boolean(v bool) string
	Random() string
	Join(kind, table, alias, on string) string
	// LimitOffset renders the paging clause. A negative limit or a
	// non-positive offset means "not set".
	LimitOffset(limit, offset int) string
	DatePart(part, column string) (string, error)
	Regex(column, pattern string, insensitive bool) string
	Like(column, pattern string, insensitive bool) string

	ColumnType(t sqltype.Type) string
	AbstractType(physical string) sqltype.Type
	ColumnDefinition(col ColumnDef) string
	CreateTable(table string, columns []ColumnDef, ifNotExists bool) string
	DropTable(table string, ifExists bool) string

	Placeholder() sq.PlaceholderFormat
	TableNamesQuery() (string, []any, error)
	TableExistsQuery(table string) (string, []any, error)
	// ColumnsQuery returns rows of (name, physical type, is_nullable,
	// default, primary key flag).
	ColumnsQuery(table string) (string, []any, error)
	// CreateStatementQuery returns the catalog query whose DDLColumn holds
	// constraint DDL for table. No rows means the table does not exist.
	CreateStatementQuery(table string) (string, []any, error)
	DDLColumn() string
	ParseConstraints(ddl string) Constraints
	IsTableNotFound(err error) bool
}

// New returns the adapter registered for name.
func New(name string) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql", "mariadb", "tidb":
		return NewMySQL(), nil
	case "postgres", "postgresql", "pgsql", "pgx":
		return NewPostgres(), nil
	case "sqlite", "sqlite3":
		return NewSQLite(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
}

// Names lists the canonical dialect names.
func Names() []string {
	return []string{"mysql", "postgres", "sqlite"}
}
