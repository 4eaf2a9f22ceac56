package dialect

import (
	"encoding/hex"
	"errors"
	"strconv"

	"lookupsql/internal/sqltype"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgUndefinedTable is SQLSTATE undefined_table.
const pgUndefinedTable = "42P01"

const pgPrimaryKeyFlag = "CASE WHEN EXISTS (" +
	"SELECT 1 FROM information_schema.table_constraints tc " +
	"JOIN information_schema.key_column_usage k " +
	"ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema " +
	"WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = c.table_schema " +
	"AND tc.table_name = c.table_name AND k.column_name = c.column_name" +
	") THEN 1 ELSE 0 END"

// Postgres renders SQL for PostgreSQL.
type Postgres struct {
	base
}

// NewPostgres returns the PostgreSQL adapter.
func NewPostgres() *Postgres {
	types := map[sqltype.Type]string{
		sqltype.TypeString:       "varchar(255)",
		sqltype.TypeText:         "text",
		sqltype.TypeChar:         "char(1)",
		sqltype.TypeSmallInteger: "smallint",
		sqltype.TypeInteger:      "integer",
		sqltype.TypeBigInteger:   "bigint",
		sqltype.TypeFloat:        "real",
		sqltype.TypeDouble:       "double precision",
		sqltype.TypeDecimal:      "numeric(10,0)",
		sqltype.TypeBinary:       "bytea",
		sqltype.TypeBoolean:      "boolean",
		sqltype.TypeDate:         "date",
		sqltype.TypeTime:         "time",
		sqltype.TypeDateTime:     "timestamp",
		sqltype.TypeTimestamp:    "timestamptz",
	}
	aliases := map[string]sqltype.Type{
		"varchar":                     sqltype.TypeString,
		"character varying":           sqltype.TypeString,
		"uuid":                        sqltype.TypeString,
		"json":                        sqltype.TypeText,
		"jsonb":                       sqltype.TypeText,
		"char":                        sqltype.TypeChar,
		"character":                   sqltype.TypeChar,
		"bpchar":                      sqltype.TypeChar,
		"int2":                        sqltype.TypeSmallInteger,
		"smallserial":                 sqltype.TypeSmallInteger,
		"int":                         sqltype.TypeInteger,
		"int4":                        sqltype.TypeInteger,
		"serial":                      sqltype.TypeInteger,
		"int8":                        sqltype.TypeBigInteger,
		"bigserial":                   sqltype.TypeBigInteger,
		"float4":                      sqltype.TypeFloat,
		"float8":                      sqltype.TypeDouble,
		"numeric":                     sqltype.TypeDecimal,
		"decimal":                     sqltype.TypeDecimal,
		"bool":                        sqltype.TypeBoolean,
		"time without time zone":      sqltype.TypeTime,
		"timestamp without time zone": sqltype.TypeDateTime,
		"timestamp with time zone":    sqltype.TypeTimestamp,
	}
	return &Postgres{base: base{
		name:          "postgres",
		left:          '"',
		right:         '"',
		trueLiteral:   "TRUE",
		falseLiteral:  "FALSE",
		random:        "RANDOM()",
		types:         types,
		reverse:       buildReverse(types, aliases),
		binaryLiteral: byteaLiteral,
	}}
}

func byteaLiteral(data []byte) string {
	return `'\x` + hex.EncodeToString(data) + `'::bytea`
}

func (d *Postgres) LimitOffset(limit, offset int) string {
	switch {
	case limit >= 0 && offset > 0:
		return "LIMIT " + strconv.Itoa(limit) + " OFFSET " + strconv.Itoa(offset)
	case limit >= 0:
		return "LIMIT " + strconv.Itoa(limit)
	case offset > 0:
		return "OFFSET " + strconv.Itoa(offset)
	default:
		return ""
	}
}

var postgresDateParts = map[string]string{
	"year":     "YEAR",
	"month":    "MONTH",
	"day":      "DAY",
	"week_day": "DOW",
	"hour":     "HOUR",
	"minute":   "MINUTE",
	"second":   "SECOND",
}

// DatePart uses EXTRACT. week_day is shifted so Sunday is 1, matching MySQL's DAYOFWEEK.
func (d *Postgres) DatePart(part, column string) (string, error) {
	field, ok := postgresDateParts[part]
	if !ok {
		return "", d.unsupported("date part " + part)
	}
	expr := "EXTRACT(" + field + " FROM " + d.QuoteColumn(column) + ")"
	if part == "week_day" {
		expr = "(" + expr + " + 1)"
	}
	return expr, nil
}

func (d *Postgres) Regex(column, pattern string, insensitive bool) string {
	op := " ~ "
	if insensitive {
		op = " ~* "
	}
	return d.QuoteColumn(column) + op + d.quoteString(pattern)
}

func (d *Postgres) Like(column, pattern string, insensitive bool) string {
	op := " LIKE "
	if insensitive {
		op = " ILIKE "
	}
	return d.QuoteColumn(column) + op + d.quoteString(pattern)
}

// ColumnDefinition swaps integer types for their serial forms when the
// column auto-increments.
func (d *Postgres) ColumnDefinition(col ColumnDef) string {
	physical := d.physicalType(col)
	if col.AutoIncrement {
		switch col.Type {
		case sqltype.TypeBigInteger:
			physical = "bigserial"
		case sqltype.TypeSmallInteger:
			physical = "smallserial"
		default:
			physical = "serial"
		}
	}
	return d.columnDefinition(col, physical, "")
}

func (d *Postgres) CreateTable(table string, columns []ColumnDef, ifNotExists bool) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = d.ColumnDefinition(col)
	}
	return d.createTable(defs, table, ifNotExists)
}

func (d *Postgres) Placeholder() sq.PlaceholderFormat { return sq.Dollar }

func (d *Postgres) TableNamesQuery() (string, []any, error) {
	return sq.Select("table_name").
		From("information_schema.tables").
		Where("table_schema = current_schema()").
		Where(sq.Eq{"table_type": "BASE TABLE"}).
		OrderBy("table_name").
		PlaceholderFormat(d.Placeholder()).
		ToSql()
}

func (d *Postgres) TableExistsQuery(table string) (string, []any, error) {
	return sq.Select("COUNT(*)").
		From("information_schema.tables").
		Where("table_schema = current_schema()").
		Where(sq.Eq{"table_name": table}).
		PlaceholderFormat(d.Placeholder()).
		ToSql()
}

func (d *Postgres) ColumnsQuery(table string) (string, []any, error) {
	return sq.Select(
		"c.column_name",
		"c.data_type",
		"c.is_nullable",
		"c.column_default",
		pgPrimaryKeyFlag,
	).
		From("information_schema.columns c").
		Where("c.table_schema = current_schema()").
		Where(sq.Eq{"c.table_name": table}).
		OrderBy("c.ordinal_position").
		PlaceholderFormat(d.Placeholder()).
		ToSql()
}

// CreateStatementQuery rebuilds constraint DDL from pg_constraint and
// pg_indexes, since PostgreSQL has no SHOW CREATE TABLE. The aggregate
// always yields one row; existence is checked separately.
func (d *Postgres) CreateStatementQuery(table string) (string, []any, error) {
	constraints := sq.Select("'CONSTRAINT ' || quote_ident(con.conname) || ' ' || pg_get_constraintdef(con.oid) AS def").
		From("pg_constraint con").
		Join("pg_class cls ON cls.oid = con.conrelid").
		Join("pg_namespace ns ON ns.oid = cls.relnamespace").
		Where("ns.nspname = current_schema()").
		Where(sq.Eq{"cls.relname": table}).
		Where(sq.Eq{"con.contype": []string{"f", "u"}}).
		Suffix("UNION ALL SELECT indexdef FROM pg_indexes "+
			"WHERE schemaname = current_schema() AND tablename = ? "+
			"AND indexdef LIKE 'CREATE UNIQUE INDEX%' "+
			"AND indexname NOT IN (SELECT conname FROM pg_constraint)", table)

	return sq.Select("string_agg(def, E',\\n') AS ddl").
		FromSelect(constraints, "defs").
		PlaceholderFormat(d.Placeholder()).
		ToSql()
}

func (d *Postgres) DDLColumn() string { return "ddl" }

func (d *Postgres) IsTableNotFound(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}
