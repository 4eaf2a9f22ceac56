package dialect

import (
	"strconv"
	"strings"

	"lookupsql/internal/sqltype"
	"lookupsql/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// SQLite renders SQL for SQLite 3.
type SQLite struct {
	base
}

// NewSQLite returns the SQLite adapter.
func NewSQLite() *SQLite {
	types := map[sqltype.Type]string{
		sqltype.TypeString:       "varchar(255)",
		sqltype.TypeText:         "text",
		sqltype.TypeChar:         "char(1)",
		sqltype.TypeSmallInteger: "smallint",
		sqltype.TypeInteger:      "integer",
		sqltype.TypeBigInteger:   "bigint",
		sqltype.TypeFloat:        "float",
		sqltype.TypeDouble:       "double",
		sqltype.TypeDecimal:      "decimal(10,0)",
		sqltype.TypeBinary:       "blob",
		sqltype.TypeBoolean:      "boolean",
		sqltype.TypeDate:         "date",
		sqltype.TypeTime:         "time",
		sqltype.TypeDateTime:     "datetime",
		sqltype.TypeTimestamp:    "timestamp",
	}
	aliases := map[string]sqltype.Type{
		"varchar":          sqltype.TypeString,
		"nvarchar":         sqltype.TypeString,
		"clob":             sqltype.TypeText,
		"char":             sqltype.TypeChar,
		"tinyint":          sqltype.TypeSmallInteger,
		"int":              sqltype.TypeInteger,
		"mediumint":        sqltype.TypeInteger,
		"real":             sqltype.TypeDouble,
		"double precision": sqltype.TypeDouble,
		"decimal":          sqltype.TypeDecimal,
		"numeric":          sqltype.TypeDecimal,
		"bool":             sqltype.TypeBoolean,
	}
	return &SQLite{base: base{
		name:          "sqlite",
		left:          '"',
		right:         '"',
		trueLiteral:   "1",
		falseLiteral:  "0",
		random:        "RANDOM()",
		types:         types,
		reverse:       buildReverse(types, aliases),
		binaryLiteral: hexLiteral,
	}}
}

func (d *SQLite) LimitOffset(limit, offset int) string {
	switch {
	case limit >= 0 && offset > 0:
		return "LIMIT " + strconv.Itoa(limit) + " OFFSET " + strconv.Itoa(offset)
	case limit >= 0:
		return "LIMIT " + strconv.Itoa(limit)
	case offset > 0:
		return "LIMIT -1 OFFSET " + strconv.Itoa(offset)
	default:
		return ""
	}
}

var sqliteDateParts = map[string]string{
	"year":     "%Y",
	"month":    "%m",
	"day":      "%d",
	"week_day": "%w",
	"hour":     "%H",
	"minute":   "%M",
	"second":   "%S",
}

// DatePart uses strftime. week_day is shifted so Sunday is 1.
func (d *SQLite) DatePart(part, column string) (string, error) {
	format, ok := sqliteDateParts[part]
	if !ok {
		return "", d.unsupported("date part " + part)
	}
	expr := "CAST(strftime('" + format + "', " + d.QuoteColumn(column) + ") AS INTEGER)"
	if part == "week_day" {
		expr = "(" + expr + " + 1)"
	}
	return expr, nil
}

// Regex relies on a REGEXP function registered with the connection.
// Case-insensitive matching uses the (?i) flag understood by Go's regexp.
func (d *SQLite) Regex(column, pattern string, insensitive bool) string {
	if insensitive && !strings.HasPrefix(pattern, "(?i)") {
		pattern = "(?i)" + pattern
	}
	return d.QuoteColumn(column) + " REGEXP " + d.quoteString(pattern)
}

// Like adds an explicit ESCAPE clause; SQLite has no default LIKE escape.
func (d *SQLite) Like(column, pattern string, insensitive bool) string {
	if insensitive {
		return "LOWER(" + d.QuoteColumn(column) + ") LIKE LOWER(" + d.quoteString(pattern) + `) ESCAPE '\'`
	}
	return d.QuoteColumn(column) + " LIKE " + d.quoteString(pattern) + ` ESCAPE '\'`
}

// ColumnDefinition follows SQLite's rule that AUTOINCREMENT only applies to
// an INTEGER PRIMARY KEY column.
func (d *SQLite) ColumnDefinition(col ColumnDef) string {
	physical := d.physicalType(col)
	suffix := ""
	if col.AutoIncrement {
		physical = "integer"
		col.PrimaryKey = true
		suffix = " AUTOINCREMENT"
	}
	return d.columnDefinition(col, physical, suffix)
}

func (d *SQLite) CreateTable(table string, columns []ColumnDef, ifNotExists bool) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = d.ColumnDefinition(col)
	}
	return d.createTable(defs, table, ifNotExists)
}

func (d *SQLite) Placeholder() sq.PlaceholderFormat { return sq.Question }

func (d *SQLite) TableNamesQuery() (string, []any, error) {
	return sq.Select("name").
		From("sqlite_master").
		Where(sq.Eq{"type": "table"}).
		Where(sq.NotLike{"name": "sqlite_%"}).
		OrderBy("name").
		PlaceholderFormat(d.Placeholder()).
		ToSql()
}

func (d *SQLite) TableExistsQuery(table string) (string, []any, error) {
	return sq.Select("COUNT(*)").
		From("sqlite_master").
		Where(sq.Eq{"type": "table"}).
		Where(sq.Eq{"name": table}).
		PlaceholderFormat(d.Placeholder()).
		ToSql()
}

// ColumnsQuery reads pragma_table_info; the table-valued pragma takes its
// argument inline because squirrel's From does not bind parameters.
func (d *SQLite) ColumnsQuery(table string) (string, []any, error) {
	return sq.Select(
		"name",
		"type",
		`CASE WHEN "notnull" = 1 THEN 'NO' ELSE 'YES' END`,
		"dflt_value",
		"CASE WHEN pk > 0 THEN 1 ELSE 0 END",
	).
		From("pragma_table_info(" + sqlutil.QuoteString(table) + ")").
		OrderBy("cid").
		PlaceholderFormat(d.Placeholder()).
		ToSql()
}

// CreateStatementQuery returns the stored CREATE TABLE text followed by
// the table's index definitions.
func (d *SQLite) CreateStatementQuery(table string) (string, []any, error) {
	return sq.Select("sql").
		From("sqlite_master").
		Where(sq.Eq{"tbl_name": table}).
		Where(sq.Eq{"type": []string{"table", "index"}}).
		Where("sql IS NOT NULL").
		OrderBy("CASE type WHEN 'table' THEN 0 ELSE 1 END", "name").
		PlaceholderFormat(d.Placeholder()).
		ToSql()
}

func (d *SQLite) DDLColumn() string { return "sql" }

func (d *SQLite) IsTableNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
