package dialect

import (
	"errors"
	"strconv"

	"lookupsql/internal/sqltype"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
)

// mysqlMaxLimit is the largest LIMIT MySQL accepts; it stands in for "no
// limit" when only an offset is requested.
const mysqlMaxLimit = "18446744073709551615"

// mysqlErrNoSuchTable is ER_NO_SUCH_TABLE.
const mysqlErrNoSuchTable = 1146

// MySQL renders SQL for MySQL, MariaDB and TiDB.
type MySQL struct {
	base
}

// NewMySQL returns the MySQL adapter.
func NewMySQL() *MySQL {
	types := map[sqltype.Type]string{
		sqltype.TypeString:       "varchar(255)",
		sqltype.TypeText:         "text",
		sqltype.TypeChar:         "char(1)",
		sqltype.TypeSmallInteger: "smallint",
		sqltype.TypeInteger:      "int",
		sqltype.TypeBigInteger:   "bigint",
		sqltype.TypeFloat:        "float",
		sqltype.TypeDouble:       "double",
		sqltype.TypeDecimal:      "decimal(10,0)",
		sqltype.TypeBinary:       "blob",
		sqltype.TypeBoolean:      "tinyint(1)",
		sqltype.TypeDate:         "date",
		sqltype.TypeTime:         "time",
		sqltype.TypeDateTime:     "datetime",
		sqltype.TypeTimestamp:    "timestamp",
	}
	aliases := map[string]sqltype.Type{
		"varchar":          sqltype.TypeString,
		"enum":             sqltype.TypeString,
		"set":              sqltype.TypeString,
		"tinytext":         sqltype.TypeText,
		"mediumtext":       sqltype.TypeText,
		"longtext":         sqltype.TypeText,
		"json":             sqltype.TypeText,
		"char":             sqltype.TypeChar,
		"tinyint":          sqltype.TypeSmallInteger,
		"year":             sqltype.TypeSmallInteger,
		"mediumint":        sqltype.TypeInteger,
		"integer":          sqltype.TypeInteger,
		"real":             sqltype.TypeDouble,
		"double precision": sqltype.TypeDouble,
		"decimal":          sqltype.TypeDecimal,
		"numeric":          sqltype.TypeDecimal,
		"binary":           sqltype.TypeBinary,
		"varbinary":        sqltype.TypeBinary,
		"tinyblob":         sqltype.TypeBinary,
		"mediumblob":       sqltype.TypeBinary,
		"longblob":         sqltype.TypeBinary,
		"bool":             sqltype.TypeBoolean,
		"boolean":          sqltype.TypeBoolean,
		"bit(1)":           sqltype.TypeBoolean,
	}
	return &MySQL{base: base{
		name:             "mysql",
		left:             '`',
		right:            '`',
		backslashEscapes: true,
		trueLiteral:      "1",
		falseLiteral:     "0",
		random:           "RAND()",
		types:            types,
		reverse:          buildReverse(types, aliases),
		binaryLiteral:    hexLiteral,
	}}
}

func (d *MySQL) LimitOffset(limit, offset int) string {
	switch {
	case limit >= 0 && offset > 0:
		return "LIMIT " + strconv.Itoa(limit) + " OFFSET " + strconv.Itoa(offset)
	case limit >= 0:
		return "LIMIT " + strconv.Itoa(limit)
	case offset > 0:
		return "LIMIT " + mysqlMaxLimit + " OFFSET " + strconv.Itoa(offset)
	default:
		return ""
	}
}

var mysqlDateParts = map[string]string{
	"year":     "YEAR",
	"month":    "MONTH",
	"day":      "DAY",
	"week_day": "DAYOFWEEK",
	"hour":     "HOUR",
	"minute":   "MINUTE",
	"second":   "SECOND",
}

func (d *MySQL) DatePart(part, column string) (string, error) {
	fn, ok := mysqlDateParts[part]
	if !ok {
		return "", d.unsupported("date part " + part)
	}
	return fn + "(" + d.QuoteColumn(column) + ")", nil
}

func (d *MySQL) Regex(column, pattern string, insensitive bool) string {
	matchType := "c"
	if insensitive {
		matchType = "i"
	}
	return "REGEXP_LIKE(" + d.QuoteColumn(column) + ", " + d.quoteString(pattern) + ", '" + matchType + "')"
}

func (d *MySQL) Like(column, pattern string, insensitive bool) string {
	if insensitive {
		return "LOWER(" + d.QuoteColumn(column) + ") LIKE LOWER(" + d.quoteString(pattern) + ")"
	}
	return d.QuoteColumn(column) + " LIKE " + d.quoteString(pattern)
}

func (d *MySQL) ColumnDefinition(col ColumnDef) string {
	suffix := ""
	if col.AutoIncrement {
		suffix = " AUTO_INCREMENT"
	}
	return d.columnDefinition(col, d.physicalType(col), suffix)
}

func (d *MySQL) CreateTable(table string, columns []ColumnDef, ifNotExists bool) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = d.ColumnDefinition(col)
	}
	return d.createTable(defs, table, ifNotExists)
}

func (d *MySQL) Placeholder() sq.PlaceholderFormat { return sq.Question }

func (d *MySQL) TableNamesQuery() (string, []any, error) {
	return sq.Select("TABLE_NAME").
		From("information_schema.TABLES").
		Where("TABLE_SCHEMA = DATABASE()").
		Where(sq.Eq{"TABLE_TYPE": "BASE TABLE"}).
		OrderBy("TABLE_NAME").
		PlaceholderFormat(d.Placeholder()).
		ToSql()
}

func (d *MySQL) TableExistsQuery(table string) (string, []any, error) {
	return sq.Select("COUNT(*)").
		From("information_schema.TABLES").
		Where("TABLE_SCHEMA = DATABASE()").
		Where(sq.Eq{"TABLE_NAME": table}).
		PlaceholderFormat(d.Placeholder()).
		ToSql()
}

func (d *MySQL) ColumnsQuery(table string) (string, []any, error) {
	return sq.Select(
		"COLUMN_NAME",
		"COLUMN_TYPE",
		"IS_NULLABLE",
		"COLUMN_DEFAULT",
		"CASE WHEN COLUMN_KEY = 'PRI' THEN 1 ELSE 0 END",
	).
		From("information_schema.COLUMNS").
		Where("TABLE_SCHEMA = DATABASE()").
		Where(sq.Eq{"TABLE_NAME": table}).
		OrderBy("ORDINAL_POSITION").
		PlaceholderFormat(d.Placeholder()).
		ToSql()
}

// CreateStatementQuery uses SHOW CREATE TABLE, which squirrel cannot build.
func (d *MySQL) CreateStatementQuery(table string) (string, []any, error) {
	return "SHOW CREATE TABLE " + d.QuoteTableName(table), nil, nil
}

func (d *MySQL) DDLColumn() string { return "Create Table" }

func (d *MySQL) IsTableNotFound(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrNoSuchTable
}
