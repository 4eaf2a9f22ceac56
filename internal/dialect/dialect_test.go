package dialect

import (
	"errors"
	"math"
	"testing"
	"time"

	"lookupsql/internal/sqltype"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allAdapters() []Adapter {
	return []Adapter{NewMySQL(), NewPostgres(), NewSQLite()}
}

type stubSQL struct {
	sql string
	err error
}

func (s stubSQL) ToSQL() (string, error) { return s.sql, s.err }

func TestNew(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"mysql", "mysql"},
		{"MariaDB", "mysql"},
		{"tidb", "mysql"},
		{"postgres", "postgres"},
		{"postgresql", "postgres"},
		{"pgsql", "postgres"},
		{"sqlite", "sqlite"},
		{"sqlite3", "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			adapter, err := New(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, adapter.Name())
		})
	}

	_, err := New("oracle")
	assert.ErrorIs(t, err, ErrUnknownDialect)
}

func TestTypeRoundTrip(t *testing.T) {
	for _, adapter := range allAdapters() {
		for _, typ := range sqltype.All() {
			t.Run(adapter.Name()+"/"+typ.String(), func(t *testing.T) {
				physical := adapter.ColumnType(typ)
				assert.Equal(t, typ, adapter.AbstractType(physical), "physical type %q", physical)
			})
		}
	}
}

func TestAbstractType_CatalogSpellings(t *testing.T) {
	tests := []struct {
		adapter  Adapter
		physical string
		expected sqltype.Type
	}{
		{NewMySQL(), "int(11) unsigned", sqltype.TypeInteger},
		{NewMySQL(), "TINYINT(1)", sqltype.TypeBoolean},
		{NewMySQL(), "tinyint(4)", sqltype.TypeSmallInteger},
		{NewMySQL(), "varchar(64)", sqltype.TypeString},
		{NewMySQL(), "longtext", sqltype.TypeText},
		{NewMySQL(), "geometry", sqltype.TypeString},
		{NewPostgres(), "character varying", sqltype.TypeString},
		{NewPostgres(), "timestamp without time zone", sqltype.TypeDateTime},
		{NewPostgres(), "timestamp with time zone", sqltype.TypeTimestamp},
		{NewPostgres(), "double precision", sqltype.TypeDouble},
		{NewPostgres(), "numeric", sqltype.TypeDecimal},
		{NewSQLite(), "INTEGER", sqltype.TypeInteger},
		{NewSQLite(), "DECIMAL(10,2)", sqltype.TypeDecimal},
		{NewSQLite(), "", sqltype.TypeString},
	}
	for _, tt := range tests {
		t.Run(tt.adapter.Name()+"/"+tt.physical, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.adapter.AbstractType(tt.physical))
		})
	}
}

func TestQuoteColumn(t *testing.T) {
	my := NewMySQL()
	pg := NewPostgres()

	assert.Equal(t, "`t`.`name`", my.QuoteColumn("t.name"))
	assert.Equal(t, "`t`.`name`", my.QuoteColumn(my.QuoteColumn("t.name")))
	assert.Equal(t, "*", my.QuoteColumn("*"))
	assert.Equal(t, "`t`.*", my.QuoteColumn("t.*"))
	assert.Equal(t, "COUNT(*)", my.QuoteColumn("COUNT(*)"))
	assert.Equal(t, `"t"."name"`, pg.QuoteColumn("t.name"))
	assert.Equal(t, `"users"`, pg.QuoteTableName(`"users"`))
}

func TestQuoteValue(t *testing.T) {
	my := NewMySQL()
	pg := NewPostgres()
	lite := NewSQLite()
	when := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	count := 3
	var nilPtr *int

	tests := []struct {
		name     string
		adapter  Adapter
		value    any
		expected string
	}{
		{"nil", my, nil, "NULL"},
		{"int", my, 42, "42"},
		{"int32", my, int32(-7), "-7"},
		{"uint", my, uint8(9), "9"},
		{"float", my, 1.5, "1.5"},
		{"uint64", pg, uint64(12345678901234567891), "12345678901234567891"},
		{"string", my, "it's", "'it''s'"},
		{"mysql backslash", my, `a\b`, `'a\\b'`},
		{"postgres backslash", pg, `a\b`, `'a\b'`},
		{"mysql bool", my, true, "1"},
		{"postgres bool", pg, false, "FALSE"},
		{"sqlite bool", lite, true, "1"},
		{"time", my, when, "'2024-03-09 14:05:00'"},
		{"uuid", pg, id, "'6ba7b810-9dad-11d1-80b4-00c04fd430c8'"},
		{"mysql bytes", my, []byte{0xde, 0xad}, "X'DEAD'"},
		{"postgres bytes", pg, []byte{0xde, 0xad}, `'\xdead'::bytea`},
		{"expression", my, Expression("NOW()"), "NOW()"},
		{"expression placeholders", my, Expression("[[t.price]] * 2"), "`t`.`price` * 2"},
		{"sub-select", my, stubSQL{sql: "SELECT 1"}, "(SELECT 1)"},
		{"slice", my, []string{"foo", "bar"}, "'foo', 'bar'"},
		{"any slice", pg, []any{1, "x", nil}, "1, 'x', NULL"},
		{"pointer", my, &count, "3"},
		{"nil pointer", my, nilPtr, "NULL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.adapter.QuoteValue(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteValue_Errors(t *testing.T) {
	my := NewMySQL()

	_, err := my.QuoteValue(map[string]int{"a": 1})
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	boom := errors.New("boom")
	_, err = my.QuoteValue(stubSQL{err: boom})
	assert.ErrorIs(t, err, boom)

	type ratio float64
	for _, v := range []any{math.Inf(1), math.Inf(-1), math.NaN(), float32(math.Inf(1)), ratio(math.NaN()), []any{1, math.Inf(1)}} {
		_, err = my.QuoteValue(v)
		assert.ErrorIs(t, err, ErrUnsupportedValue, "%v", v)
	}
}

func TestQuoteSQL(t *testing.T) {
	assert.Equal(t,
		"SELECT `name` FROM `users` WHERE `users`.`id` > 1",
		NewMySQL().QuoteSQL("SELECT [[name]] FROM {{users}} WHERE [[users.id]] > 1"))
	assert.Equal(t, `"price" > 0`, NewPostgres().QuoteSQL("[[price]] > 0"))
	assert.Equal(t, "no placeholders", NewSQLite().QuoteSQL("no placeholders"))
}

func TestRandomAndBoolean(t *testing.T) {
	assert.Equal(t, "RAND()", NewMySQL().Random())
	assert.Equal(t, "RANDOM()", NewPostgres().Random())
	assert.Equal(t, "RANDOM()", NewSQLite().Random())
	assert.Equal(t, "TRUE", NewPostgres().Boolean(true))
	assert.Equal(t, "0", NewMySQL().Boolean(false))
}

func TestLimitOffset(t *testing.T) {
	tests := []struct {
		adapter  Adapter
		limit    int
		offset   int
		expected string
	}{
		{NewMySQL(), 10, 0, "LIMIT 10"},
		{NewMySQL(), 10, 20, "LIMIT 10 OFFSET 20"},
		{NewMySQL(), -1, 20, "LIMIT 18446744073709551615 OFFSET 20"},
		{NewMySQL(), -1, 0, ""},
		{NewPostgres(), -1, 20, "OFFSET 20"},
		{NewPostgres(), 5, 0, "LIMIT 5"},
		{NewSQLite(), -1, 20, "LIMIT -1 OFFSET 20"},
		{NewSQLite(), 0, 0, "LIMIT 0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.adapter.LimitOffset(tt.limit, tt.offset), "%s(%d, %d)", tt.adapter.Name(), tt.limit, tt.offset)
	}
}

func TestJoin(t *testing.T) {
	on := "`t`.`product_id`=`products`.`id`"
	assert.Equal(t,
		"LEFT JOIN `products` AS `products` ON `t`.`product_id`=`products`.`id`",
		NewMySQL().Join("LEFT", "products", "products", on))
	assert.Equal(t,
		`INNER JOIN "products" AS "p"`,
		NewPostgres().Join("INNER", "products", "p", ""))
}

func TestDatePart(t *testing.T) {
	got, err := NewMySQL().DatePart("year", "t.created_at")
	require.NoError(t, err)
	assert.Equal(t, "YEAR(`t`.`created_at`)", got)

	got, err = NewPostgres().DatePart("week_day", "created_at")
	require.NoError(t, err)
	assert.Equal(t, `(EXTRACT(DOW FROM "created_at") + 1)`, got)

	got, err = NewSQLite().DatePart("month", "created_at")
	require.NoError(t, err)
	assert.Equal(t, `CAST(strftime('%m', "created_at") AS INTEGER)`, got)

	_, err = NewMySQL().DatePart("fortnight", "created_at")
	var unsupported *UnsupportedFeatureError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "mysql", unsupported.Dialect)
}

func TestRegexAndLike(t *testing.T) {
	assert.Equal(t, "REGEXP_LIKE(`name`, '^a', 'i')", NewMySQL().Regex("name", "^a", true))
	assert.Equal(t, `"name" ~ '^a'`, NewPostgres().Regex("name", "^a", false))
	assert.Equal(t, `"name" REGEXP '(?i)^a'`, NewSQLite().Regex("name", "^a", true))

	assert.Equal(t, "LOWER(`name`) LIKE LOWER('%a%')", NewMySQL().Like("name", "%a%", true))
	assert.Equal(t, `"name" ILIKE '%a%'`, NewPostgres().Like("name", "%a%", true))
	assert.Equal(t, `"name" LIKE 'a%' ESCAPE '\'`, NewSQLite().Like("name", "a%", false))
}

func TestColumnDefinition(t *testing.T) {
	id := ColumnDef{Name: "id", Type: sqltype.TypeInteger, PrimaryKey: true, AutoIncrement: true}
	name := ColumnDef{Name: "name", Type: sqltype.TypeString, HasDefault: true, Default: "n/a"}
	note := ColumnDef{Name: "note", Type: sqltype.TypeText, Nullable: true}

	assert.Equal(t, "`id` int NOT NULL PRIMARY KEY AUTO_INCREMENT", NewMySQL().ColumnDefinition(id))
	assert.Equal(t, `"id" serial NOT NULL PRIMARY KEY`, NewPostgres().ColumnDefinition(id))
	assert.Equal(t, `"id" integer NOT NULL PRIMARY KEY AUTOINCREMENT`, NewSQLite().ColumnDefinition(id))
	assert.Equal(t, "`name` varchar(255) NOT NULL DEFAULT 'n/a'", NewMySQL().ColumnDefinition(name))
	assert.Equal(t, `"note" text`, NewPostgres().ColumnDefinition(note))

	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS `notes` (`id` int NOT NULL PRIMARY KEY AUTO_INCREMENT, `note` text)",
		NewMySQL().CreateTable("notes", []ColumnDef{id, note}, true))
	assert.Equal(t, `DROP TABLE IF EXISTS "notes"`, NewSQLite().DropTable("notes", true))
	assert.Equal(t, "DROP TABLE `notes`", NewMySQL().DropTable("notes", false))
}

func TestCatalogQueries(t *testing.T) {
	query, args, err := NewMySQL().TableExistsQuery("users")
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?", query)
	assert.Equal(t, []any{"users"}, args)

	query, args, err = NewPostgres().ColumnsQuery("users")
	require.NoError(t, err)
	assert.Contains(t, query, "c.table_name = $1")
	assert.Contains(t, query, "ORDER BY c.ordinal_position")
	assert.Equal(t, []any{"users"}, args)

	query, args, err = NewPostgres().CreateStatementQuery("users")
	require.NoError(t, err)
	assert.Contains(t, query, "string_agg(def")
	assert.Contains(t, query, "cls.relname = $1")
	assert.Contains(t, query, "con.contype IN ($2,$3)")
	assert.Contains(t, query, "tablename = $4")
	assert.Equal(t, []any{"users", "f", "u", "users"}, args)

	query, args, err = NewSQLite().ColumnsQuery("it's")
	require.NoError(t, err)
	assert.Contains(t, query, "FROM pragma_table_info('it''s')")
	assert.Empty(t, args)

	query, _, err = NewSQLite().TableNamesQuery()
	require.NoError(t, err)
	assert.Contains(t, query, "name NOT LIKE ?")

	query, args, err = NewMySQL().CreateStatementQuery("users")
	require.NoError(t, err)
	assert.Equal(t, "SHOW CREATE TABLE `users`", query)
	assert.Empty(t, args)
}

func TestIsTableNotFound(t *testing.T) {
	assert.True(t, NewMySQL().IsTableNotFound(&mysql.MySQLError{Number: 1146, Message: "Table 'x' doesn't exist"}))
	assert.False(t, NewMySQL().IsTableNotFound(&mysql.MySQLError{Number: 1045}))
	assert.True(t, NewPostgres().IsTableNotFound(&pgconn.PgError{Code: "42P01"}))
	assert.True(t, NewSQLite().IsTableNotFound(errors.New("SQL logic error: no such table: x (1)")))
	assert.False(t, NewSQLite().IsTableNotFound(nil))
}
