package dialect

import (
	"encoding/hex"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"lookupsql/internal/sqltype"
	"lookupsql/internal/sqlutil"

	"github.com/google/uuid"
)

const dateTimeLayout = "2006-01-02 15:04:05"

var (
	columnPlaceholder = regexp.MustCompile(`\[\[([\w\-. ]+)\]\]`)
	tablePlaceholder  = regexp.MustCompile(`\{\{([\w\-. ]+)\}\}`)
)

// base carries the behavior the three adapters share. Each adapter embeds it
// and overrides what differs.
type base struct {
	name        string
	left, right byte
	// backslashEscapes marks servers that treat \ as an escape in literals.
	backslashEscapes bool
	trueLiteral      string
	falseLiteral     string
	random           string
	types            map[sqltype.Type]string
	reverse          map[string]sqltype.Type
	binaryLiteral    func([]byte) string
}

func (b *base) Name() string { return b.name }

func (b *base) QuoteTableName(name string) string {
	return sqlutil.QuoteQualified(name, b.left, b.right)
}

func (b *base) QuoteColumn(name string) string {
	if strings.ContainsAny(name, "()") {
		return name
	}
	return sqlutil.QuoteQualified(name, b.left, b.right)
}

func (b *base) QuoteSQL(raw string) string {
	raw = columnPlaceholder.ReplaceAllStringFunc(raw, func(m string) string {
		return b.QuoteColumn(columnPlaceholder.FindStringSubmatch(m)[1])
	})
	return tablePlaceholder.ReplaceAllStringFunc(raw, func(m string) string {
		return b.QuoteTableName(tablePlaceholder.FindStringSubmatch(m)[1])
	})
}

func (b *base) quoteString(s string) string {
	if b.backslashEscapes {
		return sqlutil.QuoteStringBackslash(s)
	}
	return sqlutil.QuoteString(s)
}

func (b *base) Boolean(v bool) string {
	if v {
		return b.trueLiteral
	}
	return b.falseLiteral
}

func (b *base) Random() string { return b.random }

func (b *base) Join(kind, table, alias, on string) string {
	if alias == "" {
		alias = table
	}
	out := strings.TrimSpace(kind) + " JOIN " + b.QuoteTableName(table) + " AS " + b.QuoteTableName(alias)
	if on != "" {
		out += " ON " + on
	}
	return out
}

// QuoteValue renders v as a SQL literal.
func (b *base) QuoteValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case Expression:
		return b.QuoteSQL(string(val)), nil
	case SQLer:
		sql, err := val.ToSQL()
		if err != nil {
			return "", err
		}
		return "(" + sql + ")", nil
	case bool:
		return b.Boolean(val), nil
	case string:
		return b.quoteString(val), nil
	case []byte:
		return b.binaryLiteral(val), nil
	case time.Time:
		return b.quoteString(val.Format(dateTimeLayout)), nil
	case uuid.UUID:
		return b.quoteString(val.String()), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return formatFloat(val, 64)
	case float32:
		return formatFloat(float64(val), 32)
	case fmt.Stringer:
		return b.quoteString(val.String()), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return formatFloat(rv.Float(), rv.Type().Bits())
	case reflect.String:
		return b.quoteString(rv.String()), nil
	case reflect.Bool:
		return b.Boolean(rv.Bool()), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return "NULL", nil
		}
		return b.QuoteValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		parts := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			part, err := b.QuoteValue(rv.Index(i).Interface())
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		return strings.Join(parts, ", "), nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

// formatFloat rejects NaN and infinities, which have no portable literal.
func formatFloat(f float64, bits int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedValue, f)
	}
	return strconv.FormatFloat(f, 'f', -1, bits), nil
}

func (b *base) ColumnType(t sqltype.Type) string {
	if physical, ok := b.types[t]; ok {
		return physical
	}
	return b.types[sqltype.TypeString]
}

// AbstractType maps a physical catalog type to its abstract type. The full
// normalized type is tried first so that e.g. tinyint(1) can differ from
// tinyint. Unknown types map to sqltype.TypeString.
func (b *base) AbstractType(physical string) sqltype.Type {
	if t, ok := b.reverse[sqltype.Normalize(physical)]; ok {
		return t
	}
	if t, ok := b.reverse[sqltype.BaseType(physical)]; ok {
		return t
	}
	return sqltype.TypeString
}

// columnDefinition assembles name, type and attributes; suffix carries the
// dialect's auto-increment keyword.
func (b *base) columnDefinition(col ColumnDef, physical, suffix string) string {
	var sb strings.Builder
	sb.WriteString(b.QuoteColumn(col.Name))
	sb.WriteString(" ")
	sb.WriteString(physical)
	if !col.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if col.HasDefault {
		def, err := b.QuoteValue(col.Default)
		if err == nil {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
	}
	if col.PrimaryKey {
		sb.WriteString(" PRIMARY KEY")
	}
	sb.WriteString(suffix)
	return sb.String()
}

func (b *base) physicalType(col ColumnDef) string {
	if col.Physical != "" {
		return col.Physical
	}
	return b.ColumnType(col.Type)
}

func (b *base) createTable(defs []string, table string, ifNotExists bool) string {
	prefix := "CREATE TABLE "
	if ifNotExists {
		prefix += "IF NOT EXISTS "
	}
	return prefix + b.QuoteTableName(table) + " (" + strings.Join(defs, ", ") + ")"
}

func (b *base) DropTable(table string, ifExists bool) string {
	if ifExists {
		return "DROP TABLE IF EXISTS " + b.QuoteTableName(table)
	}
	return "DROP TABLE " + b.QuoteTableName(table)
}

func (b *base) ParseConstraints(ddl string) Constraints {
	return ParseConstraints(ddl)
}

func (b *base) unsupported(feature string) error {
	return &UnsupportedFeatureError{Dialect: b.name, Feature: feature}
}

func hexLiteral(data []byte) string {
	return "X'" + strings.ToUpper(hex.EncodeToString(data)) + "'"
}

// buildReverse indexes every forward type plus the aliases a catalog may
// report for it.
func buildReverse(types map[sqltype.Type]string, aliases map[string]sqltype.Type) map[string]sqltype.Type {
	reverse := make(map[string]sqltype.Type, len(types)+len(aliases))
	for name, t := range aliases {
		reverse[name] = t
	}
	for t, physical := range types {
		reverse[sqltype.Normalize(physical)] = t
	}
	return reverse
}

// ColumnDef describes a column for DDL generation.
type ColumnDef struct {
	Name string
	Type sqltype.Type
	// Physical overrides the type name derived from Type.
	Physical      string
	Nullable      bool
	HasDefault    bool
	Default       any
	PrimaryKey    bool
	AutoIncrement bool
}
