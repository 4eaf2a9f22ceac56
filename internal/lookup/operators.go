package lookup

import (
	"fmt"
	"reflect"
	"strings"

	"lookupsql/internal/dialect"
	"lookupsql/internal/sqlutil"
)

// alwaysFalse stands in for "IN ()" which no dialect accepts.
const alwaysFalse = "1=0"

func builtins() map[string]RenderFunc {
	ops := map[string]RenderFunc{
		Exact:    exact,
		"iexact": iexact,
		"isnt":   isnt,
		"gt":     compare(">"),
		"gte":    compare(">="),
		"lt":     compare("<"),
		"lte":    compare("<="),
		"isnull": isNull,
		"in":     in,
		"range":  between,
		"raw":    raw,

		"contains":    like("%", "%", false),
		"icontains":   like("%", "%", true),
		"startswith":  like("", "%", false),
		"istartswith": like("", "%", true),
		"endswith":    like("%", "", false),
		"iendswith":   like("%", "", true),

		"regex":  regex(false),
		"iregex": regex(true),
	}
	for _, part := range []string{"year", "month", "day", "week_day", "hour", "minute", "second"} {
		ops[part] = datePart(part)
	}
	return ops
}

func exact(a dialect.Adapter, column string, value any) (string, error) {
	if isNil(value) {
		return a.QuoteColumn(column) + " IS NULL", nil
	}
	return compare("=")(a, column, value)
}

func iexact(a dialect.Adapter, column string, value any) (string, error) {
	if isNil(value) {
		return a.QuoteColumn(column) + " IS NULL", nil
	}
	quoted, err := a.QuoteValue(value)
	if err != nil {
		return "", err
	}
	return "LOWER(" + a.QuoteColumn(column) + ") = LOWER(" + quoted + ")", nil
}

func isnt(a dialect.Adapter, column string, value any) (string, error) {
	if isNil(value) {
		return a.QuoteColumn(column) + " IS NOT NULL", nil
	}
	return compare("!=")(a, column, value)
}

func compare(op string) RenderFunc {
	return func(a dialect.Adapter, column string, value any) (string, error) {
		quoted, err := a.QuoteValue(value)
		if err != nil {
			return "", err
		}
		return a.QuoteColumn(column) + " " + op + " " + quoted, nil
	}
}

func isNull(a dialect.Adapter, column string, value any) (string, error) {
	flag, ok := value.(bool)
	if !ok {
		return "", fmt.Errorf("isnull expects a bool, got %T", value)
	}
	if flag {
		return a.QuoteColumn(column) + " IS NULL", nil
	}
	return a.QuoteColumn(column) + " IS NOT NULL", nil
}

// in accepts a slice, a nested query or a single scalar.
func in(a dialect.Adapter, column string, value any) (string, error) {
	if sub, ok := value.(dialect.SQLer); ok {
		sql, err := sub.ToSQL()
		if err != nil {
			return "", err
		}
		return a.QuoteColumn(column) + " IN (" + sql + ")", nil
	}
	if isList(value) && reflect.ValueOf(value).Len() == 0 {
		return alwaysFalse, nil
	}
	quoted, err := a.QuoteValue(value)
	if err != nil {
		return "", err
	}
	return a.QuoteColumn(column) + " IN (" + quoted + ")", nil
}

func between(a dialect.Adapter, column string, value any) (string, error) {
	if !isList(value) || reflect.ValueOf(value).Len() != 2 {
		return "", fmt.Errorf("range expects exactly two bounds, got %v", value)
	}
	rv := reflect.ValueOf(value)
	low, err := a.QuoteValue(rv.Index(0).Interface())
	if err != nil {
		return "", err
	}
	high, err := a.QuoteValue(rv.Index(1).Interface())
	if err != nil {
		return "", err
	}
	return a.QuoteColumn(column) + " BETWEEN " + low + " AND " + high, nil
}

// raw appends the value verbatim after the column, e.g. "> [[other]] + 1".
func raw(a dialect.Adapter, column string, value any) (string, error) {
	return a.QuoteColumn(column) + " " + a.QuoteSQL(fmt.Sprint(value)), nil
}

func like(prefix, suffix string, insensitive bool) RenderFunc {
	return func(a dialect.Adapter, column string, value any) (string, error) {
		if isNil(value) {
			return "", fmt.Errorf("pattern lookups need a value")
		}
		pattern := prefix + sqlutil.EscapeLike(fmt.Sprint(value)) + suffix
		return a.Like(column, pattern, insensitive), nil
	}
}

func regex(insensitive bool) RenderFunc {
	return func(a dialect.Adapter, column string, value any) (string, error) {
		pattern, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("regex expects a string pattern, got %T", value)
		}
		return a.Regex(column, pattern, insensitive), nil
	}
}

func datePart(part string) RenderFunc {
	return func(a dialect.Adapter, column string, value any) (string, error) {
		expr, err := a.DatePart(part, column)
		if err != nil {
			return "", err
		}
		quoted, err := a.QuoteValue(value)
		if err != nil {
			return "", err
		}
		return expr + " = " + quoted, nil
	}
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// isList reports slices and arrays other than []byte and uuid-like byte arrays.
func isList(value any) bool {
	if value == nil {
		return false
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Type().Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}

// Describe renders a one-line summary of the operators, used by CLI help.
func Describe(r *Registry) string {
	return strings.Join(r.Operators(), ", ")
}
