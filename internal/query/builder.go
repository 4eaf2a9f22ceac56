// Package query assembles SELECT, UPDATE, DELETE and INSERT statements from
// lookup-keyed conditions, registering the joins those lookups imply.
package query

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"lookupsql/internal/dialect"
	"lookupsql/internal/lookup"
)

// ErrUnknownStatementMode is returned when ToSQL meets a mode it cannot render.
var ErrUnknownStatementMode = errors.New("unknown statement mode")

// Mode selects the statement kind.
type Mode string

const (
	ModeSelect Mode = "SELECT"
	ModeUpdate Mode = "UPDATE"
	ModeDelete Mode = "DELETE"
	ModeInsert Mode = "INSERT"
)

// ParseMode accepts a mode name in any case. The empty string is SELECT.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case "":
		return ModeSelect, nil
	case ModeSelect, ModeUpdate, ModeDelete, ModeInsert:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatementMode, s)
	}
}

// JoinKind is the join keyword that precedes JOIN.
type JoinKind string

const (
	LeftJoin  JoinKind = "LEFT"
	InnerJoin JoinKind = "INNER"
	RightJoin JoinKind = "RIGHT"
)

// ParseJoinKind accepts a join keyword in any case. The empty string is LEFT.
func ParseJoinKind(s string) (JoinKind, error) {
	switch k := JoinKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case "":
		return LeftJoin, nil
	case LeftJoin, InnerJoin, RightJoin:
		return k, nil
	default:
		return "", fmt.Errorf("unknown join kind %q", s)
	}
}

// OnPair is one equality of a join condition.
type OnPair struct {
	Left  string
	Right string
}

// JoinSpec is a registered join.
type JoinSpec struct {
	Kind  JoinKind
	Table string
	Alias string
	On    []OnPair
}

type selectItem struct {
	expr  string
	alias string
	sub   *Builder
	count bool
}

type assignment struct {
	column string
	value  any
}

type unionPart struct {
	query *Builder
	all   bool
}

// Builder accumulates clauses for one statement. A Builder is not safe for
// concurrent use; call Reset to reuse it for another statement.
type Builder struct {
	adapter   dialect.Adapter
	lookups   *lookup.Registry
	relations RelationResolver
	logger    *slog.Logger

	mode     Mode
	distinct bool
	selects  []selectItem
	table    string
	alias    string

	joins     []JoinSpec
	joinIndex map[string]int

	whereAnd []Condition
	whereOr  []Condition
	groupBy  []string
	having   []Condition
	orderBy  []string
	limit    int
	offset   int
	unions   []unionPart

	aliasCounter int

	assignments   []assignment
	insertColumns []string
	insertRows    [][]any
}

// Option configures a Builder.
type Option func(*Builder)

// WithRelationResolver installs the callback that turns multi-segment lookup
// paths into joins.
func WithRelationResolver(r RelationResolver) Option {
	return func(b *Builder) {
		b.relations = r
	}
}

// WithLookups replaces the default operator registry.
func WithLookups(r *lookup.Registry) Option {
	return func(b *Builder) {
		if r != nil {
			b.lookups = r
		}
	}
}

// WithLogger logs every rendered statement at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// New returns a SELECT builder rendering through adapter.
func New(adapter dialect.Adapter, opts ...Option) *Builder {
	b := &Builder{
		adapter: adapter,
		lookups: lookup.NewRegistry(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.Reset()
	return b
}

// Reset clears every clause and the alias counter, keeping the adapter,
// registry, resolver and logger.
func (b *Builder) Reset() *Builder {
	b.mode = ModeSelect
	b.distinct = false
	b.selects = nil
	b.table = ""
	b.alias = ""
	b.joins = nil
	b.joinIndex = make(map[string]int)
	b.whereAnd = nil
	b.whereOr = nil
	b.groupBy = nil
	b.having = nil
	b.orderBy = nil
	b.limit = -1
	b.offset = 0
	b.unions = nil
	b.aliasCounter = 0
	b.assignments = nil
	b.insertColumns = nil
	b.insertRows = nil
	return b
}

// Adapter returns the dialect adapter.
func (b *Builder) Adapter() dialect.Adapter { return b.adapter }

// Mode returns the current statement mode.
func (b *Builder) Mode() Mode { return b.mode }

// SetMode switches the statement kind.
func (b *Builder) SetMode(m Mode) *Builder {
	b.mode = m
	return b
}

// From sets the target table.
func (b *Builder) From(table string) *Builder {
	b.table = table
	return b
}

// As sets the alias of the target table. Aliases apply to SELECT only.
func (b *Builder) As(alias string) *Builder {
	b.alias = alias
	return b
}

// Table returns the target table.
func (b *Builder) Table() string { return b.table }

// Alias returns the active alias that unqualified columns resolve against.
// It is empty when none was set and outside SELECT mode.
func (b *Builder) Alias() string {
	if b.mode != ModeSelect {
		return ""
	}
	return b.alias
}

// Select adds columns or expressions to the select list.
func (b *Builder) Select(columns ...string) *Builder {
	for _, c := range columns {
		b.selects = append(b.selects, selectItem{expr: c})
	}
	return b
}

// SelectAs adds expr AS alias.
func (b *Builder) SelectAs(expr, alias string) *Builder {
	b.selects = append(b.selects, selectItem{expr: expr, alias: alias})
	return b
}

// SelectSub adds (sub) AS alias.
func (b *Builder) SelectSub(sub *Builder, alias string) *Builder {
	b.selects = append(b.selects, selectItem{sub: sub, alias: alias})
	return b
}

// Count replaces the select list with COUNT(column); "*" when column is empty.
func (b *Builder) Count(column string) *Builder {
	if column == "" {
		column = "*"
	}
	b.selects = []selectItem{{expr: column, count: true}}
	return b
}

// Distinct toggles SELECT DISTINCT.
func (b *Builder) Distinct() *Builder {
	b.distinct = true
	return b
}

// Join registers a join and returns the alias to use for it. Joins are
// idempotent per target table: a second request for the same table returns
// the existing alias and adds nothing.
func (b *Builder) Join(kind JoinKind, table, alias string, on []OnPair) string {
	if i, ok := b.joinIndex[table]; ok {
		return b.joins[i].Alias
	}
	if alias == "" {
		alias = table
	}
	if kind == "" {
		kind = LeftJoin
	}
	b.joinIndex[table] = len(b.joins)
	b.joins = append(b.joins, JoinSpec{Kind: kind, Table: table, Alias: alias, On: on})
	return alias
}

// JoinOn is the chainable form of Join.
func (b *Builder) JoinOn(kind JoinKind, table, alias string, on ...OnPair) *Builder {
	b.Join(kind, table, alias, on)
	return b
}

// Joins returns the registered joins in insertion order.
func (b *Builder) Joins() []JoinSpec {
	out := make([]JoinSpec, len(b.joins))
	copy(out, b.joins)
	return out
}

// MakeAliasKey returns table_N where N is the alias counter. The counter only
// advances when increment is true, so repeated calls without increment yield
// the same key.
func (b *Builder) MakeAliasKey(table string, increment bool) string {
	if increment {
		b.aliasCounter++
	}
	return fmt.Sprintf("%s_%d", table, b.aliasCounter)
}

// Where appends each condition to the AND list.
func (b *Builder) Where(conds ...Condition) *Builder {
	b.whereAnd = append(b.whereAnd, conds...)
	return b
}

// OrWhere appends each condition to the OR list.
func (b *Builder) OrWhere(conds ...Condition) *Builder {
	b.whereOr = append(b.whereOr, conds...)
	return b
}

// Exclude appends the negation of each condition to the AND list.
func (b *Builder) Exclude(conds ...Condition) *Builder {
	for _, c := range conds {
		b.whereAnd = append(b.whereAnd, Not{Condition: c})
	}
	return b
}

// GroupBy appends grouping columns.
func (b *Builder) GroupBy(columns ...string) *Builder {
	b.groupBy = append(b.groupBy, columns...)
	return b
}

// Having appends HAVING conditions, combined like the WHERE AND list.
func (b *Builder) Having(conds ...Condition) *Builder {
	b.having = append(b.having, conds...)
	return b
}

// OrderBy appends ordering terms: "col" sorts ascending, "-col" descending
// and "?" randomly.
func (b *Builder) OrderBy(terms ...string) *Builder {
	b.orderBy = append(b.orderBy, terms...)
	return b
}

// Limit caps the row count. A negative n clears it.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Offset skips n rows.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

// Paginate sets limit and offset for a 1-based page.
func (b *Builder) Paginate(page, size int) *Builder {
	if page < 1 {
		page = 1
	}
	b.limit = size
	b.offset = (page - 1) * size
	return b
}

// Union appends another SELECT. ORDER BY of b is emitted after the union.
func (b *Builder) Union(other *Builder, all bool) *Builder {
	b.unions = append(b.unions, unionPart{query: other, all: all})
	return b
}

// Set adds one UPDATE assignment and switches to UPDATE mode.
func (b *Builder) Set(column string, value any) *Builder {
	b.mode = ModeUpdate
	b.assignments = append(b.assignments, assignment{column: column, value: value})
	return b
}

// Update switches to UPDATE mode with values applied in sorted column order.
func (b *Builder) Update(values map[string]any) *Builder {
	columns := make([]string, 0, len(values))
	for c := range values {
		columns = append(columns, c)
	}
	sort.Strings(columns)
	for _, c := range columns {
		b.Set(c, values[c])
	}
	b.mode = ModeUpdate
	return b
}

// Delete switches to DELETE mode.
func (b *Builder) Delete() *Builder {
	b.mode = ModeDelete
	return b
}

// Insert switches to INSERT mode. Each row must have one value per column.
func (b *Builder) Insert(columns []string, rows ...[]any) *Builder {
	b.mode = ModeInsert
	b.insertColumns = columns
	b.insertRows = append(b.insertRows, rows...)
	return b
}

// String renders the statement, returning the error text on failure.
func (b *Builder) String() string {
	sql, err := b.ToSQL()
	if err != nil {
		return "error: " + err.Error()
	}
	return sql
}
