package query

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ToSQL renders the statement. Conditions are rendered before the JOIN
// clause is assembled because resolving them may register joins.
func (b *Builder) ToSQL() (string, error) {
	var (
		sql string
		err error
	)
	switch b.mode {
	case ModeSelect:
		sql, err = b.renderSelect()
	case ModeUpdate:
		sql, err = b.renderUpdate()
	case ModeDelete:
		sql, err = b.renderDelete()
	case ModeInsert:
		sql, err = b.renderInsert()
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatementMode, string(b.mode))
	}
	if err != nil {
		return "", err
	}
	if b.logger != nil {
		b.logger.Debug("rendered statement",
			slog.String("dialect", b.adapter.Name()),
			slog.String("mode", string(b.mode)),
			slog.String("sql", sql),
		)
	}
	return sql, nil
}

func (b *Builder) renderSelect() (string, error) {
	selectList, err := b.renderSelectList()
	if err != nil {
		return "", err
	}
	where, err := b.renderCondition(foldWhere(b.whereAnd, b.whereOr))
	if err != nil {
		return "", fmt.Errorf("where: %w", err)
	}
	groupBy, err := b.renderColumns(b.groupBy)
	if err != nil {
		return "", fmt.Errorf("group by: %w", err)
	}
	having, err := b.renderCondition(foldWhere(b.having, nil))
	if err != nil {
		return "", fmt.Errorf("having: %w", err)
	}
	orderBy, err := b.renderOrder(len(b.unions) == 0)
	if err != nil {
		return "", fmt.Errorf("order by: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if b.distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(selectList)
	if b.table != "" {
		sb.WriteString(" FROM ")
		sb.WriteString(b.adapter.QuoteTableName(b.table))
		if b.alias != "" {
			sb.WriteString(" AS ")
			sb.WriteString(b.adapter.QuoteTableName(b.alias))
		}
	}
	for _, j := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(b.adapter.Join(string(j.Kind), j.Table, j.Alias, b.renderOn(j.On)))
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	if groupBy != "" {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(groupBy)
	}
	if having != "" {
		sb.WriteString(" HAVING ")
		sb.WriteString(having)
	}
	if orderBy != "" && len(b.unions) == 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	}
	if paging := b.adapter.LimitOffset(b.limit, b.offset); paging != "" {
		sb.WriteString(" ")
		sb.WriteString(paging)
	}
	for _, u := range b.unions {
		if u.query == nil {
			continue
		}
		sql, err := u.query.ToSQL()
		if err != nil {
			return "", fmt.Errorf("union: %w", err)
		}
		if u.all {
			sb.WriteString(" UNION ALL ")
		} else {
			sb.WriteString(" UNION ")
		}
		sb.WriteString(sql)
	}
	if orderBy != "" && len(b.unions) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	}
	return sb.String(), nil
}

func (b *Builder) renderUpdate() (string, error) {
	if b.table == "" {
		return "", errors.New("update: no target table")
	}
	if len(b.assignments) == 0 {
		return "", errors.New("update: no values to set")
	}
	sets := make([]string, 0, len(b.assignments))
	for _, a := range b.assignments {
		value, err := b.adapter.QuoteValue(a.value)
		if err != nil {
			return "", fmt.Errorf("update %s: %w", a.column, err)
		}
		sets = append(sets, b.adapter.QuoteColumn(a.column)+" = "+value)
	}
	where, err := b.renderCondition(foldWhere(b.whereAnd, b.whereOr))
	if err != nil {
		return "", fmt.Errorf("where: %w", err)
	}

	sql := "UPDATE " + b.adapter.QuoteTableName(b.table) + " SET " + strings.Join(sets, ", ")
	if where != "" {
		sql += " WHERE " + where
	}
	return sql, nil
}

func (b *Builder) renderDelete() (string, error) {
	if b.table == "" {
		return "", errors.New("delete: no target table")
	}
	where, err := b.renderCondition(foldWhere(b.whereAnd, b.whereOr))
	if err != nil {
		return "", fmt.Errorf("where: %w", err)
	}
	sql := "DELETE FROM " + b.adapter.QuoteTableName(b.table)
	if where != "" {
		sql += " WHERE " + where
	}
	return sql, nil
}

func (b *Builder) renderInsert() (string, error) {
	if b.table == "" {
		return "", errors.New("insert: no target table")
	}
	if len(b.insertColumns) == 0 || len(b.insertRows) == 0 {
		return "", errors.New("insert: no columns or rows")
	}
	columns := make([]string, len(b.insertColumns))
	for i, c := range b.insertColumns {
		columns[i] = b.adapter.QuoteColumn(c)
	}
	rows := make([]string, 0, len(b.insertRows))
	for n, row := range b.insertRows {
		if len(row) != len(columns) {
			return "", fmt.Errorf("insert: row %d has %d values for %d columns", n, len(row), len(columns))
		}
		values := make([]string, len(row))
		for i, v := range row {
			quoted, err := b.adapter.QuoteValue(v)
			if err != nil {
				return "", fmt.Errorf("insert row %d: %w", n, err)
			}
			values[i] = quoted
		}
		rows = append(rows, "("+strings.Join(values, ", ")+")")
	}
	return "INSERT INTO " + b.adapter.QuoteTableName(b.table) +
		" (" + strings.Join(columns, ", ") + ") VALUES " + strings.Join(rows, ", "), nil
}

func (b *Builder) renderSelectList() (string, error) {
	if len(b.selects) == 0 {
		return "*", nil
	}
	parts := make([]string, 0, len(b.selects))
	for _, item := range b.selects {
		var expr string
		if item.sub != nil {
			sql, err := item.sub.ToSQL()
			if err != nil {
				return "", fmt.Errorf("select %s: %w", item.alias, err)
			}
			expr = "(" + sql + ")"
		} else if item.count {
			ref, err := b.columnRef(item.expr)
			if err != nil {
				return "", fmt.Errorf("count %s: %w", item.expr, err)
			}
			expr = "COUNT(" + ref + ")"
		} else {
			var err error
			expr, err = b.columnRef(item.expr)
			if err != nil {
				return "", fmt.Errorf("select %s: %w", item.expr, err)
			}
		}
		if item.alias != "" {
			expr += " AS " + b.adapter.QuoteColumn(item.alias)
		}
		parts = append(parts, expr)
	}
	return strings.Join(parts, ", "), nil
}

func (b *Builder) renderColumns(columns []string) (string, error) {
	parts := make([]string, 0, len(columns))
	for _, c := range columns {
		ref, err := b.columnRef(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, ref)
	}
	return strings.Join(parts, ", "), nil
}

// renderOrder maps "-col" to DESC, "col" to ASC and "?" to the dialect's
// random expression. Columns after a UNION are left unqualified.
func (b *Builder) renderOrder(qualify bool) (string, error) {
	parts := make([]string, 0, len(b.orderBy))
	for _, term := range b.orderBy {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if term == "?" {
			parts = append(parts, b.adapter.Random())
			continue
		}
		direction := "ASC"
		if strings.HasPrefix(term, "-") {
			direction = "DESC"
			term = strings.TrimSpace(term[1:])
			if term == "" {
				continue
			}
		}
		ref := term
		if qualify {
			var err error
			if ref, err = b.columnRef(term); err != nil {
				return "", err
			}
		} else if !isExpression(term) {
			ref = b.adapter.QuoteColumn(term)
		}
		parts = append(parts, ref+" "+direction)
	}
	return strings.Join(parts, ", "), nil
}

// columnRef resolves a select/group/order term. Lookup paths register joins;
// plain names get the active alias; expressions pass through.
func (b *Builder) columnRef(term string) (string, error) {
	if isExpression(term) {
		return term, nil
	}
	if sep := b.lookups.Separator(); strings.Contains(term, sep) {
		column, err := b.buildJoin(strings.Split(term, sep))
		if err != nil {
			return "", err
		}
		return b.adapter.QuoteColumn(column), nil
	}
	return b.adapter.QuoteColumn(b.qualify(term)), nil
}

func (b *Builder) renderOn(pairs []OnPair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = b.adapter.QuoteColumn(p.Left) + "=" + b.adapter.QuoteColumn(p.Right)
	}
	return strings.Join(parts, " AND ")
}

func (b *Builder) renderCondition(c Condition) (string, error) {
	switch c := c.(type) {
	case nil:
		return "", nil
	case Q:
		return b.renderLeaf(c.Leaf())
	case Leaf:
		return b.renderLeaf(c)
	case And:
		return b.renderGroup(c, "AND")
	case Or:
		return b.renderGroup(c, "OR")
	case Not:
		inner, err := b.renderCondition(c.Condition)
		if err != nil || inner == "" {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case Raw:
		return b.adapter.QuoteSQL(string(c)), nil
	case Sub:
		if c.Query == nil {
			return "", nil
		}
		sql, err := c.Query.ToSQL()
		if err != nil {
			return "", err
		}
		return "(" + sql + ")", nil
	default:
		return "", fmt.Errorf("unsupported condition %T", c)
	}
}

// renderLeaf renders each lookup and joins them with AND, unparenthesized.
func (b *Builder) renderLeaf(leaf Leaf) (string, error) {
	parts := make([]string, 0, len(leaf))
	for _, lk := range leaf {
		parsed, err := b.lookups.Parse(lk.Key, lk.Value)
		if err != nil {
			return "", err
		}
		column, err := b.buildJoin(parsed.Path)
		if err != nil {
			return "", fmt.Errorf("lookup %q: %w", lk.Key, err)
		}
		sql, err := b.lookups.Run(b.adapter, parsed.Operator, column, parsed.Value)
		if err != nil {
			return "", fmt.Errorf("lookup %q: %w", lk.Key, err)
		}
		parts = append(parts, sql)
	}
	return strings.Join(parts, " AND "), nil
}

// renderGroup wraps every non-empty operand: "(a) AND (b)".
func (b *Builder) renderGroup(children []Condition, op string) (string, error) {
	parts := make([]string, 0, len(children))
	for _, child := range children {
		sql, err := b.renderCondition(child)
		if err != nil {
			return "", err
		}
		if sql != "" {
			parts = append(parts, sql)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, ") "+op+" (") + ")", nil
}
