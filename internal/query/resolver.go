package query

import (
	"regexp"
	"strings"
)

// JoinRegistrar is the part of the Builder a RelationResolver may use.
type JoinRegistrar interface {
	// Table is the statement's target table.
	Table() string
	// Join registers a join (idempotent per table) and returns its alias.
	Join(kind JoinKind, table, alias string, on []OnPair) string
	MakeAliasKey(table string, increment bool) string
}

// RelationResolver turns a multi-segment lookup path into joins. alias is the
// reference for the base table (the active alias or the table name). It
// returns the terminal column qualified by the last join alias, or ok=false
// when it does not recognize the path, in which case the path is used
// literally.
type RelationResolver interface {
	Resolve(j JoinRegistrar, alias string, path []string) (column string, ok bool, err error)
}

// RelationResolverFunc adapts a function to RelationResolver.
type RelationResolverFunc func(j JoinRegistrar, alias string, path []string) (string, bool, error)

// Resolve calls f.
func (f RelationResolverFunc) Resolve(j JoinRegistrar, alias string, path []string) (string, bool, error) {
	return f(j, alias, path)
}

// buildJoin resolves a lookup path to a column reference. With a resolver
// installed the resolver sees the whole path first; otherwise one segment is
// a column qualified with the active alias and several segments are joined
// with dots.
func (b *Builder) buildJoin(path []string) (string, error) {
	if b.relations != nil && len(path) > 0 {
		ref := b.Alias()
		if ref == "" {
			ref = b.table
		}
		column, ok, err := b.relations.Resolve(b, ref, path)
		if err != nil {
			return "", err
		}
		if ok {
			return b.qualify(column), nil
		}
	}
	return b.qualify(strings.Join(path, ".")), nil
}

// qualify prefixes bare column names with the active alias. Qualified
// names, "*" and expressions are returned unchanged.
func (b *Builder) qualify(column string) string {
	alias := b.Alias()
	if alias == "" || isExpression(column) || strings.Contains(column, ".") {
		return column
	}
	return alias + "." + column
}

var selectKeyword = regexp.MustCompile(`(?i)\bselect\b`)

// isExpression reports select items that must not be column-qualified:
// the wildcard, function calls and sub-selects.
func isExpression(s string) bool {
	return s == "*" || strings.Contains(s, "(") || selectKeyword.MatchString(s)
}
