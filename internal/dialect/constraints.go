package dialect

import (
	"regexp"
	"sort"
	"strings"

	"lookupsql/internal/sqlutil"
)

// ForeignKey is a FOREIGN KEY clause recovered from DDL text.
type ForeignKey struct {
	Name              string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
}

// UniqueIndex is a UNIQUE constraint or unique index recovered from DDL text.
type UniqueIndex struct {
	Name    string
	Columns []string
}

// Constraints groups what ParseConstraints found.
type Constraints struct {
	ForeignKeys []ForeignKey
	Unique      []UniqueIndex
}

// Empty reports whether nothing was recognized.
func (c Constraints) Empty() bool {
	return len(c.ForeignKeys) == 0 && len(c.Unique) == 0
}

const (
	identPattern     = "(?:`[^`]+`|\"[^\"]+\"|\\[[^\\]]+\\]|[\\w$]+)"
	qualifiedPattern = "(" + identPattern + "(?:\\." + identPattern + ")*)"
	identGroup       = "(" + identPattern + ")"
)

var (
	foreignKeyPattern = regexp.MustCompile(`(?is)(?:CONSTRAINT\s+` + identGroup + `\s+)?FOREIGN\s+KEY\s*(?:` + identPattern + `\s*)?\(([^)]*)\)\s*REFERENCES\s+` + qualifiedPattern + `\s*\(([^)]*)\)`)
	columnRefPattern  = regexp.MustCompile(`(?i)(?:^|[(,])\s*` + identGroup + `\s+[\w ]+?(?:\([^)]*\))?[^,()]*?\bREFERENCES\s+` + qualifiedPattern + `\s*\(([^)]*)\)`)

	uniqueKeyPattern   = regexp.MustCompile(`(?i)UNIQUE\s+(?:KEY|INDEX)\s+` + identGroup + `\s*\(([^)]*)\)`)
	namedUniquePattern = regexp.MustCompile(`(?i)CONSTRAINT\s+` + identGroup + `\s+UNIQUE\s*(?:KEY\s*|INDEX\s*)?\(([^)]*)\)`)
	uniqueIndexPattern = regexp.MustCompile(`(?i)CREATE\s+UNIQUE\s+INDEX\s+(?:IF\s+NOT\s+EXISTS\s+)?` + qualifiedPattern + `\s+ON\s+(?:ONLY\s+)?` + qualifiedPattern + `(?:\s+USING\s+\w+)?\s*\(([^)]*)\)`)
	bareUniquePattern  = regexp.MustCompile(`(?i)(?:^|[(,])\s*UNIQUE\s*\(([^)]*)\)`)
)

// Words that can open a table-level clause and must not be read as column names.
var clauseKeywords = map[string]bool{
	"CONSTRAINT": true,
	"FOREIGN":    true,
	"PRIMARY":    true,
	"UNIQUE":     true,
	"CHECK":      true,
	"KEY":        true,
	"INDEX":      true,
}

// ParseConstraints pattern-matches FOREIGN KEY and UNIQUE clauses in ddl.
// It understands MySQL SHOW CREATE TABLE output, PostgreSQL constraint and
// index definitions, and SQLite's stored CREATE statements. Text that matches
// nothing yields empty Constraints.
func ParseConstraints(ddl string) Constraints {
	var out Constraints
	if strings.TrimSpace(ddl) == "" {
		return out
	}

	type positioned struct {
		at int
		fk ForeignKey
	}
	var fks []positioned

	for _, m := range foreignKeyPattern.FindAllStringSubmatchIndex(ddl, -1) {
		fk := ForeignKey{
			Columns:           splitColumns(group(ddl, m, 2)),
			ReferencedTable:   lastPart(group(ddl, m, 3)),
			ReferencedColumns: splitColumns(group(ddl, m, 4)),
		}
		if name := group(ddl, m, 1); name != "" {
			fk.Name = sqlutil.Unquote(name)
		}
		fks = append(fks, positioned{at: m[0], fk: fk})
	}
	for _, m := range columnRefPattern.FindAllStringSubmatchIndex(ddl, -1) {
		column := sqlutil.Unquote(group(ddl, m, 1))
		if clauseKeywords[strings.ToUpper(column)] {
			continue
		}
		fks = append(fks, positioned{at: m[0], fk: ForeignKey{
			Columns:           []string{column},
			ReferencedTable:   lastPart(group(ddl, m, 2)),
			ReferencedColumns: splitColumns(group(ddl, m, 3)),
		}})
	}
	sort.SliceStable(fks, func(i, j int) bool { return fks[i].at < fks[j].at })
	for _, p := range fks {
		fk := p.fk
		if len(fk.Columns) == 0 || len(fk.ReferencedColumns) == 0 {
			continue
		}
		if fk.Name == "" {
			fk.Name = "fk_" + strings.Join(fk.Columns, "_")
		}
		out.ForeignKeys = append(out.ForeignKeys, fk)
	}

	seen := make(map[string]bool)
	addUnique := func(name string, columns []string) {
		if len(columns) == 0 {
			return
		}
		if name == "" {
			name = strings.Join(columns, "_") + "_unique"
		}
		if seen[name] {
			return
		}
		seen[name] = true
		out.Unique = append(out.Unique, UniqueIndex{Name: name, Columns: columns})
	}
	for _, m := range uniqueKeyPattern.FindAllStringSubmatch(ddl, -1) {
		addUnique(sqlutil.Unquote(m[1]), splitColumns(m[2]))
	}
	for _, m := range namedUniquePattern.FindAllStringSubmatch(ddl, -1) {
		addUnique(sqlutil.Unquote(m[1]), splitColumns(m[2]))
	}
	for _, m := range uniqueIndexPattern.FindAllStringSubmatch(ddl, -1) {
		addUnique(lastPart(m[1]), splitColumns(m[3]))
	}
	for _, m := range bareUniquePattern.FindAllStringSubmatch(ddl, -1) {
		addUnique("", splitColumns(m[1]))
	}
	return out
}

func group(s string, m []int, i int) string {
	if 2*i+1 >= len(m) || m[2*i] < 0 {
		return ""
	}
	return s[m[2*i]:m[2*i+1]]
}

// splitColumns turns "`a`, `b`(10) DESC" into [a b].
func splitColumns(list string) []string {
	var cols []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if idx := strings.Index(part, "("); idx > 0 {
			part = part[:idx]
		}
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		if name := sqlutil.Unquote(fields[0]); name != "" {
			cols = append(cols, name)
		}
	}
	return cols
}

// lastPart drops any schema qualifier from a possibly quoted name.
func lastPart(name string) string {
	name = strings.TrimSpace(name)
	if idx := strings.LastIndex(name, "."); idx != -1 {
		name = name[idx+1:]
	}
	return sqlutil.Unquote(name)
}
