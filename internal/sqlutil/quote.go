// Package sqlutil provides SQL quoting helpers shared by the dialect adapters.
package sqlutil

import "strings"

// QuoteIdentifier quotes a single identifier with left/right characters,
// doubling any embedded right character. Names that are already quoted and
// the "*" wildcard are returned unchanged.
func QuoteIdentifier(name string, left, right byte) string {
	if name == "*" || IsQuoted(name, left, right) {
		return name
	}
	escaped := strings.ReplaceAll(name, string(right), string(right)+string(right))
	return string(left) + escaped + string(right)
}

// QuoteQualified quotes every dot-separated part of name, so "t.id" becomes
// `t`.`id`. Quoting is idempotent: a quoted name is left as is.
func QuoteQualified(name string, left, right byte) string {
	if IsQuoted(name, left, right) {
		return name
	}
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = QuoteIdentifier(part, left, right)
	}
	return strings.Join(parts, ".")
}

// IsQuoted reports whether name starts with left and ends with right.
func IsQuoted(name string, left, right byte) bool {
	return len(name) >= 2 && name[0] == left && name[len(name)-1] == right
}

// Unquote strips any of the common identifier quote characters from name.
func Unquote(name string) string {
	return strings.Trim(strings.TrimSpace(name), "`\"[]")
}

// QuoteString quotes a SQL string literal with single quotes and escapes
// any single quotes within the string by doubling them.
func QuoteString(s string) string {
	escaped := strings.ReplaceAll(s, "'", "''")
	return "'" + escaped + "'"
}

// QuoteStringBackslash is QuoteString for servers that treat backslash as an
// escape character inside string literals.
func QuoteStringBackslash(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", "''")
	return "'" + escaped + "'"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards so s matches literally. The escape
// character is backslash.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
