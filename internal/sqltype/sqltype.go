// Package sqltype defines the dialect-neutral column types that the dialect
// adapters map to and from physical catalog types.
package sqltype

import (
	"fmt"
	"strings"
)

// Type is an abstract column type.
type Type int

const (
	// TypeString is the default type for variable-length text and for unknown physical types.
	TypeString Type = iota
	TypeText
	TypeChar
	TypeSmallInteger
	TypeInteger
	TypeBigInteger
	TypeFloat
	TypeDouble
	TypeDecimal
	TypeBinary
	TypeBoolean
	TypeDate
	TypeTime
	TypeDateTime
	TypeTimestamp
)

var typeNames = [...]string{
	TypeString:       "string",
	TypeText:         "text",
	TypeChar:         "char",
	TypeSmallInteger: "smallint",
	TypeInteger:      "integer",
	TypeBigInteger:   "bigint",
	TypeFloat:        "float",
	TypeDouble:       "double",
	TypeDecimal:      "decimal",
	TypeBinary:       "binary",
	TypeBoolean:      "boolean",
	TypeDate:         "date",
	TypeTime:         "time",
	TypeDateTime:     "datetime",
	TypeTimestamp:    "timestamp",
}

// All returns every abstract type in declaration order.
func All() []Type {
	out := make([]Type, len(typeNames))
	for i := range typeNames {
		out[i] = Type(i)
	}
	return out
}

// String returns the lower-case abstract type name.
func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "string"
	}
	return typeNames[t]
}

// Parse converts an abstract type name back to a Type.
func Parse(name string) (Type, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range typeNames {
		if candidate == name {
			return Type(i), nil
		}
	}
	return TypeString, fmt.Errorf("unknown column type %q", name)
}

// IsNumeric reports whether values of t render without quotes.
func (t Type) IsNumeric() bool {
	switch t {
	case TypeSmallInteger, TypeInteger, TypeBigInteger, TypeFloat, TypeDouble, TypeDecimal:
		return true
	default:
		return false
	}
}

// IsTemporal reports whether t is one of the date/time types.
func (t Type) IsTemporal() bool {
	switch t {
	case TypeDate, TypeTime, TypeDateTime, TypeTimestamp:
		return true
	default:
		return false
	}
}

// Normalize lower-cases a physical type and collapses inner whitespace.
// "VARCHAR (255)" becomes "varchar(255)".
func Normalize(physical string) string {
	physical = strings.ToLower(strings.TrimSpace(physical))
	physical = strings.Join(strings.Fields(physical), " ")
	return strings.ReplaceAll(physical, " (", "(")
}

// BaseType strips size specifiers like (10,2) or (255) and any trailing
// modifiers such as "unsigned", returning the normalized base type.
// "character varying(255)" keeps its multi-word name.
func BaseType(physical string) string {
	physical = Normalize(physical)
	if idx := strings.Index(physical, "("); idx != -1 {
		rest := ""
		if end := strings.Index(physical[idx:], ")"); end != -1 {
			rest = strings.TrimSpace(physical[idx+end+1:])
		}
		physical = strings.TrimSpace(physical[:idx])
		if rest != "" && !isModifier(rest) {
			physical += " " + rest
		}
	}
	for _, modifier := range []string{" unsigned", " signed", " zerofill"} {
		physical = strings.TrimSuffix(physical, modifier)
	}
	return physical
}

func isModifier(s string) bool {
	for _, field := range strings.Fields(s) {
		switch field {
		case "unsigned", "signed", "zerofill":
		default:
			return false
		}
	}
	return true
}
