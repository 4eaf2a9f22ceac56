package query

import "sort"

// Condition is a node in a WHERE/HAVING tree. The concrete types are Q,
// Leaf, And, Or, Not, Raw and Sub.
type Condition interface {
	isCondition()
}

// Lookup is one key/value pair of a leaf, e.g. {"price__gte", 10}.
type Lookup struct {
	Key   string
	Value any
}

// Leaf is an ordered list of lookups rendered with AND and no parentheses.
type Leaf []Lookup

// Q is the map form of Leaf. Keys render in sorted order so output is
// deterministic.
type Q map[string]any

// And renders every child in parentheses joined by AND.
type And []Condition

// Or renders every child in parentheses joined by OR.
type Or []Condition

// Not negates its child.
type Not struct {
	Condition Condition
}

// Raw is literal SQL. [[column]] and {{table}} placeholders are quoted.
type Raw string

// Sub splices a nested builder's SQL in place.
type Sub struct {
	Query *Builder
}

func (Leaf) isCondition() {}
func (Q) isCondition()    {}
func (And) isCondition()  {}
func (Or) isCondition()   {}
func (Not) isCondition()  {}
func (Raw) isCondition()  {}
func (Sub) isCondition()  {}

// L builds a single-lookup leaf.
func L(key string, value any) Leaf {
	return Leaf{{Key: key, Value: value}}
}

// Leaf converts q to an ordered Leaf.
func (q Q) Leaf() Leaf {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	leaf := make(Leaf, 0, len(keys))
	for _, k := range keys {
		leaf = append(leaf, Lookup{Key: k, Value: q[k]})
	}
	return leaf
}

// foldWhere combines the AND list and the OR list into one tree:
// acc = And(A1), acc = And(acc, And(Ai)) for the rest, then
// acc = Or(acc, And(Oj)) for each OR entry (Or(Oj) when acc is empty).
func foldWhere(ands, ors []Condition) Condition {
	var acc Condition
	for _, c := range ands {
		if acc == nil {
			acc = And{c}
			continue
		}
		acc = And{acc, And{c}}
	}
	for _, c := range ors {
		if acc == nil {
			acc = Or{c}
			continue
		}
		acc = Or{acc, And{c}}
	}
	return acc
}
