// Package relation resolves multi-segment lookup paths against an
// introspected schema, registering one LEFT JOIN per related table.
package relation

import (
	"fmt"
	"log/slog"
	"strings"

	"lookupsql/internal/introspection"
	"lookupsql/internal/lookup"
	"lookupsql/internal/naming"
	"lookupsql/internal/query"
)

// Pair is one local/remote column equality of an edge.
type Pair struct {
	Local  string
	Remote string
}

// Edge is a navigable relation from one table to another.
type Edge struct {
	Name        string
	RemoteTable string
	On          []Pair
	// Many marks one-to-many edges; a path ending on one compares against
	// the remote key rather than the local FK column.
	Many bool
}

// Resolver implements query.RelationResolver over a schema plus any edges
// registered by hand. It is read-only after construction and may be shared
// by builders on different goroutines.
type Resolver struct {
	schema *introspection.Schema
	kind   query.JoinKind
	edges  map[string][]Edge
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithJoinKind changes the join keyword; LEFT is the default.
func WithJoinKind(kind query.JoinKind) Option {
	return func(r *Resolver) {
		if kind != "" {
			r.kind = kind
		}
	}
}

// WithLogger logs every hop at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithEdge adds a hand-written edge from table. Hand-written edges take
// precedence over introspected relationships of the same name.
func WithEdge(table string, edge Edge) Option {
	return func(r *Resolver) {
		r.edges[table] = append(r.edges[table], edge)
	}
}

// New builds a resolver from schema's relationships. schema may be nil when
// every edge is supplied with WithEdge.
func New(schema *introspection.Schema, opts ...Option) *Resolver {
	r := &Resolver{
		schema: schema,
		kind:   query.LeftJoin,
		edges:  make(map[string][]Edge),
	}
	if schema != nil {
		for _, table := range schema.Tables {
			for _, rel := range table.Relationships {
				r.edges[table.Name] = append(r.edges[table.Name], edgeFromRelationship(rel))
			}
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func edgeFromRelationship(rel introspection.Relationship) Edge {
	on := make([]Pair, len(rel.LocalColumns))
	for i := range rel.LocalColumns {
		on[i] = Pair{Local: rel.LocalColumns[i], Remote: rel.RemoteColumns[i]}
	}
	return Edge{Name: rel.Name, RemoteTable: rel.RemoteTable, On: on, Many: rel.IsOneToMany}
}

// edge finds the edge named segment from table. A segment naming a related
// table is accepted when no edge has that name.
func (r *Resolver) edge(table, segment string) (Edge, bool) {
	edges := r.edges[table]
	for i := len(edges) - 1; i >= 0; i-- {
		if edges[i].Name == segment {
			return edges[i], true
		}
	}
	for _, e := range edges {
		if e.RemoteTable == segment {
			return e, true
		}
	}
	return Edge{}, false
}

func (r *Resolver) hasColumn(table, column string) bool {
	t, ok := r.schema.Table(table)
	if !ok {
		return false
	}
	_, ok = t.Column(column)
	return ok
}

// Resolve walks path from the builder's table. Every segment but the last
// must name an edge; the last may be a column or an edge. A first segment
// that is not an edge leaves the path to the builder. Unknown later segments
// are appended to the last alias unchanged.
func (r *Resolver) Resolve(j query.JoinRegistrar, alias string, path []string) (string, bool, error) {
	current, ref := j.Table(), alias
	for i, segment := range path {
		last := i == len(path)-1
		if last && r.hasColumn(current, segment) {
			if i == 0 {
				return "", false, nil
			}
			return ref + "." + segment, true, nil
		}

		e, ok := r.edge(current, segment)
		if !ok {
			if i == 0 {
				return "", false, nil
			}
			return ref + "." + strings.Join(path[i:], "."), true, nil
		}
		if len(e.On) == 0 {
			return "", false, fmt.Errorf("relation %s.%s has no join columns", current, e.Name)
		}

		if last && !e.Many {
			// The FK column already holds the related key.
			return ref + "." + e.On[0].Local, true, nil
		}

		ref = r.join(j, ref, e)
		current = e.RemoteTable
		if last {
			return ref + "." + r.remoteKey(e), true, nil
		}
	}
	return "", false, nil
}

// Column returns the schema column path ends on when walked from table,
// following the same rules as Resolve without registering joins.
func (r *Resolver) Column(table string, path []string) (introspection.Column, bool) {
	current := table
	for i, segment := range path {
		last := i == len(path)-1
		if last {
			if c, ok := r.column(current, segment); ok {
				return c, true
			}
		}
		e, ok := r.edge(current, segment)
		if !ok || len(e.On) == 0 {
			return introspection.Column{}, false
		}
		if last {
			if e.Many {
				return r.column(e.RemoteTable, r.remoteKey(e))
			}
			return r.column(current, e.On[0].Local)
		}
		current = e.RemoteTable
	}
	return introspection.Column{}, false
}

func (r *Resolver) column(table, name string) (introspection.Column, bool) {
	t, ok := r.schema.Table(table)
	if !ok {
		return introspection.Column{}, false
	}
	c, ok := t.Column(name)
	if !ok {
		return introspection.Column{}, false
	}
	return *c, true
}

// join registers e from ref. A table joined to itself gets a numbered alias.
func (r *Resolver) join(j query.JoinRegistrar, ref string, e Edge) string {
	target := e.RemoteTable
	if target == j.Table() {
		target = j.MakeAliasKey(e.RemoteTable, true)
	}
	on := make([]query.OnPair, len(e.On))
	for i, p := range e.On {
		on[i] = query.OnPair{Left: ref + "." + p.Local, Right: target + "." + p.Remote}
	}
	alias := j.Join(r.kind, e.RemoteTable, target, on)
	if r.logger != nil {
		r.logger.Debug("registered join",
			slog.String("relation", e.Name),
			slog.String("table", e.RemoteTable),
			slog.String("alias", alias),
		)
	}
	return alias
}

// remoteKey is the column a one-to-many path compares against: the remote
// table's primary key when known, otherwise its FK column.
func (r *Resolver) remoteKey(e Edge) string {
	if t, ok := r.schema.Table(e.RemoteTable); ok {
		if pk := introspection.PrimaryKeyColumn(*t); pk != nil {
			return pk.Name
		}
	}
	return e.On[0].Remote
}

// NewNamer returns a namer that will not hand out lookup operator names as
// relation names, so a relation segment is never read as an operator.
func NewNamer(registry *lookup.Registry, cfg naming.Config, logger *slog.Logger) *naming.Namer {
	reserved := append([]string(nil), cfg.Reserved...)
	if registry != nil {
		reserved = append(reserved, registry.Operators()...)
	}
	cfg.Reserved = reserved
	return naming.New(cfg, logger)
}
