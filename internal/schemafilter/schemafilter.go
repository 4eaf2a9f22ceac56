// Package schemafilter applies allow/deny filters to introspected schemas so
// that hidden tables and columns cannot be reached through lookup paths.
package schemafilter

import (
	"context"
	"path"
	"slices"
	"strings"

	"lookupsql/internal/introspection"
	"lookupsql/internal/naming"
)

// Config controls allow/deny filters for tables and columns. Patterns use
// path.Match syntax and match case-insensitively; the "*" key of the column
// maps applies to every table.
type Config struct {
	AllowTables  []string            `mapstructure:"allow_tables"`
	DenyTables   []string            `mapstructure:"deny_tables"`
	AllowColumns map[string][]string `mapstructure:"allow_columns"`
	DenyColumns  map[string][]string `mapstructure:"deny_columns"`
}

// Empty reports whether the config filters nothing.
func (c Config) Empty() bool {
	return len(c.AllowTables) == 0 && len(c.DenyTables) == 0 &&
		len(c.AllowColumns) == 0 && len(c.DenyColumns) == 0
}

// Report lists what a filter removed from a schema.
type Report struct {
	HiddenTables      []string
	HiddenColumns     map[string][]string // table -> columns
	DroppedRelations  []string            // FK constraint names
	EmptyTablesPruned []string            // tables whose every column was hidden
}

// Hidden reports whether anything was removed.
func (r Report) Hidden() bool {
	return len(r.HiddenTables) > 0 || len(r.HiddenColumns) > 0 ||
		len(r.DroppedRelations) > 0 || len(r.EmptyTablesPruned) > 0
}

// Filter decides table and column visibility. Missing allow lists default
// to allow-all; deny rules always win.
type Filter struct {
	allowTables  []string
	denyTables   []string
	allowColumns map[string][]string
	denyColumns  map[string][]string
}

// New lower-cases every pattern in cfg once.
func New(cfg Config) *Filter {
	return &Filter{
		allowTables:  lowerAll(cfg.AllowTables),
		denyTables:   lowerAll(cfg.DenyTables),
		allowColumns: lowerKeys(cfg.AllowColumns),
		denyColumns:  lowerKeys(cfg.DenyColumns),
	}
}

// TableAllowed reports whether table survives the filter.
func (f *Filter) TableAllowed(table string) bool {
	table = strings.ToLower(table)
	if matchesAny(table, f.denyTables) {
		return false
	}
	return len(f.allowTables) == 0 || matchesAny(table, f.allowTables)
}

// ColumnAllowed reports whether column of table survives the filter.
func (f *Filter) ColumnAllowed(table, column string) bool {
	table, column = strings.ToLower(table), strings.ToLower(column)
	if matchesAny(column, patternsFor(f.denyColumns, table)) {
		return false
	}
	allow := patternsFor(f.allowColumns, table)
	return len(allow) == 0 || matchesAny(column, allow)
}

// Apply filters tables, columns, indexes and foreign keys of schema in
// place and rebuilds relationships with namer.
func (f *Filter) Apply(ctx context.Context, schema *introspection.Schema, namer *naming.Namer) Report {
	var report Report
	if schema == nil {
		return report
	}

	visible := make(map[string]map[string]bool, len(schema.Tables))
	kept := make([]introspection.Table, 0, len(schema.Tables))
	for _, table := range schema.Tables {
		if !f.TableAllowed(table.Name) {
			report.HiddenTables = append(report.HiddenTables, table.Name)
			continue
		}
		columns := make(map[string]bool, len(table.Columns))
		remaining := table.Columns[:0:0]
		for _, column := range table.Columns {
			if !f.ColumnAllowed(table.Name, column.Name) {
				if report.HiddenColumns == nil {
					report.HiddenColumns = make(map[string][]string)
				}
				report.HiddenColumns[table.Name] = append(report.HiddenColumns[table.Name], column.Name)
				continue
			}
			remaining = append(remaining, column)
			columns[column.Name] = true
		}
		if len(remaining) == 0 {
			report.EmptyTablesPruned = append(report.EmptyTablesPruned, table.Name)
			continue
		}
		table.Columns = remaining
		visible[table.Name] = columns
		kept = append(kept, table)
	}

	for i := range kept {
		table := &kept[i]
		table.Indexes = filterIndexes(table.Indexes, visible[table.Name])
		var dropped []string
		table.ForeignKeys, dropped = filterForeignKeys(table.ForeignKeys, visible[table.Name], visible)
		report.DroppedRelations = append(report.DroppedRelations, dropped...)
		table.Relationships = nil
	}

	if len(kept) == 0 {
		schema.Tables = nil
		return report
	}
	schema.Tables = kept
	introspection.BuildRelationships(ctx, schema, namer)
	return report
}

// Apply is New(cfg).Apply(ctx, schema, namer).
func Apply(ctx context.Context, schema *introspection.Schema, cfg Config, namer *naming.Namer) Report {
	return New(cfg).Apply(ctx, schema, namer)
}

func filterIndexes(indexes []introspection.Index, columns map[string]bool) []introspection.Index {
	return slices.DeleteFunc(indexes, func(idx introspection.Index) bool {
		return slices.ContainsFunc(idx.Columns, func(c string) bool { return !columns[c] })
	})
}

// filterForeignKeys drops every row of a constraint when any of its columns,
// or the referenced table or columns, are hidden.
func filterForeignKeys(fks []introspection.ForeignKey, local map[string]bool, visible map[string]map[string]bool) ([]introspection.ForeignKey, []string) {
	var hidden []string
	for _, fk := range fks {
		remote, ok := visible[fk.ReferencedTable]
		if local[fk.ColumnName] && ok && remote[fk.ReferencedColumn] {
			continue
		}
		if !slices.Contains(hidden, fk.ConstraintName) {
			hidden = append(hidden, fk.ConstraintName)
		}
	}
	if len(hidden) == 0 {
		return fks, nil
	}
	return slices.DeleteFunc(fks, func(fk introspection.ForeignKey) bool {
		return slices.Contains(hidden, fk.ConstraintName)
	}), hidden
}

func patternsFor(patterns map[string][]string, table string) []string {
	var combined []string
	for key, list := range patterns {
		if key == "*" || key == table {
			combined = append(combined, list...)
		}
	}
	return combined
}

func matchesAny(value string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if ok, err := path.Match(pattern, value); err == nil && ok {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

func lowerKeys(patterns map[string][]string) map[string][]string {
	if len(patterns) == 0 {
		return nil
	}
	out := make(map[string][]string, len(patterns))
	for key, list := range patterns {
		key = strings.ToLower(key)
		out[key] = append(out[key], lowerAll(list)...)
	}
	return out
}
