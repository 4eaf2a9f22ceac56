package introspection

import (
	"context"
	"log/slog"
	"strings"

	"lookupsql/internal/naming"
)

// BuildRelationships clears and rebuilds relationship metadata from foreign
// keys. Columns are registered with the namer first so relation names never
// shadow a column of the same table.
func BuildRelationships(ctx context.Context, schema *Schema, namer *naming.Namer) {
	if schema == nil {
		return
	}
	_, span := startSpan(ctx, "introspection.build_relationships")
	defer span.End()

	if namer == nil {
		namer = naming.Default()
	}
	namer.Reset()

	for i := range schema.Tables {
		table := &schema.Tables[i]
		table.Relationships = nil
		for _, col := range table.Columns {
			namer.RegisterColumn(table.Name, col.Name)
		}
	}

	// Count FKs per (source_table, target_table) pair to determine naming strategy.
	// When multiple FK constraints from the same table point to the same target,
	// the FK column name is used to disambiguate.
	fkCount := make(map[string]map[string]int) // source → target → count
	for _, table := range schema.Tables {
		for _, fk := range ForeignKeyConstraints(table) {
			if fkCount[table.Name] == nil {
				fkCount[table.Name] = make(map[string]int)
			}
			fkCount[table.Name][fk.ReferencedTable]++
		}
	}

	// First pass: many-to-one relationships named after the FK column minus
	// its _id suffix.
	for i := range schema.Tables {
		table := &schema.Tables[i]
		for _, fk := range ForeignKeyConstraints(*table) {
			if len(fk.ColumnNames) == 0 || len(fk.ColumnNames) != len(fk.ReferencedColumns) {
				continue
			}
			if _, ok := schema.Table(fk.ReferencedTable); !ok {
				slog.Default().Warn("skipping relationship to unknown table",
					slog.String("table", table.Name),
					slog.String("constraint", fk.ConstraintName),
					slog.String("remote_table", fk.ReferencedTable),
				)
				continue
			}
			name := namer.RegisterRelation(table.Name, namer.ManyToOneName(fk.ColumnNames[0]), fk.ConstraintName, true)
			table.Relationships = append(table.Relationships, Relationship{
				Name:           name,
				IsManyToOne:    true,
				LocalColumns:   append([]string(nil), fk.ColumnNames...),
				RemoteTable:    fk.ReferencedTable,
				RemoteColumns:  append([]string(nil), fk.ReferencedColumns...),
				ConstraintName: fk.ConstraintName,
			})
		}
	}

	// Second pass: one-to-many relationships (reverse direction).
	// When single FK: use pluralized table name (e.g., "comments")
	// When multiple FKs or a self reference: prefix with FK name (e.g., "author_posts")
	warnedComposite := make(map[string]struct{})
	for i := range schema.Tables {
		table := &schema.Tables[i]
		for j := range schema.Tables {
			otherTable := &schema.Tables[j]
			for _, fk := range ForeignKeyConstraints(*otherTable) {
				if fk.ReferencedTable != table.Name {
					continue
				}
				if len(fk.ColumnNames) != 1 || len(fk.ReferencedColumns) != 1 {
					key := otherTable.Name + "|" + fk.ConstraintName
					if _, seen := warnedComposite[key]; !seen {
						warnedComposite[key] = struct{}{}
						slog.Default().Warn("skipping composite one-to-many relationship",
							slog.String("table", otherTable.Name),
							slog.String("constraint", fk.ConstraintName),
							slog.String("local_columns", strings.Join(fk.ColumnNames, ",")),
							slog.String("remote_table", table.Name),
						)
					}
					continue
				}
				isOnlyFK := fkCount[otherTable.Name][table.Name] == 1 && otherTable.Name != table.Name
				name := namer.RegisterRelation(table.Name,
					namer.OneToManyName(otherTable.Name, fk.ColumnNames[0], isOnlyFK),
					otherTable.Name+"."+fk.ConstraintName, false)
				table.Relationships = append(table.Relationships, Relationship{
					Name:           name,
					IsOneToMany:    true,
					LocalColumns:   append([]string(nil), fk.ReferencedColumns...),
					RemoteTable:    otherTable.Name,
					RemoteColumns:  append([]string(nil), fk.ColumnNames...),
					ConstraintName: fk.ConstraintName,
				})
			}
		}
	}
}
