package introspection

// PrimaryKeyColumn returns the first primary key column for a table, if present.
// For tables with composite primary keys, use PrimaryKeyColumns instead.
func PrimaryKeyColumn(table Table) *Column {
	for i := range table.Columns {
		if table.Columns[i].IsPrimaryKey {
			return &table.Columns[i]
		}
	}
	return nil
}

// PrimaryKeyColumns returns all primary key columns for a table in column order.
func PrimaryKeyColumns(table Table) []Column {
	var cols []Column
	for _, col := range table.Columns {
		if col.IsPrimaryKey {
			cols = append(cols, col)
		}
	}
	return cols
}

// UniqueKeys returns every column set that identifies a row: the primary key
// first, then each unique index.
func UniqueKeys(table Table) [][]string {
	var keys [][]string
	if pk := PrimaryKeyColumns(table); len(pk) > 0 {
		names := make([]string, len(pk))
		for i, col := range pk {
			names[i] = col.Name
		}
		keys = append(keys, names)
	}
	for _, idx := range table.Indexes {
		if idx.Unique && len(idx.Columns) > 0 {
			keys = append(keys, append([]string(nil), idx.Columns...))
		}
	}
	return keys
}
