package introspection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimaryKeyColumn(t *testing.T) {
	tests := []struct {
		name     string
		table    Table
		wantName string
	}{
		{
			name: "single primary key",
			table: Table{Name: "products", Columns: []Column{
				{Name: "id", DataType: "integer", IsPrimaryKey: true},
				{Name: "name", DataType: "varchar(255)"},
			}},
			wantName: "id",
		},
		{
			name: "composite primary key returns first",
			table: Table{Name: "order_lines", Columns: []Column{
				{Name: "order_id", DataType: "int", IsPrimaryKey: true},
				{Name: "line_no", DataType: "int", IsPrimaryKey: true},
			}},
			wantName: "order_id",
		},
		{
			name:  "no primary key",
			table: Table{Name: "audit_log", Columns: []Column{{Name: "message", DataType: "text"}}},
		},
		{
			name:  "no columns",
			table: Table{Name: "empty"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := PrimaryKeyColumn(tt.table)
			if tt.wantName == "" {
				assert.Nil(t, col)
				return
			}
			require.NotNil(t, col)
			assert.Equal(t, tt.wantName, col.Name)
		})
	}
}

func TestPrimaryKeyColumns_KeepsColumnOrder(t *testing.T) {
	table := Table{Name: "mixed", Columns: []Column{
		{Name: "pk1", IsPrimaryKey: true},
		{Name: "data1"},
		{Name: "pk2", IsPrimaryKey: true},
	}}

	cols := PrimaryKeyColumns(table)
	require.Len(t, cols, 2)
	assert.Equal(t, "pk1", cols[0].Name)
	assert.Equal(t, "pk2", cols[1].Name)
	assert.Empty(t, PrimaryKeyColumns(Table{Name: "logs", Columns: []Column{{Name: "msg"}}}))
}

func TestUniqueKeys(t *testing.T) {
	table := Table{
		Name: "products",
		Columns: []Column{
			{Name: "id", IsPrimaryKey: true},
			{Name: "sku"},
			{Name: "vendor_id"},
		},
		Indexes: []Index{
			{Name: "sku_unique", Unique: true, Columns: []string{"sku"}},
			{Name: "vendor_sku", Unique: true, Columns: []string{"vendor_id", "sku"}},
			{Name: "by_vendor", Columns: []string{"vendor_id"}},
		},
	}

	assert.Equal(t, [][]string{{"id"}, {"sku"}, {"vendor_id", "sku"}}, UniqueKeys(table))
	assert.Nil(t, UniqueKeys(Table{Name: "logs"}))
}
