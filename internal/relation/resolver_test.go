package relation

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lookupsql/internal/dialect"
	"lookupsql/internal/introspection"
	"lookupsql/internal/lookup"
	"lookupsql/internal/naming"
	"lookupsql/internal/query"
)

var quoteStripper = strings.NewReplacer("`", "", `"`, "", "'", "")

func shopSchema() *introspection.Schema {
	schema := &introspection.Schema{Dialect: "mysql", Tables: []introspection.Table{
		{Name: "categories", Columns: []introspection.Column{{Name: "id", IsPrimaryKey: true}, {Name: "name"}}},
		{
			Name:    "products",
			Columns: []introspection.Column{{Name: "id", IsPrimaryKey: true}, {Name: "name"}, {Name: "price"}, {Name: "category_id"}},
			ForeignKeys: []introspection.ForeignKey{
				{ConstraintName: "fk_category", ColumnName: "category_id", ReferencedTable: "categories", ReferencedColumn: "id", OrdinalPosition: 1},
			},
		},
		{
			Name:    "test",
			Columns: []introspection.Column{{Name: "id", IsPrimaryKey: true}, {Name: "product_id"}},
			ForeignKeys: []introspection.ForeignKey{
				{ConstraintName: "fk_product", ColumnName: "product_id", ReferencedTable: "products", ReferencedColumn: "id", OrdinalPosition: 1},
			},
		},
		{
			Name:    "employees",
			Columns: []introspection.Column{{Name: "id", IsPrimaryKey: true}, {Name: "name"}, {Name: "manager_id"}},
			ForeignKeys: []introspection.ForeignKey{
				{ConstraintName: "fk_manager", ColumnName: "manager_id", ReferencedTable: "employees", ReferencedColumn: "id", OrdinalPosition: 1},
			},
		},
	}}
	introspection.BuildRelationships(context.Background(), schema, naming.Default())
	return schema
}

func render(t *testing.T, b *query.Builder) string {
	t.Helper()
	sql, err := b.ToSQL()
	require.NoError(t, err)
	return quoteStripper.Replace(sql)
}

func TestResolve_JoinPathFromSchema(t *testing.T) {
	b := query.New(dialect.NewMySQL(), query.WithRelationResolver(New(shopSchema()))).
		From("test").
		As("t").
		Where(query.Q{"products__categories__name__in": []string{"foo", "bar"}})

	assert.Equal(t,
		"SELECT * FROM test AS t "+
			"LEFT JOIN products AS products ON t.product_id=products.id "+
			"LEFT JOIN categories AS categories ON products.category_id=categories.id "+
			"WHERE (categories.name IN (foo, bar))",
		render(t, b))
}

func TestResolve_RelationNameAndTableNameShareJoin(t *testing.T) {
	b := query.New(dialect.NewMySQL(), query.WithRelationResolver(New(shopSchema()))).
		From("test").
		Where(query.Leaf{
			{Key: "product__price__gt", Value: 5},
			{Key: "products__name", Value: "widget"},
		})

	sql := render(t, b)
	assert.Equal(t, 1, strings.Count(sql, "LEFT JOIN products"))
	assert.Contains(t, sql, "products.price > 5 AND products.name = widget")
}

func TestResolve_PathEndingOnManyToOneUsesForeignKey(t *testing.T) {
	b := query.New(dialect.NewMySQL(), query.WithRelationResolver(New(shopSchema()))).
		From("test").
		Where(query.L("product", 7))

	assert.Equal(t, "SELECT * FROM test WHERE (test.product_id = 7)", render(t, b))
}

func TestResolve_PathEndingOnOneToManyUsesRemoteKey(t *testing.T) {
	schema := shopSchema()
	categories, _ := schema.Table("categories")
	require.Len(t, categories.Relationships, 1)
	name := categories.Relationships[0].Name

	b := query.New(dialect.NewPostgres(), query.WithRelationResolver(New(schema))).
		From("categories").
		Where(query.L(name+"__in", []int{1, 2}))

	assert.Equal(t,
		"SELECT * FROM categories LEFT JOIN products AS products ON categories.id=products.category_id "+
			"WHERE (products.id IN (1, 2))",
		render(t, b))
}

func TestResolve_PlainColumnLeftToBuilder(t *testing.T) {
	b := query.New(dialect.NewMySQL(), query.WithRelationResolver(New(shopSchema()))).
		From("test").
		As("t").
		Where(query.L("id", 1))

	assert.Equal(t, "SELECT * FROM test AS t WHERE (t.id = 1)", render(t, b))
	assert.Empty(t, b.Joins())
}

func TestResolve_UnknownFirstSegmentIsLiteral(t *testing.T) {
	b := query.New(dialect.NewMySQL(), query.WithRelationResolver(New(shopSchema()))).
		From("test").
		Where(query.L("meta__color", "red"))

	assert.Equal(t, "SELECT * FROM test WHERE (meta.color = red)", render(t, b))
}

func TestResolve_SelfReferenceGetsNumberedAlias(t *testing.T) {
	b := query.New(dialect.NewMySQL(), query.WithRelationResolver(New(shopSchema()))).
		From("employees").
		Where(query.L("manager__name", "ann"))

	sql := render(t, b)
	assert.Equal(t,
		"SELECT * FROM employees LEFT JOIN employees AS employees_1 ON employees.manager_id=employees_1.id "+
			"WHERE (employees_1.name = ann)",
		sql)
}

func TestResolve_ManualEdge(t *testing.T) {
	r := New(nil, WithEdge("orders", Edge{
		Name:        "lines",
		RemoteTable: "order_lines",
		On:          []Pair{{Local: "tenant_id", Remote: "tenant_id"}, {Local: "id", Remote: "order_id"}},
		Many:        true,
	}), WithJoinKind(query.InnerJoin))

	b := query.New(dialect.NewSQLite(), query.WithRelationResolver(r)).
		From("orders").
		Where(query.L("lines__sku", "A-1"))

	assert.Equal(t,
		"SELECT * FROM orders INNER JOIN order_lines AS order_lines "+
			"ON orders.tenant_id=order_lines.tenant_id AND orders.id=order_lines.order_id "+
			"WHERE (order_lines.sku = A-1)",
		render(t, b))
}

func TestResolve_EdgeWithoutColumns(t *testing.T) {
	r := New(nil, WithEdge("a", Edge{Name: "b", RemoteTable: "b"}))
	_, err := query.New(dialect.NewMySQL(), query.WithRelationResolver(r)).
		From("a").
		Where(query.L("b__x", 1)).
		ToSQL()
	assert.Error(t, err)
}

func TestResolve_LogsJoins(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	b := query.New(dialect.NewMySQL(), query.WithRelationResolver(New(shopSchema(), WithLogger(logger)))).
		From("test").
		Where(query.L("products__categories__name", "foo"))

	render(t, b)
	assert.Contains(t, buf.String(), "registered join")
	assert.Contains(t, buf.String(), "table=categories")
}

func TestNewNamer_ReservesOperators(t *testing.T) {
	namer := NewNamer(lookup.NewRegistry(), naming.DefaultConfig(), nil)

	assert.Equal(t, "in_rel", namer.RegisterRelation("test", "in", "fk_in", true))
	assert.Equal(t, "product", namer.RegisterRelation("test", "product", "fk_product", true))
}

func TestColumn_WalksRelations(t *testing.T) {
	r := New(shopSchema())

	tests := []struct {
		name  string
		table string
		path  []string
		want  string
		found bool
	}{
		{"plain column", "products", []string{"price"}, "price", true},
		{"through many-to-one", "test", []string{"product", "category", "name"}, "name", true},
		{"ending on many-to-one", "test", []string{"product"}, "product_id", true},
		{"ending on one-to-many", "categories", []string{"products"}, "id", true},
		{"unknown column", "products", []string{"colour"}, "", false},
		{"unknown relation", "products", []string{"vendor", "name"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := r.Column(tt.table, tt.path)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, c.Name)
		})
	}
}
