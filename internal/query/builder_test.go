package query

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"lookupsql/internal/dialect"
	"lookupsql/internal/lookup"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relation struct {
	table  string
	local  string
	remote string
}

// shopRelations resolves test -> products -> categories by relation name,
// registering a LEFT JOIN aliased by table name for each hop.
func shopRelations() RelationResolver {
	graph := map[string]map[string]relation{
		"test":     {"products": {table: "products", local: "product_id", remote: "id"}},
		"products": {"categories": {table: "categories", local: "category_id", remote: "id"}},
	}
	return RelationResolverFunc(func(j JoinRegistrar, alias string, path []string) (string, bool, error) {
		current, ref := j.Table(), alias
		for i, segment := range path {
			rel, ok := graph[current][segment]
			if !ok {
				if i == 0 {
					return "", false, nil
				}
				return ref + "." + strings.Join(path[i:], "."), true, nil
			}
			ref = j.Join(LeftJoin, rel.table, rel.table, []OnPair{{Left: ref + "." + rel.local, Right: rel.table + "." + rel.remote}})
			current = rel.table
		}
		return "", false, nil
	})
}

var quoteStripper = strings.NewReplacer("`", "", `"`, "", "'", "")

func stripQuotes(sql string) string {
	return quoteStripper.Replace(sql)
}

func mustSQL(t *testing.T, b *Builder) string {
	t.Helper()
	sql, err := b.ToSQL()
	require.NoError(t, err)
	return sql
}

func TestToSQL_JoinsFromLookupPath(t *testing.T) {
	b := New(dialect.NewMySQL(), WithRelationResolver(shopRelations())).
		From("test").
		As("t").
		Where(Q{"products__categories__name__in": []string{"foo", "bar"}})

	assert.Equal(t,
		"SELECT * FROM test AS t "+
			"LEFT JOIN products AS products ON t.product_id=products.id "+
			"LEFT JOIN categories AS categories ON products.category_id=categories.id "+
			"WHERE (categories.name IN (foo, bar))",
		stripQuotes(mustSQL(t, b)))
}

func TestToSQL_JoinIdempotence(t *testing.T) {
	b := New(dialect.NewMySQL(), WithRelationResolver(shopRelations())).
		From("test").
		As("t").
		Where(Q{
			"products__categories__name": "foo",
			"products__price__gt":        5,
		}).
		OrderBy("-products__name")

	sql := mustSQL(t, b)

	require.Len(t, b.Joins(), 2)
	assert.Equal(t, "products", b.Joins()[0].Table)
	assert.Equal(t, "categories", b.Joins()[1].Table)
	assert.Equal(t, 1, strings.Count(sql, "JOIN `products`"))
	assert.Equal(t, 1, strings.Count(sql, "JOIN `categories`"))
	assert.Contains(t, sql, "ORDER BY `products`.`name` DESC")

	// rendering again must not duplicate joins
	assert.Equal(t, sql, mustSQL(t, b))
}

func TestJoin_ReturnsExistingAlias(t *testing.T) {
	b := New(dialect.NewMySQL()).From("orders")

	first := b.Join(InnerJoin, "users", "u", []OnPair{{Left: "orders.user_id", Right: "u.id"}})
	second := b.Join(LeftJoin, "users", "other", []OnPair{{Left: "orders.owner_id", Right: "other.id"}})

	assert.Equal(t, "u", first)
	assert.Equal(t, "u", second)
	require.Len(t, b.Joins(), 1)
	assert.Equal(t, InnerJoin, b.Joins()[0].Kind)
	assert.Equal(t,
		"SELECT * FROM `orders` INNER JOIN `users` AS `u` ON `orders`.`user_id`=`u`.`id`",
		mustSQL(t, b))
}

func TestWhere_Parenthesization(t *testing.T) {
	b := New(dialect.NewMySQL()).From("t").
		Where(Raw("a")).
		Where(Raw("b")).
		OrWhere(Raw("c"))

	assert.Equal(t, "SELECT * FROM `t` WHERE (((a)) AND ((b))) OR ((c))", mustSQL(t, b))
}

func TestWhere_ExplicitAnd(t *testing.T) {
	b := New(dialect.NewMySQL()).From("t").Where(And{Raw("a"), Raw("b")})
	assert.Equal(t, "SELECT * FROM `t` WHERE ((a) AND (b))", mustSQL(t, b))

	got, err := b.renderCondition(And{Raw("a"), Raw("b")})
	require.NoError(t, err)
	assert.Equal(t, "(a) AND (b)", got)

	got, err = b.renderCondition(Or{And{Raw("a"), Raw("b")}, Raw("c")})
	require.NoError(t, err)
	assert.Equal(t, "((a) AND (b)) OR (c)", got)
}

func TestWhere_Fold(t *testing.T) {
	tests := []struct {
		name     string
		ands     []Condition
		ors      []Condition
		expected string
	}{
		{"single and", []Condition{Raw("a")}, nil, "(a)"},
		{"only or", nil, []Condition{Raw("c")}, "(c)"},
		{"two ors", nil, []Condition{Raw("c"), Raw("d")}, "((c)) OR ((d))"},
		{"and then or", []Condition{Raw("a")}, []Condition{Raw("c")}, "((a)) OR ((c))"},
		{"three ands", []Condition{Raw("a"), Raw("b"), Raw("x")}, nil, "(((a)) AND ((b))) AND ((x))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(dialect.NewMySQL())
			got, err := b.renderCondition(foldWhere(tt.ands, tt.ors))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestWhere_LeafRendering(t *testing.T) {
	b := New(dialect.NewMySQL()).From("users").As("u").
		Where(Leaf{{Key: "status", Value: "active"}, {Key: "age__gte", Value: 18}}).
		Where(Or{L("role", "admin"), L("role", "owner")})

	assert.Equal(t,
		"SELECT * FROM `users` AS `u` WHERE "+
			"((`u`.`status` = 'active' AND `u`.`age` >= 18)) AND "+
			"(((`u`.`role` = 'admin') OR (`u`.`role` = 'owner')))",
		mustSQL(t, b))
}

func TestWhere_QSortsKeys(t *testing.T) {
	b := New(dialect.NewSQLite()).From("users").
		Where(Q{"b": 2, "a": 1})

	assert.Equal(t, `SELECT * FROM "users" WHERE ("a" = 1 AND "b" = 2)`, mustSQL(t, b))
}

func TestWhere_LiteralPathWithoutResolver(t *testing.T) {
	b := New(dialect.NewMySQL()).From("test").As("t").
		Where(Q{"products__name": "x"})

	assert.Equal(t, "SELECT * FROM `test` AS `t` WHERE (`products`.`name` = 'x')", mustSQL(t, b))
	assert.Empty(t, b.Joins())
}

func TestExclude(t *testing.T) {
	b := New(dialect.NewPostgres()).From("users").
		Where(L("active", true)).
		Exclude(L("role__in", []string{"bot", "system"}))

	assert.Equal(t,
		`SELECT * FROM "users" WHERE (("active" = TRUE)) AND ((NOT ("role" IN ('bot', 'system'))))`,
		mustSQL(t, b))
}

func TestSubConditionAndSubSelect(t *testing.T) {
	my := dialect.NewMySQL()
	inner := New(my).Select("user_id").From("orders").Where(L("total__gt", 100))

	b := New(my).From("users").
		Where(L("id__in", inner)).
		OrWhere(Sub{Query: New(my).Select("COUNT(*)").From("bans")})

	assert.Equal(t,
		"SELECT * FROM `users` WHERE ((`id` IN (SELECT `user_id` FROM `orders` WHERE (`total` > 100)))) OR "+
			"(((SELECT COUNT(*) FROM `bans`)))",
		mustSQL(t, b))
}

func TestSelectList(t *testing.T) {
	my := dialect.NewMySQL()
	sub := New(my).Select("COUNT(*)").From("orders")

	b := New(my).From("users").As("u").
		Select("id", "*", "MAX(age)", "t2.name").
		SelectAs("email", "mail").
		SelectSub(sub, "order_count").
		Distinct()

	assert.Equal(t,
		"SELECT DISTINCT `u`.`id`, *, MAX(age), `t2`.`name`, `u`.`email` AS `mail`, "+
			"(SELECT COUNT(*) FROM `orders`) AS `order_count` FROM `users` AS `u`",
		mustSQL(t, b))
}

func TestSelectList_KeywordLikeColumnNames(t *testing.T) {
	my := dialect.NewMySQL()

	b := New(my).From("t").As("x").Select("SELECTED_AT", "is_SELECT", "selection")
	assert.Equal(t,
		"SELECT `x`.`SELECTED_AT`, `x`.`is_SELECT`, `x`.`selection` FROM `t` AS `x`",
		mustSQL(t, b))

	b = New(my).From("t").As("x").Select("select 1", "(select 1)")
	assert.Equal(t, "SELECT select 1, (select 1) FROM `t` AS `x`", mustSQL(t, b))
}

func TestCount(t *testing.T) {
	my := dialect.NewMySQL()
	assert.Equal(t, "SELECT COUNT(*) FROM `users`", mustSQL(t, New(my).From("users").Count("")))
	assert.Equal(t, "SELECT COUNT(`u`.`id`) FROM `users` AS `u`", mustSQL(t, New(my).From("users").As("u").Count("id")))
}

func TestGroupHavingOrderLimit(t *testing.T) {
	b := New(dialect.NewMySQL()).From("orders").
		Select("user_id", "SUM(total)").
		GroupBy("user_id").
		Having(Raw("SUM(total) > 100")).
		OrderBy("-user_id", "created_at", "?").
		Limit(10).
		Offset(20)

	assert.Equal(t,
		"SELECT `user_id`, SUM(total) FROM `orders` GROUP BY `user_id` HAVING (SUM(total) > 100) "+
			"ORDER BY `user_id` DESC, `created_at` ASC, RAND() LIMIT 10 OFFSET 20",
		mustSQL(t, b))
}

func TestOrderBy_SkipsEmptyTerms(t *testing.T) {
	b := New(dialect.NewMySQL()).From("t").OrderBy("-", " ", "- ", "-id")
	assert.Equal(t, "SELECT * FROM `t` ORDER BY `id` DESC", mustSQL(t, b))

	b = New(dialect.NewMySQL()).From("t").OrderBy("-")
	assert.Equal(t, "SELECT * FROM `t`", mustSQL(t, b))
}

func TestOffsetWithoutLimit(t *testing.T) {
	tests := []struct {
		adapter  dialect.Adapter
		expected string
	}{
		{dialect.NewMySQL(), "SELECT * FROM `t` LIMIT 18446744073709551615 OFFSET 5"},
		{dialect.NewPostgres(), `SELECT * FROM "t" OFFSET 5`},
		{dialect.NewSQLite(), `SELECT * FROM "t" LIMIT -1 OFFSET 5`},
	}
	for _, tt := range tests {
		t.Run(tt.adapter.Name(), func(t *testing.T) {
			assert.Equal(t, tt.expected, mustSQL(t, New(tt.adapter).From("t").Offset(5)))
		})
	}
}

func TestPaginate(t *testing.T) {
	b := New(dialect.NewPostgres()).From("t").Paginate(3, 25)
	assert.Equal(t, `SELECT * FROM "t" LIMIT 25 OFFSET 50`, mustSQL(t, b))
}

func TestRandomOrder(t *testing.T) {
	assert.Equal(t, `SELECT * FROM "t" ORDER BY RANDOM(), "id" ASC`,
		mustSQL(t, New(dialect.NewSQLite()).From("t").OrderBy("?", "id")))
	assert.Equal(t, "SELECT * FROM `t` ORDER BY RAND()", mustSQL(t, New(dialect.NewMySQL()).From("t").OrderBy("?")))
}

func TestUnion_OrderAfterUnion(t *testing.T) {
	my := dialect.NewMySQL()
	archived := New(my).Select("id", "name").From("archived_users")

	b := New(my).Select("id", "name").From("users").
		OrderBy("-name").
		Union(archived, false).
		Union(New(my).Select("id", "name").From("guests"), true)

	sql := mustSQL(t, b)
	assert.Equal(t,
		"SELECT `id`, `name` FROM `users` "+
			"UNION SELECT `id`, `name` FROM `archived_users` "+
			"UNION ALL SELECT `id`, `name` FROM `guests` "+
			"ORDER BY `name` DESC",
		sql)
	assert.Equal(t, 1, strings.Count(sql, "ORDER BY"))
	assert.Greater(t, strings.Index(sql, "ORDER BY"), strings.LastIndex(sql, "UNION"))
}

func TestUpdate(t *testing.T) {
	b := New(dialect.NewMySQL()).From("users").As("u").
		Update(map[string]any{"name": "bob", "active": false}).
		Where(L("id", 7))

	assert.Equal(t, "UPDATE `users` SET `active` = 0, `name` = 'bob' WHERE (`id` = 7)", mustSQL(t, b))
	assert.Equal(t, ModeUpdate, b.Mode())
}

func TestUpdate_Errors(t *testing.T) {
	_, err := New(dialect.NewMySQL()).From("users").SetMode(ModeUpdate).ToSQL()
	assert.Error(t, err)

	_, err = New(dialect.NewMySQL()).Set("a", 1).ToSQL()
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	b := New(dialect.NewPostgres()).From("sessions").As("s").
		Delete().
		Where(L("expires_at__lt", dialect.Expression("NOW()")))

	assert.Equal(t, `DELETE FROM "sessions" WHERE ("expires_at" < NOW())`, mustSQL(t, b))
}

func TestInsert(t *testing.T) {
	b := New(dialect.NewSQLite()).From("users").
		Insert([]string{"name", "age"}, []any{"ann", 31}, []any{"it's", nil})

	assert.Equal(t, `INSERT INTO "users" ("name", "age") VALUES ('ann', 31), ('it''s', NULL)`, mustSQL(t, b))

	_, err := New(dialect.NewSQLite()).From("users").Insert([]string{"name"}, []any{"a", "b"}).ToSQL()
	assert.Error(t, err)
}

func TestUnknownStatementMode(t *testing.T) {
	_, err := New(dialect.NewMySQL()).From("t").SetMode("MERGE").ToSQL()
	assert.ErrorIs(t, err, ErrUnknownStatementMode)

	_, err = ParseMode("upsert")
	assert.ErrorIs(t, err, ErrUnknownStatementMode)

	m, err := ParseMode("delete")
	require.NoError(t, err)
	assert.Equal(t, ModeDelete, m)
}

func TestParseJoinKind(t *testing.T) {
	k, err := ParseJoinKind("")
	require.NoError(t, err)
	assert.Equal(t, LeftJoin, k)

	k, err = ParseJoinKind(" inner ")
	require.NoError(t, err)
	assert.Equal(t, InnerJoin, k)

	_, err = ParseJoinKind("CROSS")
	assert.Error(t, err)
}

func TestLookupErrorsPropagate(t *testing.T) {
	_, err := New(dialect.NewMySQL()).From("t").Where(Q{"name____in": 1}).ToSQL()
	assert.ErrorIs(t, err, lookup.ErrMalformedLookupKey)

	b := New(dialect.NewMySQL(), WithLookups(lookup.NewEmptyRegistry())).From("t").Where(L("name", 1))
	_, err = b.ToSQL()
	assert.ErrorIs(t, err, lookup.ErrUnknownLookupOperator)
}

func TestMakeAliasKey(t *testing.T) {
	b := New(dialect.NewMySQL())

	assert.Equal(t, "users_0", b.MakeAliasKey("users", false))
	assert.Equal(t, "users_0", b.MakeAliasKey("users", false))
	assert.Equal(t, "users_1", b.MakeAliasKey("users", true))
	assert.Equal(t, "orders_2", b.MakeAliasKey("orders", true))

	b.Reset()
	assert.Equal(t, "users_0", b.MakeAliasKey("users", false))
}

func TestReset(t *testing.T) {
	b := New(dialect.NewMySQL(), WithRelationResolver(shopRelations())).
		From("test").As("t").
		Where(Q{"products__name": "x"}).
		OrderBy("id").
		Limit(1)
	mustSQL(t, b)
	require.NotEmpty(t, b.Joins())

	b.Reset()
	assert.Empty(t, b.Joins())
	assert.Equal(t, ModeSelect, b.Mode())
	assert.Equal(t, "SELECT * FROM `other`", mustSQL(t, b.From("other")))
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	mustSQL(t, New(dialect.NewMySQL(), WithLogger(logger)).From("t"))

	assert.Contains(t, buf.String(), "rendered statement")
	assert.Contains(t, buf.String(), "dialect=mysql")
}

func TestString(t *testing.T) {
	assert.Equal(t, "SELECT * FROM `t`", New(dialect.NewMySQL()).From("t").String())
	assert.Contains(t, New(dialect.NewMySQL()).SetMode("BAD").String(), "unknown statement mode")
}
