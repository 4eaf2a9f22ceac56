package naming

import (
	"log/slog"
	"strings"
)

// Namer turns catalog names into relation names usable as lookup path
// segments. Names are lower snake_case with no leading, trailing or doubled
// underscores, so they never contain the "__" lookup separator.
type Namer struct {
	config   Config
	logger   *slog.Logger
	resolver *CollisionResolver
	reserved reservedWords
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config:   cfg,
		logger:   logger,
		resolver: NewCollisionResolver(logger),
		reserved: newReservedWords(cfg.Reserved),
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// Reset clears registered names so the namer can be reused for another schema.
func (n *Namer) Reset() {
	n.resolver = NewCollisionResolver(n.logger)
}

// Normalize lower-cases name and collapses runs of underscores.
// Example: "__Created__By_" -> "created_by"
func Normalize(name string) string {
	parts := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(name)), func(r rune) bool {
		return r == '_' || r == ' ' || r == '-'
	})
	return strings.Join(parts, "_")
}

// ManyToOneName names a many-to-one relation after its FK column with the
// common suffixes stripped.
// Example: "author_id" -> "author", "created_by_user_id" -> "created_by_user"
func (n *Namer) ManyToOneName(fkColumn string) string {
	name := Normalize(fkColumn)
	for _, suffix := range []string{"_id", "_fk"} {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	return name
}

// OneToManyName names the reverse side of a foreign key. With a single FK
// from sourceTable the pluralized table name is used; otherwise it is
// prefixed with the FK name for disambiguation.
// Example: isOnlyFK=true: "comment" -> "comments"
// Example: isOnlyFK=false, fkColumn="author_id": "posts" -> "author_posts"
func (n *Namer) OneToManyName(sourceTable, fkColumn string, isOnlyFK bool) string {
	plural := n.Pluralize(Normalize(sourceTable))
	if isOnlyFK {
		return plural
	}
	return n.ManyToOneName(fkColumn) + "_" + plural
}

// RegisterColumn reserves a column name within table. Columns always win:
// relations registered later that collide with it get a suffix.
func (n *Namer) RegisterColumn(table, column string) string {
	return n.resolver.Register(table, column, "column:"+column)
}

// RegisterRelation registers a relation name within table and returns the
// resolved name. A clash with a column appends "_ref" for many-to-one and
// "_rel" for one-to-many; reserved words get "_rel"; any remaining clash
// gets a numeric suffix.
func (n *Namer) RegisterRelation(table, name, source string, isManyToOne bool) string {
	name = n.validateAndSuffix(Normalize(name))
	if existing, ok := n.resolver.Source(table, name); ok && strings.HasPrefix(existing, "column:") {
		if isManyToOne {
			name += "_ref"
		} else {
			name += "_rel"
		}
	}
	return n.resolver.Register(table, name, "relation:"+source)
}

func (n *Namer) validateAndSuffix(name string) string {
	if name == "" || n.reserved.contains(name) {
		safeName := name + reservedSuffix
		if name == "" {
			safeName = strings.TrimPrefix(reservedSuffix, "_")
		}
		n.logger.Warn("relation name conflicts with reserved word, auto-suffixed",
			slog.String("original", name),
			slog.String("renamed", safeName),
		)
		return safeName
	}
	return name
}
