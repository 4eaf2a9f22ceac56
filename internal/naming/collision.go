package naming

import (
	"log/slog"
	"strconv"
	"strings"
)

// scope holds the names taken within one table, keyed case-insensitively
// since some catalogs fold identifier case.
type scope map[string]string // lower(name) -> source

// CollisionResolver hands out unique names per table. A clash is resolved
// by appending the lowest free numeric suffix starting at 2.
type CollisionResolver struct {
	scopes map[string]scope
	logger *slog.Logger
}

// NewCollisionResolver creates an empty resolver.
func NewCollisionResolver(logger *slog.Logger) *CollisionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollisionResolver{scopes: make(map[string]scope), logger: logger}
}

// Register claims name within table for source and returns the name
// actually granted.
func (c *CollisionResolver) Register(table, name, source string) string {
	s := c.scopes[table]
	if s == nil {
		s = make(scope)
		c.scopes[table] = s
	}
	if _, taken := s[strings.ToLower(name)]; !taken {
		s[strings.ToLower(name)] = source
		return name
	}

	granted := name
	for i := 2; ; i++ {
		granted = name + strconv.Itoa(i)
		if _, taken := s[strings.ToLower(granted)]; !taken {
			break
		}
	}
	c.logger.Warn("naming collision detected, applying suffix",
		slog.String("table", table),
		slog.String("name", name),
		slog.String("existing_source", s[strings.ToLower(name)]),
		slog.String("new_source", source),
		slog.String("granted", granted),
	)
	s[strings.ToLower(granted)] = source
	return granted
}

// Exists reports whether name is taken within table.
func (c *CollisionResolver) Exists(table, name string) bool {
	_, ok := c.Source(table, name)
	return ok
}

// Source returns what registered name within table.
func (c *CollisionResolver) Source(table, name string) (string, bool) {
	source, ok := c.scopes[table][strings.ToLower(name)]
	return source, ok
}
