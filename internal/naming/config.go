// Package naming derives relation names from foreign keys: pluralization,
// collision detection against columns and other relations, and words that
// must not be used as relation names.
package naming

// Config holds naming customization options
type Config struct {
	// PluralOverrides maps singular -> custom plural
	// Example: {"person": "people", "status": "statuses"}
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`

	// SingularOverrides maps plural -> custom singular
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`

	// Reserved names are suffixed with "_rel" when a relation would take them,
	// e.g. lookup operator names.
	Reserved []string `mapstructure:"reserved"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		PluralOverrides:   make(map[string]string),
		SingularOverrides: make(map[string]string),
	}
}
