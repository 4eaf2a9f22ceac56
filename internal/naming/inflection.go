package naming

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Pluralize inflects the last word of a snake_case name, so
// "order_person" becomes "order_people". Overrides are matched against the
// whole name first and then against the last word.
func (n *Namer) Pluralize(name string) string {
	return inflectLast(name, n.config.PluralOverrides, inflection.Plural)
}

// Singularize is the inverse of Pluralize.
func (n *Namer) Singularize(name string) string {
	return inflectLast(name, n.config.SingularOverrides, inflection.Singular)
}

func inflectLast(name string, overrides map[string]string, inflect func(string) string) string {
	if override, ok := overrides[name]; ok {
		return override
	}
	head, word := "", name
	if i := strings.LastIndexByte(name, '_'); i >= 0 && i < len(name)-1 {
		head, word = name[:i+1], name[i+1:]
	}
	if override, ok := overrides[word]; ok {
		return head + override
	}
	return head + inflect(word)
}
