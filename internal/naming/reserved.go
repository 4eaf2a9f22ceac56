package naming

import "strings"

const reservedSuffix = "_rel"

type reservedWords map[string]struct{}

func newReservedWords(words []string) reservedWords {
	set := make(reservedWords, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

func (r reservedWords) contains(name string) bool {
	_, ok := r[strings.ToLower(name)]
	return ok
}
