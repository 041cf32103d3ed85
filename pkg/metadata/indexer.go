// ABOUTME: Derives searchable index terms from metadata values
// ABOUTME: Default terms are the lowercased value and key:value

package metadata

import "strings"

// Indexer turns one attribute into the terms stored in index rows
type Indexer interface {
	Terms(key, value string) []string
}

// DefaultIndexer indexes the value on its own and qualified by its key.
// Tags are indexed one term per tag.
type DefaultIndexer struct{}

// Terms implements Indexer
func (DefaultIndexer) Terms(key, value string) []string {
	key = strings.ToLower(key)

	var values []string
	if key == TagsKey {
		values = splitTags(value)
	} else {
		values = []string{value}
	}

	seen := make(map[string]struct{}, len(values)*2)
	terms := make([]string, 0, len(values)*2)
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		for _, term := range []string{v, key + ":" + v} {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			terms = append(terms, term)
		}
	}
	return terms
}

// matchTerm reports whether an indexed term satisfies a normalized query
func matchTerm(query, term string) bool {
	if prefix, ok := strings.CutSuffix(query, "*"); ok {
		return strings.HasPrefix(term, prefix)
	}
	return term == query
}
