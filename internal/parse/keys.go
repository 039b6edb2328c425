package parse

import "sort"

// sortedKeys gives deterministic row order for map-backed payload
// sections.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
