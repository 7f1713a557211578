package database

import (
	"sort"
	"strings"
)

// ProviderIDPath returns the json_extract path for one provider's id inside
// a metadata column, e.g. `$.provider_ids."spotify"`. The provider name is
// quoted so names with dots don't split the path; embedded quotes are
// stripped since they cannot appear in a provider name.
func ProviderIDPath(provider string) string {
	provider = strings.ReplaceAll(provider, `"`, "")
	return `$.provider_ids."` + provider + `"`
}

// SortedKeys returns the map's keys in sorted order. Provider-id maps are
// iterated in this order so resolution is deterministic.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
