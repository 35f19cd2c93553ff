package rules

import "strings"

// deepMerge recursively merges override onto base and returns a new map.
// Nested maps merge key-by-key; scalar and list values from override replace
// the base value. Neither input is mutated.
func deepMerge(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for key, value := range base {
		merged[key] = cloneValue(value)
	}
	for key, value := range override {
		existing, ok := merged[key]
		existingMap, existingIsMap := existing.(map[string]any)
		valueMap, valueIsMap := value.(map[string]any)
		if ok && existingIsMap && valueIsMap {
			merged[key] = deepMerge(existingMap, valueMap)
			continue
		}
		merged[key] = cloneValue(value)
	}
	return merged
}

// cloneValue copies nested maps and slices so merged trees never alias
// their sources.
func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = cloneValue(v)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = cloneValue(v)
		}
		return out
	default:
		return value
	}
}

// mergeUnique unions string lists preserving first-seen order and dropping
// empty or duplicate entries.
func mergeUnique(lists ...[]string) []string {
	var merged []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, value := range list {
			trimmed := strings.TrimSpace(value)
			if trimmed == "" || seen[trimmed] {
				continue
			}
			seen[trimmed] = true
			merged = append(merged, trimmed)
		}
	}
	return merged
}
