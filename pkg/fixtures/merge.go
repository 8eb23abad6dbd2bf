package fixtures

// Merge layers fixture sets ordered from strongest to weakest. Overrides
// present in several sets are merged key by key when both sides are
// mappings; otherwise the stronger value wins. Missing lists are unioned in
// order of first appearance. A reference overridden by a stronger set is not
// reported missing because of a weaker one, and vice versa.
func Merge(sets ...*Set) *Set {
	merged := &Set{}
	claimed := map[string]bool{}
	for _, set := range sets {
		if set == nil {
			continue
		}
		for reference, value := range set.Overrides {
			if merged.Overrides == nil {
				merged.Overrides = make(map[string]any)
			}
			if existing, ok := merged.Overrides[reference]; ok {
				merged.Overrides[reference] = mergeValue(existing, value)
				continue
			}
			if claimed[reference] {
				continue
			}
			merged.Overrides[reference] = cloneValue(value)
			claimed[reference] = true
		}
		for _, reference := range set.Missing {
			if claimed[reference] {
				continue
			}
			merged.Missing = append(merged.Missing, reference)
			claimed[reference] = true
		}
	}
	return merged
}

func mergeValue(strong, weak any) any {
	strongMap, ok := strong.(map[string]any)
	if !ok {
		return strong
	}
	weakMap, ok := weak.(map[string]any)
	if !ok {
		return strong
	}
	result := make(map[string]any, len(strongMap)+len(weakMap))
	for key, value := range weakMap {
		result[key] = cloneValue(value)
	}
	for key, value := range strongMap {
		if existing, ok := result[key]; ok {
			result[key] = mergeValue(value, existing)
			continue
		}
		result[key] = value
	}
	return result
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		clone := make(map[string]any, len(val))
		for key, item := range val {
			clone[key] = cloneValue(item)
		}
		return clone
	case []any:
		clone := make([]any, len(val))
		for i, item := range val {
			clone[i] = cloneValue(item)
		}
		return clone
	default:
		return v
	}
}
