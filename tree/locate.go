package tree

// ReplaceSequence stores items in place of the sequence target inside the
// container that holds it, searching every container reachable from root.
// It returns false when no container holds target, which is the case for
// sequences assembled outside the tree such as filter results.
func ReplaceSequence(root map[string]any, target []any, items []any) bool {
	if _, ok := ID(target); !ok {
		return false
	}
	return replaceIn(root, target, items)
}

func replaceIn(container any, target []any, items []any) bool {
	switch typed := container.(type) {
	case map[string]any:
		for key, child := range typed {
			if seq, ok := child.([]any); ok && Same(seq, target) {
				typed[key] = items
				return true
			}
		}
		for _, child := range typed {
			if replaceIn(child, target, items) {
				return true
			}
		}
	case []any:
		for i, child := range typed {
			if seq, ok := child.([]any); ok && Same(seq, target) {
				typed[i] = items
				return true
			}
		}
		for _, child := range typed {
			if replaceIn(child, target, items) {
				return true
			}
		}
	}
	return false
}

// Assign overwrites the fields of dst with deep copies of the values in
// fields. Fields absent from fields are left untouched.
func Assign(dst map[string]any, fields map[string]any) {
	for key, value := range fields {
		dst[key] = Clone(value)
	}
}

// Lookup follows a path of object keys (string) and sequence indexes (int)
// starting at root. It returns nil when a step does not resolve.
func Lookup(root any, path ...any) any {
	current := root
	for _, step := range path {
		switch node := current.(type) {
		case map[string]any:
			key, ok := step.(string)
			if !ok {
				return nil
			}
			current = node[key]
		case []any:
			index, ok := toIndex(step)
			if !ok || index < 0 || index >= len(node) {
				return nil
			}
			current = node[index]
		default:
			return nil
		}
	}
	return current
}

func toIndex(step any) (int, bool) {
	switch value := step.(type) {
	case int:
		return value, true
	case int64:
		return int(value), true
	case int32:
		return int(value), true
	case uint:
		return int(value), true
	case float64:
		if value != float64(int(value)) {
			return 0, false
		}
		return int(value), true
	default:
		return 0, false
	}
}
