package tree

import (
	"fmt"
	"sort"
	"strings"
)

// Field describes a leaf path of a tree and the type found there.
type Field struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// Describe lists the leaf paths of v in key order. Sequences are described
// by their first element and not descended into; empty objects and
// sequences are reported as leaves.
func Describe(v any) []Field {
	fields := describe(v, "")
	if fields == nil {
		return []Field{}
	}
	return fields
}

func describe(value any, prefix string) []Field {
	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			if prefix == "" {
				return nil
			}
			return []Field{{Path: prefix, Type: "object"}}
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var fields []Field
		for _, key := range keys {
			fields = append(fields, describe(typed[key], joinPath(prefix, key))...)
		}
		return fields
	case []any:
		element := "any"
		if len(typed) > 0 {
			element = typeName(typed[0])
		}
		return []Field{{Path: prefix, Type: "[]" + element}}
	default:
		if prefix == "" {
			return nil
		}
		return []Field{{Path: prefix, Type: typeName(typed)}}
	}
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "sequence"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return strings.Join([]string{prefix, segment}, ".")
}
