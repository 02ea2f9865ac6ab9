package tree

// Annotate returns a deep copy of v in which every object node accepted by
// marked carries key set to true. Sequences cannot hold extra keys, so only
// their elements are annotated.
func Annotate(v any, key string, marked func(any) bool) any {
	switch typed := v.(type) {
	case map[string]any:
		if typed == nil {
			return typed
		}
		out := make(map[string]any, len(typed)+1)
		for k, child := range typed {
			out[k] = Annotate(child, key, marked)
		}
		if marked != nil && marked(typed) {
			out[key] = true
		}
		return out
	case []any:
		if typed == nil {
			return typed
		}
		out := newSequence(len(typed))
		for i, child := range typed {
			out[i] = Annotate(child, key, marked)
		}
		return out
	default:
		return Clone(v)
	}
}
