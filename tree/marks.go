package tree

import "unsafe"

// Marks is a side table of flagged nodes keyed by node identity. The zero
// value is ready to use. Marks is not safe for concurrent mutation.
type Marks struct {
	set map[unsafe.Pointer]struct{}
}

// NewMarks returns an empty side table.
func NewMarks() *Marks {
	return &Marks{set: make(map[unsafe.Pointer]struct{})}
}

// Mark flags v and every object and sequence reachable from it. Scalars and
// nil are ignored, so marking the result of a selector that found nothing is
// a no-op. Marking the same node twice is harmless.
func (m *Marks) Mark(v any) {
	switch typed := v.(type) {
	case map[string]any:
		if !m.add(typed) {
			return
		}
		for _, child := range typed {
			m.Mark(child)
		}
	case []any:
		// Match sets built by filters have no place in the tree but their
		// elements do, so descend even when the sequence itself is known.
		m.add(typed)
		for _, child := range typed {
			m.Mark(child)
		}
	}
}

// Has reports whether v was marked.
func (m *Marks) Has(v any) bool {
	if m == nil || len(m.set) == 0 {
		return false
	}
	id, ok := ID(v)
	if !ok {
		return false
	}
	_, found := m.set[id]
	return found
}

// Len returns the number of marked nodes.
func (m *Marks) Len() int {
	if m == nil {
		return 0
	}
	return len(m.set)
}

func (m *Marks) add(v any) bool {
	id, ok := ID(v)
	if !ok {
		return false
	}
	if m.set == nil {
		m.set = make(map[unsafe.Pointer]struct{})
	}
	if _, exists := m.set[id]; exists {
		return false
	}
	m.set[id] = struct{}{}
	return true
}
