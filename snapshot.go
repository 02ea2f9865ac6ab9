package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-store/internal/hydrate"
	"github.com/goliatone/go-store/tree"
)

// Snapshot is a private copy of the state taken by Store.State, paired with
// the nodes that in-flight calls are about to update. Loading is reported
// out of band, the data itself carries no flag.
type Snapshot struct {
	root  map[string]any
	marks *tree.Marks
}

// Root returns the copied state. It belongs to the caller.
func (s Snapshot) Root() map[string]any {
	return s.root
}

// Select runs sel against the copy. The returned node can be passed to
// IsLoading.
func (s Snapshot) Select(sel Selector, args ...any) (any, error) {
	if sel == nil {
		return nil, nil
	}
	return sel.Select(s.root, args...)
}

// Lookup follows a path of object keys and sequence indexes from the root.
func (s Snapshot) Lookup(path ...any) any {
	return tree.Lookup(s.root, path...)
}

// IsLoading reports whether node, taken from this snapshot, is selected by
// an in-flight call. Scalars are never loading; ask about their container.
func (s Snapshot) IsLoading(node any) bool {
	return s.marks.Has(node)
}

// Loading reports whether any node of the snapshot is loading.
func (s Snapshot) Loading() bool {
	return s.marks.Len() > 0
}

// Annotated returns a copy of the state where every loading object carries
// LoadingKey set to true, for consumers that need the flag in the data.
func (s Snapshot) Annotated() map[string]any {
	annotated, _ := tree.Annotate(s.root, LoadingKey, s.marks.Has).(map[string]any)
	return annotated
}

// MarshalJSON encodes the plain data without loading flags.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s.root == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.root)
}

// Decode converts node into out, a pointer to a struct, slice or map. Field
// names follow json tags.
func (s Snapshot) Decode(node any, out any) error {
	return hydrate.Into(hydrate.Context{}, node, out)
}

// Decode converts the node found at path in snap into a T.
func Decode[T any](snap Snapshot, path ...any) (T, error) {
	return hydrate.NewDecoder[T]().Decode(hydrate.Context{Path: formatPath(path)}, snap.Lookup(path...))
}

func formatPath(path []any) string {
	if len(path) == 0 {
		return ""
	}
	var b strings.Builder
	for i, step := range path {
		if i > 0 {
			b.WriteByte('.')
		}
		fmt.Fprint(&b, step)
	}
	return b.String()
}
