package store

import (
	"fmt"

	"github.com/goliatone/go-store/tree"
)

// PatchKind identifies the operation a Patch performs.
type PatchKind int

const (
	// PatchKeep leaves the selected node untouched.
	PatchKeep PatchKind = iota
	// PatchMerge overwrites fields of an object node.
	PatchMerge
	// PatchReplace swaps the content of a sequence node.
	PatchReplace
	// PatchEach applies one patch per element of a sequence node.
	PatchEach
)

func (k PatchKind) String() string {
	switch k {
	case PatchKeep:
		return "keep"
	case PatchMerge:
		return "merge"
	case PatchReplace:
		return "replace"
	case PatchEach:
		return "each"
	default:
		return fmt.Sprintf("PatchKind(%d)", int(k))
	}
}

// Patch is the change a reducer asks the store to make to the node its
// selector returned. The zero value is Keep.
type Patch struct {
	kind   PatchKind
	fields map[string]any
	items  []any
	each   []Patch
}

// Keep returns a patch that changes nothing.
func Keep() Patch {
	return Patch{}
}

// Merge returns a patch that overwrites the given fields of an object node.
// Fields not named are left as they are. Values are copied into the state.
func Merge(fields map[string]any) Patch {
	return Patch{kind: PatchMerge, fields: fields}
}

// Replace returns a patch that replaces the whole content of a sequence node.
// The node is located in its parent container, so it must be part of the
// state rather than a sequence assembled by the selector.
func Replace(items []any) Patch {
	if items == nil {
		items = []any{}
	}
	return Patch{kind: PatchReplace, items: items}
}

// Each returns a patch applying patches positionally to the elements of a
// sequence node. Elements past the end of patches are left untouched.
func Each(patches ...Patch) Patch {
	return Patch{kind: PatchEach, each: patches}
}

// Kind reports the operation of p.
func (p Patch) Kind() PatchKind {
	return p.kind
}

// apply performs p on selected, a live node of root.
func (p Patch) apply(root map[string]any, selected any) error {
	switch p.kind {
	case PatchKeep:
		return nil
	case PatchMerge:
		if !tree.IsObject(selected) {
			return mismatch(p.kind, selected)
		}
		target := selected.(map[string]any)
		fields, err := tree.NormalizeObject(p.fields)
		if err != nil {
			return fmt.Errorf("store: merge fields: %w", err)
		}
		tree.Assign(target, fields)
		return nil
	case PatchReplace:
		if !tree.IsSequence(selected) {
			return mismatch(p.kind, selected)
		}
		target := selected.([]any)
		items, err := tree.Normalize(p.items)
		if err != nil {
			return fmt.Errorf("store: replace items: %w", err)
		}
		if !tree.ReplaceSequence(root, target, items.([]any)) {
			return fmt.Errorf("%w: sequence is not part of the state", ErrPatchMismatch)
		}
		return nil
	case PatchEach:
		if !tree.IsSequence(selected) {
			return mismatch(p.kind, selected)
		}
		target := selected.([]any)
		if len(p.each) > len(target) {
			return fmt.Errorf("%w: %d patches for %d elements", ErrPatchMismatch, len(p.each), len(target))
		}
		for i, patch := range p.each {
			if err := patch.apply(root, target[i]); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown patch kind %d", ErrPatchMismatch, int(p.kind))
	}
}

func mismatch(kind PatchKind, selected any) error {
	return fmt.Errorf("%w: %s cannot apply to %s", ErrPatchMismatch, kind, describeNode(selected))
}

func describeNode(v any) string {
	switch v.(type) {
	case nil:
		return "nothing"
	case map[string]any:
		return "an object"
	case []any:
		return "a sequence"
	default:
		return fmt.Sprintf("a %T value", v)
	}
}
