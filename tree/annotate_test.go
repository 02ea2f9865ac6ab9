package tree

import (
	"reflect"
	"testing"
)

func TestAnnotateAddsKeyToMarkedObjects(t *testing.T) {
	root := Clone(map[string]any{
		"part1": map[string]any{"right": "left"},
		"part2": map[string]any{},
		"list":  []any{map[string]any{"id": 1}},
	}).(map[string]any)

	marks := NewMarks()
	marks.Mark(root["part1"])
	marks.Mark(root["list"])

	got := Annotate(root, "_loading", marks.Has)
	want := map[string]any{
		"part1": map[string]any{"right": "left", "_loading": true},
		"part2": map[string]any{},
		"list":  []any{map[string]any{"id": 1, "_loading": true}},
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("annotate mismatch:\nwant: %#v\n got: %#v", want, got)
	}
	if _, leaked := root["part1"].(map[string]any)["_loading"]; leaked {
		t.Fatalf("expected source tree untouched")
	}
}
