package tree

import (
	"reflect"
	"testing"
)

func TestReplaceSequenceInObject(t *testing.T) {
	root := Clone(map[string]any{
		"part1": map[string]any{"testArray": []any{}},
	}).(map[string]any)
	target := Lookup(root, "part1", "testArray").([]any)

	if !ReplaceSequence(root, target, []any{"added"}) {
		t.Fatalf("expected sequence to be located")
	}
	got := Lookup(root, "part1", "testArray")
	if !reflect.DeepEqual([]any{"added"}, got) {
		t.Fatalf("unexpected replacement: %#v", got)
	}
}

func TestReplaceSequenceInsideSequence(t *testing.T) {
	root := Clone(map[string]any{
		"grid": []any{[]any{1}, []any{2}},
	}).(map[string]any)
	target := Lookup(root, "grid", 1).([]any)

	if !ReplaceSequence(root, target, []any{3, 4}) {
		t.Fatalf("expected nested sequence to be located")
	}
	want := []any{[]any{1}, []any{3, 4}}
	if got := root["grid"]; !reflect.DeepEqual(want, got) {
		t.Fatalf("unexpected grid: %#v", got)
	}
}

func TestReplaceSequenceRejectsDetachedSequences(t *testing.T) {
	root := Clone(map[string]any{"list": []any{1, 2, 3}}).(map[string]any)
	list := root["list"].([]any)

	if ReplaceSequence(root, []any{1, 2, 3}, nil) {
		t.Fatalf("expected detached copy not to be located")
	}
	if ReplaceSequence(root, list[:2], nil) {
		t.Fatalf("expected shorter view not to be located")
	}
	if ReplaceSequence(root, nil, nil) {
		t.Fatalf("expected nil target not to be located")
	}
}

func TestAssignClonesValues(t *testing.T) {
	dst := map[string]any{"keep": 1, "over": 1}
	payload := map[string]any{"list": []any{1}}
	Assign(dst, map[string]any{"over": 2, "nested": payload})

	if dst["keep"] != 1 || dst["over"] != 2 {
		t.Fatalf("unexpected assign result: %#v", dst)
	}
	payload["list"] = "mutated"
	if reflect.DeepEqual(dst["nested"], payload) {
		t.Fatalf("expected assigned values to be copied")
	}
}

func TestLookup(t *testing.T) {
	root := map[string]any{"a": []any{map[string]any{"b": "c"}}}
	cases := []struct {
		name string
		path []any
		want any
	}{
		{name: "deep", path: []any{"a", 0, "b"}, want: "c"},
		{name: "float index", path: []any{"a", float64(0), "b"}, want: "c"},
		{name: "missing key", path: []any{"x"}, want: nil},
		{name: "out of range", path: []any{"a", 3}, want: nil},
		{name: "wrong step type", path: []any{"a", "0"}, want: nil},
		{name: "through scalar", path: []any{"a", 0, "b", "c"}, want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Lookup(root, tc.path...); !reflect.DeepEqual(tc.want, got) {
				t.Fatalf("want %#v, got %#v", tc.want, got)
			}
		})
	}
}
