package tree

import "testing"

func TestMarksRecursive(t *testing.T) {
	root := Clone(map[string]any{
		"part1": map[string]any{
			"nested": map[string]any{"deep": []any{map[string]any{"id": 1}}},
		},
		"part2": map[string]any{},
	}).(map[string]any)

	marks := NewMarks()
	marks.Mark(root["part1"])

	part1 := root["part1"].(map[string]any)
	nested := part1["nested"].(map[string]any)
	deep := nested["deep"].([]any)

	for name, node := range map[string]any{
		"part1":   part1,
		"nested":  nested,
		"deep":    deep,
		"deep[0]": deep[0],
	} {
		if !marks.Has(node) {
			t.Fatalf("expected %s to be marked", name)
		}
	}
	if marks.Has(root["part2"]) {
		t.Fatalf("expected part2 to stay unmarked")
	}
	if marks.Has(root) {
		t.Fatalf("expected root to stay unmarked")
	}
}

func TestMarksIdempotentAndIgnoresScalars(t *testing.T) {
	node := Clone(map[string]any{"a": map[string]any{}}).(map[string]any)

	var marks Marks
	marks.Mark(node)
	before := marks.Len()
	marks.Mark(node)
	marks.Mark(nil)
	marks.Mark("scalar")
	marks.Mark(42)

	if marks.Len() != before {
		t.Fatalf("expected mark count to stay %d, got %d", before, marks.Len())
	}
	if marks.Has("scalar") || marks.Has(nil) {
		t.Fatalf("scalars must never report as marked")
	}
}

func TestMarksMatchSetMarksEachElement(t *testing.T) {
	list := Clone([]any{
		map[string]any{"id": 7},
		map[string]any{"id": 8},
		map[string]any{"id": 9},
	}).([]any)

	matches := []any{}
	for _, item := range list {
		if item.(map[string]any)["id"].(int) > 7 {
			matches = append(matches, item)
		}
	}

	marks := NewMarks()
	marks.Mark(matches)

	if marks.Has(list[0]) {
		t.Fatalf("expected unmatched element to stay unmarked")
	}
	if !marks.Has(list[1]) || !marks.Has(list[2]) {
		t.Fatalf("expected matched elements to be marked")
	}
	if marks.Has(list) {
		t.Fatalf("expected parent sequence to stay unmarked")
	}
}

func TestNilMarksHasNothing(t *testing.T) {
	var marks *Marks
	if marks.Has(map[string]any{}) || marks.Len() != 0 {
		t.Fatalf("expected nil marks to be empty")
	}
}
