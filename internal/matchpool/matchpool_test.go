package matchpool

import (
	"testing"

	"github.com/logweave/logweave/internal/catalog"
	"github.com/logweave/logweave/internal/index"
)

func buildTestIndex() *index.CompiledIndex {
	templates := []catalog.Template{
		{TemplateID: 1, Pattern: `^sensor:\d+$`},
		{TemplateID: 2, Pattern: `^age=\d+$`},
	}
	return index.Build(templates, nil, 0)
}

func TestMatchBatchPreservesOrderInline(t *testing.T) {
	idx := buildTestIndex()
	keys := []string{"sensor:1", "nope", "age=9", "sensor:1"}

	got := MatchBatch(idx, keys, 1)
	if len(got) != len(keys) {
		t.Fatalf("len = %d, want %d", len(got), len(keys))
	}
	want := []struct {
		id      int64
		matched bool
	}{
		{1, true}, {0, false}, {2, true}, {1, true},
	}
	for i, w := range want {
		if got[i].TemplateID != w.id || got[i].Matched != w.matched || got[i].KeyText != keys[i] {
			t.Errorf("result[%d] = %+v, want template=%d matched=%v", i, got[i], w.id, w.matched)
		}
	}
}

func TestMatchBatchParallelMatchesInline(t *testing.T) {
	idx := buildTestIndex()
	keys := make([]string, 0, 40)
	for i := 0; i < 10; i++ {
		keys = append(keys, "sensor:1", "age=9", "nope", "sensor:1")
	}

	inline := MatchBatch(idx, keys, 1)
	parallel := MatchBatch(idx, keys, 4)

	if len(inline) != len(parallel) {
		t.Fatalf("length mismatch: %d vs %d", len(inline), len(parallel))
	}
	for i := range inline {
		if inline[i] != parallel[i] {
			t.Errorf("mismatch at %d: inline=%+v parallel=%+v", i, inline[i], parallel[i])
		}
	}
}

func TestMatchBatchEmpty(t *testing.T) {
	idx := buildTestIndex()
	got := MatchBatch(idx, nil, 4)
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}
