package uniqueset

import "testing"

func TestDedupAndCount(t *testing.T) {
	b := NewBuilder()
	for _, k := range []string{"a", "b", "a", "c", "b", "a"} {
		b.Add(k)
	}
	got := b.Finish()

	want := []UniqueKey{
		{KeyText: "a", Count: 3},
		{KeyText: "b", Count: 2},
		{KeyText: "c", Count: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestEmptyKeysIgnored(t *testing.T) {
	b := NewBuilder()
	b.Add("")
	b.Add("x")
	b.Add("")
	if b.Len() != 1 {
		t.Fatalf("Len = %d, want 1", b.Len())
	}
	got := b.Finish()
	if len(got) != 1 || got[0].KeyText != "x" || got[0].Count != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestEmptyBuilder(t *testing.T) {
	b := NewBuilder()
	if got := b.Finish(); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}
