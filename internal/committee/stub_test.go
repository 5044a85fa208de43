package committee

import (
	"context"
	"testing"
)

func TestStubDraftGeneralizesDigitsToNumNum(t *testing.T) {
	drafts, err := Stub{}.Draft(context.Background(), []string{"sensor:42 reading ok"})
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("len = %d, want 1", len(drafts))
	}
	want := `sensor:NUMNUM reading ok`
	if drafts[0].Pattern != want {
		t.Fatalf("pattern = %q, want %q", drafts[0].Pattern, want)
	}
}

func TestStubDraftCapsAtTenSamples(t *testing.T) {
	samples := make([]string, 15)
	for i := range samples {
		samples[i] = "x"
	}
	drafts, err := Stub{}.Draft(context.Background(), samples)
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if len(drafts) != maxStubSamples {
		t.Fatalf("len = %d, want %d", len(drafts), maxStubSamples)
	}
}

func TestStubDraftEscapesRegexMetacharacters(t *testing.T) {
	drafts, err := Stub{}.Draft(context.Background(), []string{"a.b*c"})
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	want := `a\.b\*c`
	if drafts[0].Pattern != want {
		t.Fatalf("pattern = %q, want %q", drafts[0].Pattern, want)
	}
}
