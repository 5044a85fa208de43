package committee

import (
	"context"
	"testing"

	"github.com/logweave/logweave/internal/catalog"
)

func TestTruncateSamplesDedupesSortsAndCaps(t *testing.T) {
	in := []string{"ccc", "a", "bb", "a", ""}
	out := truncateSamples(in, 10, 1000)
	want := []string{"a", "bb", "ccc"}
	if len(out) != len(want) {
		t.Fatalf("out = %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
}

func TestTruncateSamplesCapsByItemCount(t *testing.T) {
	in := []string{"a", "bb", "ccc", "dddd"}
	out := truncateSamples(in, 2, 1000)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
}

func TestTruncateSamplesCapsByCharBudget(t *testing.T) {
	in := []string{"aa", "bb", "cc"}
	out := truncateSamples(in, 10, 5) // "aa\n" + "bb\n" = 6 > 5, so only first fits
	if len(out) != 1 {
		t.Fatalf("out = %v, want 1 item", out)
	}
}

// fakeCatalog implements catalog.Catalog with in-memory state sufficient
// for Orchestrator.Run's read paths.
type fakeCatalog struct {
	catalog.Catalog
	unmatched []catalog.UnmatchedLog
	samples   []catalog.Template
}

func (f *fakeCatalog) GetRecentUnmatched(_ context.Context, _ int) ([]catalog.UnmatchedLog, error) {
	return f.unmatched, nil
}

func (f *fakeCatalog) GetTemplateSamples(_ context.Context, _ int) ([]catalog.Template, error) {
	return f.samples, nil
}

type fixedDraftBackend struct {
	drafts []Draft
}

func (b fixedDraftBackend) Draft(_ context.Context, _ []string) ([]Draft, error) {
	return b.drafts, nil
}

func TestOrchestratorRunAppliesAdversaryAndRegressionFilters(t *testing.T) {
	backend := fixedDraftBackend{drafts: []Draft{
		{Pattern: `^sensor:\d+$`, SampleLog: "sensor:1"}, // should pass: no negatives match, no history to fail
		{Pattern: `^bad$`, SampleLog: "bad"},             // should be killed by adversary: matches a negative
	}}
	cat := &fakeCatalog{
		unmatched: []catalog.UnmatchedLog{{Raw: "bad"}},
	}
	orch, err := New(backend, cat, DefaultConfig(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := orch.Run(context.Background(), []string{"sensor:1"}, RunContext{FileID: "f1", RunID: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 1 || got[0].PatternNomal != `^sensor:\d+$` {
		t.Fatalf("got = %+v", got)
	}
}

func TestOrchestratorRunRejectsRegressionFailure(t *testing.T) {
	backend := fixedDraftBackend{drafts: []Draft{
		{Pattern: `^only_new_thing$`, SampleLog: "only_new_thing"},
	}}
	cat := &fakeCatalog{
		samples: []catalog.Template{
			{SampleLog: "alpha"}, {SampleLog: "beta"}, {SampleLog: "gamma"},
		},
	}
	orch, err := New(backend, cat, DefaultConfig(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := orch.Run(context.Background(), []string{"only_new_thing"}, RunContext{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected regression filter to reject, got %+v", got)
	}
}

func TestOrchestratorRunDropsUnsafePattern(t *testing.T) {
	backend := fixedDraftBackend{drafts: []Draft{
		{Pattern: `^(a+)+$`, SampleLog: "aaaa"},
	}}
	orch, err := New(backend, &fakeCatalog{}, DefaultConfig(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := orch.Run(context.Background(), []string{"aaaa"}, RunContext{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected unsafe pattern to be dropped, got %+v", got)
	}
}

func TestOrchestratorRunEmptyDraftsReturnsEmpty(t *testing.T) {
	orch, err := New(fixedDraftBackend{}, &fakeCatalog{}, DefaultConfig(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := orch.Run(context.Background(), []string{"x"}, RunContext{})
	if err != nil || len(got) != 0 {
		t.Fatalf("got = %+v, err = %v", got, err)
	}
}

func TestNewRejectsInvalidAdversaryPolicy(t *testing.T) {
	if _, err := New(Stub{}, &fakeCatalog{}, DefaultConfig(), "not a valid ( expr"); err == nil {
		t.Fatal("expected compile error for invalid policy expression")
	}
}
