package index

import (
	"testing"

	"github.com/logweave/logweave/internal/catalog"
)

func TestBuildSkipsUncompilablePatterns(t *testing.T) {
	templates := []catalog.Template{
		{TemplateID: 1, Pattern: `^sensor:\d+$`, PatternNomal: `^sensor:NUMNUM$`},
		{TemplateID: 2, Pattern: `(unterminated`, PatternNomal: `(unterminated`},
		{TemplateID: 3, Pattern: `^age=\d+$`, PatternNomal: `^age=NUMNUM$`},
	}

	var deactivated []int64
	idx := Build(templates, func(id int64) { deactivated = append(deactivated, id) }, 0)

	if idx.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", idx.Len())
	}
	if len(deactivated) != 1 || deactivated[0] != 2 {
		t.Fatalf("deactivated = %v, want [2]", deactivated)
	}
}

func TestMatchFindsFirstByTemplateIDOrder(t *testing.T) {
	templates := []catalog.Template{
		{TemplateID: 1, Pattern: `^sensor:\d+$`},
		{TemplateID: 2, Pattern: `^sensor:\d+, age=\d+$`},
	}
	idx := Build(templates, nil, 0)

	id, ok := idx.Match("sensor:42")
	if !ok || id != 1 {
		t.Fatalf("Match(sensor:42) = (%d, %v), want (1, true)", id, ok)
	}

	id, ok = idx.Match("sensor:42, age=7")
	if !ok || id != 2 {
		t.Fatalf("Match(sensor:42, age=7) = (%d, %v), want (2, true)", id, ok)
	}
}

func TestMatchMemoizesMisses(t *testing.T) {
	templates := []catalog.Template{
		{TemplateID: 1, Pattern: `^only_this$`},
	}
	idx := Build(templates, nil, 0)

	id, ok := idx.Match("nope")
	if ok || id != 0 {
		t.Fatalf("Match(nope) = (%d, %v), want (0, false)", id, ok)
	}
	// second call exercises the cache path; result must be stable.
	id, ok = idx.Match("nope")
	if ok || id != 0 {
		t.Fatalf("Match(nope) second call = (%d, %v), want (0, false)", id, ok)
	}
}

func TestFallbackEntryUsedWhenNoHintMatches(t *testing.T) {
	templates := []catalog.Template{
		{TemplateID: 1, Pattern: `^\d+$`}, // no literal hint >= 4 chars
	}
	idx := Build(templates, nil, 0)

	id, ok := idx.Match("12345")
	if !ok || id != 1 {
		t.Fatalf("Match(12345) = (%d, %v), want (1, true)", id, ok)
	}
}
