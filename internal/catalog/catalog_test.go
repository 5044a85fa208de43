package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCatalog(t *testing.T) *SQLCatalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.sqlite3")
	c, err := Connect("sqlite3", path)
	require.NoError(t, err, "Connect should succeed")
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRegisterFileAndRunSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	require.NoError(t, c.RegisterFile(ctx, "fid1", "/var/log/a.log", 1000, 2048))
	// Re-registering the same file_id must not error (idempotent upsert).
	require.NoError(t, c.RegisterFile(ctx, "fid1", "/var/log/a.log", 1001, 2048))

	runID, err := c.CreateRunSession(ctx, "fid1", "first", "{}")
	require.NoError(t, err)
	assert.NotZero(t, runID)

	require.NoError(t, c.CompleteRunSession(ctx, runID, `{"lines":10}`, "completed"))
}

func TestUpsertModulesAndSubmodules(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	require.NoError(t, c.UpsertModules(ctx, []string{"vgnss", "vgnss"}))
	require.NoError(t, c.UpsertSubmodules(ctx, [][2]string{{"vgnss", "log"}, {"vgnss", "log"}}))
}

func TestWriteTemplatesDedupesAndSubstitutesNumNum(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	cands := []Candidate{
		{PatternNomal: `^sensor:NUMNUM, age=NUMNUM$`, SampleLog: "sensor:1, age=2", Source: "committee"},
		{PatternNomal: `^sensor:NUMNUM, age=NUMNUM$`, SampleLog: "dup", Source: "committee"},
		{PatternNomal: "", SampleLog: "skip me", Source: "committee"},
	}
	ids, err := c.WriteTemplates(ctx, cands)
	require.NoError(t, err)
	require.Len(t, ids, 1, "the duplicate and the empty-pattern candidate should be dropped")

	active, err := c.FetchActiveTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.NotEqual(t, active[0].PatternNomal, active[0].Pattern, "expected NUMNUM substitution to change pattern")

	var historyCount int
	require.NoError(t, c.db.GetContext(ctx, &historyCount, `SELECT COUNT(*) FROM template_history WHERE template_id = ?`, ids[0]))
	require.Equal(t, 1, historyCount, "expected one history row from the initial write")

	ok, err := c.DeactivateTemplate(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, ok)

	active, err = c.FetchActiveTemplates(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	var note string
	require.NoError(t, c.db.GetContext(ctx, &note,
		`SELECT note FROM template_history WHERE template_id = ? ORDER BY history_id DESC LIMIT 1`, ids[0]))
	assert.Equal(t, "deactivated: compile failure", note, "expected a history row recording the deactivation")

	require.NoError(t, c.db.GetContext(ctx, &historyCount, `SELECT COUNT(*) FROM template_history WHERE template_id = ?`, ids[0]))
	assert.Equal(t, 2, historyCount, "expected the deactivation to append, not replace, the history row")
}

func TestDeactivateTemplateUnknownIDReturnsFalse(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	ok, err := c.DeactivateTemplate(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnmatchedAndSummaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	require.NoError(t, c.RegisterFile(ctx, "fid1", "/var/log/a.log", 1000, 2048))
	runID, err := c.CreateRunSession(ctx, "fid1", "first", "{}")
	require.NoError(t, err)

	require.NoError(t, c.WriteUnmatched(ctx, []UnmatchedLog{
		{RunID: runID, FileID: "fid1", KeyText: "oops", Raw: "raw line", Reason: "no_match"},
	}))

	recent, err := c.GetRecentUnmatched(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "oops", recent[0].KeyText)

	require.NoError(t, c.BatchUpsertLogMatchSummary(ctx, []LogMatchSummary{
		{RunID: runID, FileID: "fid1", KeyText: "oops", Occurrence: 3},
	}))
	// Upserting again with a new occurrence count must not error (conflict path).
	require.NoError(t, c.BatchUpsertLogMatchSummary(ctx, []LogMatchSummary{
		{RunID: runID, FileID: "fid1", KeyText: "oops", Occurrence: 5},
	}))
}

func TestGetTemplateSamplesEmptyCorpus(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	samples, err := c.GetTemplateSamples(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, samples)
}
