package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/logweave/logweave/internal/catalog"
	"github.com/logweave/logweave/internal/committee"
	"github.com/logweave/logweave/internal/index"
)

func writeSampleLog(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "app.log")
	lines := []string{
		`[20240101_120000][0.100][I][1][MOD:core][SMOD:init]sensor:1 online`,
		`[20240101_120001][0.200][I][1][MOD:core][SMOD:init]sensor:2 online`,
		`[20240101_120002][0.300][W][1][MOD:core][SMOD:poll]unrelated warning text`,
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("writing sample log: %v", err)
	}
	return path
}

func TestDriverRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	logPath := writeSampleLog(t, dir)

	cat, err := catalog.Connect("sqlite3", filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer cat.Close()

	// Seed one active template that matches the "sensor:N online" lines so
	// the run exercises both the matched and unmatched paths.
	if _, err := cat.WriteTemplates(context.Background(), []catalog.Candidate{
		{PatternNomal: `^sensor:NUMNUM online$`, SampleLog: "sensor:1 online", Source: "seed"},
	}); err != nil {
		t.Fatalf("seeding template: %v", err)
	}

	indexMgr := index.NewManager(cat, 0)
	orch, err := committee.New(committee.Stub{}, cat, committee.DefaultConfig(), "")
	if err != nil {
		t.Fatalf("committee.New: %v", err)
	}

	cfg := DefaultConfig()
	cfg.BufferSizeThreshold = 1
	cfg.ForceFlush = true

	d := New(cat, indexMgr, orch, cfg)
	totals, err := d.Run(context.Background(), logPath)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if totals.RecordsParsed != 3 {
		t.Fatalf("RecordsParsed = %d, want 3", totals.RecordsParsed)
	}
	if totals.Matched != 2 {
		t.Fatalf("Matched = %d, want 2", totals.Matched)
	}
	if totals.Unmatched != 1 {
		t.Fatalf("Unmatched = %d, want 1", totals.Unmatched)
	}

	base := strings.TrimSuffix(logPath, filepath.Ext(logPath))
	for _, suffix := range []string{".normal.txt", ".normal_uniq.txt", ".normal_uniq_with_count.tsv"} {
		if _, err := os.Stat(base + suffix); err != nil {
			t.Errorf("expected output file %s: %v", base+suffix, err)
		}
	}

	active, err := cat.FetchActiveTemplates(context.Background())
	if err != nil {
		t.Fatalf("FetchActiveTemplates: %v", err)
	}
	if len(active) < 1 {
		t.Fatal("expected at least the seeded template to remain active")
	}
}

type fakeArchiver struct {
	fileID string
	paths  []string
}

func (f *fakeArchiver) UploadFiles(_ context.Context, fileID string, paths []string) error {
	f.fileID = fileID
	f.paths = append(f.paths, paths...)
	return nil
}

func TestDriverRunUploadsToArchiverWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	logPath := writeSampleLog(t, dir)

	cat, err := catalog.Connect("sqlite3", filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer cat.Close()

	indexMgr := index.NewManager(cat, 0)
	orch, err := committee.New(committee.Stub{}, cat, committee.DefaultConfig(), "")
	if err != nil {
		t.Fatalf("committee.New: %v", err)
	}

	d := New(cat, indexMgr, orch, DefaultConfig())
	fa := &fakeArchiver{}
	d.Archiver = fa

	if _, err := d.Run(context.Background(), logPath); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fa.paths) != 3 {
		t.Fatalf("archiver received %d paths, want 3", len(fa.paths))
	}
}

func TestDriverRunWithPeriodicFlushEnabledCompletes(t *testing.T) {
	dir := t.TempDir()
	logPath := writeSampleLog(t, dir)

	cat, err := catalog.Connect("sqlite3", filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer cat.Close()

	indexMgr := index.NewManager(cat, 0)
	orch, err := committee.New(committee.Stub{}, cat, committee.DefaultConfig(), "")
	if err != nil {
		t.Fatalf("committee.New: %v", err)
	}

	cfg := DefaultConfig()
	cfg.PeriodicFlushInterval = 50 * time.Millisecond

	d := New(cat, indexMgr, orch, cfg)
	if _, err := d.Run(context.Background(), logPath); err != nil {
		t.Fatalf("Run with periodic flush enabled: %v", err)
	}
}

func TestDeriveFileIDStable(t *testing.T) {
	a := deriveFileID("/x/y.log", 100, 200)
	b := deriveFileID("/x/y.log", 100, 200)
	c := deriveFileID("/x/y.log", 101, 200)
	if a != b {
		t.Fatal("expected deterministic file id for identical inputs")
	}
	if a == c {
		t.Fatal("expected different file id for different mtime")
	}
	if len(a) != 32 {
		t.Fatalf("len = %d, want 32", len(a))
	}
}

func TestBaseNameStripsGzAndExtension(t *testing.T) {
	cases := map[string]string{
		"/a/b/app.log":    "/a/b/app",
		"/a/b/app.log.gz": "/a/b/app.log",
		"app":             "app",
	}
	for in, want := range cases {
		if got := baseName(in); got != want {
			t.Errorf("baseName(%q) = %q, want %q", in, got, want)
		}
	}
}
