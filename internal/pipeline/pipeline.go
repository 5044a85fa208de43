// Package pipeline wires the stream, sanitize, parse, uniqueset, index,
// matchpool, diversity, committee, and catalog packages into the driver
// loop from spec.md §4.11: one file in, normalized output and catalog
// writes out. Grounded on the teacher's job-ingestion driver style
// (internal/repository/jobCreate.go: derive an id, open a transaction-
// scoped run, stream in chunks, report via metrics) generalized from job
// records to log files.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/logweave/logweave/internal/catalog"
	"github.com/logweave/logweave/internal/committee"
	"github.com/logweave/logweave/internal/diversity"
	"github.com/logweave/logweave/internal/errs"
	"github.com/logweave/logweave/internal/index"
	"github.com/logweave/logweave/internal/logx"
	"github.com/logweave/logweave/internal/matchpool"
	"github.com/logweave/logweave/internal/metrics"
	"github.com/logweave/logweave/internal/parse"
	"github.com/logweave/logweave/internal/sanitize"
	"github.com/logweave/logweave/internal/stream"
	"github.com/logweave/logweave/internal/uniqueset"
)

// Config governs one run of the driver. Zero values are not valid; use
// DefaultConfig and override individual fields.
type Config struct {
	ReadChunkLines         int
	MicroBatchSize         int
	MatchWorkersPerBatch   int
	BufferSizeThreshold    int
	BufferMaxPerMicroBatch int
	ForceFlush             bool
	NormalOutDir           string // empty selects the input file's own directory

	// PeriodicFlushInterval, when positive, starts a gocron job alongside
	// the micro-batch loop that checks DiversityBuffer.ReachedThreshold out
	// of band and fires the committee even between micro-batches, per
	// SPEC_FULL.md §5 -- a slow-arriving file with a long tail of unmatched
	// lines still gets a timely firing instead of waiting on count alone.
	PeriodicFlushInterval time.Duration
}

// DefaultConfig mirrors spec.md §6's configuration options.
func DefaultConfig() Config {
	return Config{
		ReadChunkLines:         4096,
		MicroBatchSize:         2000,
		MatchWorkersPerBatch:   4,
		BufferSizeThreshold:    500,
		BufferMaxPerMicroBatch: 50,
	}
}

// Totals summarizes one run for the run_session row and the caller's exit
// reporting.
type Totals struct {
	LinesRead        int
	RecordsParsed    int
	ParseSkipped     int
	UniqueKeyTexts   int
	Matched          int
	Unmatched        int
	CommitteeFirings int
	TemplatesWritten int
}

// Archiver uploads a completed run's output files to durable storage.
// Implemented by internal/archive.S3Archiver; nil disables archival.
type Archiver interface {
	UploadFiles(ctx context.Context, fileID string, paths []string) error
}

// Driver runs the first-pass pipeline over one file at a time.
type Driver struct {
	Cat      catalog.Catalog
	IndexMgr *index.Manager
	Orch     *committee.Orchestrator
	Cfg      Config
	Archiver Archiver // nil disables post-run upload
}

// New returns a Driver. cfg.ReadChunkLines etc. should come from
// DefaultConfig() overridden by loaded configuration.
func New(cat catalog.Catalog, indexMgr *index.Manager, orch *committee.Orchestrator, cfg Config) *Driver {
	return &Driver{Cat: cat, IndexMgr: indexMgr, Orch: orch, Cfg: cfg}
}

// deriveFileID implements spec.md §4.11 step 1: first 32 hex characters of
// sha256(path|mtime|size).
func deriveFileID(path string, mtime, size int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", path, mtime, size)))
	return hex.EncodeToString(sum[:])[:32]
}

// baseName returns <path> minus a trailing ".gz" and its final remaining
// extension, per spec.md §6's output naming rule.
func baseName(path string) string {
	trimmed := strings.TrimSuffix(path, ".gz")
	ext := filepath.Ext(trimmed)
	return strings.TrimSuffix(trimmed, ext)
}

// Run executes the full 9-step sequence over path and returns the run's
// Totals. Errors are returned to the caller without being logged here. A
// stat failure returns before any catalog write; once the run session
// exists, a failure in normalization, record extraction, or micro-batch
// driving marks it "failed" before returning, and any other failure
// returns with the session still "running".
func (d *Driver) Run(ctx context.Context, path string) (Totals, error) {
	var totals Totals

	fi, err := os.Stat(path)
	if err != nil {
		return totals, fmt.Errorf("stat %s: %w", path, errs.InputIO)
	}
	fileID := deriveFileID(path, fi.ModTime().Unix(), fi.Size())
	base := baseName(path)
	if d.Cfg.NormalOutDir != "" {
		base = filepath.Join(d.Cfg.NormalOutDir, filepath.Base(base))
	}

	if err := d.Cat.RegisterFile(ctx, fileID, path, fi.ModTime().Unix(), fi.Size()); err != nil {
		return totals, err
	}
	runID, err := d.Cat.CreateRunSession(ctx, fileID, "first", "")
	if err != nil {
		return totals, err
	}

	normalPath := base + ".normal.txt"
	lineCount, err := d.normalizeToFile(path, normalPath)
	if err != nil {
		_ = d.Cat.CompleteRunSession(ctx, runID, "", "failed")
		return totals, err
	}
	totals.LinesRead = lineCount
	metrics.LinesTotal.WithLabelValues(fileID).Add(float64(lineCount))

	modules, submodules, builder, recordsParsed, parseSkipped, err := d.extractAndBuild(normalPath)
	if err != nil {
		_ = d.Cat.CompleteRunSession(ctx, runID, "", "failed")
		return totals, err
	}
	totals.RecordsParsed = recordsParsed
	totals.ParseSkipped = parseSkipped

	if err := d.Cat.UpsertModules(ctx, modules); err != nil {
		return totals, err
	}
	if err := d.Cat.UpsertSubmodules(ctx, submodules); err != nil {
		return totals, err
	}

	uniq := builder.Finish()
	totals.UniqueKeyTexts = len(uniq)
	if err := writeUniqueFiles(base, uniq); err != nil {
		return totals, err
	}

	if err := d.IndexMgr.LoadInitial(ctx); err != nil {
		return totals, err
	}
	buf := diversity.New(d.Cfg.BufferSizeThreshold, d.Cfg.BufferMaxPerMicroBatch)
	var bufMu sync.Mutex

	if d.Cfg.PeriodicFlushInterval > 0 {
		stopTicker, err := d.startPeriodicFlush(ctx, fileID, runID, buf, &bufMu, &totals)
		if err != nil {
			logx.Warnf("pipeline: periodic flush disabled: %v", err)
		} else {
			defer stopTicker()
		}
	}

	keyTexts := make([]string, len(uniq))
	for i, u := range uniq {
		keyTexts[i] = u.KeyText
	}

	if err := d.driveMicroBatches(ctx, fileID, runID, keyTexts, buf, &bufMu, &totals); err != nil {
		_ = d.Cat.CompleteRunSession(ctx, runID, "", "failed")
		return totals, err
	}

	bufMu.Lock()
	if d.Cfg.ForceFlush && buf.Len() > 0 {
		if err := d.fireCommittee(ctx, fileID, runID, buf, &totals); err != nil {
			logx.Warnf("pipeline: force-flush committee firing failed: %v", err)
		}
	}
	bufMu.Unlock()

	totalsStr := fmt.Sprintf(
		"lines=%d records=%d skipped=%d unique=%d matched=%d unmatched=%d firings=%d templates=%d",
		totals.LinesRead, totals.RecordsParsed, totals.ParseSkipped, totals.UniqueKeyTexts,
		totals.Matched, totals.Unmatched, totals.CommitteeFirings, totals.TemplatesWritten,
	)
	if err := d.Cat.CompleteRunSession(ctx, runID, totalsStr, "completed"); err != nil {
		return totals, err
	}

	if d.Archiver != nil {
		outputs := []string{normalPath, base + ".normal_uniq.txt", base + ".normal_uniq_with_count.tsv"}
		if err := d.Archiver.UploadFiles(ctx, fileID, outputs); err != nil {
			logx.Warnf("pipeline: archiving run outputs: %v", err)
		}
	}
	return totals, nil
}

// normalizeToFile implements step 3: stream-read, sanitize, normalize,
// write <base>.normal.txt. Returns the number of raw lines read.
func (d *Driver) normalizeToFile(path, normalPath string) (int, error) {
	r, err := stream.Open(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	out, err := os.Create(normalPath)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", normalPath, errs.InputIO)
	}
	defer out.Close()

	var norm sanitize.Normalizer
	lineCount := 0
	for {
		chunk, readErr := r.ReadChunk(d.Cfg.ReadChunkLines)
		for _, raw := range chunk {
			lineCount++
			clean := sanitize.Line(raw)
			if rec, ok := norm.Push(clean); ok {
				if _, err := io.WriteString(out, rec+"\n"); err != nil {
					return lineCount, fmt.Errorf("write %s: %w", normalPath, errs.InputIO)
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return lineCount, readErr
		}
	}
	if rec, ok := norm.Flush(); ok {
		if _, err := io.WriteString(out, rec+"\n"); err != nil {
			return lineCount, fmt.Errorf("write %s: %w", normalPath, errs.InputIO)
		}
	}
	return lineCount, nil
}

// extractAndBuild implements step 4 and half of step 5: re-stream the
// normalized file, parse each record, collect distinct module/submodule
// pairs, and feed every key-text into a uniqueset.Builder.
func (d *Driver) extractAndBuild(normalPath string) ([]string, [][2]string, *uniqueset.Builder, int, int, error) {
	f, err := os.Open(normalPath)
	if err != nil {
		return nil, nil, nil, 0, 0, fmt.Errorf("open %s: %w", normalPath, errs.InputIO)
	}
	defer f.Close()

	seenModules := make(map[string]bool)
	seenSubmodules := make(map[[2]string]bool)
	builder := uniqueset.NewBuilder()

	r, err := stream.Open(normalPath)
	if err != nil {
		return nil, nil, nil, 0, 0, err
	}
	defer r.Close()

	parsed, skipped := 0, 0
	for {
		chunk, readErr := r.ReadChunk(4096)
		for _, line := range chunk {
			rec, ok := parse.Parse(line)
			if !ok {
				skipped++
				continue
			}
			parsed++
			if !seenModules[rec.Module] {
				seenModules[rec.Module] = true
			}
			pair := [2]string{rec.Module, rec.Submodule}
			if !seenSubmodules[pair] {
				seenSubmodules[pair] = true
			}
			builder.Add(rec.KeyText)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, nil, nil, parsed, skipped, readErr
		}
	}

	modules := make([]string, 0, len(seenModules))
	for m := range seenModules {
		modules = append(modules, m)
	}
	submodules := make([][2]string, 0, len(seenSubmodules))
	for p := range seenSubmodules {
		submodules = append(submodules, p)
	}
	return modules, submodules, builder, parsed, skipped, nil
}

// writeUniqueFiles implements the rest of step 5: write
// <base>.normal_uniq.txt and <base>.normal_uniq_with_count.tsv.
func writeUniqueFiles(base string, uniq []uniqueset.UniqueKey) error {
	uniqPath := base + ".normal_uniq.txt"
	countPath := base + ".normal_uniq_with_count.tsv"

	uf, err := os.Create(uniqPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", uniqPath, errs.InputIO)
	}
	defer uf.Close()
	cf, err := os.Create(countPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", countPath, errs.InputIO)
	}
	defer cf.Close()

	for _, u := range uniq {
		if _, err := io.WriteString(uf, u.KeyText+"\n"); err != nil {
			return fmt.Errorf("write %s: %w", uniqPath, errs.InputIO)
		}
		if _, err := io.WriteString(cf, strconv.Itoa(u.Count)+"\t"+u.KeyText+"\n"); err != nil {
			return fmt.Errorf("write %s: %w", countPath, errs.InputIO)
		}
	}
	return nil
}

// driveMicroBatches implements step 7: for each micro-batch of unique
// key-texts, match against the active index, buffer misses, and fire the
// committee synchronously whenever the buffer reaches its threshold.
// bufMu also guards buf against the optional periodic-flush goroutine
// started by startPeriodicFlush.
func (d *Driver) driveMicroBatches(ctx context.Context, fileID string, runID int64, keyTexts []string, buf *diversity.Buffer, bufMu *sync.Mutex, totals *Totals) error {
	for start := 0; start < len(keyTexts); start += d.Cfg.MicroBatchSize {
		end := start + d.Cfg.MicroBatchSize
		if end > len(keyTexts) {
			end = len(keyTexts)
		}
		batch := keyTexts[start:end]
		batchStart := time.Now()

		results := matchpool.MatchBatch(d.IndexMgr.GetActive(), batch, d.Cfg.MatchWorkersPerBatch)

		var misses []string
		for _, r := range results {
			label := "false"
			if r.Matched {
				totals.Matched++
				label = "true"
			} else {
				totals.Unmatched++
				misses = append(misses, r.KeyText)
			}
			metrics.MatchesTotal.WithLabelValues(fileID, label).Inc()
		}

		if len(misses) > 0 {
			if err := d.Cat.WriteUnmatched(ctx, unmatchedRows(runID, fileID, misses)); err != nil {
				logx.Warnf("pipeline: writing unmatched rows: %v", err)
			}
		}

		bufMu.Lock()
		picked := buf.PickForBuffer(misses)
		buf.Add(picked)
		metrics.DiversityBufferSize.Set(float64(buf.Len()))
		reached := buf.ReachedThreshold()
		var fireErr error
		if reached {
			fireErr = d.fireCommittee(ctx, fileID, runID, buf, totals)
		}
		bufMu.Unlock()
		metrics.MicroBatchDuration.Observe(time.Since(batchStart).Seconds())
		if fireErr != nil {
			logx.Warnf("pipeline: committee firing failed: %v", fireErr)
		}
	}
	return nil
}

// startPeriodicFlush runs a gocron job every PeriodicFlushInterval that
// checks buf.ReachedThreshold() under bufMu and fires the committee if so,
// independent of the micro-batch loop's own checks. Returns a stop function
// that shuts the scheduler down.
func (d *Driver) startPeriodicFlush(ctx context.Context, fileID string, runID int64, buf *diversity.Buffer, bufMu *sync.Mutex, totals *Totals) (func(), error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(d.Cfg.PeriodicFlushInterval),
		gocron.NewTask(func() {
			bufMu.Lock()
			defer bufMu.Unlock()
			if !buf.ReachedThreshold() {
				return
			}
			if err := d.fireCommittee(ctx, fileID, runID, buf, totals); err != nil {
				logx.Warnf("pipeline: periodic committee firing failed: %v", err)
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	scheduler.Start()
	return func() { _ = scheduler.Shutdown() }, nil
}

func unmatchedRows(runID int64, fileID string, keyTexts []string) []catalog.UnmatchedLog {
	rows := make([]catalog.UnmatchedLog, len(keyTexts))
	for i, k := range keyTexts {
		rows[i] = catalog.UnmatchedLog{RunID: runID, FileID: fileID, KeyText: k, Raw: k, Reason: "no active template matched"}
	}
	return rows
}

// fireCommittee implements step 7c: snapshot-and-lock, run the committee
// synchronously, write any resulting templates, rebuild the index
// synchronously, then clear the locked batch. The synchronous ordering is
// deliberate: spec.md §9 rejects an async template-writer racing the index.
func (d *Driver) fireCommittee(ctx context.Context, fileID string, runID int64, buf *diversity.Buffer, totals *Totals) error {
	samples := buf.SnapshotAndLock()
	defer buf.ClearLockedBatch()

	totals.CommitteeFirings++
	candidates, err := d.Orch.Run(ctx, samples, committee.RunContext{FileID: fileID, RunID: runID})
	if err != nil {
		metrics.CommitteeFiringsTotal.WithLabelValues("error").Inc()
		return err
	}
	if len(candidates) == 0 {
		metrics.CommitteeFiringsTotal.WithLabelValues("empty").Inc()
		return nil
	}

	written, err := d.Cat.WriteTemplates(ctx, candidates)
	if err != nil {
		metrics.CommitteeFiringsTotal.WithLabelValues("error").Inc()
		return err
	}
	totals.TemplatesWritten += len(written)
	metrics.CommitteeFiringsTotal.WithLabelValues("templates_written").Inc()

	if err := d.IndexMgr.BuildNewIndexSync(ctx); err != nil {
		return err
	}
	metrics.IndexSwapsTotal.Inc()
	return nil
}
