package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/logweave/logweave/internal/logx"
	"github.com/logweave/logweave/internal/pipeline"
)

// runDaemon scans dir every interval for files this process has not yet
// ingested and runs driver.Run over each, serially. It never exits on its
// own; ctx cancellation stops the scheduler. liveCfg, when non-nil, is
// re-read before every scan so a config hot-reload takes effect starting
// with the next scan -- never mid-run, per SPEC_FULL.md §5.
func runDaemon(ctx context.Context, dir string, interval time.Duration, driver *pipeline.Driver, liveCfg *atomic.Pointer[pipeline.Config]) error {
	seen := make(map[string]bool)
	var mu sync.Mutex

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			mu.Lock()
			defer mu.Unlock()
			if liveCfg != nil {
				if cfg := liveCfg.Load(); cfg != nil {
					driver.Cfg = *cfg
				}
			}
			scanOnce(ctx, dir, seen, driver)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}

	scheduler.Start()
	<-ctx.Done()
	return scheduler.Shutdown()
}

func scanOnce(ctx context.Context, dir string, seen map[string]bool, driver *pipeline.Driver) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logx.Errorf("daemon: reading watch dir %s: %v", dir, err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || seen[e.Name()] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		totals, err := driver.Run(ctx, path)
		if err != nil {
			logx.Errorf("daemon: processing %s: %v", path, err)
			continue
		}
		seen[e.Name()] = true
		logx.Infof("daemon: processed %s: matched=%d unmatched=%d firings=%d",
			path, totals.Matched, totals.Unmatched, totals.CommitteeFirings)
	}
}
