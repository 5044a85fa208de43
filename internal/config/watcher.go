package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/logweave/logweave/internal/logx"
)

// Watcher watches a set of config files (cmd/logweave registers the
// pipeline config in daemon mode) and invokes a callback on write events.
// Grounded on internal/util/fswatcher.go (teacher): one fsnotify.Watcher,
// one event loop goroutine, a registered listener per watched path, but
// without the teacher's package-global singleton, since a driver process
// only ever needs one Watcher for its own lifetime.
type Watcher struct {
	w        *fsnotify.Watcher
	mu       sync.Mutex
	onChange map[string]func()
}

// NewWatcher starts the underlying fsnotify watcher and its event loop.
func NewWatcher() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	cw := &Watcher{w: fw, onChange: make(map[string]func())}
	go cw.loop()
	return cw, nil
}

// Watch registers onChange to run whenever path is written. A changed file
// only schedules a check (per SPEC_FULL.md §5: in-flight firings keep the
// config snapshot they started with) -- the caller's onChange decides what
// "schedule, don't force" means for its own state.
func (cw *Watcher) Watch(path string, onChange func()) error {
	cw.mu.Lock()
	cw.onChange[path] = onChange
	cw.mu.Unlock()
	return cw.w.Add(path)
}

// Close stops the watcher and its event loop.
func (cw *Watcher) Close() error {
	return cw.w.Close()
}

func (cw *Watcher) loop() {
	for {
		select {
		case err, ok := <-cw.w.Errors:
			if !ok {
				return
			}
			logx.Warnf("config watcher: %v", err)
		case e, ok := <-cw.w.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cw.mu.Lock()
			cb := cw.onChange[e.Name]
			cw.mu.Unlock()
			if cb != nil {
				cb()
			}
		}
	}
}
