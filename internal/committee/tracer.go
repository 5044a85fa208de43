package committee

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/logweave/logweave/internal/logx"
)

// traceRecord is one line of a run's trace file. Grounded on the
// {ts, event, run_context, payload} shape core/committee.py writes per
// run; this file is write-only diagnostic output and never gates the
// pipeline.
type traceRecord struct {
	Timestamp  string         `json:"ts"`
	Event      string         `json:"event"`
	RunContext RunContext     `json:"run_context"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Tracer appends one JSONL record per committee stage transition to a file
// under Dir named by the firing's FileID and RunID. A Tracer is safe for
// concurrent use; writes are serialized.
type Tracer struct {
	Dir string
	Now func() string // overridable for deterministic tests
	mu  sync.Mutex
}

// NewTracer returns a Tracer writing JSONL files under dir, timestamping
// each record with the wall clock in RFC3339Nano.
func NewTracer(dir string) *Tracer {
	return &Tracer{Dir: dir, Now: func() string { return time.Now().UTC().Format(time.RFC3339Nano) }}
}

// Write appends one trace record. Failures are logged, never returned or
// propagated: a trace write must never abort a committee firing.
func (t *Tracer) Write(rc RunContext, event string, payload map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(t.Dir, 0o755); err != nil {
		logx.Warnf("committee: trace dir: %v", err)
		return
	}
	path := filepath.Join(t.Dir, rc.FileID+"-"+strconv.FormatInt(rc.RunID, 10)+".jsonl")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logx.Warnf("committee: opening trace file: %v", err)
		return
	}
	defer f.Close()

	ts := ""
	if t.Now != nil {
		ts = t.Now()
	}
	rec := traceRecord{Timestamp: ts, Event: event, RunContext: rc, Payload: payload}
	b, err := json.Marshal(rec)
	if err != nil {
		logx.Warnf("committee: marshaling trace record: %v", err)
		return
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		logx.Warnf("committee: writing trace record: %v", err)
	}
}
