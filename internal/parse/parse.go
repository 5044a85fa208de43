// Package parse extracts structured Records from normalized leader lines
// using the fixed record grammar from spec.md §4.3/§6:
//
//	[YYYYMMDD_HHMMSS][FRACTIONAL_SECONDS][LEVEL_CHAR][THREAD_ID][MOD:MODULE][SMOD:SUBMODULE]REST
//
// Grounded on core/parser.py (original_source).
package parse

import (
	"regexp"

	"github.com/logweave/logweave/internal/keytext"
)

// Record is the immutable output of the field parser.
type Record struct {
	TS        string // "YYYYMMDD HHMMSS"
	Level     string
	ThreadID  string
	Module    string
	Submodule string
	KeyText   string
	Raw       string
}

var lineRE = regexp.MustCompile(
	`^\[(\d{8})_(\d{6})\]\[(\d+\.\d+)\]\[([A-Z])\]\[(\d+)\]\[MOD:([^\]]*)\]\[SMOD:([^\]]*)\](.*)$`,
)

// Parse matches line against the record grammar and returns a Record on
// success, or ok=false if any required field is missing (ParseSkipped:
// the caller counts such lines and drops them, per spec.md §7/§9).
func Parse(line string) (Record, bool) {
	m := lineRE.FindStringSubmatch(line)
	if m == nil {
		return Record{}, false
	}
	date, timePart := m[1], m[2]
	rest := m[8]
	return Record{
		TS:        date + " " + timePart,
		Level:     m[4],
		ThreadID:  m[5],
		Module:    m[6],
		Submodule: m[7],
		KeyText:   keytext.Extract(rest),
		Raw:       line,
	}, true
}
