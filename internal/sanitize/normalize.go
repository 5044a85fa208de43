package sanitize

import (
	"regexp"
	"strings"
)

// leaderPattern matches the start of a record leader line:
// [YYYYMMDD_HHMMSS][FRACTIONAL_SECONDS]...
var leaderPattern = regexp.MustCompile(`^\[\d{8}_\d{6}\]\[\d+\.\d+\]`)

// IsLeader reports whether line opens a new record.
func IsLeader(line string) bool {
	return leaderPattern.MatchString(line)
}

// Normalizer folds continuation lines onto their timestamped leader. It is a
// streaming state machine with one piece of carry-over state (the buffered
// leader), per the design note in spec.md: "Normal line assembly is
// stateful across calls." Callers feed already-sanitized lines via Push and
// must call Flush once at EOF to obtain the final buffered record.
type Normalizer struct {
	buf     strings.Builder
	hasLine bool
}

// Push appends a sanitized line to the normalizer. If line is a leader and a
// previous record is buffered, the buffered record is emitted and line
// becomes the new buffer. Otherwise line is folded onto the buffer with a
// single separating space, after stripping its own leading whitespace.
//
// Returns the record emitted by this call, if any.
func (n *Normalizer) Push(line string) (emitted string, ok bool) {
	if IsLeader(line) {
		if n.hasLine {
			emitted = n.buf.String()
			ok = true
		}
		n.buf.Reset()
		n.buf.WriteString(line)
		n.hasLine = true
		return emitted, ok
	}

	trimmed := strings.TrimLeft(line, " \t")
	if !n.hasLine {
		// No leader seen yet: a record without a conforming prefix. Buffer it
		// standalone so it can still be flushed, but it will later fail field
		// parsing (ParseSkipped) rather than being silently merged into
		// nothing.
		n.buf.WriteString(trimmed)
		n.hasLine = true
		return "", false
	}
	if n.buf.Len() > 0 {
		n.buf.WriteByte(' ')
	}
	n.buf.WriteString(trimmed)
	return "", false
}

// Flush returns the currently buffered record, if any, and resets the
// normalizer. Call once at EOF.
func (n *Normalizer) Flush() (tail string, ok bool) {
	if !n.hasLine {
		return "", false
	}
	tail = n.buf.String()
	n.buf.Reset()
	n.hasLine = false
	return tail, true
}

// FoldAll is a convenience wrapper for tests and small inputs: it folds a
// complete slice of sanitized lines into records.
func FoldAll(lines []string) []string {
	var n Normalizer
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if rec, ok := n.Push(l); ok {
			out = append(out, rec)
		}
	}
	if rec, ok := n.Flush(); ok {
		out = append(out, rec)
	}
	return out
}
