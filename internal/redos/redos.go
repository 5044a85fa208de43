// Package redos performs offline regex safety analysis for committee-drafted
// templates before they are ever persisted or hot-swapped into the live
// index. It combines a static red-flag scan with a dynamic bounded-time
// stress test, grounded on core/regex_safety.py (original_source).
//
// The static scan matches red-flag shapes in the pattern text with stdlib
// regexp; the dynamic stress test uses dlclark/regexp2, a backtracking engine,
// because a pattern that is safe under RE2 (no catastrophic backtracking,
// by construction) can still be authored in a way that would blow up on any
// backtracking regex engine a downstream consumer might use. Screening
// against regexp2's semantics is the conservative choice.
package redos

import (
	"regexp"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// Level is the safety verdict for a pattern.
type Level string

const (
	LevelOK      Level = "ok"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
)

// Result is the full safety analysis for one pattern.
type Result struct {
	Pattern            string
	Level              Level
	CompileOK          bool
	StaticFlags        []string
	DynamicTimeout     bool
	RuntimeError       string
	TimeoutTextPreview string
	TimeoutCost        time.Duration
	SamplesTested      int
}

// DefaultTimeout bounds each dynamic stress-test match attempt.
const DefaultTimeout = 500 * time.Millisecond

var (
	nestedQuantifierGroup   = regexp.MustCompile(`\((?:[^()]*?[+*?][^()]*)\)[+*?]`)
	largeAlternationQuant   = regexp.MustCompile(`\((?:[^()]*\|){3,}[^()]*\)[+*?]`)
	adjacentQuantifiedWords = regexp.MustCompile(`(?:\(\?:[^)]*?\w[+*][^)]*\)[+*])\s*(?:\\w[+*]|\(\?:[^)]*?\\w[^)]*\)[+*])`)
	anchoredStartOrEnd      = regexp.MustCompile(`^\^|\$$`)
)

// staticRedFlags returns the set of suspicious structural features in
// pattern. It intentionally over-reports rather than misses a dangerous
// shape.
func staticRedFlags(pattern string) []string {
	var flags []string

	if nestedQuantifierGroup.MatchString(pattern) {
		flags = append(flags, "nested_quantifier_group")
	}
	if strings.Contains(pattern, ".*.*") || strings.Contains(pattern, ".*.+") || strings.Contains(pattern, ".+.*") {
		flags = append(flags, "multiple_dot_star_like")
	}
	if largeAlternationQuant.MatchString(pattern) {
		flags = append(flags, "large_alternation_with_quantifier")
	}
	if len(pattern) > 120 && !anchoredStartOrEnd.MatchString(pattern) {
		flags = append(flags, "long_unanchored_pattern")
	}
	if adjacentQuantifiedWords.MatchString(pattern) {
		flags = append(flags, "adjacent_quantified_words")
	}
	return flags
}

// testStrings builds the stress corpus for the dynamic pass: the caller's
// sample texts, a fixed set of short/medium/long generic strings, extra
// NUMNUM-heavy strings when the pattern mentions NUMNUM, and amplified
// copies of the sample texts (capped at 4000 bytes).
func testStrings(pattern string, samples []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	for _, s := range samples {
		add(s)
	}

	for _, s := range []string{"a", "0", " ", "NUMNUM", "test"} {
		add(s)
	}
	for _, s := range []string{strings.Repeat("a", 64), strings.Repeat("0", 64), strings.Repeat(" ", 64), strings.Repeat("x", 64) + "y"} {
		add(s)
	}
	for _, s := range []string{strings.Repeat("a", 512), strings.Repeat("0", 512), strings.Repeat("x", 512) + "y", strings.Repeat(" ", 512)} {
		add(s)
	}

	if strings.Contains(pattern, "NUMNUM") {
		add(strings.TrimSpace(strings.Repeat(" NUMNUM", 64)))
		add(strings.TrimSpace(strings.Repeat("NUMNUM ", 64)))
		add(strings.TrimSpace(strings.Repeat(" NUMNUM", 128)))
	}

	for _, s := range samples {
		if s == "" {
			continue
		}
		long := strings.Repeat(s+" ", 5)
		if len(long) > 4000 {
			long = long[:4000]
		}
		add(long)
	}

	return out
}

// Analyze runs the full static-plus-dynamic safety analysis on pattern.
// sampleTexts are real matched log lines used to seed the stress corpus;
// timeout bounds each individual dynamic match attempt (use DefaultTimeout
// when unset).
func Analyze(pattern string, sampleTexts []string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	res := Result{Pattern: pattern, StaticFlags: staticRedFlags(pattern)}

	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		res.Level = LevelDanger
		res.CompileOK = false
		res.RuntimeError = err.Error()
		return res
	}
	res.CompileOK = true
	re.MatchTimeout = timeout

	tested := 0
	for _, text := range testStrings(pattern, sampleTexts) {
		start := time.Now()
		_, matchErr := re.MatchString(text)
		cost := time.Since(start)

		if matchErr != nil {
			if isTimeoutErr(matchErr) {
				res.DynamicTimeout = true
				res.TimeoutTextPreview = preview(text)
				res.TimeoutCost = cost
			} else {
				res.RuntimeError = matchErr.Error()
			}
			break
		}
		if cost > timeout {
			res.DynamicTimeout = true
			res.TimeoutTextPreview = preview(text)
			res.TimeoutCost = cost
			break
		}
		tested++
	}
	res.SamplesTested = tested

	switch {
	case !res.CompileOK || res.DynamicTimeout || res.RuntimeError != "":
		res.Level = LevelDanger
	case contains(res.StaticFlags, "nested_quantifier_group"):
		res.Level = LevelDanger
	case len(res.StaticFlags) > 0:
		res.Level = LevelWarning
	default:
		res.Level = LevelOK
	}
	return res
}

// Safe reports whether pattern is acceptable for persistence: danger-level
// results are rejected, warning and ok are accepted. Callers that want the
// stricter "reject warnings too" policy check res.Level directly.
func Safe(pattern string, sampleTexts []string) bool {
	return Analyze(pattern, sampleTexts, 0).Level != LevelDanger
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func isTimeoutErr(err error) bool {
	if _, ok := err.(*regexp2.RegexMatchTimeoutException); ok {
		return true
	}
	return strings.Contains(err.Error(), "match timeout")
}
