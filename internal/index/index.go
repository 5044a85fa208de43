// Package index builds the compiled, literal-prefiltered regex index that
// match workers query against. Construction never aborts on a single bad
// pattern: compile failures are logged and reported to the caller so the
// catalog can deactivate the poisoned template, and the build continues
// with every other entry. Grounded on core/matcher.py (original_source)
// and spec.md §4.7/§4.8.
package index

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/logweave/logweave/internal/catalog"
	"github.com/logweave/logweave/internal/logx"
)

// DefaultCacheSize is the default memoization capacity: key_text ->
// matched-or-not result.
const DefaultCacheSize = 20000

type entry struct {
	templateID int64
	re         *regexp.Regexp
}

type hint struct {
	literal    string
	entryIndex int
}

type cacheResult struct {
	templateID int64
	matched    bool
}

// CompiledIndex is an immutable snapshot of the active template set, ready
// for concurrent read-only matching. A new CompiledIndex is built whenever
// the committee writes templates; the memoization cache lives inside it and
// is therefore invalidated by construction, never by explicit clearing.
type CompiledIndex struct {
	entries  []entry
	buckets  map[byte][]hint
	fallback []int
	cache    *lru.Cache[string, cacheResult]
}

// Build compiles every template in templates, in the order given (callers
// must supply ascending template_id order so that iteration and tie-break
// order match insertion order). onCompileFail is invoked with the
// template_id of any pattern that fails to compile; that entry is omitted
// from the index.
func Build(templates []catalog.Template, onCompileFail func(templateID int64), cacheSize int) *CompiledIndex {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, cacheResult](cacheSize)
	if err != nil {
		logx.Fatalf("index: create memoization cache: %v", err)
	}

	idx := &CompiledIndex{
		buckets: make(map[byte][]hint),
		cache:   cache,
	}

	for _, tmpl := range templates {
		re, err := regexp.Compile(tmpl.Pattern)
		if err != nil {
			logx.Warnf("index: template %d failed to compile, deactivating: %v", tmpl.TemplateID, err)
			if onCompileFail != nil {
				onCompileFail(tmpl.TemplateID)
			}
			continue
		}

		entryIndex := len(idx.entries)
		idx.entries = append(idx.entries, entry{templateID: tmpl.TemplateID, re: re})

		if lit := longestLiteralHint(tmpl.Pattern); lit != "" {
			b := lit[0]
			idx.buckets[b] = append(idx.buckets[b], hint{literal: lit, entryIndex: entryIndex})
		} else {
			idx.fallback = append(idx.fallback, entryIndex)
		}
	}

	return idx
}

// candidates returns, in deterministic order, the entry indices that should
// be tried against t: hint-bucketed entries whose literal occurs in t
// (ordered by first occurrence of the bucketing character in t, then
// insertion order within a bucket), followed by every fallback entry.
func (idx *CompiledIndex) candidates(t string) []int {
	yielded := make(map[int]bool)
	var out []int

	seenChar := make(map[byte]bool)
	for i := 0; i < len(t); i++ {
		c := t[i]
		if seenChar[c] {
			continue
		}
		seenChar[c] = true

		for _, h := range idx.buckets[c] {
			if yielded[h.entryIndex] {
				continue
			}
			if strings.Contains(t, h.literal) {
				yielded[h.entryIndex] = true
				out = append(out, h.entryIndex)
			}
		}
	}

	for _, ei := range idx.fallback {
		if !yielded[ei] {
			yielded[ei] = true
			out = append(out, ei)
		}
	}
	return out
}

// Match returns the template_id of the first entry whose pattern searches
// into keyText, trying candidates in deterministic order, memoized by
// keyText.
func (idx *CompiledIndex) Match(keyText string) (templateID int64, matched bool) {
	if cached, ok := idx.cache.Get(keyText); ok {
		return cached.templateID, cached.matched
	}

	for _, ei := range idx.candidates(keyText) {
		e := idx.entries[ei]
		if e.re.MatchString(keyText) {
			idx.cache.Add(keyText, cacheResult{templateID: e.templateID, matched: true})
			return e.templateID, true
		}
	}

	idx.cache.Add(keyText, cacheResult{matched: false})
	return 0, false
}

// Len reports the number of successfully compiled entries in the index.
func (idx *CompiledIndex) Len() int { return len(idx.entries) }
