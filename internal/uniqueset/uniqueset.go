// Package uniqueset builds the per-file sorted-unique key-text catalog and
// occurrence counts consumed twice downstream (first-pass matching and a
// possible second-pass replay), per spec.md §4.4.
package uniqueset

import "sort"

// UniqueKey is one distinct key-text and how many times it occurred.
type UniqueKey struct {
	KeyText string
	Count   int
}

// Builder accumulates key-texts and produces the sorted-unique view on
// demand. Memory is proportional to the number of distinct key-texts, not
// the number of lines.
type Builder struct {
	counts map[string]int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{counts: make(map[string]int)}
}

// Add records one occurrence of keyText. Empty strings are ignored.
func (b *Builder) Add(keyText string) {
	if keyText == "" {
		return
	}
	b.counts[keyText]++
}

// Finish returns the distinct key-texts in ascending byte order together
// with their occurrence counts, in the same order.
func (b *Builder) Finish() []UniqueKey {
	out := make([]UniqueKey, 0, len(b.counts))
	for k, c := range b.counts {
		out = append(out, UniqueKey{KeyText: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyText < out[j].KeyText })
	return out
}

// Len reports the number of distinct key-texts seen so far.
func (b *Builder) Len() int { return len(b.counts) }
