// Package matchpool runs a CompiledIndex against a batch of key-texts in
// parallel while preserving input order, per spec.md §4.7.
package matchpool

import (
	"sync"

	"github.com/logweave/logweave/internal/index"
)

// Result is one key-text's match outcome.
type Result struct {
	KeyText    string
	TemplateID int64
	Matched    bool
}

// MatchBatch returns one Result per entry in keyTexts, in the same order.
// If workers <= 1 or len(keyTexts) <= 4*workers, matching runs inline on
// the calling goroutine. Otherwise work is distributed across workers
// goroutines. A key-level deduplication pass runs before dispatch: each
// distinct key-text is matched once regardless of how many times it
// appears in keyTexts, then results are scattered back to every position.
func MatchBatch(idx *index.CompiledIndex, keyTexts []string, workers int) []Result {
	results := make([]Result, len(keyTexts))
	if len(keyTexts) == 0 {
		return results
	}

	unique := make([]string, 0, len(keyTexts))
	positions := make(map[string][]int, len(keyTexts))
	for i, k := range keyTexts {
		if _, seen := positions[k]; !seen {
			unique = append(unique, k)
		}
		positions[k] = append(positions[k], i)
	}

	matchOne := func(k string) Result {
		id, ok := idx.Match(k)
		return Result{KeyText: k, TemplateID: id, Matched: ok}
	}

	var uniqueResults []Result
	if workers <= 1 || len(keyTexts) <= 4*workers {
		uniqueResults = make([]Result, len(unique))
		for i, k := range unique {
			uniqueResults[i] = matchOne(k)
		}
	} else {
		uniqueResults = matchParallel(unique, workers, matchOne)
	}

	for _, r := range uniqueResults {
		for _, pos := range positions[r.KeyText] {
			results[pos] = r
		}
	}
	return results
}

func matchParallel(keys []string, workers int, matchOne func(string) Result) []Result {
	out := make([]Result, len(keys))
	jobs := make(chan int)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = matchOne(keys[i])
			}
		}()
	}

	for i := range keys {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return out
}
