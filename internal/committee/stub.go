package committee

import (
	"context"
	"regexp"
)

// maxStubSamples caps how many input samples the stub backend turns into
// drafts in one call, matching _run_stub's cap in core/committee.py.
const maxStubSamples = 10

var digitRun = regexp.MustCompile(`\d+`)

// Stub is an offline Backend that heuristically generalizes each sample
// into a pattern by escaping it and replacing digit runs with the NUMNUM
// placeholder. It requires no network access or API credentials, useful for
// tests, local development, and as a fallback when no model is configured.
// Grounded on _run_stub (core/committee.py).
type Stub struct{}

// Draft implements Backend.
func (Stub) Draft(_ context.Context, samples []string) ([]Draft, error) {
	if len(samples) > maxStubSamples {
		samples = samples[:maxStubSamples]
	}
	drafts := make([]Draft, 0, len(samples))
	for _, s := range samples {
		pattern := digitRun.ReplaceAllString(regexp.QuoteMeta(s), "NUMNUM")
		drafts = append(drafts, Draft{
			Pattern:      pattern,
			SampleLog:    s,
			SemanticInfo: "auto-generalized from a single observed sample",
			Advise:       "review before relying on this template broadly",
		})
	}
	return drafts, nil
}
