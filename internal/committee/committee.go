// Package committee orchestrates the LLM-drafted regex template pipeline:
// truncate samples, draft candidates, adversary-filter against recent
// unmatched lines, regression-filter against historical matched samples,
// and arbitrate. Grounded on core/committee.py (original_source); the
// backend selection (stub vs a live HTTP chat-completions model) mirrors
// _run_stub vs _run_langchain/_run_langgraph collapsing to one code path.
package committee

import (
	"context"
	"math"
	"regexp"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/logweave/logweave/internal/catalog"
	"github.com/logweave/logweave/internal/logx"
	"github.com/logweave/logweave/internal/redos"
)

// Draft is one committee-proposed template before persistence.
type Draft struct {
	Pattern      string // pattern_nomal form, NUMNUM preserved
	SampleLog    string
	SemanticInfo string
	Advise       string
}

// Backend drafts candidate templates from a truncated, deduplicated sample
// set. Implementations: Stub (offline heuristic) and HTTPBackend (live
// OpenAI-compatible chat completions model).
type Backend interface {
	Draft(ctx context.Context, samples []string) ([]Draft, error)
}

// RunContext identifies the run a committee firing belongs to, used only
// for trace file naming and record tagging.
type RunContext struct {
	FileID string
	RunID  int64
}

// Config governs orchestration behavior: sample truncation limits, the
// adversary/regression corpora sizes, and the adversary pass/fail policy.
type Config struct {
	MaxItemsPerCall         int
	MaxCharsPerCall         int
	AdversaryUnmatchedLimit int
	RegressionSampleLimit   int
	RegressionPassRatio     float64 // default 0.6
	Source                  string  // tag written to regex_template.source
	Tracer                  *Tracer // nil disables trace recording
}

// DefaultConfig returns the orchestration defaults used when a caller
// leaves a field at its zero value.
func DefaultConfig() Config {
	return Config{
		MaxItemsPerCall:         120,
		MaxCharsPerCall:         32000,
		AdversaryUnmatchedLimit: 100,
		RegressionSampleLimit:   100,
		RegressionPassRatio:     0.6,
		Source:                  "committee",
	}
}

// Orchestrator drives one committee firing end to end.
type Orchestrator struct {
	backend       Backend
	cat           catalog.Catalog
	cfg           Config
	adversaryRule *vm.Program
}

// DefaultAdversaryPolicy is the adversary pass/fail expression used when no
// override is configured: a candidate passes only if it hits zero of the
// recent unmatched negatives.
const DefaultAdversaryPolicy = "hits == 0"

// New returns an Orchestrator. adversaryPolicy is an expr-lang boolean
// expression evaluated with env {hits, negatives_checked} (count of
// negatives matched, total negatives checked); an empty string selects
// DefaultAdversaryPolicy.
func New(backend Backend, cat catalog.Catalog, cfg Config, adversaryPolicy string) (*Orchestrator, error) {
	if adversaryPolicy == "" {
		adversaryPolicy = DefaultAdversaryPolicy
	}
	program, err := expr.Compile(adversaryPolicy, expr.AsBool())
	if err != nil {
		return nil, err
	}
	return &Orchestrator{backend: backend, cat: cat, cfg: cfg, adversaryRule: program}, nil
}

// Run executes the full Truncate -> Draft -> Adversary -> Regression ->
// Safety -> Arbitrate pipeline over samples and returns the candidates ready for
// catalog.WriteTemplates. An empty result means the firing produced
// nothing worth persisting; the caller still clears the buffer.
func (o *Orchestrator) Run(ctx context.Context, samples []string, rc RunContext) ([]catalog.Candidate, error) {
	truncated := truncateSamples(samples, o.cfg.MaxItemsPerCall, o.cfg.MaxCharsPerCall)
	o.trace(rc, "init", map[string]any{"samples": len(truncated)})

	drafts, err := o.backend.Draft(ctx, truncated)
	if err != nil {
		return nil, err
	}
	o.trace(rc, "draft.output", map[string]any{"count": len(drafts)})
	if len(drafts) == 0 {
		return nil, nil
	}

	negatives, err := o.cat.GetRecentUnmatched(ctx, o.cfg.AdversaryUnmatchedLimit)
	if err != nil {
		return nil, err
	}
	matchedHist, err := o.cat.GetTemplateSamples(ctx, o.cfg.RegressionSampleLimit)
	if err != nil {
		return nil, err
	}

	var adversaryPassed []Draft
	for _, d := range drafts {
		ok, hits := o.adversaryCheck(d.Pattern, negatives)
		o.trace(rc, "adversary.result", map[string]any{"pattern": d.Pattern, "hits": hits, "ok": ok})
		if ok {
			adversaryPassed = append(adversaryPassed, d)
		}
	}

	var regressionPassed []Draft
	for _, d := range adversaryPassed {
		ok := o.regressionCheck(d.Pattern, matchedHist)
		o.trace(rc, "regression.result", map[string]any{"pattern": d.Pattern, "ok": ok})
		if ok {
			regressionPassed = append(regressionPassed, d)
		}
	}

	var safe []Draft
	for _, d := range regressionPassed {
		result := redos.Analyze(d.Pattern, []string{d.SampleLog}, redos.DefaultTimeout)
		o.trace(rc, "safety.result", map[string]any{"pattern": d.Pattern, "level": string(result.Level)})
		if result.Level == redos.LevelDanger {
			logx.Warnf("committee: dropping unsafe pattern %q: %v", d.Pattern, result.StaticFlags)
			continue
		}
		safe = append(safe, d)
	}

	finalized := arbitrate(safe)
	o.trace(rc, "final", map[string]any{"kept": len(finalized)})

	candidates := make([]catalog.Candidate, 0, len(finalized))
	for _, d := range finalized {
		candidates = append(candidates, catalog.Candidate{
			PatternNomal: d.Pattern,
			SampleLog:    d.SampleLog,
			SemanticInfo: d.SemanticInfo,
			Advise:       d.Advise,
			Source:       o.cfg.Source,
		})
	}
	return candidates, nil
}

// adversaryCheck reports whether pattern passes the configured adversary
// policy against negatives (lines the existing catalog did not match,
// treated here as acceptable false negatives a new template must not
// absorb).
func (o *Orchestrator) adversaryCheck(pattern string, negatives []catalog.UnmatchedLog) (ok bool, hits int) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		logx.Warnf("committee: adversary stage: pattern failed to compile: %v", err)
		return false, 0
	}
	for _, n := range negatives {
		if re.MatchString(n.Raw) {
			hits++
		}
	}
	pass, err := expr.Run(o.adversaryRule, map[string]any{"hits": hits, "negatives_checked": len(negatives)})
	if err != nil {
		logx.Warnf("committee: adversary policy evaluation failed: %v", err)
		return false, hits
	}
	return pass.(bool), hits
}

// regressionCheck reports whether pattern matches at least
// RegressionPassRatio of matchedHist, or the corpus is empty.
func (o *Orchestrator) regressionCheck(pattern string, matchedHist []catalog.Template) bool {
	if len(matchedHist) == 0 {
		return true
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	hits := 0
	for _, t := range matchedHist {
		if re.MatchString(t.SampleLog) {
			hits++
		}
	}
	need := int(math.Ceil(float64(len(matchedHist)) * o.cfg.RegressionPassRatio))
	if need < 1 {
		need = 1
	}
	return hits >= need
}

// arbitrate is a pass-through hook: the current policy keeps every
// draft that passed the regression and safety stages, as a place to add inter-candidate deduplication
// or scoring later.
func arbitrate(drafts []Draft) []Draft { return drafts }

func (o *Orchestrator) trace(rc RunContext, event string, payload map[string]any) {
	if o.cfg.Tracer == nil {
		return
	}
	o.cfg.Tracer.Write(rc, event, payload)
}

// truncateSamples deduplicates samples, sorts by length ascending, and
// keeps at most maxItems whose cumulative length stays within maxChars.
// Shorter, more diverse samples are favored to bound LLM input size.
func truncateSamples(samples []string, maxItems, maxChars int) []string {
	seen := make(map[string]bool, len(samples))
	uniq := make([]string, 0, len(samples))
	for _, s := range samples {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		uniq = append(uniq, s)
	}
	sort.Slice(uniq, func(i, j int) bool { return len(uniq[i]) < len(uniq[j]) })

	if len(uniq) > maxItems {
		uniq = uniq[:maxItems]
	}

	out := make([]string, 0, len(uniq))
	total := 0
	for _, s := range uniq {
		if total+len(s)+1 > maxChars {
			break
		}
		out = append(out, s)
		total += len(s) + 1
	}
	return out
}
