// Package errs defines the error kinds from the pipeline's error handling
// design: InputIO aborts a run, every other kind is logged and the run
// continues. Callers use errors.Is against the sentinel Kind values.
package errs

import "errors"

// Kind identifies one of the error categories the pipeline distinguishes.
// Wrap a Kind with fmt.Errorf("...: %w", Kind) to preserve errors.Is while
// attaching context.
type Kind error

var (
	// InputIO marks an unreadable source file. The only kind that aborts a run.
	InputIO Kind = errors.New("input io error")

	// ParseSkipped marks a line that did not match the record grammar.
	// Logged and silently skipped; never aborts.
	ParseSkipped Kind = errors.New("line did not match grammar")

	// RegexCompile marks an active template whose pattern failed to compile
	// at index-build time. The template is deactivated and omitted.
	RegexCompile Kind = errors.New("template pattern failed to compile")

	// RegexUnsafe marks a candidate template rejected by the safety analyzer
	// before it was ever written to the catalog.
	RegexUnsafe Kind = errors.New("pattern failed safety analysis")

	// LLMFailure marks a committee firing that produced zero candidates
	// because of a provider error or malformed JSON.
	LLMFailure Kind = errors.New("llm committee call failed")

	// CatalogConflict marks a uniqueness violation treated as a dedup no-op.
	CatalogConflict Kind = errors.New("catalog uniqueness conflict")
)

// Is reports whether err ultimately wraps kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, kind)
}
