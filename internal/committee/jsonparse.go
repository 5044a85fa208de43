package committee

import (
	"encoding/json"
	"fmt"
	"strings"
)

// rawDraft is the wire shape a model is instructed to emit: a JSON array of
// objects with these four keys. NUMNUM is a literal token the model is told
// to use in place of any numeric run in pattern.
type rawDraft struct {
	Pattern      string `json:"pattern"`
	SampleLog    string `json:"sample_log,omitempty"`
	SemanticInfo string `json:"semantic_info"`
	Advise       string `json:"advise"`
}

// parseJSONAfterThink tolerantly extracts a JSON array or object from a raw
// model completion. Grounded on _parse_json_after_think (core/committee.py):
// strip everything through a closing </think> tag if present (some models
// emit a reasoning preamble before the answer), then locate the first '['
// or '{' and decode from there. Returns an empty slice rather than an error
// on any parse failure, matching the original's fail-open behavior -- a
// malformed completion should not abort the firing.
func parseJSONAfterThink(raw string) []rawDraft {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "﻿")

	if idx := strings.LastIndex(s, "</think>"); idx != -1 {
		s = s[idx+len("</think>"):]
		s = strings.TrimSpace(s)
	}

	start := -1
	for i, r := range s {
		if r == '[' || r == '{' {
			start = i
			break
		}
	}
	if start == -1 {
		return nil
	}
	s = s[start:]

	if strings.HasPrefix(s, "{") {
		var one rawDraft
		if err := json.Unmarshal([]byte(s), &one); err != nil {
			return nil
		}
		return []rawDraft{one}
	}

	var many []rawDraft
	if err := json.Unmarshal([]byte(s), &many); err != nil {
		return nil
	}
	return many
}

// validateDraft rejects drafts whose pattern field is empty or whitespace;
// the committee never persists a template with no matching expression.
func validateDraft(d rawDraft) error {
	if strings.TrimSpace(d.Pattern) == "" {
		return fmt.Errorf("committee: draft missing pattern")
	}
	return nil
}
