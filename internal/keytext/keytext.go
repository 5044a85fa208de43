// Package keytext extracts the normalized message body ("key text") from a
// log record: the line with all leading bracketed "[...]" segments stripped
// and surrounding whitespace trimmed. The field parser calls it to fill
// Record.KeyText; the unique-set builder and the diversity buffer take those
// key-texts as given and do not call it themselves.
package keytext

import "strings"

// Extract strips every leading "[...]" segment from rest, trimming
// whitespace between segments and at the ends, and returns what remains.
//
// Equality on the result is byte-exact: two records with the same Extract
// output are considered the same key text regardless of any other field.
func Extract(rest string) string {
	s := strings.TrimSpace(rest)
	for {
		s = strings.TrimLeft(s, " \t")
		if !strings.HasPrefix(s, "[") {
			break
		}
		idx := strings.IndexByte(s, ']')
		if idx == -1 {
			break
		}
		s = s[idx+1:]
	}
	return strings.TrimSpace(s)
}
