package index

import "testing"

func TestLongestLiteralHint(t *testing.T) {
	cases := []struct {
		pattern string
		want    string
	}{
		{`^sensor:\d+, age=NUMNUM$`, "sensor:"},
		{`abc`, ""},
		{`short`, "short"},
		{`foo\.bar\.baz`, "foo.bar.baz"},
		{`\d+ things`, "things"},
		{`^(a+)+$`, ""},
	}
	for _, c := range cases {
		got := longestLiteralHint(c.pattern)
		if got != c.want {
			t.Errorf("longestLiteralHint(%q) = %q, want %q", c.pattern, got, c.want)
		}
	}
}
