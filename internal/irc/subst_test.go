package irc

import "testing"

func TestSubstitute(t *testing.T) {
	meta := NewMetadata()
	meta.Merge(map[string]string{"artist": "A", "title": "T", "album": "L"})

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"artist title album", "%r - %t (%l) %%", "A - T (L) %"},
		{"no tokens", "plain text", "plain text"},
		{"missing field", "%d", "No data"},
		{"unknown token", "100%x", "100%x"},
		{"trailing percent", "done%", "done%"},
		{"double literal", "%%%%", "%%"},
		{"source token", "from %U", "from No data"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Substitute(tc.in, meta); got != tc.want {
				t.Fatalf("Substitute(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestMetadataMergeIgnoresUnknownFields(t *testing.T) {
	meta := NewMetadata()
	meta.Merge(map[string]string{"artist": "A", "bogus": "x"})
	if meta["artist"] != "A" {
		t.Fatalf("artist = %q", meta["artist"])
	}
	if _, ok := meta["bogus"]; ok {
		t.Fatal("unknown field leaked into metadata")
	}
	if meta["title"] != "No data" {
		t.Fatalf("title placeholder = %q", meta["title"])
	}
}
