package irc

import (
	"reflect"
	"testing"
)

func set(entries ...string) map[string]bool {
	m := make(map[string]bool, len(entries))
	for _, e := range entries {
		m[e] = true
	}
	return m
}

// The two join branches behave differently on purpose: with another group
// holding channels only the additions are joined, with no other holder the
// whole next set is rejoined. The welcome path relies on the second branch to
// restore membership after the server reset it.
func TestReconcileSetsJoinBranches(t *testing.T) {
	t.Run("rest non-empty joins only new entries", func(t *testing.T) {
		joins, parts := reconcileSets(set("#a"), set("#a", "#b"), set("#x"))
		if want := []string{"#b"}; !reflect.DeepEqual(joins, want) {
			t.Fatalf("joins = %v, want %v", joins, want)
		}
		if len(parts) != 0 {
			t.Fatalf("parts = %v, want none", parts)
		}
	})

	t.Run("rest empty rejoins the full set", func(t *testing.T) {
		joins, _ := reconcileSets(set("#a"), set("#a", "#b"), nil)
		if want := []string{"#a", "#b"}; !reflect.DeepEqual(joins, want) {
			t.Fatalf("joins = %v, want %v", joins, want)
		}
	})
}

func TestReconcileSetsPartsSpareSharedChannels(t *testing.T) {
	joins, parts := reconcileSets(set("#a", "#b", "#c"), set("#a"), set("#b"))
	if len(joins) != 0 {
		t.Fatalf("joins = %v, want none", joins)
	}
	if want := []string{"#c"}; !reflect.DeepEqual(parts, want) {
		t.Fatalf("parts = %v, want %v", parts, want)
	}
}

func TestReconcileSetsPartsNeverIntersectRest(t *testing.T) {
	rest := set("#shared", "#other")
	_, parts := reconcileSets(set("#shared", "#mine"), set(), rest)
	for _, p := range parts {
		if rest[p] {
			t.Fatalf("parted %q while another group still requires it", p)
		}
	}
	if want := []string{"#mine"}; !reflect.DeepEqual(parts, want) {
		t.Fatalf("parts = %v, want %v", parts, want)
	}
}

func TestSplitChannelKey(t *testing.T) {
	cases := []struct {
		in        string
		name, key string
	}{
		{"#room", "#room", ""},
		{"#room:sekrit", "#room", "sekrit"},
		{"#room:a:b", "#room", "a:b"},
	}
	for _, tc := range cases {
		name, key := splitChannelKey(tc.in)
		if name != tc.name || key != tc.key {
			t.Fatalf("splitChannelKey(%q) = %q,%q", tc.in, name, key)
		}
	}
}

func TestIsChannelEntry(t *testing.T) {
	for entry, want := range map[string]bool{
		"#room": true, "&local": true, "nick": false, "": false,
	} {
		if got := isChannelEntry(entry); got != want {
			t.Fatalf("isChannelEntry(%q) = %v", entry, got)
		}
	}
}
