package irc

import "strings"

// isChannelEntry reports whether a target entry names an IRC channel. Bare
// nicks live in requirement sets too but never generate JOIN/PART traffic.
func isChannelEntry(t string) bool {
	return strings.HasPrefix(t, "#") || strings.HasPrefix(t, "&")
}

// splitChannelKey splits a "name:key" target. Entries without a key return
// an empty key.
func splitChannelKey(entry string) (name, key string) {
	if i := strings.IndexByte(entry, ':'); i >= 0 {
		return entry[:i], entry[i+1:]
	}
	return entry, ""
}

// reconcileSets computes the join/part delta for one group's requirement
// change. rest is the union of the other groups' current sets on the same
// connection.
//
// When rest is non-empty only the entries new to this group are joined; when
// rest is empty the whole next set is joined unconditionally, which is what
// forces a full rejoin after the welcome invalidates every group. Parts are
// entries this group dropped that no other group still holds, so a channel
// is never left while some group wants it.
func reconcileSets(current, next, rest map[string]bool) (joins, parts []string) {
	base := current
	if len(rest) == 0 {
		base = nil
	}
	joinSet := make(map[string]bool)
	for t := range next {
		if !base[t] {
			joinSet[t] = true
		}
	}
	partSet := make(map[string]bool)
	for t := range current {
		if !next[t] && !rest[t] {
			partSet[t] = true
		}
	}
	return sortedKeys(joinSet), sortedKeys(partSet)
}
