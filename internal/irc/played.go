package irc

import "time"

const (
	// playedWindow is how far back the CTCP PLAYED query reaches.
	playedWindow = 90 * time.Minute
	// playedMax bounds the buffer; oldest entries fall off.
	playedMax = 10
)

type playedEntry struct {
	Song string
	At   time.Time
}

// playedList is a most-recent-first buffer of played songs. It is owned by
// one Conn and only touched from its event loop.
type playedList struct {
	entries []playedEntry
}

func (p *playedList) Add(song string, now time.Time) {
	p.entries = append([]playedEntry{{Song: song, At: now}}, p.entries...)
	if len(p.entries) > playedMax {
		p.entries = p.entries[:playedMax]
	}
}

// Recent returns the entries still inside the report window, newest first.
func (p *playedList) Recent(now time.Time) []playedEntry {
	out := make([]playedEntry, 0, len(p.entries))
	for _, e := range p.entries {
		if now.Sub(e.At) < playedWindow {
			out = append(out, e)
		}
	}
	return out
}
