package irc

import (
	"testing"
	"time"
)

func TestPlayedListBounds(t *testing.T) {
	var p playedList
	now := time.Now()
	for i := 0; i < playedMax+5; i++ {
		p.Add("song", now)
	}
	if len(p.entries) != playedMax {
		t.Fatalf("entries = %d, want %d", len(p.entries), playedMax)
	}
}

func TestPlayedListNewestFirst(t *testing.T) {
	var p playedList
	now := time.Now()
	p.Add("first", now.Add(-2*time.Minute))
	p.Add("second", now.Add(-time.Minute))

	recent := p.Recent(now)
	if len(recent) != 2 || recent[0].Song != "second" || recent[1].Song != "first" {
		t.Fatalf("recent = %+v", recent)
	}
}

func TestPlayedListWindow(t *testing.T) {
	var p playedList
	now := time.Now()
	p.Add("stale", now.Add(-playedWindow-time.Minute))
	p.Add("edge", now.Add(-playedWindow+time.Second))
	p.Add("fresh", now)

	recent := p.Recent(now)
	if len(recent) != 2 {
		t.Fatalf("recent = %+v", recent)
	}
	for _, e := range recent {
		if e.Song == "stale" {
			t.Fatal("entry outside window reported")
		}
	}
}
