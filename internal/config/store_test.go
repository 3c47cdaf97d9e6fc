package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wolfdex/idjc/pkg/logx"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "servers.json"), logx.Nop())
}

func TestStoreLoadMissingFileStartsEmpty(t *testing.T) {
	s := testStore(t)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := len(s.Tree().Servers); n != 0 {
		t.Fatalf("servers = %d", n)
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	s := testStore(t)
	s.tree = sampleTree()
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	fresh := NewStore(s.path, logx.Nop())
	if err := fresh.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	srv := fresh.Tree().Servers[0]
	if srv.Hostname != "irc.example.net" || srv.Port != 6697 {
		t.Fatalf("reloaded server = %+v", srv)
	}
}

func TestSetTimerIssuePersistsAndNotifies(t *testing.T) {
	s := testStore(t)
	s.tree = sampleTree()

	var events []Event
	s.listeners = append(s.listeners, func(ev Event) { events = append(events, ev) })

	p := Path{0, int(CategoryTimer), 0}
	if err := s.SetTimerIssue(p, 7); err != nil {
		t.Fatalf("SetTimerIssue: %v", err)
	}
	if len(events) != 1 || events[0].Kind != RowChanged || !events[0].Path.Equal(p) {
		t.Fatalf("events = %v", events)
	}

	fresh := NewStore(s.path, logx.Nop())
	if err := fresh.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	r, err := fresh.Tree().Rule(p)
	if err != nil {
		t.Fatalf("Rule: %v", err)
	}
	if r.Issue != 7 {
		t.Fatalf("persisted issue = %d", r.Issue)
	}

	// Same value again: no save, no event.
	events = nil
	if err := s.SetTimerIssue(p, 7); err != nil {
		t.Fatalf("SetTimerIssue repeat: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("repeat events = %v", events)
	}
}

func TestSetTimerIssueBadPath(t *testing.T) {
	s := testStore(t)
	s.tree = sampleTree()
	if err := s.SetTimerIssue(Path{0, int(CategoryTimer), 9}, 1); err == nil {
		t.Fatal("bad path accepted")
	}
}

func TestSetDisplayedNickIsTransient(t *testing.T) {
	s := testStore(t)
	s.tree = sampleTree()
	s.SetDisplayedNick(0, "dj_live")
	if s.tree.Servers[0].Nick != "dj_live" {
		t.Fatal("nick not written")
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got, err := UnmarshalTree(b)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if got.Servers[0].Nick != "" {
		t.Fatal("transient nick reached the file")
	}
}
