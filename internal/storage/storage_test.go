package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/wolfdex/idjc/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		BusyTimeout: time.Second,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v", driver, st, err)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func TestAppendAndPruneSends(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	recs := []SendRecord{
		{At: now.Add(-48 * time.Hour), Server: "irc.example.net:6667", Target: "#radio", Kind: "privmsg", Text: "old"},
		{At: now, Server: "irc.example.net:6667", Target: "#radio", Kind: "privmsg", Text: "fresh"},
		{At: now, Server: "irc.example.net:6667", Target: "bob", Kind: "notice", Text: "fresh notice"},
	}
	for _, rec := range recs {
		if err := st.AppendSend(ctx, rec); err != nil {
			t.Fatalf("AppendSend: %v", err)
		}
	}

	n, err := st.PruneSends(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneSends: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned = %d, want 1", n)
	}

	n, err = st.PruneSends(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneSends again: %v", err)
	}
	if n != 0 {
		t.Fatalf("second prune removed %d", n)
	}
}

func TestAppendSendDefaultsTimestamp(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.AppendSend(ctx, SendRecord{Server: "s", Target: "#c", Kind: "privmsg", Text: "x"}); err != nil {
		t.Fatalf("AppendSend: %v", err)
	}
	// A zero At is stamped now, so a prune far in the past removes nothing.
	n, err := st.PruneSends(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("PruneSends: %v", err)
	}
	if n != 0 {
		t.Fatalf("pruned = %d, want 0", n)
	}
}
