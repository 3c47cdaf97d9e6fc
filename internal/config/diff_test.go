package config

import (
	"reflect"
	"testing"
)

func TestDiffTreesServerFieldChange(t *testing.T) {
	oldTree := sampleTree()
	newTree := oldTree.Clone()
	newTree.Servers[0].Hostname = "irc.elsewhere.net"

	events := DiffTrees(oldTree, newTree)
	want := []Event{{Kind: RowChanged, Path: Path{0}}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
}

func TestDiffTreesRuleChange(t *testing.T) {
	oldTree := sampleTree()
	newTree := oldTree.Clone()
	newTree.Servers[0].Groups[CategoryTimer].Rules[0].Message = "changed"

	events := DiffTrees(oldTree, newTree)
	want := []Event{{Kind: RowChanged, Path: Path{0, int(CategoryTimer), 0}}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
}

func TestDiffTreesGroupToggle(t *testing.T) {
	oldTree := sampleTree()
	newTree := oldTree.Clone()
	newTree.Servers[0].Groups[CategoryStreamUp].Active = false

	events := DiffTrees(oldTree, newTree)
	want := []Event{{Kind: RowChanged, Path: Path{0, int(CategoryStreamUp)}}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
}

func TestDiffTreesServerInsertDelete(t *testing.T) {
	oldTree := sampleTree()
	newTree := oldTree.Clone()
	newTree.Servers = append(newTree.Servers, NewServerRow())

	events := DiffTrees(oldTree, newTree)
	if want := []Event{{Kind: RowInserted, Path: Path{1}}}; !reflect.DeepEqual(events, want) {
		t.Fatalf("insert events = %v, want %v", events, want)
	}

	events = DiffTrees(newTree, oldTree)
	if want := []Event{{Kind: RowDeleted, Path: Path{1}}}; !reflect.DeepEqual(events, want) {
		t.Fatalf("delete events = %v, want %v", events, want)
	}
}

// Deletes at the tail come out highest index first, so a listener removing
// rows as it goes never invalidates the paths still queued behind.
func TestDiffTreesDeletesDeepestIndexFirst(t *testing.T) {
	oldTree := sampleTree()
	oldTree.Servers[0].Groups[CategoryTimer].Rules = append(
		oldTree.Servers[0].Groups[CategoryTimer].Rules,
		&Rule{Active: true, Targets: "#x", IntervalSec: 600},
		&Rule{Active: true, Targets: "#y", IntervalSec: 600},
	)
	newTree := oldTree.Clone()
	newTree.Servers[0].Groups[CategoryTimer].Rules = newTree.Servers[0].Groups[CategoryTimer].Rules[:1]

	events := DiffTrees(oldTree, newTree)
	want := []Event{
		{Kind: RowDeleted, Path: Path{0, int(CategoryTimer), 2}},
		{Kind: RowDeleted, Path: Path{0, int(CategoryTimer), 1}},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
}

func TestDiffTreesNoChange(t *testing.T) {
	tree := sampleTree()
	if events := DiffTrees(tree, tree.Clone()); len(events) != 0 {
		t.Fatalf("events = %v, want none", events)
	}
}
