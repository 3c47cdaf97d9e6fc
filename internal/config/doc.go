// Package config owns the row tree that drives the IRC engine: Server rows,
// their five fixed message groups, and the message rules under each group.
//
// The tree is owned by the control context. Connections never mutate it
// directly; writes coming from a connection goroutine (displayed nick, timer
// issue counters) are marshaled through Store.Post and applied by the control
// loop. External edits to the tree file are picked up by a watcher, diffed
// against the in-memory tree, and surfaced as ordered row events.
package config
