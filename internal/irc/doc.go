// Package irc is the notification engine: one reconnecting protocol client
// per configured server row, five message-scheduling policies per client, and
// channel-membership reconciliation shared between them.
//
// Each Conn runs its own event loop goroutine; every outside trigger (config
// rows, stream state, metadata, timers) reaches it only as a closure on its
// private action queue, so wire I/O and state changes are fully serialized
// per connection. The Manager bridges the control context (the config store)
// to the connection goroutines.
package irc
