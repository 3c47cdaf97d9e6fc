// Package storage provides a minimal persistence layer for the IRC engine.
//
// It records every dispatched message (the send audit) in SQLite and prunes
// old entries on a daily schedule. Auditing is best-effort: failures are
// logged by callers and never block or fail a send.
package storage
