package irc

import "errors"

var (
	// ErrConnectFailed marks a dial/handshake failure. Transient: retried on
	// the fixed backoff schedule, then surfaced as a cleared nick display.
	ErrConnectFailed = errors.New("irc: connect failed")

	// ErrNicknameExhausted is terminal for one connection attempt: every
	// fallback nickname was rejected by the server.
	ErrNicknameExhausted = errors.New("irc: nickname alternatives exhausted")
)
