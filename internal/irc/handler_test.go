package irc

import (
	"errors"
	"strings"
	"testing"

	ircmsg "gopkg.in/irc.v4"
)

func parse(t *testing.T, line string) *ircmsg.Message {
	t.Helper()
	msg, err := ircmsg.ParseMessage(line)
	if err != nil {
		t.Fatalf("parse %q: %v", line, err)
	}
	return msg
}

func TestHandleWireDropsStaleSession(t *testing.T) {
	c := newTestConn()
	lines := attachPipe(t, c)

	stale := &session{}
	c.handleWire(wireEvent{sess: stale, msg: parse(t, "PING :late")})
	expectNoLine(t, lines)
}

func TestHandleWirePingPong(t *testing.T) {
	c := newTestConn()
	lines := attachPipe(t, c)

	c.handleWire(wireEvent{sess: c.sess, msg: parse(t, "PING :irc.example.net")})
	if l := readLine(t, lines); !strings.HasPrefix(l, "PONG ") || !strings.Contains(l, "irc.example.net") {
		t.Fatalf("pong = %q", l)
	}
}

func TestHandleWireNickRejectedNumerics(t *testing.T) {
	c := newTestConn()
	c.hooks.SetNick = func(string) {}
	c.cfg = ServerConfig{Hostname: "h", Nick1: "a", Nick2: "b", Nick3: "c"}
	c.alternates = c.cfg.AlternateNicks()
	lines := attachPipe(t, c)

	c.handleWire(wireEvent{sess: c.sess, msg: parse(t, ":irc.example.net 433 * a :Nickname is already in use")})
	if l := readLine(t, lines); l != "NICK b" {
		t.Fatalf("fallback = %q", l)
	}
}

func TestHandleWireDisconnectClearsState(t *testing.T) {
	c := newTestConn()
	var nicks []string
	c.hooks.SetNick = func(n string) { nicks = append(nicks, n) }
	_ = attachPipe(t, c)

	c.handleWire(wireEvent{sess: c.sess, err: errors.New("read: connection reset")})

	if c.sess != nil || c.ready {
		t.Fatal("session not torn down on disconnect")
	}
	if len(nicks) != 1 || nicks[0] != "" {
		t.Fatalf("displayed nick writes = %v", nicks)
	}
}

func TestNickServIdentifyNotice(t *testing.T) {
	c := newTestConn()
	c.hooks.SetNick = func(string) {}
	c.cfg = ServerConfig{Hostname: "h", Nick1: "a", NickServ: "hunter2"}
	lines := attachPipe(t, c)

	c.handleWire(wireEvent{sess: c.sess, msg: parse(t,
		":NickServ!services@services.example NOTICE a :This nickname is registered. NickServ IDENTIFY to continue")})

	l := readLine(t, lines)
	if !strings.HasPrefix(l, "PRIVMSG NickServ ") || !strings.Contains(l, "IDENTIFY hunter2") {
		t.Fatalf("identify line = %q", l)
	}
}

func TestNickServGuestNoticeAdoptsNick(t *testing.T) {
	c := newTestConn()
	var nicks []string
	c.hooks.SetNick = func(n string) { nicks = append(nicks, n) }
	c.cfg = ServerConfig{Hostname: "h", Nick1: "a"} // no password: no recover sequence
	c.nick = "a"
	_ = attachPipe(t, c)

	c.handleWire(wireEvent{sess: c.sess, msg: parse(t,
		":NickServ!services@services.example NOTICE a :Your nickname is now Guest12345")})

	if c.nick != "Guest12345" {
		t.Fatalf("nick = %q", c.nick)
	}
	if len(nicks) == 0 || nicks[len(nicks)-1] != "Guest12345" {
		t.Fatalf("displayed nick writes = %v", nicks)
	}
}

func TestNoticeFromOthersIgnored(t *testing.T) {
	c := newTestConn()
	c.hooks.SetNick = func(n string) { t.Fatalf("unexpected nick write %q", n) }
	c.cfg = ServerConfig{Hostname: "h", Nick1: "a", NickServ: "pw"}
	lines := attachPipe(t, c)

	c.handleWire(wireEvent{sess: c.sess, msg: parse(t,
		":mallory!user@host NOTICE a :NickServ IDENTIFY now please")})
	expectNoLine(t, lines)
}

func TestCTCPRequestRouted(t *testing.T) {
	c := newTestConn()
	lines := attachPipe(t, c)

	c.handleWire(wireEvent{sess: c.sess, msg: parse(t,
		":joe!user@host PRIVMSG a :\x01PING 7\x01")})
	if l := readLine(t, lines); !strings.Contains(l, "\x01PING 7\x01") {
		t.Fatalf("ctcp reply = %q", l)
	}
}
