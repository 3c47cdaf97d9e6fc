package irc

import (
	"strings"
	"time"

	ircmsg "gopkg.in/irc.v4"

	"github.com/wolfdex/idjc/pkg/logx"
)

// Numeric replies that mean the requested nickname is unavailable.
const (
	rplWelcome         = "001"
	errNoNicknameGiven = "431"
	errErroneousNick   = "432"
	errNicknameInUse   = "433"
	errNickCollision   = "436"
)

// handleWire processes one event off the read loop. Events carrying a stale
// session pointer are dropped: they belong to a connection that has already
// been replaced.
func (c *Conn) handleWire(ev wireEvent) {
	if ev.sess != c.sess || c.sess == nil {
		return
	}
	if ev.err != nil {
		c.onDisconnect(ev.err)
		return
	}
	msg := ev.msg
	switch msg.Command {
	case "PING":
		c.send("PONG", trailing(msg))
	case rplWelcome:
		c.onWelcome(msg)
	case errNicknameInUse, errNickCollision, errNoNicknameGiven, errErroneousNick:
		c.tryAlternateNick()
	case "JOIN":
		if sourceNick(msg) == c.nick {
			c.log.Info("channel joined", logx.String("channel", trailing(msg)))
		}
	case "NOTICE":
		c.onNotice(msg)
	case "PRIVMSG":
		if payload, ok := ctcpPayload(trailing(msg)); ok {
			c.handleCTCP(sourceNick(msg), payload)
		}
	}
}

func (c *Conn) onDisconnect(err error) {
	c.log.Info("irc server disconnected", logx.Err(err),
		logx.String("host", c.cfg.Hostname))
	c.sess.close()
	c.sess = nil
	c.ready = false
	c.setDisplayedNick("")
}

// onWelcome marks the session Ready. Every group's channel attribution is
// invalidated first: the server just reset our membership, so the reconcile
// pass that follows rejoins everything from a clean slate.
func (c *Conn) onWelcome(msg *ircmsg.Message) {
	assigned := c.nick
	if len(msg.Params) > 0 && msg.Params[0] != "" {
		assigned = msg.Params[0]
	}
	c.log.Info("irc welcome", logx.String("nick", assigned),
		logx.String("host", c.cfg.Hostname))
	c.ready = true
	c.nick = assigned
	c.setDisplayedNick(assigned)

	c.invalidateGroups()
	for i := range c.groups {
		c.reconcileGroup(i)
	}

	if assigned != c.cfg.Nick1 && c.cfg.NickServ != "" {
		c.nickRecover()
	}
}

// nickRecover asks NickServ to free the primary nickname, then takes it:
// RECOVER, RELEASE and NICK one second apart. Service commands carry the
// password, so they bypass the audited chat path.
func (c *Conn) nickRecover() {
	target := c.cfg.Nick1
	pw := c.cfg.NickServ
	sess := c.sess
	steps := []func(){
		func() { c.send("PRIVMSG", "NickServ", "RECOVER "+target+" "+pw) },
		func() { c.send("PRIVMSG", "NickServ", "RELEASE "+target+" "+pw) },
		func() { c.send("NICK", target) },
	}
	c.log.Info("recovering nickname via NickServ", logx.String("nick", target))
	for i, step := range steps {
		step := step
		c.scheduleAfter(time.Duration(i+1)*time.Second, func() {
			if c.sess == sess {
				step()
			}
		})
	}
}

// onNotice watches for NickServ service traffic. Anything else just
// refreshes the displayed nickname with whatever the server addressed us as.
func (c *Conn) onNotice(msg *ircmsg.Message) {
	if msg.Prefix == nil {
		return
	}
	recipient := ""
	if len(msg.Params) > 0 {
		recipient = msg.Params[0]
	}
	text := trailing(msg)

	if msg.Prefix.Name != "NickServ" || msg.Prefix.User != "services" {
		return
	}
	c.log.Info("service notice", logx.String("from", msg.Prefix.Name), logx.String("text", text))

	pw := c.cfg.NickServ
	switch {
	case strings.Contains(text, "NickServ IDENTIFY") && pw != "":
		c.send("PRIVMSG", "NickServ", "IDENTIFY "+pw)
		c.log.Info("identified with NickServ")
		c.adoptNick(recipient)
	case strings.Contains(text, "Guest"):
		fields := strings.Fields(text)
		if len(fields) > 0 {
			c.adoptNick(strings.TrimFunc(fields[len(fields)-1], isControlRune))
		}
		if pw != "" {
			c.nickRecover()
		}
	default:
		c.adoptNick(recipient)
	}
}

// adoptNick updates the live and displayed nickname from a server-supplied
// value. Pre-registration placeholders are ignored.
func (c *Conn) adoptNick(nick string) {
	if nick == "" || nick == "*" {
		return
	}
	c.nick = nick
	c.setDisplayedNick(nick)
}

func isControlRune(r rune) bool {
	return r < 0x20 || r == 0x7f
}
