package irc

import (
	"fmt"
	"strings"
	"time"
)

const (
	ctcpClientInfo = "CLIENTINFO VERSION TIME SOURCE PING ACTION CLIENTINFO " +
		"PLAYED STREAMSTATUS KILLSTREAM"
	ctcpVersion = "VERSION idjc 1.0 (go-irc)"
	ctcpSource  = "SOURCE http://www.sourceforge.net/projects/idjc"
)

// ctcpPayload unwraps \x01...\x01 framing from a PRIVMSG body.
func ctcpPayload(text string) (string, bool) {
	if len(text) >= 2 && text[0] == 0x01 && text[len(text)-1] == 0x01 {
		return text[1 : len(text)-1], true
	}
	return "", false
}

// handleCTCP answers the diagnostic queries other users may send the bot.
// Unrecognized or malformed requests are ignored.
func (c *Conn) handleCTCP(from, payload string) {
	fields := strings.Fields(payload)
	if from == "" || len(fields) == 0 {
		return
	}
	reply := func(text string) { c.sendChat("ctcp", from, text) }

	switch fields[0] {
	case "CLIENTINFO":
		reply(ctcpClientInfo)
	case "VERSION":
		reply(ctcpVersion)
	case "TIME":
		reply("TIME " + time.Now().Format(time.ANSIC))
	case "SOURCE":
		reply(ctcpSource)
	case "PING":
		reply(strings.Join(fields, " "))
	case "PLAYED":
		c.replyPlayed(from)
	case "STREAMSTATUS":
		state := "down"
		if c.streamActive {
			state = "up"
		}
		reply("STREAMSTATUS The stream is " + state)
	case "KILLSTREAM":
		reply("KILLSTREAM This feature was added as a joke.")
	case "ACTION":
		// Emotes directed at the bot carry nothing to act on.
	}
}

// replyPlayed reports the recent track history one line per second, so the
// burst cannot trip server flood limits even without the pacer.
func (c *Conn) replyPlayed(from string) {
	now := time.Now()
	recent := c.played.Recent(now)
	if len(recent) == 0 {
		c.sendChat("ctcp", from, "PLAYED Nothing recent to report.")
		return
	}
	sess := c.sess
	for i, entry := range recent {
		age := int(now.Sub(entry.At).Minutes())
		unit := "minutes"
		if age == 1 {
			unit = "minute"
		}
		line := fmt.Sprintf("PLAYED \x0304%s\x0f, \x0306%d %s ago\x0f.", entry.Song, age, unit)
		c.scheduleAfter(time.Duration(i+1)*time.Second, func() {
			if c.sess == sess {
				c.sendChat("ctcp", from, line)
			}
		})
	}
	c.scheduleAfter(time.Duration(len(recent)+1)*time.Second, func() {
		if c.sess == sess {
			c.sendChat("ctcp", from, "PLAYED End of list.")
		}
	})
}
