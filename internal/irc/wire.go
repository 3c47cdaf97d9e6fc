package irc

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
	ircmsg "gopkg.in/irc.v4"
)

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 30 * time.Second
)

// wireEvent is one unit coming off a session's read loop. A non-nil err means
// the session is gone (EOF or read failure); msg is nil in that case.
type wireEvent struct {
	sess *session
	msg  *ircmsg.Message
	err  error
}

// session is one live TCP connection with the server's character encoding
// applied in both directions. Only the owning Conn's event loop writes to it.
type session struct {
	nc net.Conn
	r  io.Reader
	w  io.Writer

	closeOnce sync.Once
}

// resolveEncoding maps the per-server encoding name through the IANA index.
// UTF-8 and unknown/empty names mean "no transcoding".
func resolveEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return enc, nil
}

// dialSession opens the socket and wires the encoding transforms. Unmappable
// outbound runes are replaced, never fatal, matching the original client's
// errors="replace".
func dialSession(host string, port int, encodingName string) (*session, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	enc, err := resolveEncoding(encodingName)
	if err != nil {
		return nil, err
	}

	nc, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, err
	}

	s := &session{nc: nc, r: nc, w: nc}
	if enc != nil {
		s.r = transform.NewReader(nc, enc.NewDecoder())
		s.w = transform.NewWriter(nc, encoding.ReplaceUnsupported(enc.NewEncoder()))
	}
	return s, nil
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		_ = s.nc.Close()
	})
}

// writeMessage sends one IRC line. The write deadline bounds how long a stuck
// peer can block the connection's event loop.
func (s *session) writeMessage(m *ircmsg.Message) error {
	_ = s.nc.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := io.WriteString(s.w, m.String()+"\r\n")
	return err
}

// readLoop feeds parsed lines into the owning connection's event channel
// until the socket dies, then reports the disconnect. Lines from a stale
// session are discarded by the receiver, so a late reader can never corrupt
// a newer session's state. done unblocks the loop when the receiver is gone.
func (s *session) readLoop(events chan<- wireEvent, done <-chan struct{}) {
	br := bufio.NewReaderSize(s.r, 4096)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\r\n")
			if line != "" {
				msg, perr := ircmsg.ParseMessage(line)
				if perr == nil && msg != nil {
					select {
					case events <- wireEvent{sess: s, msg: msg}:
					case <-done:
						return
					}
				}
				// Unparseable lines are dropped silently.
			}
		}
		if err != nil {
			select {
			case events <- wireEvent{sess: s, err: err}:
			case <-done:
			}
			return
		}
	}
}

// newMessage builds an outbound protocol line.
func newMessage(cmd string, params ...string) *ircmsg.Message {
	return &ircmsg.Message{Command: cmd, Params: params}
}

// trailing returns the last parameter of a message, or "".
func trailing(m *ircmsg.Message) string {
	if m == nil || len(m.Params) == 0 {
		return ""
	}
	return m.Params[len(m.Params)-1]
}

// sourceNick returns the nick part of the message prefix, or "".
func sourceNick(m *ircmsg.Message) string {
	if m == nil || m.Prefix == nil {
		return ""
	}
	return m.Prefix.Name
}
