package irc

import (
	"golang.org/x/time/rate"

	"github.com/wolfdex/idjc/internal/config"
	"github.com/wolfdex/idjc/internal/storage"
	"github.com/wolfdex/idjc/pkg/logx"
)

// Manager supervises one Conn per server row. It subscribes to the store's
// row events and keeps the conns slice index-aligned with the server rows;
// all of its row handling runs on the store's control goroutine.
type Manager struct {
	log   logx.Logger
	store *config.Store
	audit storage.Store

	sendRate  rate.Limit
	sendBurst int

	// Control-goroutine state. Conn hooks resolve their row index through
	// indexOf at execution time, so inserts and deletes ahead of a row
	// cannot misdirect a write-back.
	streamActive bool
	conns        []*Conn
}

// NewManager wires the manager into the store's event stream. Call before
// Store.Run so the initial row announcements are seen.
func NewManager(store *config.Store, audit storage.Store, sendRate float64, sendBurst int, log logx.Logger) *Manager {
	if sendRate <= 0 {
		sendRate = 2
	}
	if sendBurst <= 0 {
		sendBurst = 4
	}
	m := &Manager{
		log:       log,
		store:     store,
		audit:     audit,
		sendRate:  rate.Limit(sendRate),
		sendBurst: sendBurst,
	}
	store.AddListener(m.onRowEvent)
	return m
}

// SetStreamActive fans a streaming-state transition out to every connection.
// Safe from any goroutine.
func (m *Manager) SetStreamActive(active bool) {
	m.store.Post(func() {
		m.streamActive = active
		for _, c := range m.conns {
			c.SetStreamActive(active)
		}
	})
}

// NewMetadata fans a track-metadata update out to every connection. Safe
// from any goroutine.
func (m *Manager) NewMetadata(fields map[string]string) {
	m.store.Post(func() {
		for _, c := range m.conns {
			c.NewMetadata(fields)
		}
	})
}

// CloseAll tears down every connection. Call only after the store's control
// loop has stopped.
func (m *Manager) CloseAll() {
	for _, c := range m.conns {
		c.Close()
	}
	m.conns = nil
}

func (m *Manager) onRowEvent(ev config.Event) {
	switch ev.Path.Depth() {
	case 1:
		s := ev.Path[0]
		switch ev.Kind {
		case config.RowInserted:
			m.insertConn(s)
		case config.RowDeleted:
			m.removeConn(s)
		case config.RowChanged:
			m.refreshServer(s)
		}
	case 2, 3:
		// Group toggles and rule edits, inserts and deletes all reduce to
		// rebuilding the affected group's requirement snapshot.
		m.refreshGroup(ev.Path[0], ev.Path[1])
	}
}

func (m *Manager) indexOf(c *Conn) int {
	for i, have := range m.conns {
		if have == c {
			return i
		}
	}
	return -1
}

func (m *Manager) insertConn(s int) {
	if s < 0 || s > len(m.conns) {
		m.log.Warn("server insert out of range", logx.Int("index", s))
		return
	}

	var conn *Conn
	hooks := Hooks{
		SetNick: func(nick string) {
			m.store.Post(func() {
				if i := m.indexOf(conn); i >= 0 {
					m.store.SetDisplayedNick(i, nick)
				}
			})
		},
		SetIssue: func(group, rule int, issue int64) {
			m.store.Post(func() {
				i := m.indexOf(conn)
				if i < 0 {
					return
				}
				if err := m.store.SetTimerIssue(config.Path{i, group, rule}, issue); err != nil {
					m.log.Warn("timer counter write-back failed", logx.Err(err))
				}
			})
		},
	}

	limiter := rate.NewLimiter(m.sendRate, m.sendBurst)
	connLog := m.log.With(logx.Int("server", s))
	if srv, err := m.store.Tree().Server(config.Path{s}); err == nil {
		connLog = m.log.With(logx.String("server", srv.Hostname))
	}
	conn = NewConn(connLog, limiter, m.audit, hooks, m.streamActive)

	m.conns = append(m.conns, nil)
	copy(m.conns[s+1:], m.conns[s:])
	m.conns[s] = conn

	m.refreshServer(s)
}

func (m *Manager) removeConn(s int) {
	if s < 0 || s >= len(m.conns) {
		return
	}
	conn := m.conns[s]
	m.conns = append(m.conns[:s], m.conns[s+1:]...)
	conn.Close()
}

// refreshServer reapplies a server row's connection settings and all of its
// group requirement sets.
func (m *Manager) refreshServer(s int) {
	srv, err := m.store.Tree().Server(config.Path{s})
	if err != nil {
		m.log.Warn("server refresh skipped", logx.Err(err))
		return
	}
	if s >= len(m.conns) {
		return
	}
	m.conns[s].ApplyConfig(ServerConfigFromRow(srv))
	for g := 0; g < config.NumCategories; g++ {
		m.refreshGroup(s, g)
	}
}

func (m *Manager) refreshGroup(s, g int) {
	if s < 0 || s >= len(m.conns) || g < 0 || g >= config.NumCategories {
		return
	}
	snap := BuildGroupSnapshot(m.store.Tree(), s, g)
	m.conns[s].UpdateGroup(config.Category(g), snap)
}
