package irc

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/wolfdex/idjc/internal/config"
	"github.com/wolfdex/idjc/internal/storage"
	"github.com/wolfdex/idjc/pkg/logx"
)

// connectRetryDelays is the fixed backoff ladder for connection attempts.
// After the last failure the displayed nick is cleared and nothing happens
// until the next ApplyConfig.
var connectRetryDelays = []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}

const (
	actionQueueSize = 256
	eventQueueSize  = 64
	closeTimeout    = time.Second
	timerTickEvery  = 500 * time.Millisecond
)

// Hooks are the connection's write-backs into the configuration store. Both
// must marshal onto the control goroutine themselves; they are called from
// the connection's event loop.
type Hooks struct {
	// SetNick updates the displayed nickname of the owning server row.
	SetNick func(nick string)
	// SetIssue persists a timer rule's issue counter, addressed by group
	// category index and rule row within the group.
	SetIssue func(group, rule int, issue int64)
}

// group pairs a message group's rule snapshot with the channel set this
// connection currently attributes to it.
type group struct {
	snap    GroupSnapshot
	sched   scheduler
	current map[string]bool
}

// Conn is one live server session. A dedicated goroutine owns all of its
// state; everything external arrives through the action queue, so actions
// execute one at a time and in order.
type Conn struct {
	log     logx.Logger
	hooks   Hooks
	limiter *rate.Limiter
	audit   storage.Store

	actions chan func()
	events  chan wireEvent
	quit    chan struct{}
	done    chan struct{}

	// Everything below is owned by the run goroutine.
	cfg          ServerConfig
	cfgGen       int
	sess         *session
	ready        bool
	nick         string
	alternates   []string
	groups       [config.NumCategories]*group
	meta         Metadata
	played       playedList
	streamActive bool
	ticker       *time.Ticker
	tickC        <-chan time.Time
}

// NewConn starts the connection's event loop. It does not dial; that happens
// on the first ApplyConfig with an active row.
func NewConn(log logx.Logger, limiter *rate.Limiter, audit storage.Store, hooks Hooks, streamActive bool) *Conn {
	c := &Conn{
		log:          log,
		hooks:        hooks,
		limiter:      limiter,
		audit:        audit,
		actions:      make(chan func(), actionQueueSize),
		events:       make(chan wireEvent, eventQueueSize),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		meta:         NewMetadata(),
		streamActive: streamActive,
	}
	for i := 0; i < config.NumCategories; i++ {
		c.groups[i] = &group{
			sched:   schedulerFor(config.Category(i)),
			current: make(map[string]bool),
		}
	}
	// A row inserted mid-broadcast must tick from the start; setStreamActive
	// only arms the ticker on a transition.
	if streamActive {
		c.startTick()
	}
	go c.run()
	return c
}

func (c *Conn) run() {
	defer close(c.done)
	defer c.teardown()
	for {
		select {
		case <-c.quit:
			return
		case fn := <-c.actions:
			c.runAction(fn)
		case ev := <-c.events:
			c.handleWire(ev)
		case now := <-c.tickC:
			c.timerTick(now)
		}
	}
}

// runAction executes one queued action. A panic in one action is logged and
// must not take down the loop or the sibling connections.
func (c *Conn) runAction(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("queued action panicked", logx.Any("panic", r))
		}
	}()
	fn()
}

func (c *Conn) teardown() {
	c.stopTick()
	if c.sess != nil {
		c.sess.close()
		c.sess = nil
	}
}

// enqueue appends an action to the queue without blocking the caller. A full
// queue drops the action; connection trouble must never stall the control
// goroutine.
func (c *Conn) enqueue(fn func()) {
	select {
	case c.actions <- fn:
	case <-c.done:
	default:
		c.log.Warn("action queue full; dropping action")
	}
}

// scheduleAfter runs fn on the event loop after d. Timers fire onto the
// action queue, never concurrently with other actions.
func (c *Conn) scheduleAfter(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { c.enqueue(fn) })
}

// ApplyConfig enqueues a (re)connect or disconnect for the given row state.
func (c *Conn) ApplyConfig(cfg ServerConfig) {
	c.enqueue(func() { c.applyConfig(cfg) })
}

// UpdateGroup enqueues a requirement-set refresh for one message group.
func (c *Conn) UpdateGroup(cat config.Category, snap GroupSnapshot) {
	c.enqueue(func() { c.updateGroup(cat, snap) })
}

// SetStreamActive enqueues a streaming-state transition.
func (c *Conn) SetStreamActive(active bool) {
	c.enqueue(func() { c.setStreamActive(active) })
}

// NewMetadata enqueues a track-metadata update.
func (c *Conn) NewMetadata(fields map[string]string) {
	c.enqueue(func() { c.newMetadata(fields) })
}

// Close disconnects and stops the event loop. It waits a bounded interval
// for the loop to wind down, then abandons it.
func (c *Conn) Close() {
	c.enqueue(func() {
		c.disconnect()
		close(c.quit)
	})
	select {
	case <-c.done:
	case <-time.After(closeTimeout):
		c.log.Warn("connection close timed out")
	}
}

func (c *Conn) applyConfig(cfg ServerConfig) {
	c.cfgGen++
	if !cfg.Active {
		c.disconnect()
		return
	}
	c.cfg = cfg
	c.startConnect(c.cfgGen, connectRetryDelays)
}

// startConnect dials asynchronously so a slow host cannot stall the event
// loop. gen pins the attempt to the config generation that started it; a
// newer ApplyConfig abandons older attempts.
func (c *Conn) startConnect(gen int, delays []time.Duration) {
	if gen != c.cfgGen {
		c.log.Debug("connection attempt cancelled")
		return
	}
	if c.sess != nil {
		c.sess.close()
		c.sess = nil
		c.ready = false
	}
	cfg := c.cfg
	c.log.Info("connecting to irc server",
		logx.String("host", cfg.Hostname), logx.Int("port", cfg.Port),
		logx.Bool("last_attempt", len(delays) == 0))
	go func() {
		sess, err := dialSession(cfg.Hostname, cfg.Port, cfg.Encoding)
		c.enqueue(func() { c.finishConnect(gen, sess, err, delays) })
	}()
}

func (c *Conn) finishConnect(gen int, sess *session, err error, delays []time.Duration) {
	if gen != c.cfgGen {
		if sess != nil {
			sess.close()
		}
		return
	}
	if err != nil {
		c.log.Warn("irc connect failed",
			logx.Err(fmt.Errorf("%w: %v", ErrConnectFailed, err)),
			logx.String("host", c.cfg.Hostname), logx.Int("port", c.cfg.Port))
		if len(delays) == 0 {
			c.setDisplayedNick("")
			return
		}
		d := delays[0]
		rest := delays[1:]
		c.scheduleAfter(d, func() { c.startConnect(gen, rest) })
		return
	}

	c.sess = sess
	c.ready = false
	c.nick = c.cfg.Nick1
	c.alternates = c.cfg.AlternateNicks()
	go sess.readLoop(c.events, c.done)

	if c.cfg.Password != "" {
		c.send("PASS", c.cfg.Password)
	}
	c.send("NICK", c.cfg.Nick1)
	c.send("USER", c.cfg.Username, "0", "*", c.cfg.Realname)
	c.setDisplayedNick(c.cfg.Nick1)
	c.log.Info("new irc connection",
		logx.String("nick", c.cfg.Nick1),
		logx.String("host", c.cfg.Hostname), logx.Int("port", c.cfg.Port))
}

func (c *Conn) disconnect() {
	if c.sess != nil {
		c.send("QUIT")
		c.sess.close()
		c.sess = nil
	}
	c.ready = false
	c.setDisplayedNick("")
}

func (c *Conn) setDisplayedNick(nick string) {
	if c.hooks.SetNick != nil {
		c.hooks.SetNick(nick)
	}
}

// tryAlternateNick pops the next fallback nickname after a rejection. An
// exhausted list is terminal for this attempt.
func (c *Conn) tryAlternateNick() {
	if len(c.alternates) == 0 {
		c.log.Warn("giving up on connection", logx.Err(ErrNicknameExhausted),
			logx.String("host", c.cfg.Hostname))
		c.disconnect()
		return
	}
	next := c.alternates[0]
	c.alternates = c.alternates[1:]
	c.nick = next
	c.setDisplayedNick(next)
	c.send("NICK", next)
}

func (c *Conn) updateGroup(cat config.Category, snap GroupSnapshot) {
	if int(cat) < 0 || int(cat) >= len(c.groups) {
		return
	}
	g := c.groups[cat]
	if cat == config.CategoryTimer {
		carryIssueCounters(&snap, g.snap)
	}
	g.snap = snap
	c.reconcileGroup(int(cat))
}

// carryIssueCounters keeps locally-advanced timer counters when a snapshot
// rebuilt from the tree lags behind a pending counter write-back.
func carryIssueCounters(next *GroupSnapshot, prev GroupSnapshot) {
	for i := range next.Rules {
		for j := range prev.Rules {
			if prev.Rules[j].Row == next.Rules[i].Row && prev.Rules[j].Issue > next.Rules[i].Issue {
				next.Rules[i].Issue = prev.Rules[j].Issue
			}
		}
	}
}

// reconcileGroup brings channel membership in line with one group's
// requirement set. The current set is always updated; wire traffic happens
// only once the connection is ready.
func (c *Conn) reconcileGroup(idx int) {
	g := c.groups[idx]
	next := g.snap.RequiredSet()
	if setsEqual(next, g.current) {
		return
	}
	if c.ready {
		rest := make(map[string]bool)
		for i, other := range c.groups {
			if i == idx {
				continue
			}
			for t := range other.current {
				rest[t] = true
			}
		}
		joins, parts := reconcileSets(g.current, next, rest)
		for _, entry := range joins {
			if !isChannelEntry(entry) {
				continue
			}
			name, key := splitChannelKey(entry)
			if key != "" {
				c.send("JOIN", name, key)
			} else {
				c.send("JOIN", name)
			}
		}
		for _, entry := range parts {
			if !isChannelEntry(entry) {
				continue
			}
			name, _ := splitChannelKey(entry)
			c.send("PART", name)
		}
	}
	g.current = next
}

// invalidateGroups drops every group's attributed channel set. Run on
// welcome: the server reset our membership, so the next reconcile pass must
// rejoin from scratch.
func (c *Conn) invalidateGroups() {
	for _, g := range c.groups {
		g.current = make(map[string]bool)
	}
}

func (c *Conn) setStreamActive(active bool) {
	if c.streamActive == active {
		return
	}
	c.streamActive = active
	if active {
		c.startTick()
		for _, g := range c.groups {
			g.sched.onStreamActive(c, g)
		}
	} else {
		c.stopTick()
		for _, g := range c.groups {
			g.sched.onStreamInactive(c, g)
		}
	}
}

func (c *Conn) newMetadata(fields map[string]string) {
	c.meta.Merge(fields)
	// Only an update that itself names a song lands in the played history;
	// partial updates must not re-record the previous track.
	if song, ok := fields["songname"]; ok && c.streamActive {
		c.played.Add(song, time.Now())
	}
	for _, g := range c.groups {
		g.sched.onNewMetadata(c, g)
	}
}

func (c *Conn) startTick() {
	if c.ticker != nil {
		return
	}
	c.ticker = time.NewTicker(timerTickEvery)
	c.tickC = c.ticker.C
}

func (c *Conn) stopTick() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	c.ticker = nil
	c.tickC = nil
}

func (c *Conn) timerTick(now time.Time) {
	for _, g := range c.groups {
		g.sched.onTick(c, g, now)
	}
}

// dispatch fans one scheduled message out to its targets: channels get
// PRIVMSG on the bare name, everything else gets NOTICE. Messages emitted
// while not ready are dropped.
func (c *Conn) dispatch(targets []string, text string, delay time.Duration) {
	if !c.ready || len(targets) == 0 {
		return
	}
	var chans, users []string
	for _, t := range targets {
		if isChannelEntry(t) {
			name, _ := splitChannelKey(t)
			chans = append(chans, name)
		} else {
			users = append(users, t)
		}
	}
	sess := c.sess
	send := func() {
		if c.sess != sess {
			return
		}
		for _, ch := range chans {
			c.sendChat("privmsg", ch, text)
		}
		for _, u := range users {
			c.sendChat("notice", u, text)
		}
	}
	if delay > 0 {
		c.scheduleAfter(delay, send)
	} else {
		send()
	}
}

// sendChat writes one paced, audited chat line. kind "ctcp" wraps the text
// in \x01 framing on a NOTICE.
func (c *Conn) sendChat(kind, target, text string) {
	if c.sess == nil || !c.ready {
		return
	}
	res := c.limiter.Reserve()
	if !res.OK() {
		return
	}
	sess := c.sess
	write := func() {
		if c.sess != sess {
			return
		}
		switch kind {
		case "privmsg":
			c.send("PRIVMSG", target, text)
		case "notice":
			c.send("NOTICE", target, text)
		case "ctcp":
			c.send("NOTICE", target, "\x01"+text+"\x01")
		}
		c.auditSend(kind, target, text)
	}
	if d := res.Delay(); d > 0 {
		c.scheduleAfter(d, write)
	} else {
		write()
	}
}

func (c *Conn) auditSend(kind, target, text string) {
	if c.audit == nil {
		return
	}
	rec := storage.SendRecord{
		At:     time.Now(),
		Server: c.cfg.Label(),
		Target: target,
		Kind:   kind,
		Text:   text,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.audit.AppendSend(ctx, rec); err != nil {
			c.log.Warn("send audit failed", logx.Err(err))
		}
	}()
}

// send writes one raw protocol line on the current session. Failures are
// logged; the next read error tears the session down.
func (c *Conn) send(cmd string, params ...string) {
	if c.sess == nil {
		return
	}
	msg := newMessage(cmd, params...)
	if err := c.sess.writeMessage(msg); err != nil {
		c.log.Warn("irc write failed", logx.Err(err), logx.String("command", cmd))
	}
}
