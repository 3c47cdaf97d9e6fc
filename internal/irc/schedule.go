package irc

import (
	"time"

	"github.com/wolfdex/idjc/internal/config"
)

// Forced message text for the operations group. Rule-provided text is
// ignored for this category; only the targets matter.
const (
	handoverAcquired = "!handover acquired %U"
	handoverDropped  = "!handover dropped %U"
)

// scheduler is one message-issuance policy. Each group category gets its own
// variant; methods run on the owning connection's event loop.
type scheduler interface {
	onStreamActive(c *Conn, g *group)
	onStreamInactive(c *Conn, g *group)
	onNewMetadata(c *Conn, g *group)
	onTick(c *Conn, g *group, now time.Time)
}

func schedulerFor(cat config.Category) scheduler {
	switch cat {
	case config.CategoryTrackAnnounce:
		return trackAnnounceScheduler{}
	case config.CategoryTimer:
		return timerScheduler{}
	case config.CategoryStreamUp:
		return streamUpScheduler{}
	case config.CategoryStreamDown:
		return streamDownScheduler{}
	case config.CategoryOperations:
		return operationsScheduler{}
	default:
		return noopScheduler{}
	}
}

type noopScheduler struct{}

func (noopScheduler) onStreamActive(*Conn, *group)    {}
func (noopScheduler) onStreamInactive(*Conn, *group)  {}
func (noopScheduler) onNewMetadata(*Conn, *group)     {}
func (noopScheduler) onTick(*Conn, *group, time.Time) {}

// trackAnnounceScheduler fires on metadata changes while streaming, each rule
// deferred by its own configured delay.
type trackAnnounceScheduler struct{ noopScheduler }

func (trackAnnounceScheduler) onNewMetadata(c *Conn, g *group) {
	if !c.streamActive {
		return
	}
	for i := range g.snap.Rules {
		r := &g.snap.Rules[i]
		c.dispatch(r.Targets, Substitute(r.Message, c.meta), r.Delay)
	}
}

// timerScheduler advances each rule's interval counter on every tick. The
// counter moves whether or not the connection is ready; an unsendable issue
// is lost rather than replayed, keeping sends at-most-once per interval.
type timerScheduler struct{ noopScheduler }

func (timerScheduler) onTick(c *Conn, g *group, now time.Time) {
	epoch := now.Unix()
	for i := range g.snap.Rules {
		r := &g.snap.Rules[i]
		if r.Interval <= 0 {
			continue
		}
		issue := (epoch - r.Offset) / r.Interval
		if issue <= r.Issue {
			continue
		}
		r.Issue = issue
		if c.hooks.SetIssue != nil {
			c.hooks.SetIssue(int(g.snap.Category), r.Row, issue)
		}
		c.dispatch(r.Targets, Substitute(r.Message, c.meta), 0)
	}
}

type streamUpScheduler struct{ noopScheduler }

func (streamUpScheduler) onStreamActive(c *Conn, g *group) {
	for i := range g.snap.Rules {
		r := &g.snap.Rules[i]
		c.dispatch(r.Targets, Substitute(r.Message, c.meta), 0)
	}
}

type streamDownScheduler struct{ noopScheduler }

func (streamDownScheduler) onStreamInactive(c *Conn, g *group) {
	for i := range g.snap.Rules {
		r := &g.snap.Rules[i]
		c.dispatch(r.Targets, Substitute(r.Message, c.meta), 0)
	}
}

type operationsScheduler struct{ noopScheduler }

func (operationsScheduler) onStreamActive(c *Conn, g *group) {
	for i := range g.snap.Rules {
		c.dispatch(g.snap.Rules[i].Targets, Substitute(handoverAcquired, c.meta), 0)
	}
}

func (operationsScheduler) onStreamInactive(c *Conn, g *group) {
	for i := range g.snap.Rules {
		c.dispatch(g.snap.Rules[i].Targets, Substitute(handoverDropped, c.meta), 0)
	}
}
