package irc

import (
	"fmt"
	"sort"
	"time"

	"github.com/wolfdex/idjc/internal/config"
)

// ServerConfig is the connection-relevant slice of a server row, detached
// from the tree so it can cross into the connection goroutine.
type ServerConfig struct {
	Active   bool
	Network  string
	Hostname string
	Port     int
	Encoding string
	Username string
	Password string
	Nick1    string
	Nick2    string
	Nick3    string
	Realname string
	NickServ string
}

// ServerConfigFromRow applies the original's field fallbacks: encoding
// UTF-8, a stock nickname, username and realname from the nickname.
func ServerConfigFromRow(srv *config.Server) ServerConfig {
	cfg := ServerConfig{
		Active:   srv.Active,
		Network:  srv.Network,
		Hostname: srv.Hostname,
		Port:     srv.Port,
		Encoding: srv.Encoding,
		Username: srv.Username,
		Password: srv.Password,
		Nick1:    srv.Nick1,
		Nick2:    srv.Nick2,
		Nick3:    srv.Nick3,
		Realname: srv.Realname,
		NickServ: srv.NickServ,
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "UTF-8"
	}
	if cfg.Nick1 == "" {
		cfg.Nick1 = "eyedeejaycee"
	}
	if cfg.Username == "" {
		cfg.Username = cfg.Nick1
	}
	if cfg.Realname == "" {
		cfg.Realname = cfg.Nick1
	}
	if cfg.Port <= 0 {
		cfg.Port = 6667
	}
	return cfg
}

// Label identifies the server for logs and the send audit.
func (c ServerConfig) Label() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Port)
}

// AlternateNicks is the fixed fallback order tried when the server rejects a
// nickname: second and third choice, then all three with an underscore
// appended, then with two.
func (c ServerConfig) AlternateNicks() []string {
	return []string{
		c.Nick2, c.Nick3,
		c.Nick1 + "_", c.Nick2 + "_", c.Nick3 + "_",
		c.Nick1 + "__", c.Nick2 + "__", c.Nick3 + "__",
	}
}

// RuleSnapshot is one effectively-active message rule, flattened for the
// connection goroutine. Row is the rule's index within its group, kept so
// counter write-backs can re-address the tree.
type RuleSnapshot struct {
	Row     int
	Targets []string
	Message string

	Delay    time.Duration // track announce
	Offset   int64         // timer, seconds
	Interval int64         // timer, seconds
	Issue    int64         // timer, last issued interval number
}

// GroupSnapshot is one message group's effectively-active rules.
type GroupSnapshot struct {
	Category config.Category
	Rules    []RuleSnapshot
}

// BuildGroupSnapshot extracts the effectively-active rules of one group.
// Activation is conjunctive: the server, the group and the rule must each be
// marked active on their own.
func BuildGroupSnapshot(tree *config.Tree, serverIdx, groupIdx int) GroupSnapshot {
	snap := GroupSnapshot{Category: config.Category(groupIdx)}
	g, err := tree.Group(config.Path{serverIdx, groupIdx})
	if err != nil {
		return snap
	}
	snap.Category = g.Category
	for ri, r := range g.Rules {
		if r == nil || !tree.PathActive(config.Path{serverIdx, groupIdx, ri}) {
			continue
		}
		snap.Rules = append(snap.Rules, RuleSnapshot{
			Row:      ri,
			Targets:  r.TargetList(),
			Message:  r.Message,
			Delay:    time.Duration(r.DelaySec) * time.Second,
			Offset:   int64(r.OffsetSec),
			Interval: int64(r.IntervalSec),
			Issue:    r.Issue,
		})
	}
	return snap
}

// RequiredSet is the union of the group's rule targets. Bare nicks are
// included; only #/& entries ever become JOIN/PART traffic.
func (g GroupSnapshot) RequiredSet() map[string]bool {
	set := make(map[string]bool)
	for _, r := range g.Rules {
		for _, t := range r.Targets {
			set[t] = true
		}
	}
	return set
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
