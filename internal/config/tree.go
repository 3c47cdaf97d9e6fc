package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// treeFormat is bumped on incompatible envelope changes. Older files with a
// lower format are still accepted; missing fields zero-fill.
const treeFormat = 1

var ErrRowMismatch = errors.New("config: row lookup mismatch")

type treeEnvelope struct {
	Format  int       `json:"format"`
	Servers []*Server `json:"servers"`
}

// NewServerRow returns a server row with its five fixed groups attached, the
// shape every server row must have.
func NewServerRow() *Server {
	s := &Server{Active: true, Port: 6667}
	s.Groups = make([]*Group, NumCategories)
	for i := range s.Groups {
		s.Groups[i] = &Group{Category: Category(i), Active: true}
	}
	return s
}

// Normalize repairs a loaded tree in place: missing groups are re-attached in
// category order, rule parameters are clamped to their dialog bounds, and
// transient fields are cleared.
func (t *Tree) Normalize() {
	for _, srv := range t.Servers {
		if srv == nil {
			continue
		}
		srv.Nick = ""
		if srv.Manual {
			// Manual-start rows never come back up on their own.
			srv.Active = false
		}
		groups := make([]*Group, NumCategories)
		for _, g := range srv.Groups {
			if g == nil {
				continue
			}
			if g.Category >= 0 && int(g.Category) < NumCategories && groups[g.Category] == nil {
				groups[g.Category] = g
			}
		}
		for i := range groups {
			if groups[i] == nil {
				groups[i] = &Group{Category: Category(i), Active: true}
			}
		}
		srv.Groups = groups

		for _, g := range srv.Groups {
			for _, r := range g.Rules {
				clampRule(g.Category, r)
			}
		}
	}
}

func clampRule(cat Category, r *Rule) {
	if r == nil {
		return
	}
	switch cat {
	case CategoryTrackAnnounce:
		if r.DelaySec < 0 {
			r.DelaySec = 0
		}
		if r.DelaySec > MaxDelaySec {
			r.DelaySec = MaxDelaySec
		}
	case CategoryTimer:
		if r.OffsetSec < 0 {
			r.OffsetSec = 0
		}
		if r.OffsetSec > MaxOffsetSec {
			r.OffsetSec = MaxOffsetSec
		}
		if r.IntervalSec < MinIntervalSec {
			r.IntervalSec = MinIntervalSec
		}
		if r.IntervalSec > MaxIntervalSec {
			r.IntervalSec = MaxIntervalSec
		}
		if r.Issue < 0 {
			r.Issue = 0
		}
	case CategoryOperations:
		r.Message = ""
	}
}

// Marshal renders the tree as its persisted JSON envelope. Manual-start rows
// are written inactive and displayed nicks are dropped, matching Normalize.
func (t *Tree) Marshal() ([]byte, error) {
	cp := t.Clone()
	cp.Normalize()
	env := treeEnvelope{Format: treeFormat, Servers: cp.Servers}
	return json.MarshalIndent(env, "", "  ")
}

// UnmarshalTree parses and normalizes a persisted tree envelope.
func UnmarshalTree(data []byte) (*Tree, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var env treeEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("config: decode tree: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, errors.New("config: trailing data after tree")
		}
		return nil, err
	}
	if env.Format > treeFormat {
		return nil, fmt.Errorf("config: tree format %d is newer than supported %d", env.Format, treeFormat)
	}
	tr := &Tree{Servers: env.Servers}
	if tr.Servers == nil {
		tr.Servers = []*Server{}
	}
	tr.Normalize()
	return tr, nil
}

// Clone deep-copies the tree so snapshots can cross goroutine boundaries.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return &Tree{Servers: []*Server{}}
	}
	cp := &Tree{Servers: make([]*Server, len(t.Servers))}
	for i, srv := range t.Servers {
		cp.Servers[i] = srv.Clone()
	}
	return cp
}

func (s *Server) Clone() *Server {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Groups = make([]*Group, len(s.Groups))
	for i, g := range s.Groups {
		cp.Groups[i] = g.Clone()
	}
	return &cp
}

func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	cp := *g
	cp.Rules = make([]*Rule, len(g.Rules))
	for i, r := range g.Rules {
		if r != nil {
			rr := *r
			cp.Rules[i] = &rr
		}
	}
	return &cp
}

// Server returns the server row at path[0].
func (t *Tree) Server(p Path) (*Server, error) {
	if len(p) < 1 || p[0] < 0 || p[0] >= len(t.Servers) {
		return nil, fmt.Errorf("%w: no server at %s", ErrRowMismatch, p)
	}
	return t.Servers[p[0]], nil
}

// Group returns the group row at path[0:2].
func (t *Tree) Group(p Path) (*Group, error) {
	srv, err := t.Server(p)
	if err != nil {
		return nil, err
	}
	if len(p) < 2 || p[1] < 0 || p[1] >= len(srv.Groups) {
		return nil, fmt.Errorf("%w: no group at %s", ErrRowMismatch, p)
	}
	return srv.Groups[p[1]], nil
}

// Rule returns the rule row at path[0:3].
func (t *Tree) Rule(p Path) (*Rule, error) {
	g, err := t.Group(p)
	if err != nil {
		return nil, err
	}
	if len(p) < 3 || p[2] < 0 || p[2] >= len(g.Rules) {
		return nil, fmt.Errorf("%w: no rule at %s", ErrRowMismatch, p)
	}
	return g.Rules[p[2]], nil
}

// PathActive reports whether the row at p and every ancestor row are all
// individually marked active. Activation is never inherited; each level is
// checked on its own.
func (t *Tree) PathActive(p Path) bool {
	switch len(p) {
	case 1:
		srv, err := t.Server(p)
		return err == nil && srv.Active
	case 2:
		srv, err := t.Server(p)
		if err != nil || !srv.Active {
			return false
		}
		g, err := t.Group(p)
		return err == nil && g.Active
	case 3:
		srv, err := t.Server(p)
		if err != nil || !srv.Active {
			return false
		}
		g, err := t.Group(p)
		if err != nil || !g.Active {
			return false
		}
		r, err := t.Rule(p)
		return err == nil && r.Active
	default:
		return false
	}
}
