package config

import (
	"fmt"
	"strings"
)

// Category identifies one of the five fixed message groups under a server row.
type Category int

const (
	CategoryTrackAnnounce Category = iota
	CategoryTimer
	CategoryStreamUp
	CategoryStreamDown
	CategoryOperations

	NumCategories = 5
)

var categoryNames = [NumCategories]string{
	"track_announce", "timer", "stream_up", "stream_down", "operations",
}

func (c Category) String() string {
	if c < 0 || int(c) >= NumCategories {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// Valid rule parameter bounds. Out-of-range values are clamped on load, not
// rejected, so a hand-edited tree file still produces a working engine.
const (
	MaxDelaySec    = 30
	MaxOffsetSec   = 9999
	MinIntervalSec = 60
	MaxIntervalSec = 9999
)

// Rule is one configured message under a group. Which parameter fields are
// meaningful depends on the owning group's category:
//
//   - track_announce: DelaySec
//   - timer: OffsetSec, IntervalSec, Issue (persisted issue counter)
//   - stream_up / stream_down: none
//   - operations: targets only, Message is ignored
type Rule struct {
	Active  bool   `json:"active"`
	Targets string `json:"targets"`
	Message string `json:"message,omitempty"`

	DelaySec    int   `json:"delay,omitempty"`
	OffsetSec   int   `json:"offset,omitempty"`
	IntervalSec int   `json:"interval,omitempty"`
	Issue       int64 `json:"issue,omitempty"`
}

// TargetList splits the comma/space separated target field into its entries.
func (r *Rule) TargetList() []string {
	return SplitTargets(r.Targets)
}

// SplitTargets normalizes a comma/space separated channel/user list.
func SplitTargets(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Group aggregates the rules of one category. It carries no data of its own
// beyond the active flag.
type Group struct {
	Category Category `json:"category"`
	Active   bool     `json:"active"`
	Rules    []*Rule  `json:"rules,omitempty"`
}

// Server is one configured IRC server row.
//
// Nick is the displayed nickname written back by the live connection; it is
// transient and cleared on save. Manual-start rows are stored inactive so a
// restart never auto-connects them.
type Server struct {
	Active   bool   `json:"active"`
	Manual   bool   `json:"manual,omitempty"`
	Network  string `json:"network,omitempty"`
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
	Encoding string `json:"encoding,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Nick1    string `json:"nick1"`
	Nick2    string `json:"nick2,omitempty"`
	Nick3    string `json:"nick3,omitempty"`
	Realname string `json:"realname,omitempty"`
	NickServ string `json:"nickserv,omitempty"`

	Nick string `json:"nick,omitempty"`

	Groups []*Group `json:"groups"`
}

// Tree is the whole configuration store content.
type Tree struct {
	Servers []*Server `json:"servers"`
}

// Path addresses one row in the tree: [server], [server, group] or
// [server, group, rule].
type Path []int

func (p Path) Depth() int { return len(p) }

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ":")
}

func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy safe to retain across tree mutations.
func (p Path) Clone() Path {
	return append(Path(nil), p...)
}

// EventKind classifies a row event.
type EventKind int

const (
	RowInserted EventKind = iota
	RowDeleted
	RowChanged
)

func (k EventKind) String() string {
	switch k {
	case RowInserted:
		return "inserted"
	case RowDeleted:
		return "deleted"
	case RowChanged:
		return "changed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one row-level change notification.
type Event struct {
	Kind EventKind
	Path Path
}
