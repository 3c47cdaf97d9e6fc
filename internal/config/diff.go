package config

// DiffTrees computes the ordered row events that turn old into new.
//
// Rows are positional, like the tree paths the UI works with, so the diff is
// positional too: rows at the same path are compared field-wise, a longer
// list produces inserts at the tail, a shorter one deletes (deepest last
// index first, so earlier paths stay valid while listeners process them).
func DiffTrees(oldTree, newTree *Tree) []Event {
	if oldTree == nil {
		oldTree = &Tree{}
	}
	if newTree == nil {
		newTree = &Tree{}
	}

	var events []Event
	common := len(oldTree.Servers)
	if len(newTree.Servers) < common {
		common = len(newTree.Servers)
	}

	for i := 0; i < common; i++ {
		events = append(events, diffServer(Path{i}, oldTree.Servers[i], newTree.Servers[i])...)
	}
	for i := len(oldTree.Servers) - 1; i >= common; i-- {
		events = append(events, Event{Kind: RowDeleted, Path: Path{i}})
	}
	for i := common; i < len(newTree.Servers); i++ {
		events = append(events, Event{Kind: RowInserted, Path: Path{i}})
	}
	return events
}

func diffServer(p Path, oldSrv, newSrv *Server) []Event {
	var events []Event
	if !serverFieldsEqual(oldSrv, newSrv) {
		events = append(events, Event{Kind: RowChanged, Path: p.Clone()})
	}

	// Groups are a fixed set; only their flags and children vary.
	n := len(oldSrv.Groups)
	if len(newSrv.Groups) < n {
		n = len(newSrv.Groups)
	}
	for gi := 0; gi < n; gi++ {
		gp := append(p.Clone(), gi)
		og, ng := oldSrv.Groups[gi], newSrv.Groups[gi]
		if og.Active != ng.Active {
			events = append(events, Event{Kind: RowChanged, Path: gp})
		}
		events = append(events, diffRules(gp, og.Rules, ng.Rules)...)
	}
	return events
}

func diffRules(gp Path, oldRules, newRules []*Rule) []Event {
	var events []Event
	common := len(oldRules)
	if len(newRules) < common {
		common = len(newRules)
	}
	for i := 0; i < common; i++ {
		if !rulesEqual(oldRules[i], newRules[i]) {
			events = append(events, Event{Kind: RowChanged, Path: append(gp.Clone(), i)})
		}
	}
	for i := len(oldRules) - 1; i >= common; i-- {
		events = append(events, Event{Kind: RowDeleted, Path: append(gp.Clone(), i)})
	}
	for i := common; i < len(newRules); i++ {
		events = append(events, Event{Kind: RowInserted, Path: append(gp.Clone(), i)})
	}
	return events
}

func serverFieldsEqual(a, b *Server) bool {
	return a.Active == b.Active &&
		a.Manual == b.Manual &&
		a.Network == b.Network &&
		a.Hostname == b.Hostname &&
		a.Port == b.Port &&
		a.Encoding == b.Encoding &&
		a.Username == b.Username &&
		a.Password == b.Password &&
		a.Nick1 == b.Nick1 &&
		a.Nick2 == b.Nick2 &&
		a.Nick3 == b.Nick3 &&
		a.Realname == b.Realname &&
		a.NickServ == b.NickServ
}

func rulesEqual(a, b *Rule) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// hashBytes is used to skip redundant reload work when file content has not
// actually changed.
func hashBytes(b []byte) uint64 {
	// FNV-1a.
	var h uint64 = 14695981039346656037
	for _, c := range b {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}
