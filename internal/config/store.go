package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wolfdex/idjc/pkg/logx"
)

// Store owns the row tree and its file. All mutation happens on the control
// goroutine running Run(); other goroutines hand work over with Post.
type Store struct {
	path string
	log  logx.Logger

	mu   sync.RWMutex
	tree *Tree

	// lastFileHash is the content hash of the last file state this process
	// wrote or loaded, used to ignore watcher echoes of our own saves.
	lastFileHash uint64

	posts    chan func()
	reloadCh chan struct{}

	listeners []func(Event)
}

func NewStore(path string, log logx.Logger) *Store {
	return &Store{
		path:     path,
		log:      log,
		tree:     &Tree{Servers: []*Server{}},
		posts:    make(chan func(), 128),
		reloadCh: make(chan struct{}, 1),
	}
}

// AddListener registers a row-event listener. Listeners run synchronously on
// the control goroutine, in registration order. Must be called before Run.
func (s *Store) AddListener(fn func(Event)) {
	if fn != nil {
		s.listeners = append(s.listeners, fn)
	}
}

// Post marshals fn onto the control goroutine. This is the only way code
// running on a connection goroutine may touch the tree.
func (s *Store) Post(fn func()) {
	if fn == nil {
		return
	}
	s.posts <- fn
}

// Load reads the tree file. A missing file yields an empty tree.
func (s *Store) Load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Info("no server tree file; starting empty", logx.String("path", s.path))
			return nil
		}
		return err
	}
	tree, err := UnmarshalTree(b)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tree = tree
	s.lastFileHash = hashBytes(b)
	s.mu.Unlock()
	return nil
}

// Save writes the tree file atomically and remembers its hash so the watcher
// does not reload our own write.
func (s *Store) Save() error {
	s.mu.RLock()
	tree := s.tree
	s.mu.RUnlock()

	b, err := tree.Marshal()
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastFileHash = hashBytes(b)
	s.mu.Unlock()
	return nil
}

// Snapshot returns a deep copy of the current tree.
func (s *Store) Snapshot() *Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Clone()
}

// Tree returns the live tree. Only the control goroutine may call this.
func (s *Store) Tree() *Tree { return s.tree }

// Run is the control loop: it first announces the loaded rows as inserts,
// then services posted closures and reload requests until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	for i := range s.tree.Servers {
		s.emit(Event{Kind: RowInserted, Path: Path{i}})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-s.posts:
			s.runPosted(fn)
		case <-s.reloadCh:
			s.reload()
		}
	}
}

// Watch follows external edits of the tree file (the configuration UI's save
// path) and schedules reloads on the control loop.
func (s *Store) Watch(ctx context.Context) error {
	return watchFile(ctx, s.path, s.log, func() {
		select {
		case s.reloadCh <- struct{}{}:
		default:
		}
	})
}

func (s *Store) runPosted(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("posted closure panicked", logx.Any("panic", r))
		}
	}()
	fn()
}

func (s *Store) reload() {
	b, err := os.ReadFile(s.path)
	if err != nil {
		s.log.Warn("tree reload failed", logx.Err(err), logx.String("path", s.path))
		return
	}
	h := hashBytes(b)
	s.mu.RLock()
	unchanged := h != 0 && h == s.lastFileHash
	s.mu.RUnlock()
	if unchanged {
		return
	}

	newTree, err := UnmarshalTree(b)
	if err != nil {
		s.log.Warn("tree rejected", logx.Err(err), logx.String("path", s.path))
		return
	}

	events := DiffTrees(s.tree, newTree)
	s.mu.Lock()
	s.tree = newTree
	s.lastFileHash = h
	s.mu.Unlock()

	s.log.Info("server tree reloaded", logx.String("path", s.path), logx.Int("events", len(events)))
	for _, ev := range events {
		s.emit(ev)
	}
}

func (s *Store) emit(ev Event) {
	for _, fn := range s.listeners {
		fn(ev)
	}
}

// SetDisplayedNick writes the displayed-nick field of a server row. It is a
// transient, UI-facing field: no row event and no save. Control goroutine
// only; connection code reaches it through Post.
func (s *Store) SetDisplayedNick(serverIndex int, nick string) {
	srv, err := s.tree.Server(Path{serverIndex})
	if err != nil {
		s.log.Warn("nick write skipped", logx.Err(err), logx.Int("server", serverIndex))
		return
	}
	srv.Nick = nick
}

// SetTimerIssue persists a timer rule's issue counter so a restart mid
// interval does not re-fire. Control goroutine only.
func (s *Store) SetTimerIssue(p Path, issue int64) error {
	r, err := s.tree.Rule(p)
	if err != nil {
		return fmt.Errorf("issue write skipped: %w", err)
	}
	if r.Issue == issue {
		return nil
	}
	r.Issue = issue
	if err := s.Save(); err != nil {
		return fmt.Errorf("issue persist failed: %w", err)
	}
	s.emit(Event{Kind: RowChanged, Path: p.Clone()})
	return nil
}
