package config

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wolfdex/idjc/pkg/logx"
)

const (
	watchDebounce    = 250 * time.Millisecond
	watchBackoffBase = 250 * time.Millisecond
	watchBackoffMax  = 5 * time.Second
)

// watchFile follows one file and calls onChange after writes settle. The
// watch is placed on the parent directory: editors and atomic savers replace
// the file by rename, which a watch on the file itself would lose. A broken
// watcher is rebuilt with jittered backoff.
func watchFile(ctx context.Context, path string, log logx.Logger, onChange func()) error {
	fw := &fileWatcher{
		dir:      filepath.Dir(path),
		base:     filepath.Base(path),
		log:      log,
		onChange: onChange,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	return fw.run(ctx)
}

type fileWatcher struct {
	dir      string
	base     string
	log      logx.Logger
	onChange func()
	rng      *rand.Rand

	pending *time.Timer
	backoff time.Duration
}

func (fw *fileWatcher) run(ctx context.Context) error {
	fw.backoff = watchBackoffBase
	for ctx.Err() == nil {
		err := fw.watchOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		fw.log.Warn("config watch interrupted",
			logx.String("file", fw.base), logx.Err(err))
		if !fw.sleep(ctx) {
			return nil
		}
	}
	return nil
}

// watchOnce services a single watcher until it breaks or ctx ends.
func (fw *fileWatcher) watchOnce(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(fw.dir); err != nil {
		return err
	}

	fw.backoff = watchBackoffBase
	fw.log.Debug("config watch active", logx.String("file", fw.base))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("event channel closed")
			}
			if fw.matches(ev.Name) {
				fw.schedule()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("error channel closed")
			}
			if err == nil {
				continue
			}
			// On queue overflow events were lost; reload unconditionally.
			if strings.Contains(strings.ToLower(err.Error()), "overflow") {
				fw.log.Warn("config watch overflow, reloading", logx.Err(err))
				fw.schedule()
				continue
			}
			fw.log.Warn("config watch error", logx.Err(err))
		}
	}
}

// matches compares basenames, so it holds whether events carry absolute or
// relative paths.
func (fw *fileWatcher) matches(name string) bool {
	return strings.EqualFold(filepath.Base(name), fw.base)
}

// schedule arms the debounce timer, collapsing bursts of events from a
// single save into one onChange call.
func (fw *fileWatcher) schedule() {
	if fw.pending != nil {
		fw.pending.Stop()
	}
	fw.pending = time.AfterFunc(watchDebounce, fw.onChange)
}

func (fw *fileWatcher) sleep(ctx context.Context) bool {
	d := fw.backoff + time.Duration(fw.rng.Int63n(int64(fw.backoff/2)+1))
	fw.backoff *= 2
	if fw.backoff > watchBackoffMax {
		fw.backoff = watchBackoffMax
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
