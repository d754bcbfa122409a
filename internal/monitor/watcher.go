// Package monitor observes cache directories and runs the background
// maintenance schedule: expiry sweeps, disk snapshots and event pruning.
package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/dverbeek/sweeper/internal/store"
)

// settleDelay batches bursts of filesystem events before re-measuring a
// watched directory.
const settleDelay = 5 * time.Second

// Watcher records net size changes of watched cache directories as cache
// events.
type Watcher struct {
	store *store.Store
	fsw   *fsnotify.Watcher

	mu       sync.Mutex
	sizes    map[string]int64 // watched root -> last measured size
	pending  map[string]*time.Timer
	watched  []string
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher starts watching the given directories. Paths that do not
// exist are skipped with a log line; they can appear later via Add.
func NewWatcher(st *store.Store, paths []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		store:   st,
		fsw:     fsw,
		sizes:   make(map[string]int64),
		pending: make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}
	for _, p := range paths {
		if err := w.Add(p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("cannot watch cache directory")
		}
	}
	go w.loop()
	return w, nil
}

// Add registers one directory and takes its baseline measurement.
func (w *Watcher) Add(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	if err := w.fsw.Add(path); err != nil {
		return err
	}
	size := measureTree(path)
	w.mu.Lock()
	w.sizes[path] = size
	w.watched = append(w.watched, path)
	w.mu.Unlock()
	log.Debug().Str("path", path).Int64("size", size).Msg("watching cache directory")
	return nil
}

// Close stops the watcher and flushes nothing; pending re-measurements
// are dropped.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for _, t := range w.pending {
			t.Stop()
		}
		w.mu.Unlock()
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := w.store.TouchFileAccess(ev.Name, time.Now()); err != nil {
					log.Debug().Err(err).Str("path", ev.Name).Msg("cannot record file access")
				}
			}
			if root := w.rootFor(ev.Name); root != "" {
				w.schedule(root)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("cache watcher error")
		}
	}
}

// schedule arms (or re-arms) the settle timer for a watched root.
func (w *Watcher) schedule(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[root]; ok {
		t.Reset(settleDelay)
		return
	}
	w.pending[root] = time.AfterFunc(settleDelay, func() {
		w.remeasure(root)
	})
}

// remeasure computes the new size of a root and records the delta.
func (w *Watcher) remeasure(root string) {
	size := measureTree(root)

	w.mu.Lock()
	delete(w.pending, root)
	prev := w.sizes[root]
	w.sizes[root] = size
	w.mu.Unlock()

	delta := size - prev
	if delta == 0 {
		return
	}
	ev := &store.CacheEvent{
		Source:    filepath.Base(root),
		Path:      root,
		Delta:     delta,
		Timestamp: time.Now(),
	}
	if err := w.store.AppendCacheEvent(ev); err != nil {
		log.Warn().Err(err).Str("path", root).Msg("cannot record cache event")
		return
	}
	log.Debug().Str("source", ev.Source).Int64("delta", delta).Msg("cache size changed")
}

func (w *Watcher) rootFor(name string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, root := range w.watched {
		if name == root || filepath.Dir(name) == root {
			return root
		}
	}
	return ""
}

// Snapshot forces an immediate re-measurement of every watched root.
// The scheduler calls this so slow-drip growth is recorded even without
// filesystem events.
func (w *Watcher) Snapshot(ctx context.Context) {
	w.mu.Lock()
	roots := append([]string(nil), w.watched...)
	w.mu.Unlock()
	for _, root := range roots {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.remeasure(root)
	}
}

func measureTree(root string) int64 {
	var size int64
	_ = filepath.WalkDir(root, func(_ string, de os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if info, err := de.Info(); err == nil && !de.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
