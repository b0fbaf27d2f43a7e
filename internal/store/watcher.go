package store

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/switchkey/internal/logging"
)

// ReloadHandler is called after the store reloads a document that changed
// on disk.
type ReloadHandler func()

// Watcher reloads the store when its document changes on disk, so edits
// from another surface (a companion UI writing the same file) take effect
// without a restart. The parent directory is watched rather than the file
// itself because atomic saves replace the file by rename.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	handler  ReloadHandler
	debounce time.Duration
	logger   *logging.Logger

	mu      sync.Mutex
	pending *time.Timer
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher starts watching the store's document. handler may be nil.
func NewWatcher(s *Store, handler ReloadHandler, logger *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Null
	}

	w := &Watcher{
		store:    s,
		watcher:  fsw,
		handler:  handler,
		debounce: 200 * time.Millisecond,
		logger:   logger,
		closeCh:  make(chan struct{}),
	}
	if err := fsw.Add(filepath.Dir(s.Path())); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.store.Path() {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("configuration watch error: %v", err)
		}
	}
}

// schedule arms the debounce timer; rapid successive events (the save
// sequence itself produces several) collapse into one reload.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	if err := w.store.Reload(); err != nil {
		w.logger.Error("configuration reload failed: %v", err)
		return
	}
	w.logger.Debug("configuration reloaded after external change")
	if w.handler != nil {
		w.handler()
	}
}
