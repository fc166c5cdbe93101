package scripts

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teranos/scrapstudio/errors"
	"github.com/teranos/scrapstudio/logger"
)

// Change is a debounced edit of one script
type Change struct {
	Name string
	Op   string // "write", "create", "remove" or "rename"
}

// Watcher reports edits to scripts under the repository root.
// Backups and temporary files produced by Save are ignored.
type Watcher struct {
	repo     *Repository
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	handler func(Change)
	done    chan struct{}
}

// NewWatcher watches the root of repo. handler runs on a timer goroutine.
func NewWatcher(repo *Repository, handler func(Change)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := fw.Add(repo.Root()); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "failed to watch %s", repo.Root())
	}

	return &Watcher{
		repo:     repo,
		watcher:  fw,
		debounce: 300 * time.Millisecond,
		pending:  make(map[string]*time.Timer),
		handler:  handler,
		done:     make(chan struct{}),
	}, nil
}

// Start begins delivering changes
func (w *Watcher) Start() {
	go w.loop()
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			if !w.relevant(name) {
				continue
			}
			w.schedule(Change{Name: name, Op: opName(event.Op)})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("Script watcher error", logger.FieldError, err)
		}
	}
}

func (w *Watcher) relevant(name string) bool {
	if strings.HasPrefix(name, "__") || strings.HasSuffix(name, backupSuffix) {
		return false
	}
	return ValidateName(name, w.repo.Extension()) == nil
}

// schedule coalesces bursts per script; the last op wins
func (w *Watcher) schedule(c Change) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[c.Name]; ok {
		t.Stop()
	}
	w.pending[c.Name] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, c.Name)
		w.mu.Unlock()
		w.handler(c)
	})
}

// Stop ends the watch and drops pending changes
func (w *Watcher) Stop() error {
	w.mu.Lock()
	for name, t := range w.pending {
		t.Stop()
		delete(w.pending, name)
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.done
	return err
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return "write"
	}
}
