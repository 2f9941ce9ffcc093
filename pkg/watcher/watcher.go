// Package watcher keeps an item file's contents current. It notices
// changes with fsnotify, or by stat polling where events are unreliable,
// re-reads the items once each burst of writes settles and delivers the
// result on a channel.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/wintree/pkg/debug"
	"github.com/vanderheijden86/wintree/pkg/metrics"
	"github.com/vanderheijden86/wintree/pkg/model"
)

const (
	// DefaultDebounce is the quiet period after the last write before
	// the file is re-read.
	DefaultDebounce = 200 * time.Millisecond
	// DefaultPollInterval is the stat interval in polling mode.
	DefaultPollInterval = 2 * time.Second
)

var (
	ErrFileRemoved    = errors.New("item file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// LoadFunc reads the complete item set.
type LoadFunc func(ctx context.Context) ([]model.Item, error)

// Event is one outcome: a fresh item set, or the error that prevented one.
type Event struct {
	Items []model.Item
	Err   error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithPollInterval sets the stat interval used in polling mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithForcePoll polls even where fsnotify would work.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// Watcher reloads one item file whenever it changes. Reloads run on the
// watcher's own goroutine, one at a time; writes that land during a
// reload start the quiet period again and produce a single follow-up.
type Watcher struct {
	path         string
	load         LoadFunc
	debounce     time.Duration
	pollInterval time.Duration
	forcePoll    bool

	events chan Event
	kick   chan struct{}

	mu      sync.Mutex
	started bool
	polling bool
	fsType  FilesystemType
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a watcher for the item file at path. load is called with
// the watcher's context after every settled change.
func New(path string, load LoadFunc, opts ...Option) (*Watcher, error) {
	if load == nil {
		return nil, errors.New("watcher: nil load function")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	w := &Watcher{
		path:         abs,
		load:         load,
		debounce:     DefaultDebounce,
		pollInterval: DefaultPollInterval,
		events:       make(chan Event),
		kick:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Events delivers reload outcomes. It is closed once the watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins watching. It fails if the file exists but cannot be read.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}

	last, err := statFile(w.path)
	if err != nil && !errors.Is(err, ErrFileRemoved) {
		return err
	}

	w.fsType = DetectFilesystemType(w.path)
	w.polling = w.forcePoll || envBool("WT_FORCE_POLL") || isRemoteFilesystem(w.fsType)

	var fsw *fsnotify.Watcher
	if !w.polling {
		fsw, err = fsnotify.NewWatcher()
		if err == nil {
			// the directory, so atomic rename-over writes are seen
			err = fsw.Add(filepath.Dir(w.path))
		}
		if err != nil {
			debug.Log("watcher: fsnotify unavailable for %s, polling: %v", w.path, err)
			if fsw != nil {
				fsw.Close()
				fsw = nil
			}
			w.polling = true
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel, w.done, w.started = cancel, make(chan struct{}), true
	debug.Log("watcher: watching %s (fs=%s, polling=%v)", w.path, w.fsType, w.polling)
	go w.run(ctx, fsw, last)
	return nil
}

// Stop ends watching, abandons a reload in progress and waits for the
// watcher goroutine to exit. Events is closed afterwards.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
}

// Reload re-reads the file now, as if it had changed.
func (w *Watcher) Reload() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// IsPolling reports whether the watcher fell back to stat polling.
func (w *Watcher) IsPolling() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polling
}

// FilesystemType returns the classification made at Start.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fsType
}

// Path returns the absolute path of the item file.
func (w *Watcher) Path() string {
	return w.path
}

// fileState is what polling compares between ticks.
type fileState struct {
	mtime time.Time
	size  int64
}

func statFile(path string) (fileState, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return fileState{mtime: info.ModTime(), size: info.Size()}, nil
	case os.IsNotExist(err):
		return fileState{}, ErrFileRemoved
	case os.IsPermission(err):
		return fileState{}, ErrPermission
	}
	return fileState{}, err
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, last fileState) {
	defer close(w.done)
	defer close(w.events)

	var fsEvents <-chan fsnotify.Event
	var fsErrors <-chan error
	if fsw != nil {
		defer fsw.Close()
		fsEvents, fsErrors = fsw.Events, fsw.Errors
	}

	var poll <-chan time.Time
	if w.polling {
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	settle := time.NewTimer(w.debounce)
	settle.Stop()
	defer settle.Stop()
	var settled <-chan time.Time
	arm := func() {
		settle.Reset(w.debounce)
		settled = settle.C
	}

	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			switch {
			case ev.Op&fsnotify.Remove != 0:
				w.emit(ctx, Event{Err: ErrFileRemoved})
			case ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				arm()
			}

		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			w.emit(ctx, Event{Err: err})

		case <-poll:
			cur, err := statFile(w.path)
			if err != nil {
				// a file that never existed is not an error yet
				if !errors.Is(err, ErrFileRemoved) || !last.mtime.IsZero() {
					w.emit(ctx, Event{Err: err})
				}
				last = cur
				continue
			}
			if cur.mtime.After(last.mtime) || cur.size != last.size {
				last = cur
				arm()
			}

		case <-settled:
			settled = nil
			debug.Log("watcher: %s changed", w.path)
			w.reload(ctx)

		case <-w.kick:
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	items, err := w.load(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		w.emit(ctx, Event{Err: fmt.Errorf("reading %s: %w", w.path, err)})
		return
	}
	metrics.Reloads.Inc()
	debug.Log("watcher: reloaded %d items", len(items))
	w.emit(ctx, Event{Items: items})
}

// emit hands ev to the receiver unless the watcher stops first.
func (w *Watcher) emit(ctx context.Context, ev Event) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
