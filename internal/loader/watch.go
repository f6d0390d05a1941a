package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors a directory source and hands each created or rewritten supported file to handle
// once writes to it have been quiet for the debounce window. It blocks until ctx is cancelled,
// handle returns an error, or the watcher fails.
func (l *Loader) Watch(ctx context.Context, handle func(Document) error) error {
	info, err := os.Stat(l.source)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch source %s is not a directory", l.source)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.source); err != nil {
		return fmt.Errorf("watch %s: %w", l.source, err)
	}

	ready := make(chan firing)
	debounce := newDebouncer(ctx, l.debounce, ready)
	defer debounce.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed unexpectedly")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !l.Supports(event.Name) {
				continue
			}
			debounce.touch(filepath.Clean(event.Name))

		case f := <-ready:
			if !debounce.take(f) {
				continue
			}
			doc, err := l.read(f.path)
			if err != nil {
				l.logger.Warn("skipping watched file", "path", f.path, "error", err)
				continue
			}
			if err := handle(doc); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// firing is a debounce timer expiry for one path.
type firing struct {
	path string
	gen  uint64
}

type pendingPath struct {
	timer *time.Timer
	gen   uint64
}

// debouncer coalesces bursts of events per path. Only the firing of the latest touch is
// accepted by take; earlier timers that already fired are stale.
// It is owned by a single goroutine; only the timer callbacks run elsewhere.
type debouncer struct {
	ctx     context.Context
	delay   time.Duration
	ready   chan<- firing
	gen     uint64
	pending map[string]pendingPath
}

func newDebouncer(ctx context.Context, delay time.Duration, ready chan<- firing) *debouncer {
	return &debouncer{ctx: ctx, delay: delay, ready: ready, pending: make(map[string]pendingPath)}
}

// touch (re)starts the quiet window for path.
func (d *debouncer) touch(path string) {
	if p, ok := d.pending[path]; ok {
		p.timer.Stop()
	}
	d.gen++
	f := firing{path: path, gen: d.gen}
	d.pending[path] = pendingPath{
		gen: f.gen,
		timer: time.AfterFunc(d.delay, func() {
			select {
			case d.ready <- f:
			case <-d.ctx.Done():
			}
		}),
	}
}

// take reports whether f is the current firing for its path and clears it if so.
func (d *debouncer) take(f firing) bool {
	p, ok := d.pending[f.path]
	if !ok || p.gen != f.gen {
		return false
	}
	delete(d.pending, f.path)
	return true
}

func (d *debouncer) stop() {
	for path, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, path)
	}
}
