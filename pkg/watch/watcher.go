package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rjeczalik/notify"

	"github.com/sdejongh/foldermirror/pkg/logging"
)

const (
	// DefaultDebounce is the quiet period after the last change before a pass is requested
	DefaultDebounce = 2 * time.Second
	eventBufferSize = 64
)

// FilterFunc returns true for paths (relative to the watched root) that must not trigger a pass
type FilterFunc func(relPath string) bool

// Watcher calls OnChange once a burst of filesystem events under a tree has
// settled. Events for the whole tree share a single debounce timer.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func()
	filter   FilterFunc
	logger   logging.Logger
}

// New creates a watcher for dir
func New(dir string, debounce time.Duration, onChange func(), logger logging.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
	}
}

// SetFilter installs a filter for raw events
func (w *Watcher) SetFilter(filter FilterFunc) {
	w.filter = filter
}

// Run watches the tree recursively until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	events := make(chan notify.EventInfo, eventBufferSize)
	if err := notify.Watch(filepath.Join(w.dir, "..."), events, notify.All); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	defer notify.Stop(events)

	w.logger.Info(ctx, fmt.Sprintf("Watching %s for changes", w.dir), nil)
	w.loop(ctx, events)
	return nil
}

// loop debounces events until ctx is done or events is closed
func (w *Watcher) loop(ctx context.Context, events <-chan notify.EventInfo) {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if w.ignored(event.Path()) {
				continue
			}
			w.logger.Debug(ctx, fmt.Sprintf("Change detected: %s %s", event.Event(), event.Path()), nil)
			timer.Reset(w.debounce)
		case <-timer.C:
			w.onChange()
		}
	}
}

func (w *Watcher) ignored(path string) bool {
	if w.filter == nil {
		return false
	}
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return false
	}
	return w.filter(rel)
}
