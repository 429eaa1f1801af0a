package vendors

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pion/logging"
)

// Watcher signals when vendor files appear, disappear or are renamed in the
// vendors directory. Bursts of events are coalesced into one signal.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	debounce  time.Duration
	onChange  chan struct{}
	done      chan struct{}
	log       logging.LeveledLogger
}

// WatcherConfig holds watcher configuration options.
type WatcherConfig struct {
	Dir         string
	DebounceDur time.Duration

	// LoggerFactory creates the watcher logger. Nil disables logging.
	LoggerFactory logging.LoggerFactory
}

// DefaultWatcherConfig returns the defaults for watching dir.
func DefaultWatcherConfig(dir string) WatcherConfig {
	return WatcherConfig{
		Dir:         dir,
		DebounceDur: 300 * time.Millisecond,
	}
}

// NewWatcher creates a vendors directory watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsWatcher: fsw,
		dir:       cfg.Dir,
		debounce:  cfg.DebounceDur,
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	if cfg.LoggerFactory != nil {
		w.log = cfg.LoggerFactory.NewLogger("vendors")
	}
	return w, nil
}

// Start begins watching. The returned channel receives a signal after the
// vendor list changed.
func (w *Watcher) Start() (<-chan struct{}, error) {
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", w.dir, err)
	}

	go w.loop()

	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !isRelevantEvent(event) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			select {
			case w.onChange <- struct{}{}:
			default:
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Warnf("Vendors watcher error: %v", err)
			}

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return IsVendorFile(event.Name)
}
