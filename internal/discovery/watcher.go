package discovery

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"agentrunner/internal/config"
	"agentrunner/internal/logging"
	"agentrunner/internal/types"
)

// Watcher re-runs detection whenever a known tool's config dir or the
// wrapper dir changes. Bursts of events are coalesced into one detection.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	detector types.Detector
	dirs     []string
	onChange func(*types.DetectionReport)

	debounceDur time.Duration
	pending     bool
	lastEvent   time.Time

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher creates a watcher over the config dirs in opts. onChange
// receives every fresh report.
func NewWatcher(opts Options, detector types.Detector, onChange func(*types.DetectionReport)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, tc := range opts.KnownTools {
		dirs = append(dirs, config.ExpandHome(tc.ConfigDir, opts.Home))
	}
	if opts.WrapperDir != "" {
		dirs = append(dirs, opts.WrapperDir)
	}

	return &Watcher{
		watcher:     fw,
		detector:    detector,
		dirs:        dirs,
		onChange:    onChange,
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Watched returns the directories currently being watched.
func (w *Watcher) Watched() []string {
	return w.watcher.WatchList()
}

// Start begins watching. Directories that do not exist yet are skipped.
// Start does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, dir := range w.dirs {
		if _, err := os.Stat(dir); err != nil {
			logging.DiscoveryDebug("Watcher: skipping missing dir %s", dir)
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			logging.Get(logging.CategoryDiscovery).Warn("Watcher: cannot watch %s: %v", dir, err)
			continue
		}
		logging.Discovery("Watcher: watching %s", dir)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryDiscovery).Error("Watcher: error closing: %v", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logging.DiscoveryDebug("Watcher: %s %s", event.Op, event.Name)
			w.mu.Lock()
			w.pending = true
			w.lastEvent = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryDiscovery).Error("Watcher error: %v", err)

		case <-ticker.C:
			w.mu.Lock()
			due := w.pending && time.Since(w.lastEvent) >= w.debounceDur
			if due {
				w.pending = false
			}
			w.mu.Unlock()
			if due {
				w.onChange(w.detector.DetectAll(ctx))
			}
		}
	}
}
