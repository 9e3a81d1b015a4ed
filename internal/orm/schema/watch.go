package schema

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a registry whenever its schema file changes on disk.
// A document that fails to parse or validate leaves the registry untouched.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	registry *Registry
	logger   *zap.Logger
	delay    time.Duration
	onReload func(error)

	mu       sync.Mutex
	timer    *time.Timer
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// WatcherOptions configures a Watcher
type WatcherOptions struct {
	Logger *zap.Logger
	// Delay debounces bursts of write events. Default: 100ms
	Delay time.Duration
	// OnReload is called after every reload attempt with its outcome
	OnReload func(error)
}

// NewWatcher creates a watcher for the schema file at path
func NewWatcher(path string, registry *Registry, opts WatcherOptions) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		path:     abs,
		registry: registry,
		logger:   opts.Logger,
		delay:    opts.Delay,
		onReload: opts.OnReload,
		stopChan: make(chan struct{}),
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	if w.delay == 0 {
		w.delay = 100 * time.Millisecond
	}
	return w, nil
}

// Start begins watching. Editors often replace files instead of writing
// them, so the parent directory is watched rather than the file itself.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	w.logger.Info("watching schema file", zap.String("path", w.path))

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop stops the watcher and waits for the event loop to exit
func (w *Watcher) Stop() error {
	select {
	case <-w.stopChan:
		return nil
	default:
		close(w.stopChan)
	}

	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	return w.watcher.Close()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("schema watcher error", zap.Error(err))

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.reload)
}

func (w *Watcher) reload() {
	err := w.load()
	if err != nil {
		w.logger.Error("schema reload failed", zap.String("path", w.path), zap.Error(err))
	} else {
		w.logger.Info("schema reloaded", zap.String("path", w.path), zap.Int("resources", w.registry.Count()))
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}

func (w *Watcher) load() error {
	schemas, err := LoadFile(w.path)
	if err != nil {
		return err
	}
	return w.registry.Replace(schemas)
}
