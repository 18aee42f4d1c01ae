package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc is called with the freshly loaded configuration after a
// successful reload.
type ReloadFunc func(*Config)

// Watcher watches a configuration file and reloads it on change.
// Policy settings can be edited between batch runs without restarting a
// long-lived process (e.g. one running the rollback monitor).
type Watcher struct {
	path     string
	onReload ReloadFunc
	logger   *slog.Logger

	watcher  *fsnotify.Watcher
	debounce time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher for the configuration file at path.
// onReload is invoked after every successful reload; reload failures are
// logged and the previous configuration stays in effect.
func NewWatcher(path string, onReload ReloadFunc, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: editors replace files on save,
	// which drops a watch registered on the file itself.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		onReload: onReload,
		logger:   logger.With("component", "config.watcher"),
		watcher:  fsw,
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}

	w.wg.Add(1)
	go w.run()

	return w, nil
}

// run processes filesystem events until Close is called.
func (w *Watcher) run() {
	defer w.wg.Done()

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Debounce: editors emit several events per save.
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watch error", "error", err)
		}
	}
}

// reload loads and validates the file, invoking the callback on success.
func (w *Watcher) reload() {
	cfg, err := LoadConfigWithEnvOverrides(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous configuration",
			"path", w.path,
			"error", err,
		)
		return
	}

	w.logger.Info("configuration reloaded", "path", w.path, "accounts", len(cfg.Accounts))
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Close stops the watcher and releases filesystem resources.
func (w *Watcher) Close() error {
	close(w.stopCh)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
