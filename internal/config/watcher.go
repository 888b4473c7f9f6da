package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/validation"
)

// RulesWatcher reloads a rules file whenever it changes on disk
type RulesWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	path     string
	apply    func(validation.Rules)
	logger   *slog.Logger
	debounce time.Duration

	running bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	reloads int
}

// NewRulesWatcher watches path and calls apply with every valid revision.
// The parent directory is watched so editors that replace files are seen.
func NewRulesWatcher(path string, debounce time.Duration, apply func(validation.Rules), logger *slog.Logger) (*RulesWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("rules watcher needs a file path")
	}
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve rules path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create rules watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &RulesWatcher{
		watcher:  w,
		path:     abs,
		apply:    apply,
		logger:   logger.With(slog.String("component", "rules_watcher"), slog.String("path", abs)),
		debounce: debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start runs the event loop in the background until ctx is done or Stop is
// called. A stopped watcher cannot be restarted.
func (rw *RulesWatcher) Start(ctx context.Context) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.running || rw.stopped {
		return
	}
	rw.running = true
	go rw.run(ctx)
}

// Stop ends the event loop and releases the underlying watcher. Later calls
// are no-ops.
func (rw *RulesWatcher) Stop() error {
	rw.mu.Lock()
	if rw.stopped {
		rw.mu.Unlock()
		return nil
	}
	wasRunning := rw.running
	rw.running = false
	rw.stopped = true
	rw.mu.Unlock()

	if wasRunning {
		close(rw.stopCh)
		<-rw.doneCh
	}
	return rw.watcher.Close()
}

// Reloads reports how many revisions were applied
func (rw *RulesWatcher) Reloads() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.reloads
}

func (rw *RulesWatcher) run(ctx context.Context) {
	defer close(rw.doneCh)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-rw.stopCh:
			return

		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != rw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(rw.debounce)
			} else {
				timer.Reset(rw.debounce)
			}
			fire = timer.C

		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			rw.logger.Warn("rules watcher error", slog.String("error", err.Error()))

		case <-fire:
			fire = nil
			rw.reload()
		}
	}
}

func (rw *RulesWatcher) reload() {
	rules, err := validation.LoadRules(rw.path)
	if err != nil {
		rw.logger.Error("rules reload failed, keeping previous rules", slog.String("error", err.Error()))
		return
	}

	rw.apply(rules)

	rw.mu.Lock()
	rw.reloads++
	rw.mu.Unlock()
	rw.logger.Info("rules reloaded")
}
