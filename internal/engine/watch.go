package engine

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/GoatGit/semibot/internal/types"
)

// ruleWatch is the handle of one running watch loop.
type ruleWatch struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartRuleWatch begins polling the rule sources every pollInterval and
// reloads when they changed, independent of event traffic. Filesystem
// notifications wake the loop early when available; the ticker poll is the
// backstop, since atomic rewrites replace inodes and escape per-file
// watches. A zero interval uses the configured default. Only one watch may
// run; a second start returns types.ErrWatchRunning.
func (e *Engine) StartRuleWatch(pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = e.cfg.RulePollInterval
	}

	e.watchMu.Lock()
	defer e.watchMu.Unlock()
	if e.watch != nil {
		return types.ErrWatchRunning
	}

	watcher := e.newSourceWatcher()
	ctx, cancel := context.WithCancel(context.Background())
	w := &ruleWatch{cancel: cancel, done: make(chan struct{})}
	e.watch = w

	go e.watchLoop(ctx, w, watcher, pollInterval)

	e.logger.Info().
		Str("event", "rules.watch_started").
		Str("source", e.rules.loader.Source()).
		Dur("poll_interval", pollInterval).
		Bool("fsnotify", watcher != nil).
		Msg("rule watch loop running")
	return nil
}

// StopRuleWatch cancels the watch loop and waits for it to exit. Safe to
// call when no watch is running.
func (e *Engine) StopRuleWatch() {
	e.watchMu.Lock()
	w := e.watch
	e.watch = nil
	e.watchMu.Unlock()

	if w == nil {
		return
	}
	w.cancel()
	<-w.done

	e.logger.Info().
		Str("event", "rules.watch_stopped").
		Msg("rule watch loop joined")
}

// newSourceWatcher builds a best-effort fsnotify watcher over the rule
// source. A nil return degrades the loop to pure polling.
func (e *Engine) newSourceWatcher() *fsnotify.Watcher {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		e.logger.Warn().
			Str("event", "rules.watch_fsnotify_unavailable").
			Err(err).
			Msg("falling back to polling only")
		return nil
	}

	source := e.rules.loader.Source()
	paths := []string{source}
	if info, statErr := os.Stat(source); statErr == nil && !info.IsDir() {
		// Watch the parent too: a renamed-over file keeps its directory.
		paths = append(paths, filepath.Dir(source))
	}

	watched := 0
	for _, p := range paths {
		if addErr := watcher.Add(p); addErr != nil {
			e.logger.Warn().
				Str("event", "rules.watch_add_failed").
				Str("path", p).
				Err(addErr).
				Msg("path not watched")
			continue
		}
		watched++
	}
	if watched == 0 {
		watcher.Close()
		return nil
	}
	return watcher
}

func (e *Engine) watchLoop(ctx context.Context, w *ruleWatch, watcher *fsnotify.Watcher, pollInterval time.Duration) {
	defer close(w.done)
	if watcher != nil {
		defer watcher.Close()
	}

	var fsEvents <-chan fsnotify.Event
	var fsErrors <-chan error
	if watcher != nil {
		fsEvents = watcher.Events
		fsErrors = watcher.Errors
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fe, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if fe.Has(fsnotify.Write) || fe.Has(fsnotify.Create) || fe.Has(fsnotify.Rename) || fe.Has(fsnotify.Remove) {
				e.reloadIfStale(ctx)
			}
		case watchErr, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			e.logger.Warn().
				Str("event", "rules.watch_error").
				Err(watchErr).
				Msg("filesystem watcher error")
		case <-ticker.C:
			e.reloadIfStale(ctx)
		}
	}
}

// reloadIfStale checks the cheap fingerprint first so an idle loop does not
// reparse rule files every tick.
func (e *Engine) reloadIfStale(ctx context.Context) {
	if !e.rules.loader.Stale() {
		return
	}
	if err := e.rules.Reload(ctx); err != nil {
		e.logger.Error().
			Str("event", "rules.watch_reload_failed").
			Err(err).
			Msg("reload failed, keeping previous set")
	}
}
