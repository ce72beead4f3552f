package resource

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadQuiet is how long the directory must stay quiet before a reload, so
// an editor's truncate-then-write shows up as one change.
const reloadQuiet = 100 * time.Millisecond

// Watch reloads the content directory whenever a bundle file changes and
// calls onReload with the new archetype names after each successful reload.
// A failed reload is logged and the previous set stays in place. Watch
// blocks until ctx is cancelled.
func (l *Loader) Watch(ctx context.Context, onReload func(names []string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(l.dir); err != nil {
		return err
	}
	l.logger.Info("watching archetypes", zap.String("dir", l.dir))

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !IsBundleFile(ev.Name) {
				continue
			}
			timer.Reset(reloadQuiet)
		case <-timer.C:
			if err := l.Load(); err != nil {
				l.logger.Warn("archetype reload failed", zap.Error(err))
				continue
			}
			if onReload != nil {
				onReload(l.Names())
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("archetype watcher error", zap.Error(err))
		case <-ctx.Done():
			return nil
		}
	}
}
