package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"

	"github.com/0xcro3dile/docqa-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/docqa-go/internal/config"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// acquireInstanceLock makes sure only one bot answers per host.
func acquireInstanceLock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock dir: %w", err)
	}
	l := flock.New(path)
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("cannot acquire instance lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another docqa discord instance is running (lock: %s)", path)
	}
	return func() { _ = l.Unlock() }, nil
}

// startFlusher persists tracked records on the configured schedule without
// finishing the run.
func startFlusher(cfg *config.Config, t ports.Tracker, logger *log.Logger) (func(), error) {
	if !cfg.Tracker.Enabled {
		return func() {}, nil
	}
	c := cron.New()
	_, err := c.AddFunc(cfg.Tracker.FlushSchedule, func() {
		if err := t.Flush(context.Background(), false, false); err != nil {
			logger.Warn().Err(err).Msg("scheduled tracker flush failed")
			return
		}
		logger.Debug().Msg("tracker flushed")
	})
	if err != nil {
		return nil, fmt.Errorf("invalid tracker.flush_schedule %q: %w", cfg.Tracker.FlushSchedule, err)
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}

// startWatch warns about documentation edits made after the index was built.
func startWatch(ctx context.Context, cfg *config.Config, logger *log.Logger) func() {
	if !cfg.Watch {
		return func() {}
	}
	w, err := filewatcher.NewFSNotifyWatcher(nil, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("documentation watch disabled")
		return func() {}
	}
	events, err := w.Watch(ctx, cfg.DocsDir)
	if err != nil {
		_ = w.Stop()
		logger.Warn().Err(err).Str("dir", cfg.DocsDir).Msg("documentation watch disabled")
		return func() {}
	}
	go filewatcher.ReportStale(events, logger)
	logger.Info().Str("dir", cfg.DocsDir).Msg("watching documentation")
	return func() { _ = w.Stop() }
}
