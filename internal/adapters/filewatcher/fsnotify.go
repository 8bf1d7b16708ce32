// Package filewatcher reports changes under the documentation tree. The
// index is never rebuilt from these events; they only flag it as stale.
package filewatcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/phuslu/log"

	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docqa-go/internal/logging"
)

// StaleIndexMessage is logged for every relevant change while the bot runs.
const StaleIndexMessage = "documentation changed; restart to rebuild the index"

// FSNotifyWatcher implements ports.FileWatcher using fsnotify. Directories
// are watched recursively, including ones created after Watch.
type FSNotifyWatcher struct {
	watcher  *fsnotify.Watcher
	suffixes []string
	logger   *log.Logger
}

// NewFSNotifyWatcher creates a watcher for names ending in one of suffixes,
// ".md" when none are given.
func NewFSNotifyWatcher(suffixes []string, logger *log.Logger) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if len(suffixes) == 0 {
		suffixes = []string{".md"}
	}

	return &FSNotifyWatcher{
		watcher:  w,
		suffixes: suffixes,
		logger:   logging.OrNop(logger),
	}, nil
}

// Watch starts monitoring dir and every directory below it.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.addTree(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}

				if event.Op&fsnotify.Create == fsnotify.Create {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := w.addTree(event.Name); err != nil {
							w.logger.Warn().Err(err).Str("dir", event.Name).Msg("cannot watch new directory")
						}
						continue
					}
				}

				if !w.isWatched(event.Name) {
					continue
				}

				var op ports.FileOperation
				switch {
				case event.Op&fsnotify.Create == fsnotify.Create:
					op = ports.FileCreated
				case event.Op&fsnotify.Write == fsnotify.Write:
					op = ports.FileModified
				case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
					op = ports.FileDeleted
				default:
					continue
				}

				select {
				case events <- ports.FileEvent{Path: event.Name, Operation: op}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn().Err(err).Msg("file watcher error")
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

// ReportStale logs StaleIndexMessage for each event until the channel closes.
func ReportStale(events <-chan ports.FileEvent, logger *log.Logger) {
	logger = logging.OrNop(logger)
	for ev := range events {
		logger.Warn().Str("path", ev.Path).Str("op", ev.Operation.String()).Msg(StaleIndexMessage)
	}
}

func (w *FSNotifyWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

func (w *FSNotifyWatcher) isWatched(path string) bool {
	name := filepath.Base(path)
	for _, s := range w.suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
