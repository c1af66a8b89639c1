package project

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const debounce = 250 * time.Millisecond

// Watch calls onChange after path is written, created or replaced, until
// ctx is done. The parent directory is watched so editors that save through
// a rename are still seen. Bursts of events are collapsed into one call.
func Watch(ctx context.Context, path string, onChange func()) error {
	log := zerolog.Ctx(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("resolve project file path: %w", err)
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch project directory: %w", err)
	}

	log.Info().Str("path", abs).Msg("Watching project file")

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				log.Debug().Str("path", abs).Msg("Project watcher stopped")
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}

				log.Debug().Str("op", event.Op.String()).Msg("Project file changed")

				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, onChange)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("Project watcher error")
			}
		}
	}()

	return nil
}
