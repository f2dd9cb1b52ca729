package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/andeslabs/cryptoqr/backend/internal/logging"
)

// Watcher reloads the file configuration layer when the file changes, so
// whitelist updates take effect without a restart.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	log     *logging.Logger
	done    chan struct{}
}

// NewWatcher creates a watcher for the given config file.
func NewWatcher(path string, log *logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: editors replace files on save,
	// which drops a file-level watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		path:    path,
		watcher: fw,
		log:     log,
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching. onChange is invoked with each successfully
// reloaded configuration; parse failures are logged and skipped so a
// half-written file never clobbers the active whitelist.
func (w *Watcher) Start(onChange func(*FileConfig)) {
	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				fc, err := LoadFile(w.path)
				if err != nil {
					w.log.Warn("config reload skipped", zap.Error(err))
					continue
				}
				w.log.Info("config file reloaded",
					zap.Int("allowed_directories", len(fc.AllowedDirectories)),
				)
				onChange(fc)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Warn("config watcher error", zap.Error(err))

			case <-w.done:
				return
			}
		}
	}()
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
