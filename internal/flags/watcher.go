package flags

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads a controller's config when its file changes.
type Watcher struct {
	path       string
	controller *Controller
	watcher    *fsnotify.Watcher
	done       chan struct{}
}

// NewWatcher creates a watcher for the given rollout config file.
func NewWatcher(path string, controller *Controller) *Watcher {
	return &Watcher{
		path:       path,
		controller: controller,
		done:       make(chan struct{}),
	}
}

// Start loads the config once, then watches the containing directory for
// changes. Editors often replace files via rename, so the directory is
// watched rather than the file itself. Call Stop() to clean up.
func (w *Watcher) Start() error {
	if err := w.controller.LoadFile(w.path); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return err
	}
	w.watcher = fw

	go w.loop()
	log.Printf("flags: watching %s for rollout changes", w.path)
	return nil
}

// Stop shuts down the watcher.
func (w *Watcher) Stop() {
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if evt.Name != w.path {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := w.controller.LoadFile(w.path); err != nil {
				log.Printf("WARNING: flags: reload failed: %v", err)
				continue
			}
			log.Printf("flags: rollout config reloaded from %s", w.path)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("flags: watcher error: %v", err)
		}
	}
}
