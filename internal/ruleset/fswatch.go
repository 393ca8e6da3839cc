package ruleset

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// fsWatcher filters fsnotify events down to the ones touching a single
// file, watching its parent directory (editors and config-management
// tools commonly replace a file via rename rather than in-place write,
// which a direct watch on the file itself can miss).
type fsWatcher struct {
	w        *fsnotify.Watcher
	target   string
	events   chan fsnotify.Event
	closed   chan struct{}
}

func newFsWatcher(path string) (*fsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	fw := &fsWatcher{
		w:      w,
		target: filepath.Clean(path),
		events: make(chan fsnotify.Event, 1),
		closed: make(chan struct{}),
	}
	go fw.pump()
	return fw, nil
}

func (fw *fsWatcher) pump() {
	defer close(fw.events)
	for ev := range fw.w.Events {
		if filepath.Clean(ev.Name) != fw.target {
			continue
		}
		select {
		case fw.events <- ev:
		case <-fw.closed:
			return
		}
	}
}

func (fw *fsWatcher) Events() <-chan fsnotify.Event { return fw.events }
func (fw *fsWatcher) Errors() <-chan error           { return fw.w.Errors }

func (fw *fsWatcher) Close() error {
	close(fw.closed)
	return fw.w.Close()
}
