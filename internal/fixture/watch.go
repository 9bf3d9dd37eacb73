package fixture

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchOp is a bitmask of filesystem changes observed on a watched fixture.
type WatchOp int

const (
	OpCreate WatchOp = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

// Touched reports whether the change can have produced new fixture content
// worth reloading.
func (op WatchOp) Touched() bool { return op&(OpCreate|OpWrite) != 0 }

// Event signals a change to the watched fixture file.
type Event struct {
	Path string
	Op   WatchOp
}

// Watcher reports changes to a single fixture file using OS-native
// notifications. The parent directory is watched rather than the file
// itself so that editors which save by writing a temporary and renaming it
// over the original keep being observed.
type Watcher struct {
	w    *fsnotify.Watcher
	path string
	evC  chan Event
	erC  chan error
}

// NewWatcher starts watching the fixture at path.
func NewWatcher(path string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}
	fw := &Watcher{w: w, path: abs, evC: make(chan Event, 16), erC: make(chan error, 1)}
	go fw.loop()
	return fw, nil
}

func (fw *Watcher) loop() {
	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || abs != fw.path {
				continue
			}
			var op WatchOp
			if ev.Op&fsnotify.Create != 0 {
				op |= OpCreate
			}
			if ev.Op&fsnotify.Write != 0 {
				op |= OpWrite
			}
			if ev.Op&fsnotify.Remove != 0 {
				op |= OpRemove
			}
			if ev.Op&fsnotify.Rename != 0 {
				op |= OpRename
			}
			if ev.Op&fsnotify.Chmod != 0 {
				op |= OpChmod
			}
			fw.evC <- Event{Path: ev.Name, Op: op}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			fw.erC <- err
		}
	}
}

// Events delivers changes to the watched fixture.
func (fw *Watcher) Events() <-chan Event { return fw.evC }

// Errors delivers watcher failures.
func (fw *Watcher) Errors() <-chan error { return fw.erC }

// Close stops the watcher.
func (fw *Watcher) Close() error { return fw.w.Close() }
