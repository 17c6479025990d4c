// Package fsnotify implements the fswatch port on github.com/fsnotify/fsnotify.
package fsnotify

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Strob0t/clawkanban/internal/port/fswatch"
)

// Watcher implements fswatch.Watcher.
type Watcher struct {
	w      *fsnotify.Watcher
	events chan fswatch.Event
	errors chan error
	done   chan struct{}
	once   sync.Once
}

// New starts a watcher with no directories registered.
func New() (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	fw := &Watcher{
		w:      w,
		events: make(chan fswatch.Event, 64),
		errors: make(chan error, 8),
		done:   make(chan struct{}),
	}
	go fw.pump()
	return fw, nil
}

// Add registers dir. Only its direct entries are reported.
func (fw *Watcher) Add(dir string) error {
	if err := fw.w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	return nil
}

// Events implements fswatch.Watcher.
func (fw *Watcher) Events() <-chan fswatch.Event { return fw.events }

// Errors implements fswatch.Watcher.
func (fw *Watcher) Errors() <-chan error { return fw.errors }

// Close stops the watcher. Both channels are closed once pending events drain.
func (fw *Watcher) Close() error {
	var err error
	fw.once.Do(func() {
		close(fw.done)
		err = fw.w.Close()
	})
	return err
}

func (fw *Watcher) pump() {
	defer close(fw.events)
	defer close(fw.errors)
	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			select {
			case fw.events <- fswatch.Event{Path: ev.Name, Op: translate(ev.Op)}:
			case <-fw.done:
				return
			}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			select {
			case fw.errors <- err:
			case <-fw.done:
				return
			}
		}
	}
}

func translate(op fsnotify.Op) fswatch.Op {
	var out fswatch.Op
	if op.Has(fsnotify.Create) {
		out |= fswatch.Create
	}
	if op.Has(fsnotify.Write) {
		out |= fswatch.Write
	}
	if op.Has(fsnotify.Remove) {
		out |= fswatch.Remove
	}
	if op.Has(fsnotify.Rename) {
		out |= fswatch.Rename
	}
	if op.Has(fsnotify.Chmod) {
		out |= fswatch.Chmod
	}
	return out
}
