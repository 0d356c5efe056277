package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type fileState struct {
	lastModified  time.Time
	lastProcessed time.Time
}

// Tracker decides whether a change to a path is fresh enough to act on.
//
// A record is created the first time a path is accepted and only updated
// on later accepted changes. Rejected checks leave the record untouched, so
// a burst of writes is anchored to the last accepted change.
//
// Tracker is not safe for concurrent use; it is owned by a single Processor.
type Tracker struct {
	states map[string]fileState
	window time.Duration
	now    func() time.Time
	stat   func(string) (os.FileInfo, error)
}

// NewTracker creates a Tracker. A zero window disables time based
// suppression, leaving a newer modification time as the only requirement.
func NewTracker(window time.Duration) *Tracker {
	return &Tracker{
		states: make(map[string]fileState),
		window: window,
		now:    time.Now,
		stat:   os.Stat,
	}
}

// CheckAndRecord reports whether path changed since its last accepted change
// and, if so, records the new state.
func (t *Tracker) CheckAndRecord(path string) (bool, error) {
	info, err := t.stat(path)
	if err != nil {
		return false, fmt.Errorf("%w %s: %v", ErrStatFile, path, err)
	}

	modified := info.ModTime()
	now := t.now()
	key := filepath.Clean(path)

	state, seen := t.states[key]
	if seen {
		contentChanged := modified.After(state.lastModified)
		debouncePassed := t.window <= 0 || now.Sub(state.lastProcessed) > t.window
		if !contentChanged || !debouncePassed {
			return false, nil
		}
	}

	t.states[key] = fileState{
		lastModified:  modified,
		lastProcessed: now,
	}
	return true, nil
}

// Len returns the number of tracked paths.
func (t *Tracker) Len() int {
	return len(t.states)
}
