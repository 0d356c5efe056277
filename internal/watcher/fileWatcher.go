package watcher

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"kubewatch/internal/util/logger/sl"

	"github.com/fsnotify/fsnotify"
)

// Source subscribes to a directory tree and delivers raw events, in order,
// on a single channel. The channel is closed once the Source is closed.
type Source struct {
	watcher *fsnotify.Watcher
	events  chan Event
	logger  *slog.Logger
	watched map[string]bool
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	mu      sync.Mutex
}

func NewSource(logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	s := &Source{
		watcher: w,
		events:  make(chan Event, DefaultBufferSize),
		logger:  logger.With(slog.String("component", "source")),
		watched: make(map[string]bool),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s, nil
}

// Watch subscribes to root and every directory below it.
func (s *Source) Watch(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	select {
	case <-s.done:
		return ErrWatcherClosed
	default:
	}

	// WalkDir does not descend into a symlinked root
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	return s.addRecursive(resolved)
}

func (s *Source) addRecursive(root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// the root itself must be readable, anything below is best effort
			if path == root {
				return err
			}
			s.logger.Warn("skipping unreadable path", slog.String("path", path), sl.Err(err))
			return nil
		}
		if !d.IsDir() || s.watched[path] {
			return nil
		}
		if err := s.watcher.Add(path); err != nil {
			if path == root {
				return fmt.Errorf("failed to watch directory %s: %w", path, err)
			}
			s.logger.Warn("failed to watch directory", slog.String("path", path), sl.Err(err))
			return filepath.SkipDir
		}
		s.watched[path] = true
		s.logger.Debug("watching directory", slog.String("path", path))
		return nil
	})
}

// Events returns the channel of raw events.
func (s *Source) Events() <-chan Event {
	return s.events
}

// Close stops delivery and closes the events channel. Safe to call more than once.
func (s *Source) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if cerr := s.watcher.Close(); cerr != nil {
			err = fmt.Errorf("failed to close watcher: %w", cerr)
		}
		s.wg.Wait()
	})
	return err
}

func (s *Source) run() {
	defer s.wg.Done()
	defer close(s.events)

	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.followNewDirectory(ev)
			if !s.forward(FromFsnotify(ev)) {
				return
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("watcher error", sl.Err(err))
		}
	}
}

// followNewDirectory extends the subscription to directories created after Watch.
func (s *Source) followNewDirectory(ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Create) {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil || !info.IsDir() {
		return
	}
	if err := s.addRecursive(ev.Name); err != nil {
		s.logger.Warn("failed to watch new directory", slog.String("path", ev.Name), sl.Err(err))
	}
}

func (s *Source) forward(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}
