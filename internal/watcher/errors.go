package watcher

import "errors"

var (
	ErrWatcherClosed  = errors.New("watcher is closed")
	ErrInvalidPath    = errors.New("invalid path")
	ErrNotDirectory   = errors.New("path is not a directory")
	ErrInvalidPattern = errors.New("invalid ignore pattern")
	ErrStatFile       = errors.New("cannot read file metadata")
	ErrNilDispatcher  = errors.New("dispatcher is nil")
)
