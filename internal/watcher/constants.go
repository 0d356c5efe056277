package watcher

const (
	DefaultBufferSize = 100
)
