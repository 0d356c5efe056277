package watcher

import (
	"sync/atomic"
	"time"
)

type WatcherMetrics struct {
	eventsReceived   atomic.Int64
	eventsSkipped    atomic.Int64
	pathsAccepted    atomic.Int64
	pathsSuppressed  atomic.Int64
	pathErrors       atomic.Int64
	dispatches       atomic.Int64
	dispatchFailures atomic.Int64
	lastEventTime    atomic.Int64
}

func NewWatcherMetrics() *WatcherMetrics {
	return &WatcherMetrics{}
}

func (m *WatcherMetrics) RecordEvent() {
	m.eventsReceived.Add(1)
	m.lastEventTime.Store(time.Now().UnixNano())
}

func (m *WatcherMetrics) RecordSkipped() {
	m.eventsSkipped.Add(1)
}

func (m *WatcherMetrics) RecordAccepted() {
	m.pathsAccepted.Add(1)
}

func (m *WatcherMetrics) RecordSuppressed() {
	m.pathsSuppressed.Add(1)
}

func (m *WatcherMetrics) RecordPathError() {
	m.pathErrors.Add(1)
}

func (m *WatcherMetrics) RecordDispatch(err error) {
	m.dispatches.Add(1)
	if err != nil {
		m.dispatchFailures.Add(1)
	}
}

func (m *WatcherMetrics) GetStats() map[string]interface{} {
	var last time.Time
	if ns := m.lastEventTime.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}

	return map[string]interface{}{
		"events_received":   m.eventsReceived.Load(),
		"events_skipped":    m.eventsSkipped.Load(),
		"paths_accepted":    m.pathsAccepted.Load(),
		"paths_suppressed":  m.pathsSuppressed.Load(),
		"path_errors":       m.pathErrors.Load(),
		"dispatches":        m.dispatches.Load(),
		"dispatch_failures": m.dispatchFailures.Load(),
		"last_event_time":   last,
	}
}
