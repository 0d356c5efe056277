// Package watcher turns filesystem events into command dispatches.
//
// A Source delivers raw events on a channel. A Processor drains that channel
// on a single goroutine: each event is filtered, every candidate path is
// checked against the debounce Tracker, and the surviving paths are handed to
// the Dispatcher as one batch. Failures are logged and never stop the loop.
package watcher

import (
	"log/slog"
	"time"

	"kubewatch/internal/db"
	"kubewatch/internal/util/logger/sl"

	"github.com/google/uuid"
)

type Processor struct {
	filter     *Filter
	tracker    *Tracker
	dispatcher Dispatcher
	history    HistoryRecorder
	logger     *slog.Logger
	metrics    *WatcherMetrics
}

func NewProcessor(dispatcher Dispatcher, config Config) (*Processor, error) {
	if dispatcher == nil {
		return nil, ErrNilDispatcher
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	filter, err := NewFilter(config.Extensions, config.Prefixes, config.IgnorePatterns)
	if err != nil {
		return nil, err
	}

	return &Processor{
		filter:     filter,
		tracker:    NewTracker(config.Debounce),
		dispatcher: dispatcher,
		history:    config.History,
		logger:     config.Logger.With(slog.String("component", "watcher")),
		metrics:    NewWatcherMetrics(),
	}, nil
}

// Run handles events in delivery order until the channel is closed.
func (p *Processor) Run(events <-chan Event) {
	for event := range events {
		p.HandleEvent(event)
	}

	p.logger.Info("event source closed", slog.Any("stats", p.metrics.GetStats()))
}

// HandleEvent runs one event through filter, tracker and dispatcher.
func (p *Processor) HandleEvent(event Event) {
	p.metrics.RecordEvent()

	candidates, ok := p.filter.Relevant(event)
	if !ok {
		p.metrics.RecordSkipped()
		return
	}

	batch := make([]string, 0, len(candidates))
	for _, path := range candidates {
		changed, err := p.tracker.CheckAndRecord(path)
		if err != nil {
			p.metrics.RecordPathError()
			p.logger.Error("error checking file state", slog.String("path", path), sl.Err(err))
			continue
		}
		if !changed {
			p.metrics.RecordSuppressed()
			p.logger.Debug("change suppressed", slog.String("path", path))
			continue
		}
		p.metrics.RecordAccepted()
		p.logger.Debug("file changed", slog.String("path", path), slog.String("kind", event.Kind.String()))
		batch = append(batch, path)
	}

	if len(batch) == 0 {
		return
	}

	p.dispatch(batch)
}

func (p *Processor) dispatch(batch []string) {
	id := uuid.New().String()
	log := p.logger.With(slog.String("dispatch_id", id))

	started := time.Now()
	res, err := p.dispatcher.Execute(batch)
	p.metrics.RecordDispatch(err)

	rec := &db.DispatchRecord{
		ID:        id,
		StartedAt: started.UTC(),
		Duration:  time.Since(started),
		Files:     batch,
		Success:   err == nil,
		Output:    res.Output,
	}

	if err != nil {
		rec.Error = err.Error()
		log.Error("command execution failed", slog.Int("files", len(batch)), sl.Err(err))
	} else {
		log.Info("successfully executed command", slog.Int("files", len(batch)))
	}

	if p.history == nil {
		return
	}
	if herr := p.history.RecordDispatch(rec); herr != nil {
		log.Warn("failed to record dispatch", sl.Err(herr))
	}
}

// Metrics returns the pipeline counters.
func (p *Processor) Metrics() *WatcherMetrics {
	return p.metrics
}
