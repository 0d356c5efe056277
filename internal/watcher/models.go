package watcher

import (
	"log/slog"
	"time"

	"kubewatch/internal/command"
	"kubewatch/internal/db"

	"github.com/fsnotify/fsnotify"
)

// Kind is the change kind of a raw event.
type Kind int

const (
	KindOther Kind = iota
	KindCreate
	KindModify
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindModify:
		return "modify"
	default:
		return "other"
	}
}

// Event is a raw filesystem change as delivered by a Source.
type Event struct {
	Kind  Kind
	Paths []string
}

// FromFsnotify converts an fsnotify event. Create wins over Write when both
// bits are set; chmod, remove and rename are KindOther.
func FromFsnotify(ev fsnotify.Event) Event {
	kind := KindOther
	switch {
	case ev.Op.Has(fsnotify.Create):
		kind = KindCreate
	case ev.Op.Has(fsnotify.Write):
		kind = KindModify
	}
	return Event{Kind: kind, Paths: []string{ev.Name}}
}

// Dispatcher runs the external command for one batch.
type Dispatcher interface {
	Execute(paths []string) (command.Result, error)
}

// HistoryRecorder stores dispatch outcomes.
type HistoryRecorder interface {
	RecordDispatch(rec *db.DispatchRecord) error
}

// Config holds the settings for a Processor.
type Config struct {
	Extensions     []string
	Prefixes       []string
	IgnorePatterns []string
	// Debounce of zero disables time based suppression.
	Debounce time.Duration
	History  HistoryRecorder
	Logger   *slog.Logger
}
