package watcher

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"kubewatch/internal/command"
	"kubewatch/internal/db"
	"kubewatch/internal/util/logger/handlers/slogdiscard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDispatcher implements Dispatcher for testing
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Execute(paths []string) (command.Result, error) {
	args := m.Called(paths)
	return args.Get(0).(command.Result), args.Error(1)
}

// MockHistory implements HistoryRecorder for testing
type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) RecordDispatch(rec *db.DispatchRecord) error {
	args := m.Called(rec)
	return args.Error(0)
}

func newTestProcessor(t *testing.T, d Dispatcher, cfg Config) (*Processor, *fakeClock) {
	t.Helper()

	cfg.Logger = slogdiscard.NewDiscardLogger()
	p, err := NewProcessor(d, cfg)
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	p.tracker.now = clock.Now
	return p, clock
}

func stats(p *Processor) map[string]interface{} {
	return p.Metrics().GetStats()
}

func TestNewProcessor(t *testing.T) {
	_, err := NewProcessor(nil, Config{})
	assert.ErrorIs(t, err, ErrNilDispatcher)

	_, err = NewProcessor(new(MockDispatcher), Config{
		Extensions:     []string{"yaml"},
		IgnorePatterns: []string{"[bad"},
	})
	assert.ErrorIs(t, err, ErrInvalidPattern)

	p, err := NewProcessor(new(MockDispatcher), Config{Extensions: []string{"yaml"}})
	require.NoError(t, err)
	assert.NotNil(t, p.filter)
	assert.NotNil(t, p.tracker)
	assert.NotNil(t, p.logger)
	assert.NotNil(t, p.Metrics())
}

// Scenario A: a new matching file is dispatched once.
func TestProcessor_NewMatchingFileIsDispatched(t *testing.T) {
	dir := t.TempDir()
	path := createFile(t, dir, "dev-app.yaml", time.Now().Add(-time.Hour))

	d := new(MockDispatcher)
	d.On("Execute", []string{path}).Return(command.Result{Output: "applied"}, nil).Once()

	p, _ := newTestProcessor(t, d, Config{
		Extensions: []string{"yaml"},
		Prefixes:   []string{"dev-"},
	})

	p.HandleEvent(Event{Kind: KindCreate, Paths: []string{path}})

	d.AssertExpectations(t)
	d.AssertNumberOfCalls(t, "Execute", 1)
	assert.Equal(t, int64(1), stats(p)["dispatches"])
}

// Scenario B: a file without a matching prefix never reaches the tracker.
func TestProcessor_NonMatchingFileIsSkipped(t *testing.T) {
	dir := t.TempDir()
	path := createFile(t, dir, "app.yaml", time.Now().Add(-time.Hour))

	d := new(MockDispatcher)
	p, _ := newTestProcessor(t, d, Config{
		Extensions: []string{"yaml"},
		Prefixes:   []string{"dev-"},
	})

	p.HandleEvent(Event{Kind: KindCreate, Paths: []string{path}})

	d.AssertNotCalled(t, "Execute", mock.Anything)
	assert.Equal(t, 0, p.tracker.Len())
	assert.Equal(t, int64(1), stats(p)["events_skipped"])
}

// Scenario C: a second modify inside the debounce window is suppressed.
func TestProcessor_RapidModifyIsDebounced(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	path := createFile(t, dir, "dev-app.yaml", base)

	d := new(MockDispatcher)
	d.On("Execute", []string{path}).Return(command.Result{}, nil).Once()

	p, clock := newTestProcessor(t, d, Config{
		Extensions: []string{"yaml"},
		Prefixes:   []string{"dev-"},
		Debounce:   100 * time.Millisecond,
	})

	p.HandleEvent(Event{Kind: KindModify, Paths: []string{path}})

	touch(t, path, base.Add(time.Second))
	clock.Advance(50 * time.Millisecond)
	p.HandleEvent(Event{Kind: KindModify, Paths: []string{path}})

	d.AssertExpectations(t)
	d.AssertNumberOfCalls(t, "Execute", 1)
	assert.Equal(t, int64(1), stats(p)["paths_suppressed"])
}

// Scenario D: a missing executable fails the dispatch but not the loop.
func TestProcessor_DispatchFailureKeepsWatching(t *testing.T) {
	dir := t.TempDir()
	first := createFile(t, dir, "dev-one.yaml", time.Now().Add(-time.Hour))
	second := createFile(t, dir, "dev-two.yaml", time.Now().Add(-time.Hour))

	runner := command.NewRunner("nonexistent_command_kubewatch", slogdiscard.NewDiscardLogger())

	history := new(MockHistory)
	history.On("RecordDispatch", mock.MatchedBy(func(rec *db.DispatchRecord) bool {
		return !rec.Success && rec.Error != "" && rec.ID != ""
	})).Return(nil).Twice()

	p, _ := newTestProcessor(t, runner, Config{
		Extensions: []string{"yaml"},
		History:    history,
	})

	events := make(chan Event, 2)
	events <- Event{Kind: KindCreate, Paths: []string{first}}
	events <- Event{Kind: KindCreate, Paths: []string{second}}
	close(events)

	p.Run(events)

	history.AssertExpectations(t)
	s := stats(p)
	assert.Equal(t, int64(2), s["dispatches"])
	assert.Equal(t, int64(2), s["dispatch_failures"])
}

func TestProcessor_FailureErrorCarriesLaunchDetail(t *testing.T) {
	dir := t.TempDir()
	path := createFile(t, dir, "dev-app.yaml", time.Now().Add(-time.Hour))

	var recorded *db.DispatchRecord
	history := new(MockHistory)
	history.On("RecordDispatch", mock.Anything).Run(func(args mock.Arguments) {
		recorded = args.Get(0).(*db.DispatchRecord)
	}).Return(nil).Once()

	runner := command.NewRunner("nonexistent_command_kubewatch", slogdiscard.NewDiscardLogger())
	p, _ := newTestProcessor(t, runner, Config{Extensions: []string{"yaml"}, History: history})

	p.HandleEvent(Event{Kind: KindCreate, Paths: []string{path}})

	require.NotNil(t, recorded)
	assert.False(t, recorded.Success)
	assert.Contains(t, recorded.Error, "nonexistent_command_kubewatch")
	assert.Equal(t, []string{path}, recorded.Files)
}

func TestProcessor_BatchesPathsOfOneEvent(t *testing.T) {
	dir := t.TempDir()
	a := createFile(t, dir, "dev-a.yaml", time.Now().Add(-time.Hour))
	b := createFile(t, dir, "prod-b.yml", time.Now().Add(-time.Hour))
	skipped := createFile(t, dir, "dev-c.txt", time.Now().Add(-time.Hour))

	d := new(MockDispatcher)
	d.On("Execute", []string{a, b}).Return(command.Result{}, nil).Once()

	p, _ := newTestProcessor(t, d, Config{
		Extensions: []string{"yaml", "yml"},
		Prefixes:   []string{"dev-", "prod-"},
	})

	p.HandleEvent(Event{Kind: KindModify, Paths: []string{a, skipped, b}})

	d.AssertExpectations(t)
	d.AssertNumberOfCalls(t, "Execute", 1)
}

func TestProcessor_BatchesAreNotMergedAcrossEvents(t *testing.T) {
	dir := t.TempDir()
	a := createFile(t, dir, "dev-a.yaml", time.Now().Add(-time.Hour))
	b := createFile(t, dir, "dev-b.yaml", time.Now().Add(-time.Hour))

	d := new(MockDispatcher)
	d.On("Execute", []string{a}).Return(command.Result{}, nil).Once()
	d.On("Execute", []string{b}).Return(command.Result{}, nil).Once()

	p, _ := newTestProcessor(t, d, Config{Extensions: []string{"yaml"}})

	p.HandleEvent(Event{Kind: KindCreate, Paths: []string{a}})
	p.HandleEvent(Event{Kind: KindCreate, Paths: []string{b}})

	d.AssertExpectations(t)
	d.AssertNumberOfCalls(t, "Execute", 2)
}

func TestProcessor_StatErrorDropsOnlyThatPath(t *testing.T) {
	dir := t.TempDir()
	gone := filepath.Join(dir, "dev-gone.yaml")
	kept := createFile(t, dir, "dev-kept.yaml", time.Now().Add(-time.Hour))

	d := new(MockDispatcher)
	d.On("Execute", []string{kept}).Return(command.Result{}, nil).Once()

	p, _ := newTestProcessor(t, d, Config{Extensions: []string{"yaml"}})

	p.HandleEvent(Event{Kind: KindModify, Paths: []string{gone, kept}})

	d.AssertExpectations(t)
	assert.Equal(t, int64(1), stats(p)["path_errors"])
	assert.Equal(t, int64(1), stats(p)["paths_accepted"])
}

func TestProcessor_NothingAcceptedMeansNoDispatch(t *testing.T) {
	dir := t.TempDir()
	path := createFile(t, dir, "dev-app.yaml", time.Now().Add(-time.Hour))

	d := new(MockDispatcher)
	d.On("Execute", []string{path}).Return(command.Result{}, nil).Once()

	p, clock := newTestProcessor(t, d, Config{Extensions: []string{"yaml"}})

	p.HandleEvent(Event{Kind: KindCreate, Paths: []string{path}})
	clock.Advance(time.Second)
	// same mtime, nothing to apply
	p.HandleEvent(Event{Kind: KindModify, Paths: []string{path}})

	d.AssertNumberOfCalls(t, "Execute", 1)
}

func TestProcessor_DispatchErrorIsAbsorbed(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	path := createFile(t, dir, "dev-app.yaml", base)

	d := new(MockDispatcher)
	d.On("Execute", []string{path}).Return(command.Result{}, errors.New("apply failed")).Once()
	d.On("Execute", []string{path}).Return(command.Result{}, nil).Once()

	p, clock := newTestProcessor(t, d, Config{Extensions: []string{"yaml"}})

	p.HandleEvent(Event{Kind: KindCreate, Paths: []string{path}})
	touch(t, path, base.Add(time.Second))
	clock.Advance(time.Second)
	p.HandleEvent(Event{Kind: KindModify, Paths: []string{path}})

	d.AssertExpectations(t)
	assert.Equal(t, int64(1), stats(p)["dispatch_failures"])
}

func TestProcessor_HistoryFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	path := createFile(t, dir, "dev-app.yaml", time.Now().Add(-time.Hour))

	d := new(MockDispatcher)
	d.On("Execute", []string{path}).Return(command.Result{Output: "ok"}, nil).Once()

	history := new(MockHistory)
	history.On("RecordDispatch", mock.MatchedBy(func(rec *db.DispatchRecord) bool {
		return rec.Success && rec.Output == "ok"
	})).Return(errors.New("disk full")).Once()

	p, _ := newTestProcessor(t, d, Config{Extensions: []string{"yaml"}, History: history})

	assert.NotPanics(t, func() {
		p.HandleEvent(Event{Kind: KindCreate, Paths: []string{path}})
	})

	d.AssertExpectations(t)
	history.AssertExpectations(t)
}

func TestProcessor_RunReturnsWhenSourceCloses(t *testing.T) {
	d := new(MockDispatcher)
	p, _ := newTestProcessor(t, d, Config{Extensions: []string{"yaml"}})

	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		p.Run(events)
		close(done)
	}()

	events <- Event{Kind: KindOther, Paths: []string{"/w/dev-app.yaml"}}
	close(events)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the channel was closed")
	}

	assert.Equal(t, int64(1), stats(p)["events_received"])
	d.AssertNotCalled(t, "Execute", mock.Anything)
}
