package db

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

type testHelper struct {
	db  *HistoryDB
	dir string
}

func setupTest(t *testing.T, serializer Serializer) *testHelper {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")

	db, err := NewHistoryDB(Config{
		Path:       dbPath,
		Serializer: serializer,
	})
	require.NoError(t, err)
	require.NotNil(t, db)

	t.Cleanup(func() {
		db.Close()
	})

	return &testHelper{
		db:  db,
		dir: dir,
	}
}

func createTestRecord(files ...string) *DispatchRecord {
	return &DispatchRecord{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC().Truncate(time.Millisecond),
		Duration:  15 * time.Millisecond,
		Files:     files,
		Success:   true,
		Output:    "deployment.apps/app configured\n",
	}
}

func TestHistoryDB_RecordAndGet(t *testing.T) {
	for name, serializer := range map[string]Serializer{
		"json": &JSONSerializer{},
		"gob":  &GobSerializer{},
	} {
		t.Run(name, func(t *testing.T) {
			h := setupTest(t, serializer)

			rec := createTestRecord("/tmp/dev-app.yaml")
			require.NoError(t, h.db.RecordDispatch(rec))

			got, err := h.db.GetDispatch(rec.ID)
			require.NoError(t, err)
			assert.Equal(t, rec.ID, got.ID)
			assert.Equal(t, rec.Files, got.Files)
			assert.Equal(t, rec.Success, got.Success)
			assert.Equal(t, rec.Output, got.Output)
			assert.Equal(t, rec.Duration, got.Duration)
			assert.True(t, rec.StartedAt.Equal(got.StartedAt))
		})
	}
}

func TestHistoryDB_GetMissing(t *testing.T) {
	h := setupTest(t, nil)

	_, err := h.db.GetDispatch("missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestHistoryDB_RecordNil(t *testing.T) {
	h := setupTest(t, nil)

	assert.ErrorIs(t, h.db.RecordDispatch(nil), ErrNilRecord)
}

func TestHistoryDB_RecentDispatchesNewestFirst(t *testing.T) {
	h := setupTest(t, nil)

	var ids []string
	for i := 0; i < 5; i++ {
		rec := createTestRecord(fmt.Sprintf("/tmp/dev-%d.yaml", i))
		if i == 3 {
			rec.Success = false
			rec.Error = "command failed: boom"
		}
		require.NoError(t, h.db.RecordDispatch(rec))
		ids = append(ids, rec.ID)
	}

	recent, err := h.db.RecentDispatches(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, ids[4], recent[0].ID)
	assert.Equal(t, ids[3], recent[1].ID)
	assert.Equal(t, ids[2], recent[2].ID)
	assert.False(t, recent[1].Success)
	assert.Equal(t, "command failed: boom", recent[1].Error)

	all, err := h.db.RecentDispatches(0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestHistoryDB_ReopenReadOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	db, err := NewHistoryDB(Config{Path: path})
	require.NoError(t, err)
	rec := createTestRecord("/tmp/prod-app.yml")
	require.NoError(t, db.RecordDispatch(rec))
	require.NoError(t, db.Close())

	ro, err := NewHistoryDB(Config{
		Path:    path,
		Options: &bbolt.Options{ReadOnly: true, Timeout: time.Second},
	})
	require.NoError(t, err)
	defer ro.Close()

	recent, err := ro.RecentDispatches(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, rec.ID, recent[0].ID)
}
