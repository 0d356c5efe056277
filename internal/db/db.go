// Package db keeps a journal of command dispatches in a bbolt file.
//
// Records are keyed by a monotonically increasing sequence so iteration
// order is dispatch order. The journal is diagnostic only; debounce state is
// never persisted.
package db

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const (
	DispatchesBucket  = "dispatches"
	DispatchIDsBucket = "dispatch_ids"

	defaultOpenTimeout = time.Second
)

// HistoryDB is the bbolt backed DispatchStorage.
type HistoryDB struct {
	db         *bbolt.DB
	mu         sync.RWMutex
	serializer Serializer
}

// Config holds HistoryDB settings.
type Config struct {
	Path       string
	FileMode   os.FileMode
	Options    *bbolt.Options
	Serializer Serializer
}

// NewHistoryDB opens or creates the journal at cfg.Path.
func NewHistoryDB(cfg Config) (*HistoryDB, error) {
	if cfg.Serializer == nil {
		cfg.Serializer = &JSONSerializer{}
	}

	if cfg.FileMode == 0 {
		cfg.FileMode = 0600
	}

	// a running watcher holds the file lock; don't block forever on it
	if cfg.Options == nil {
		cfg.Options = &bbolt.Options{Timeout: defaultOpenTimeout}
	}

	db, err := bbolt.Open(cfg.Path, cfg.FileMode, cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", cfg.Path, err)
	}

	if !cfg.Options.ReadOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			for _, name := range []string{DispatchesBucket, DispatchIDsBucket} {
				if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
					return fmt.Errorf("failed to create bucket %s: %w", name, err)
				}
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	return &HistoryDB{
		db:         db,
		serializer: cfg.Serializer,
	}, nil
}

func (h *HistoryDB) Close() error {
	if h.db == nil {
		return ErrNilDB
	}
	return h.db.Close()
}

// RecordDispatch appends rec to the journal.
func (h *HistoryDB) RecordDispatch(rec *DispatchRecord) error {
	if rec == nil {
		return ErrNilRecord
	}

	data, err := h.serializer.Serialize(rec)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.db.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket([]byte(DispatchesBucket))
		ids := tx.Bucket([]byte(DispatchIDsBucket))
		if records == nil || ids == nil {
			return ErrBucketNotFound
		}

		seq, err := records.NextSequence()
		if err != nil {
			return err
		}
		key := sequenceKey(seq)

		if err := records.Put(key, data); err != nil {
			return err
		}
		return ids.Put([]byte(rec.ID), key)
	})
}

// GetDispatch loads a single record by its ID.
func (h *HistoryDB) GetDispatch(id string) (*DispatchRecord, error) {
	var rec DispatchRecord

	h.mu.RLock()
	defer h.mu.RUnlock()

	err := h.db.View(func(tx *bbolt.Tx) error {
		records := tx.Bucket([]byte(DispatchesBucket))
		ids := tx.Bucket([]byte(DispatchIDsBucket))
		if records == nil || ids == nil {
			return ErrRecordNotFound
		}

		key := ids.Get([]byte(id))
		if key == nil {
			return ErrRecordNotFound
		}

		data := records.Get(key)
		if data == nil {
			return ErrRecordNotFound
		}

		return h.serializer.Deserialize(data, &rec)
	})

	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecentDispatches returns up to limit records, newest first.
// A limit of zero or less returns every record.
func (h *HistoryDB) RecentDispatches(limit int) ([]*DispatchRecord, error) {
	var out []*DispatchRecord

	h.mu.RLock()
	defer h.mu.RUnlock()

	err := h.db.View(func(tx *bbolt.Tx) error {
		records := tx.Bucket([]byte(DispatchesBucket))
		if records == nil {
			return nil
		}

		c := records.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var rec DispatchRecord
			if err := h.serializer.Deserialize(v, &rec); err != nil {
				return err
			}
			out = append(out, &rec)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
