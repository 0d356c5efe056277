package db

// DispatchStorage stores the outcome of every command dispatch.
type DispatchStorage interface {
	RecordDispatch(rec *DispatchRecord) error
	GetDispatch(id string) (*DispatchRecord, error)
	RecentDispatches(limit int) ([]*DispatchRecord, error)
	Close() error
}
