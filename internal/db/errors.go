package db

import "errors"

var (
	ErrRecordNotFound = errors.New("dispatch record not found")
	ErrBucketNotFound = errors.New("bucket not found")
	ErrNilDB          = errors.New("database connection is nil")
	ErrNilRecord      = errors.New("dispatch record is nil")
)
