package indexsync

import "errors"

var (
	ErrStoreRequired  = errors.New("blob store required")
	ErrPathRequired   = errors.New("local index path required")
	ErrUnsafeName     = errors.New("object name escapes the index directory")
	ErrNoCollection   = errors.New("collection id could not be determined")
	ErrInvalidWorkers = errors.New("worker count must be at least 1")
)
