package server

import "errors"

var (
	// ErrRetrieverRequired is returned when no retriever is provided.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrInvalidAddr is returned for an empty listen address.
	ErrInvalidAddr = errors.New("listen address cannot be empty")
)
