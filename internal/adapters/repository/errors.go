package repository

import "errors"

// Sentinel kinds for document store errors.
var (
	ErrInvalidCollection = errors.New("invalid collection name")
	ErrInvalidTarget     = errors.New("find target must be a non-nil pointer to a slice")
	ErrInvalidDocument   = errors.New("document cannot be encoded")
)
