package model

import "errors"

// Sentinel kinds for model validation errors.
var (
	ErrMalformedAlliance = errors.New("malformed alliance descriptor")
)
