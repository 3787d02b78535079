package calculation

import "errors"

// Sentinel kinds for registry errors.
var (
	ErrInvalidCalculator   = errors.New("invalid calculator")
	ErrDuplicateCalculator = errors.New("calculator already registered")
	ErrUnknownCalculator   = errors.New("unknown calculator")
)
