package repository

import (
	"time"

	"github.com/citruscircuits/calcserver/pkg/logger"
)

// MongoOption applies a configuration option to the MongoStore.
type MongoOption func(*MongoStore)

// WithLogger sets the logger used for store diagnostics.
func WithLogger(l logger.Logger) MongoOption {
	return func(s *MongoStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithOperationTimeout bounds every store call that has no earlier deadline.
func WithOperationTimeout(d time.Duration) MongoOption {
	return func(s *MongoStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}
