package worker

import (
	"time"

	"github.com/citruscircuits/calcserver/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithRetry retries a failed run with exponential backoff starting at
// initial until maxElapsed has passed. A zero maxElapsed disables retries.
func WithRetry(initial, maxElapsed time.Duration) Option {
	return func(w *InMemoryWorker) {
		if initial > 0 {
			w.retryInitial = initial
		}
		if maxElapsed >= 0 {
			w.retryMaxElapsed = maxElapsed
		}
	}
}
