package dedupe

// Option applies a configuration option to the in-memory pending set.
type Option func(*inMemoryPendingSet)

// WithMaxSize bounds the number of pending keys. When maxSize <= 0 the set is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(s *inMemoryPendingSet) {
		s.maxSize = maxSize
	}
}
