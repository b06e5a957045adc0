package repository

import "github.com/okian/acolyte/pkg/logger"

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxOpenConns bounds the connection pool; it is the only backpressure on store I/O.
func WithMaxOpenConns(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}
