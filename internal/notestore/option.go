package notestore

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring the Service.
type Option func(*Service)

// WithLogger sets the logger used for mutation records.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator replaces the note id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// WithChangeHook registers fn to be called after every committed write.
func WithChangeHook(fn func(kind, id string)) Option {
	return func(s *Service) {
		s.onChange = fn
	}
}
