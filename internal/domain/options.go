package domain

import (
	"time"

	"go.uber.org/zap"
)

// Option configures optional behaviour shared by the domain services.
type Option func(*serviceOptions)

type serviceOptions struct {
	now    Clock
	logger *zap.Logger
}

func newServiceOptions(opts []Option) serviceOptions {
	o := serviceOptions{
		now:    func() time.Time { return time.Now().UTC() },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock overrides the time source.
func WithClock(now Clock) Option {
	return func(o *serviceOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger overrides the logger used to report non-fatal failures.
func WithLogger(logger *zap.Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
