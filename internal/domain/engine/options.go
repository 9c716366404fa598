package engine

import (
	"time"

	"go_request_guard/utils"

	"github.com/sirupsen/logrus"
)

type options struct {
	logger logrus.FieldLogger
	now    func() time.Time
}

// Option configures an engine.
type Option func(*options)

// WithLogger replaces the process logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock injects the time source used by the origin cache and statistics.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = utils.GetLogger()
	}
	return o
}
