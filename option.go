package freepay

import (
	"time"

	"github.com/freepay/freepay/logger"
	"github.com/freepay/freepay/metrics"
)

type Option func(*FreePay)

func WithLogger(l logger.Logger) Option {
	return func(f *FreePay) {
		f.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(f *FreePay) {
		f.rec = r
	}
}

func WithTimeout(t time.Duration) Option {
	return func(f *FreePay) {
		f.timeout = t
	}
}
