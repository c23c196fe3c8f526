package q402

import (
	"time"

	"github.com/q402/q402-go/logger"
	"github.com/q402/q402-go/metrics"
	"github.com/q402/q402-go/settlement"
)

// Option configures a Q402 instance.
type Option func(*Q402)

// WithLogger replaces the default no-op logger.
func WithLogger(l logger.Logger) Option {
	return func(q *Q402) {
		q.log = l
	}
}

// WithMetrics replaces the default no-op recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(q *Q402) {
		q.metrics = r
	}
}

// WithTimeout bounds settlement, overriding the config default.
func WithTimeout(t time.Duration) Option {
	return func(q *Q402) {
		if t > 0 {
			q.timeout = t
		}
	}
}

// WithSubmitter injects the chain boundary used for settlement. Without it
// the instance can verify but not settle.
func WithSubmitter(s settlement.TxSubmitter) Option {
	return func(q *Q402) {
		q.submitter = s
	}
}

// WithSchemes restricts the schemes this instance accepts.
func WithSchemes(schemes ...string) Option {
	return func(q *Q402) {
		if len(schemes) > 0 {
			q.schemes = schemes
		}
	}
}
