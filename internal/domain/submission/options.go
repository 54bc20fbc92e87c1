package submission

import (
	"time"

	"github.com/okian/arcadehub/pkg/logger"
)

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithTimeout bounds a synchronous remote call.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithDispatcher runs SubmitAsync calls on a worker pool instead of a bare goroutine.
func WithDispatcher(d Dispatcher) Option {
	return func(g *Gateway) {
		if d != nil {
			g.dispatcher = d
		}
	}
}

// WithInvalidators registers views to drop after a successful submission.
func WithInvalidators(inv ...Invalidator) Option {
	return func(g *Gateway) {
		for _, i := range inv {
			if i != nil {
				g.invalidators = append(g.invalidators, i)
			}
		}
	}
}
