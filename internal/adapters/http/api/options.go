package api

import (
	"time"

	"github.com/okian/arcadehub/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSubmitWait bounds how long POST /sessions/{id}/submit waits for the
// result before answering 202 with a pending status.
func WithSubmitWait(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.submitWait = d
		}
	}
}
