package scoresvc

import "github.com/okian/arcadehub/pkg/logger"

// Option configures a Server.
type Option func(*Server)

// WithDevTokens exposes POST /v1/tokens.
func WithDevTokens(enabled bool) Option {
	return func(s *Server) {
		s.devTokens = enabled
	}
}

// WithMaxLimit caps the limit query parameter.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
