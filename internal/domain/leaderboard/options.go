package leaderboard

import "github.com/okian/arcadehub/pkg/logger"

// Option configures a ViewModel.
type Option func(*ViewModel)

// WithLimit sets how many rows TopScores returns.
func WithLimit(n int) Option {
	return func(v *ViewModel) {
		if n > 0 {
			v.limit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(v *ViewModel) {
		if l != nil {
			v.logger = l
		}
	}
}
