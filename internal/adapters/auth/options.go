package auth

import "time"

// Option configures an Authority.
type Option func(*Authority)

// WithIssuer sets the iss claim written and required.
func WithIssuer(iss string) Option {
	return func(a *Authority) {
		a.issuer = iss
	}
}

// WithTTL sets the lifetime of issued tokens.
func WithTTL(ttl time.Duration) Option {
	return func(a *Authority) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		if now != nil {
			a.now = now
		}
	}
}
