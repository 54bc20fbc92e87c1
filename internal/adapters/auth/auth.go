// Package auth issues and verifies HS256 bearer tokens and carries the
// resulting identity through request contexts.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/okian/arcadehub/internal/domain/model"
)

const defaultTTL = time.Hour

// Authority signs and verifies tokens with a shared secret.
type Authority struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthority returns an Authority for secret.
func NewAuthority(secret string, opts ...Option) *Authority {
	a := &Authority{
		secret: []byte(secret),
		ttl:    defaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Issue returns a signed token whose subject is principal.
func (a *Authority) Issue(principal string) (string, time.Time, error) {
	if principal == "" {
		return "", time.Time{}, ErrEmptySubject
	}
	now := a.now()
	exp := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   principal,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses raw and returns the identity it names.
func (a *Authority) Verify(raw string) (model.Identity, error) {
	if raw == "" {
		return model.Identity{}, ErrMissingToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, ErrEmptySubject)
	}
	return model.Identity{Principal: claims.Subject, Token: raw}, nil
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity attached by WithIdentity.
func FromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(model.Identity)
	if !ok || id.Anonymous() {
		return model.Identity{}, false
	}
	return id, true
}

// ContextProvider answers CurrentIdentity from the request context.
type ContextProvider struct{}

// CurrentIdentity implements the identity provider used by the domain.
func (ContextProvider) CurrentIdentity(ctx context.Context) (model.Identity, bool) {
	return FromContext(ctx)
}
