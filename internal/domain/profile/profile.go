// Package profile caches the caller's presentation data.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/okian/arcadehub/internal/domain/model"
	"github.com/okian/arcadehub/pkg/logger"
	"github.com/okian/arcadehub/pkg/metrics"
)

// MaxDisplayName is the longest accepted display name in runes.
const MaxDisplayName = 32

// IdentityProvider reports who is calling.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (model.Identity, bool)
}

// Source is the remote profile API.
type Source interface {
	GetProfile(ctx context.Context, id model.Identity, principal string) (model.Profile, bool, error)
	SaveProfile(ctx context.Context, id model.Identity, p model.Profile) error
}

type cached struct {
	profile model.Profile
	found   bool
}

// ViewModel serves profiles cached per principal.
type ViewModel struct {
	identity IdentityProvider
	source   Source
	logger   logger.Logger

	mu    sync.Mutex
	cache map[string]cached
}

// Option configures a ViewModel.
type Option func(*ViewModel)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(v *ViewModel) {
		if l != nil {
			v.logger = l
		}
	}
}

// New returns an empty ViewModel.
func New(identity IdentityProvider, source Source, opts ...Option) *ViewModel {
	v := &ViewModel{
		identity: identity,
		source:   source,
		logger:   logger.Get().Named("profile"),
		cache:    make(map[string]cached),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Get returns the caller's profile. The bool is false when none was saved.
func (v *ViewModel) Get(ctx context.Context) (model.Profile, bool, error) {
	id, err := v.caller(ctx)
	if err != nil {
		return model.Profile{}, false, err
	}
	return v.lookup(ctx, id, id.Principal)
}

// NeedsSetup reports whether an authenticated caller has yet to pick a display name.
func (v *ViewModel) NeedsSetup(ctx context.Context) (bool, error) {
	_, found, err := v.Get(ctx)
	if err != nil {
		return false, err
	}
	return !found, nil
}

// Save stores the caller's display name after trimming surrounding space.
func (v *ViewModel) Save(ctx context.Context, displayName string) error {
	id, err := v.caller(ctx)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		return fmt.Errorf("%w: display name is blank", ErrInvalidProfile)
	}
	if n := utf8.RuneCountInString(name); n > MaxDisplayName {
		return fmt.Errorf("%w: display name has %d characters, max %d", ErrInvalidProfile, n, MaxDisplayName)
	}

	if err := v.source.SaveProfile(ctx, id, model.Profile{DisplayName: name}); err != nil {
		v.logger.Warn(ctx, "profile save failed", logger.String("principal", id.Principal), logger.Error(err))
		return remoteErr("save profile", err)
	}
	v.mu.Lock()
	delete(v.cache, id.Principal)
	v.mu.Unlock()
	v.logger.Info(ctx, "profile saved", logger.String("principal", id.Principal))
	return nil
}

// Lookup reads another player's profile using the caller's credentials.
func (v *ViewModel) Lookup(ctx context.Context, principal string) (model.Profile, bool, error) {
	id, _ := v.identity.CurrentIdentity(ctx)
	return v.lookup(ctx, id, principal)
}

func (v *ViewModel) lookup(ctx context.Context, id model.Identity, principal string) (model.Profile, bool, error) {
	v.mu.Lock()
	c, ok := v.cache[principal]
	v.mu.Unlock()
	metrics.RecordCacheLookup("profile", ok)
	if ok {
		return c.profile, c.found, nil
	}

	p, found, err := v.source.GetProfile(ctx, id, principal)
	if err != nil {
		return model.Profile{}, false, remoteErr("get profile", err)
	}
	v.mu.Lock()
	v.cache[principal] = cached{profile: p, found: found}
	v.mu.Unlock()
	return p, found, nil
}

func (v *ViewModel) caller(ctx context.Context) (model.Identity, error) {
	id, ok := v.identity.CurrentIdentity(ctx)
	if !ok || id.Anonymous() {
		return model.Identity{}, fmt.Errorf("profile: %w", ErrUnauthenticated)
	}
	return id, nil
}

func remoteErr(op string, err error) error {
	if errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrRemoteFailure) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrRemoteFailure, err)
}
