package credential

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Manager hands out usable credentials. A cached credential is returned
// while it validates; otherwise a new one is issued inline and cached.
// There is no background refresh.
type Manager struct {
	cache     Cache
	validator Validator
	issuer    Issuer
	logger    zerolog.Logger
	flights   *singleflight.Group
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used for renewal and cache events.
func WithLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithSerializedAcquire collapses concurrent Acquire calls for the same
// identity into one renewal, so that a burst of requests finding a stale
// credential triggers a single issuance. Different identities never wait
// on each other.
func WithSerializedAcquire() ManagerOption {
	return func(m *Manager) { m.flights = &singleflight.Group{} }
}

// NewManager composes a cache, validator and issuer.
func NewManager(cache Cache, validator Validator, issuer Issuer, opts ...ManagerOption) *Manager {
	m := &Manager{
		cache:     cache,
		validator: validator,
		issuer:    issuer,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire returns a credential usable for id, renewing it if the cached one
// is absent or no longer valid.
func (m *Manager) Acquire(ctx context.Context, id *Identity) (Credential, error) {
	if !id.usable() {
		return "", ErrUnauthenticated
	}
	if m.flights == nil {
		return m.acquire(ctx, *id)
	}

	// The shared renewal outlives any single waiter; the issuer's HTTP
	// client timeout still bounds it.
	who := *id
	ch := m.flights.DoChan(ScopeIdentity.Key(who), func() (interface{}, error) {
		return m.acquire(context.WithoutCancel(ctx), who)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(Credential), nil
	}
}

func (m *Manager) acquire(ctx context.Context, id Identity) (Credential, error) {
	cached, err := m.cache.Get(ctx, id)
	if err != nil {
		m.logger.Warn().Err(err).Str("username", id.Username).Msg("credential cache read failed, renewing")
		cached = ""
	}
	if !cached.IsZero() && m.validator.IsValid(cached) {
		return cached, nil
	}

	fresh, err := m.issuer.Issue(ctx, id)
	if err != nil {
		return "", err
	}
	if err := m.cache.Set(ctx, id, fresh); err != nil {
		m.logger.Warn().Err(err).Str("username", id.Username).Msg("credential cache write failed")
	}
	m.logger.Debug().Str("username", id.Username).Bool("had_cached", !cached.IsZero()).Msg("credential renewed")
	return fresh, nil
}
