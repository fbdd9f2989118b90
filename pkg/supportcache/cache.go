// Package supportcache remembers, per participant, whether it supports a
// fixed document type and process, so that the directory is not queried
// before every send.
//
// A lookup that fails is cached as "not supported" for the full cache
// duration, same as a participant that is not registered. The resolver is
// therefore called at most once per participant and cache duration, unless
// concurrent callers miss the same key at the same time; each of them then
// resolves and the last write wins.
package supportcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sirosfoundation/peppol-support/pkg/discovery"
	"github.com/sirosfoundation/peppol-support/pkg/expiring"
	"github.com/sirosfoundation/peppol-support/pkg/identifier"
	"github.com/sirosfoundation/peppol-support/pkg/metrics"
)

// DefaultMaxCacheDuration is how long a lookup result is kept
const DefaultMaxCacheDuration = 6 * time.Hour

var (
	// ErrInvalidParticipant is returned for an empty or malformed participant
	ErrInvalidParticipant = errors.New("invalid participant identifier")
	// ErrInvalidDuration is returned for a non-positive cache duration
	ErrInvalidDuration = errors.New("cache duration must be positive")
)

// Config binds a cache to one document type and process in one network
type Config struct {
	// Name is used in logs and metrics, e.g. "MLR"
	Name         string
	Network      discovery.Network
	DocumentType identifier.DocumentTypeID
	Process      identifier.ProcessID
}

// Option configures a Cache
type Option func(*Cache)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithStore replaces the in-memory entry store, e.g. with a Redis store.
func WithStore(store expiring.Store[*discovery.Endpoint]) Option {
	return func(c *Cache) { c.store = store }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMetrics records lookups.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithMaxCacheDuration sets the initial cache duration.
func WithMaxCacheDuration(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.maxDuration.Store(int64(d))
		}
	}
}

// Cache is safe for concurrent use.
type Cache struct {
	config      Config
	resolver    discovery.EndpointResolver
	store       expiring.Store[*discovery.Endpoint]
	maxDuration atomic.Int64
	now         func() time.Time
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// New creates a cache in front of resolver.
func New(config Config, resolver discovery.EndpointResolver, opts ...Option) *Cache {
	c := &Cache{
		config:   config,
		resolver: resolver,
		now:      time.Now,
	}
	c.maxDuration.Store(int64(DefaultMaxCacheDuration))
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = expiring.NewMemoryStore[*discovery.Endpoint]()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("cache", config.Name, "network", string(config.Network))
	return c
}

// Name returns the display name.
func (c *Cache) Name() string {
	return c.config.Name
}

// MaxCacheDuration returns the duration applied to new entries.
func (c *Cache) MaxCacheDuration() time.Duration {
	return time.Duration(c.maxDuration.Load())
}

// SetMaxCacheDuration changes the duration of entries written from now on.
// Entries already cached keep their expiry.
func (c *Cache) SetMaxCacheDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDuration, d)
	}
	c.maxDuration.Store(int64(d))
	c.logger.Info("changed support cache duration", "duration", d)
	return nil
}

// Resolve returns the cached endpoint of the participant, resolving it on a
// miss or after expiry. A nil endpoint means not supported. Errors are only
// returned for an invalid participant.
//
// A miss is resolved to completion even if ctx is cancelled, and the new
// entry expires MaxCacheDuration after the lookup finished.
func (c *Cache) Resolve(ctx context.Context, participant identifier.ParticipantID) (*discovery.Endpoint, error) {
	if !participant.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidParticipant, participant.URIEncoded())
	}

	key := participant.URIEncoded()
	log := c.logger.With("participant", key)
	now := c.now()

	entry, found, err := c.store.Get(ctx, key)
	if err != nil {
		log.Warn("reading support cache entry failed, resolving again", "error", err)
		found = false
	}

	outcome := metrics.LookupMiss
	if found {
		if !entry.IsExpired(now) {
			if entry.Value() == nil {
				c.metrics.IncLookup(c.config.Name, metrics.LookupNegativeHit)
			} else {
				c.metrics.IncLookup(c.config.Name, metrics.LookupHit)
			}
			log.Debug("support cache hit", "supported", entry.Value() != nil)
			return entry.Value(), nil
		}
		outcome = metrics.LookupExpired
		log.Debug("support cache entry expired", "expiresAt", entry.ExpiresAt())
	}
	c.metrics.IncLookup(c.config.Name, outcome)

	// lookup and write complete for a cancelled caller too
	ctx = context.WithoutCancel(ctx)
	endpoint := c.resolve(ctx, log, participant)

	if err := c.store.Put(ctx, key, expiring.NewEntry(endpoint, c.now(), c.MaxCacheDuration())); err != nil {
		log.Warn("writing support cache entry failed", "error", err)
	}
	return endpoint, nil
}

// IsSupported reports whether Resolve finds an endpoint.
func (c *Cache) IsSupported(ctx context.Context, participant identifier.ParticipantID) (bool, error) {
	ep, err := c.Resolve(ctx, participant)
	return ep != nil, err
}

func (c *Cache) resolve(ctx context.Context, log *slog.Logger, participant identifier.ParticipantID) *discovery.Endpoint {
	log.Info("querying directory for support", "documentType", c.config.DocumentType.URIEncoded(), "process", c.config.Process.URIEncoded())

	start := time.Now()
	endpoint, err := c.resolver.ResolveEndpoint(ctx, c.config.Network, participant, c.config.DocumentType, c.config.Process)
	c.metrics.ObserveResolve(c.config.Name, time.Since(start))
	if err != nil {
		c.metrics.IncLookup(c.config.Name, metrics.LookupError)
		log.Error("directory lookup failed, caching as not supported", "error", err)
		return nil
	}

	if endpoint == nil {
		log.Info("participant does not support " + c.config.Name)
	} else {
		log.Info("participant supports "+c.config.Name, "endpoint", endpoint.EndpointURL)
	}
	return endpoint
}
