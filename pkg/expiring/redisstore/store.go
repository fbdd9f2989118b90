// Package redisstore keeps expiring entries in Redis so that several
// processes share one support cache.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sirosfoundation/peppol-support/pkg/expiring"
)

// DefaultPrefix is prepended to every key
const DefaultPrefix = "peppol-support:"

// Store implements expiring.Store[T] on Redis. Values are JSON encoded next
// to their expiry instant; Redis key expiry is not used, so an expired entry
// is only replaced by the next Put.
type Store[T any] struct {
	client redis.UniversalClient
	prefix string
}

// Option configures a Store
type Option func(*options)

type options struct {
	prefix string
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// New creates a store on an existing client.
func New[T any](client redis.UniversalClient, opts ...Option) *Store[T] {
	o := options{prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T]{client: client, prefix: o.prefix}
}

// Connect opens a client for addr and verifies it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

type record[T any] struct {
	Value     T         `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Get implements expiring.Store.
func (s *Store[T]) Get(ctx context.Context, key string) (expiring.Entry[T], bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return expiring.Entry[T]{}, false, nil
	}
	if err != nil {
		return expiring.Entry[T]{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	entry, err := decode[T](data)
	if err != nil {
		return expiring.Entry[T]{}, false, fmt.Errorf("decoding entry %s: %w", key, err)
	}
	return entry, true, nil
}

// Put implements expiring.Store.
func (s *Store[T]) Put(ctx context.Context, key string, entry expiring.Entry[T]) error {
	data, err := encode(entry)
	if err != nil {
		return fmt.Errorf("encoding entry %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func encode[T any](entry expiring.Entry[T]) ([]byte, error) {
	return json.Marshal(record[T]{Value: entry.Value(), ExpiresAt: entry.ExpiresAt()})
}

func decode[T any](data []byte) (expiring.Entry[T], error) {
	var r record[T]
	if err := json.Unmarshal(data, &r); err != nil {
		return expiring.Entry[T]{}, err
	}
	return expiring.NewEntryAt(r.Value, r.ExpiresAt), nil
}
