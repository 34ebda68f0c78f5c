package cartstore

import (
	"context"
	"time"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/norun9/storefront-cartservice/cart"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultConnectAttempts = 30
	defaultBaseBackoff     = time.Second
	maxBackoff             = 30 * time.Second
)

// RedisCartStore is a cart store backed by Redis. Each scope is a hash whose
// CartKey field holds the JSON-encoded cart.
type RedisCartStore struct {
	client *redis.Client
	log    logrus.FieldLogger

	ttl         time.Duration
	attempts    int
	baseBackoff time.Duration
}

// RedisOption configures a RedisCartStore.
type RedisOption func(*RedisCartStore)

// WithTTL expires a scope's cart ttl after its last save. Zero keeps carts forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisCartStore) { r.ttl = ttl }
}

// WithConnectRetry sets how many pings Initialize attempts and the first backoff.
func WithConnectRetry(attempts int, base time.Duration) RedisOption {
	return func(r *RedisCartStore) {
		r.attempts = attempts
		r.baseBackoff = base
	}
}

// WithLogger sets the store's logger.
func WithLogger(log logrus.FieldLogger) RedisOption {
	return func(r *RedisCartStore) { r.log = log }
}

// NewRedisCartStore accepts a Redis connection string ("redis://..." URL or
// "hostname:port") and returns a store instance.
func NewRedisCartStore(redisAddr string, opts ...RedisOption) (*RedisCartStore, error) {
	if redisAddr == "" {
		return nil, errors.New("cartstore: empty redis address")
	}

	clientOpts, err := redis.ParseURL(redisAddr)
	if err != nil {
		// Not a "redis://..." URL, use it as a plain Addr.
		clientOpts = &redis.Options{
			Addr:         redisAddr,
			MinIdleConns: 1,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			PoolTimeout:  4 * time.Second,
			IdleTimeout:  180 * time.Second,
		}
	}

	client := redis.NewClient(clientOpts)
	client.AddHook(redisotel.NewTracingHook())

	store := &RedisCartStore{
		client:      client,
		log:         logrus.StandardLogger(),
		attempts:    defaultConnectAttempts,
		baseBackoff: defaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Initialize checks the Redis connection, retrying with exponential backoff.
func (r *RedisCartStore) Initialize(ctx context.Context) error {
	r.log.Info("RedisCartStore: initializing connection...")

	for i := 0; i < r.attempts; i++ {
		r.log.Debugf("RedisCartStore: attempting Ping (attempt %d/%d)...", i+1, r.attempts)
		if r.Ping(ctx) {
			r.log.Infof("RedisCartStore: Ping successful on attempt %d", i+1)
			return nil
		}
		if i == r.attempts-1 {
			break
		}

		backoff := r.baseBackoff << uint(i)
		if backoff > maxBackoff || backoff <= 0 {
			backoff = maxBackoff
		}
		r.log.Debugf("RedisCartStore: waiting %v before next attempt", backoff)

		select {
		case <-ctx.Done():
			r.log.Warnf("RedisCartStore: context cancelled during backoff: %v", ctx.Err())
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return errors.Errorf("failed to connect to Redis after %d attempts", r.attempts)
}

// Load reads the scope's cart hash field.
func (r *RedisCartStore) Load(ctx context.Context, scope string) ([]cart.LineItem, error) {
	r.log.WithField("scope", scope).Debug("RedisCartStore: Load called")

	val, err := r.client.HGet(ctx, scope, CartKey).Bytes()
	if err == redis.Nil {
		return []cart.LineItem{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis HGet")
	}
	return decode(val)
}

// Save writes the whole cart in one transaction, refreshing the TTL when set.
func (r *RedisCartStore) Save(ctx context.Context, scope string, items []cart.LineItem) error {
	r.log.WithFields(logrus.Fields{"scope": scope, "items": len(items)}).Debug("RedisCartStore: Save called")

	data, err := encode(items)
	if err != nil {
		return errors.Wrap(err, "encode cart")
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, scope, CartKey, data)
		if r.ttl > 0 {
			pipe.Expire(ctx, scope, r.ttl)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "redis HSet")
	}
	return nil
}

// Ping checks if Redis is alive.
func (r *RedisCartStore) Ping(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.client.Ping(pingCtx).Err(); err != nil {
		r.log.Warnf("RedisCartStore: Ping failed with error: %v", err)
		return false
	}
	return true
}

// Close releases the client's connections.
func (r *RedisCartStore) Close() error {
	return r.client.Close()
}
