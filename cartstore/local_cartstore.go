package cartstore

import (
	"context"
	"sync"

	"github.com/norun9/storefront-cartservice/cart"
	"github.com/sirupsen/logrus"
)

// LocalCartStore keeps serialized carts in process memory.
// Values go through the same codec as the Redis store so a round trip behaves identically.
type LocalCartStore struct {
	mu    sync.RWMutex
	store map[string][]byte

	log logrus.FieldLogger
}

// NewLocalCartStore constructor
func NewLocalCartStore(log logrus.FieldLogger) *LocalCartStore {
	return &LocalCartStore{
		store: make(map[string][]byte),
		log:   log,
	}
}

// Initialize does nothing in this implementation.
func (l *LocalCartStore) Initialize(ctx context.Context) error {
	l.log.Info("LocalCartStore initialized")
	return nil
}

// Load returns the scope's saved cart.
func (l *LocalCartStore) Load(ctx context.Context, scope string) ([]cart.LineItem, error) {
	l.log.WithField("scope", scope).Debug("LocalCartStore: Load called")
	l.mu.RLock()
	data, exists := l.store[scope]
	l.mu.RUnlock()

	if !exists {
		return []cart.LineItem{}, nil
	}
	return decode(data)
}

// Save overwrites the scope's cart.
func (l *LocalCartStore) Save(ctx context.Context, scope string, items []cart.LineItem) error {
	l.log.WithFields(logrus.Fields{"scope": scope, "items": len(items)}).Debug("LocalCartStore: Save called")
	data, err := encode(items)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.store[scope] = data
	return nil
}

// Ping is a health check that always returns true.
func (l *LocalCartStore) Ping(ctx context.Context) bool {
	return true
}
