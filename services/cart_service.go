package services

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/norun9/storefront-cartservice/cart"
	"github.com/norun9/storefront-cartservice/cartstore"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "cartservice"

	// DefaultSessionCacheSize bounds how many shopper carts stay in memory.
	DefaultSessionCacheSize = 4096
)

// session is the in-memory cart of one scope. Its mutex serializes requests of
// the same shopper.
type session struct {
	mu   sync.Mutex
	cart *cart.Cart
}

// CartService owns the in-memory carts. A scope is loaded from the store once,
// on first use; afterwards memory is authoritative and every mutation is written
// through.
type CartService struct {
	store    cartstore.ICartStore
	sessions *lru.Cache
	log      logrus.FieldLogger

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	cacheSize      int

	tracer        trace.Tracer
	mutations     metric.Int64Counter
	writeFailures metric.Int64Counter
}

// Option configures a CartService.
type Option func(*CartService)

// WithLogger sets the service logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *CartService) { s.log = log }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *CartService) { s.tracerProvider = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *CartService) { s.meterProvider = mp }
}

// WithSessionCacheSize bounds the number of carts held in memory.
func WithSessionCacheSize(n int) Option {
	return func(s *CartService) { s.cacheSize = n }
}

// NewCartService creates a service instance with a store injected.
func NewCartService(store cartstore.ICartStore, opts ...Option) (*CartService, error) {
	s := &CartService{
		store:          store,
		log:            logrus.StandardLogger(),
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		cacheSize:      DefaultSessionCacheSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	sessions, err := lru.New(s.cacheSize)
	if err != nil {
		return nil, err
	}
	s.sessions = sessions
	s.tracer = s.tracerProvider.Tracer(instrumentationName)

	meter := s.meterProvider.Meter(instrumentationName)
	if s.mutations, err = meter.Int64Counter("cart.mutations",
		metric.WithDescription("Cart mutations applied, by operation")); err != nil {
		return nil, err
	}
	if s.writeFailures, err = meter.Int64Counter("cart.store.write_failures",
		metric.WithDescription("Cart saves the store rejected")); err != nil {
		return nil, err
	}
	return s, nil
}

// GetCart returns a snapshot of the scope's cart.
func (s *CartService) GetCart(ctx context.Context, scope string) (*cart.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "GetCart")
	defer span.End()
	span.SetAttributes(attribute.String("app.session_id", scope))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := s.lockSession(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return sess.cart.Clone(), nil
}

// AddItem adds one unit of a product to the scope's cart.
func (s *CartService) AddItem(ctx context.Context, scope string, cand cart.Candidate) (*cart.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "AddItem")
	defer span.End()
	if cand.ID == "" {
		cand.ID = cart.ItemID(cand.Title, cand.Price)
	}
	span.SetAttributes(
		attribute.String("app.session_id", scope),
		attribute.String("app.item_id", cand.ID),
	)

	return s.mutate(ctx, scope, "add", func(c *cart.Cart) bool {
		c.Add(cand)
		return true
	})
}

// RemoveItem deletes a line item. Removing an unknown id is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, scope, id string) (*cart.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "RemoveItem")
	defer span.End()
	span.SetAttributes(
		attribute.String("app.session_id", scope),
		attribute.String("app.item_id", id),
	)

	return s.mutate(ctx, scope, "remove", func(c *cart.Cart) bool {
		c.Remove(id)
		return true
	})
}

// ChangeQty adjusts a line item's quantity by delta, removing it at zero or
// below. An unknown id is a no-op and nothing is written.
func (s *CartService) ChangeQty(ctx context.Context, scope, id string, delta int) (*cart.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "ChangeQty")
	defer span.End()
	span.SetAttributes(
		attribute.String("app.session_id", scope),
		attribute.String("app.item_id", id),
		attribute.Int("app.quantity", delta),
	)

	return s.mutate(ctx, scope, "change_qty", func(c *cart.Cart) bool {
		return c.ChangeQty(id, delta)
	})
}

// mutate applies fn under the scope lock and writes the cart through when fn
// reports a change.
func (s *CartService) mutate(ctx context.Context, scope, op string, fn func(*cart.Cart) bool) (*cart.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := s.lockSession(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	if fn(sess.cart) {
		s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("app.op", op)))
		s.save(ctx, scope, sess.cart)
	}
	return sess.cart.Clone(), nil
}

// save writes the cart to the store. Failures are logged and counted but not
// returned or retried; the in-memory cart stays authoritative.
func (s *CartService) save(ctx context.Context, scope string, c *cart.Cart) {
	if err := s.store.Save(ctx, scope, c.Items()); err != nil {
		s.writeFailures.Add(ctx, 1)
		s.log.WithFields(logrus.Fields{
			"scope": scope,
			"error": err,
		}).Warn("cart save failed, keeping in-memory cart")
	}
}

// lockSession returns the scope's session locked. A session evicted from the
// cache while the caller waited for its lock is dropped and the scope reloaded,
// so two live sessions never serve the same scope.
func (s *CartService) lockSession(ctx context.Context, scope string) (*session, error) {
	for {
		sess, err := s.session(ctx, scope)
		if err != nil {
			return nil, err
		}
		sess.mu.Lock()
		if cur, ok := s.sessions.Peek(scope); ok && cur == sess {
			return sess, nil
		}
		sess.mu.Unlock()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// session returns the cached cart of a scope, loading it on first use. Missing
// or corrupt stored data starts the scope with an empty cart. Any other load
// failure is returned and nothing is cached, so an unreachable store never
// masks the durable cart.
func (s *CartService) session(ctx context.Context, scope string) (*session, error) {
	if v, ok := s.sessions.Get(scope); ok {
		return v.(*session), nil
	}

	items, err := s.store.Load(ctx, scope)
	switch {
	case errors.Is(err, cartstore.ErrCorrupt):
		s.log.WithFields(logrus.Fields{
			"scope": scope,
			"error": err,
		}).Info("stored cart unreadable, starting with empty cart")
		items = nil
	case err != nil:
		return nil, errors.Wrap(err, "load cart")
	}
	sess := &session{cart: cart.New(items)}

	// Another request of the same scope may have loaded it concurrently.
	if found, _ := s.sessions.ContainsOrAdd(scope, sess); found {
		if v, ok := s.sessions.Get(scope); ok {
			return v.(*session), nil
		}
	}
	return sess, nil
}
