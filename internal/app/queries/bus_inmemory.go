package queries

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	asked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentspot",
		Subsystem: "queries",
		Name:      "asked_total",
		Help:      "Queries handled by the bus, by key and outcome.",
	}, []string{"key", "outcome"})
	askSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rentspot",
		Subsystem: "queries",
		Name:      "ask_seconds",
		Help:      "Query handler latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"key"})
)

type rawHandler func(ctx context.Context, q Query) (any, error)

// InMemoryBus routes queries to handlers registered at startup.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string]rawHandler
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{handlers: make(map[string]rawHandler)}
}

func (b *InMemoryBus) register(key string, h rawHandler) {
	if key == "" {
		panic("queries: empty key registration")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.handlers[key]; dup {
		panic("queries: handler already registered for " + key)
	}
	b.handlers[key] = h
}

func (b *InMemoryBus) Ask(ctx context.Context, query Query) (any, error) {
	key := query.Key()
	b.mu.RLock()
	h, ok := b.handlers[key]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, key)
	}
	start := time.Now()
	res, err := h(ctx, query)
	askSeconds.WithLabelValues(key).Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	asked.WithLabelValues(key, result).Inc()
	return res, err
}

// RegisterHandler binds a typed handler to key. Registering a key twice panics.
func RegisterHandler[Q Query, R any](bus *InMemoryBus, key string, handler Handler[Q, R]) {
	if bus == nil {
		panic("queries: nil bus")
	}
	bus.register(key, func(ctx context.Context, raw Query) (any, error) {
		q, ok := raw.(Q)
		if !ok {
			return nil, fmt.Errorf("%w: %s got %T", ErrInvalidQuery, key, raw)
		}
		return handler.Handle(ctx, q)
	})
}
