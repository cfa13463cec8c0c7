package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentspot",
		Subsystem: "commands",
		Name:      "dispatched_total",
		Help:      "Commands handled by the bus, by key and outcome.",
	}, []string{"key", "outcome"})
	dispatchSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rentspot",
		Subsystem: "commands",
		Name:      "dispatch_seconds",
		Help:      "Command handler latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"key"})
)

type rawHandler func(ctx context.Context, cmd Command) (any, error)

// InMemoryBus routes commands to handlers registered at startup.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string]rawHandler
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{handlers: make(map[string]rawHandler)}
}

func (b *InMemoryBus) register(key string, h rawHandler) {
	if key == "" {
		panic("commands: empty key registration")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.handlers[key]; dup {
		panic("commands: handler already registered for " + key)
	}
	b.handlers[key] = h
}

func (b *InMemoryBus) Dispatch(ctx context.Context, cmd Command) (any, error) {
	key := cmd.Key()
	b.mu.RLock()
	h, ok := b.handlers[key]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, key)
	}
	start := time.Now()
	res, err := h(ctx, cmd)
	dispatchSeconds.WithLabelValues(key).Observe(time.Since(start).Seconds())
	dispatched.WithLabelValues(key, outcome(ctx, err)).Inc()
	return res, err
}

// Keys lists the registered command keys.
func (b *InMemoryBus) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.handlers))
	for k := range b.handlers {
		keys = append(keys, k)
	}
	return keys
}

func outcome(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), ctx.Err() != nil:
		return "canceled"
	default:
		return "error"
	}
}

// RegisterHandler binds a typed handler to key. Registering a key twice panics.
func RegisterHandler[C Command, R any](bus *InMemoryBus, key string, handler Handler[C, R]) {
	if bus == nil {
		panic("commands: nil bus")
	}
	bus.register(key, func(ctx context.Context, raw Command) (any, error) {
		cmd, ok := raw.(C)
		if !ok {
			return nil, fmt.Errorf("%w: %s got %T", ErrInvalidCommand, key, raw)
		}
		return handler.Handle(ctx, cmd)
	})
}
