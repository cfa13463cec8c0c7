package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"rentspot/internal/app/commands"
)

// IdempotentCommand is a command a client may safely retry under the same key.
// ResultPrototype returns a pointer to a zero result used to decode replays.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any
}

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	Pending    bool
	OccurredAt time.Time
}

// IdempotencyStore remembers results of keyed commands. Reserve must be atomic:
// exactly one caller acquires a fresh key until it is saved or released.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Reserve(ctx context.Context, key string) (bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
	Release(ctx context.Context, key string) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONResultCodec) Decode(data []byte, out any) error { return json.Unmarshal(data, out) }

var (
	ErrRequestInProgress = errors.New("middleware: request with this idempotency key is in progress")
	errMissingPrototype  = errors.New("middleware: idempotent command requires result prototype")
)

var idempotentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rentspot",
	Subsystem: "idempotency",
	Name:      "requests_total",
	Help:      "Keyed commands by outcome: executed, replayed, in_progress or failed.",
}, []string{"outcome"})

// Idempotency executes a keyed command at most once and replays its stored
// result afterwards. A failed execution releases the key so the client can
// retry; errors are never cached.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			keyed, ok := cmd.(IdempotentCommand)
			if !ok || keyed.IdempotencyKey() == "" {
				return nextFn(ctx, cmd)
			}
			key := keyed.IdempotencyKey()

			if rec, found, err := store.Get(ctx, key); err != nil {
				return nil, err
			} else if found {
				return replay(keyed, rec, codec)
			}
			acquired, err := store.Reserve(ctx, key)
			if err != nil {
				return nil, err
			}
			if !acquired {
				idempotentOutcomes.WithLabelValues("in_progress").Inc()
				return nil, ErrRequestInProgress
			}

			result, err := nextFn(ctx, cmd)
			if err != nil {
				idempotentOutcomes.WithLabelValues("failed").Inc()
				if relErr := store.Release(context.WithoutCancel(ctx), key); relErr != nil {
					return nil, errors.Join(err, relErr)
				}
				return nil, err
			}
			idempotentOutcomes.WithLabelValues("executed").Inc()
			remember(ctx, store, codec, key, result)
			return result, nil
		})
	}
}

// remember stores the result of an executed command. The command already took
// effect, so a storage failure is logged rather than returned.
func remember(ctx context.Context, store IdempotencyStore, codec ResultCodec, key string, result any) {
	rec := IdempotencyRecord{Key: key, OccurredAt: time.Now().UTC()}
	var err error
	if result != nil {
		rec.Payload, err = codec.Encode(result)
	}
	if err == nil {
		err = store.Save(context.WithoutCancel(ctx), rec)
	}
	if err != nil {
		slog.Default().Error("idempotent result not stored", "key", key, "error", err)
	}
}

// replay decodes the stored result into the command's prototype. The pointer
// is returned as is; typed dispatch dereferences it.
func replay(cmd IdempotentCommand, rec IdempotencyRecord, codec ResultCodec) (any, error) {
	if rec.Pending {
		idempotentOutcomes.WithLabelValues("in_progress").Inc()
		return nil, ErrRequestInProgress
	}
	idempotentOutcomes.WithLabelValues("replayed").Inc()
	if len(rec.Payload) == 0 {
		return nil, nil
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return proto, nil
}
