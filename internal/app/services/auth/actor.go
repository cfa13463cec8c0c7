package auth

import (
	"context"
	"errors"
)

var ErrActorMismatch = errors.New("auth: command issued on behalf of another user")

type actorKey struct{}

// WithActor stores the authenticated user id in ctx.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

func ActorFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorKey{}).(string)
	return id, ok && id != ""
}

// ActorCommand is implemented by messages that act on behalf of one user.
type ActorCommand interface {
	ActorID() string
}

// ActorAuthorizer rejects messages whose actor differs from the authenticated
// user. Messages dispatched without an actor in ctx (internal callers) pass.
type ActorAuthorizer struct{}

func (ActorAuthorizer) Authorize(ctx context.Context, message any) error {
	cmd, ok := message.(ActorCommand)
	if !ok {
		return nil
	}
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil
	}
	if cmd.ActorID() != actor {
		return ErrActorMismatch
	}
	return nil
}
