package middleware

import (
	"context"

	"rentspot/internal/app/commands"
	"rentspot/internal/app/queries"
)

// Authorizer rejects messages the acting user may not send.
type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

type Validator interface {
	Validate(ctx context.Context, message any) error
}

// guard runs before the handler and short-circuits the chain on error.
type guard func(ctx context.Context, message any) error

func (g guard) commands() CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := g(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func (g guard) queries() QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := g(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return guard(a.Authorize).commands()
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return guard(a.Authorize).queries()
}

func Validation(v Validator) CommandMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return guard(v.Validate).commands()
}

func QueryValidation(v Validator) QueryMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return guard(v.Validate).queries()
}
