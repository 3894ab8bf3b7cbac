package middleware

import (
	"context"
	"errors"
	"strings"

	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/ids"
)

// Actor is implemented by messages issued on behalf of a user.
type Actor interface {
	ActorID() string
}

// StaffAction is implemented by messages only staff may issue.
type StaffAction interface {
	Actor
	ActorRole() string
}

const RoleStaff = "staff"

var ErrForbidden = errors.New("middleware: forbidden")

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// UserAuthorizer requires an actor id on every Actor message and, when
// RequirePrefix is set, that it looks like a generated user id.
type UserAuthorizer struct {
	RequirePrefix bool
}

func (a UserAuthorizer) Authorize(_ context.Context, message any) error {
	actor, ok := message.(Actor)
	if !ok {
		return nil
	}
	id := strings.TrimSpace(actor.ActorID())
	if id == "" {
		return apperr.Validation("", "user id is required")
	}
	if a.RequirePrefix && !ids.Valid(ids.KindUser, id) {
		return apperr.Validation("", "user id %q is not a valid user identifier", id)
	}
	if staff, ok := message.(StaffAction); ok && staff.ActorRole() != RoleStaff {
		return ErrForbidden
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}
