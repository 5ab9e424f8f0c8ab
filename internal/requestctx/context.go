// Package requestctx provides request-scoped values (the authenticated actor)
// set by middleware.
package requestctx

import (
	"context"

	"github.com/hrm8/assistant/internal/actor"
)

type contextKey struct{}

var actorKey = &contextKey{}

// SetActor stores the authenticated actor in the context.
func SetActor(ctx context.Context, a *actor.Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// Actor returns the actor from context, or nil if not set.
func Actor(ctx context.Context) *actor.Actor {
	a, _ := ctx.Value(actorKey).(*actor.Actor)
	return a
}
