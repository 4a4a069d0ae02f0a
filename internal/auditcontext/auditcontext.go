// Package auditcontext threads the acting party through a call chain explicitly.
package auditcontext

import (
	"context"

	"github.com/SscSPs/payment_ledger/internal/core/domain"
)

type actorKey struct{}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor, or domain.SystemActor.
func ActorFromContext(ctx context.Context) domain.Actor {
	if actor, ok := ctx.Value(actorKey{}).(domain.Actor); ok && actor.ID != "" {
		return actor
	}
	return domain.SystemActor
}
