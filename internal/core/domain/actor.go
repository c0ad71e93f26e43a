package domain

import "context"

// ActorContext identifies the user a unit of work is attributed to.
// A nil ID means the mutation is system-initiated and is recorded without an actor.
type ActorContext struct {
	ID *int64
}

func Actor(id int64) ActorContext {
	return ActorContext{ID: &id}
}

func SystemActor() ActorContext {
	return ActorContext{}
}

type actorCtxKey struct{}

// WithActor binds the actor to the context for the duration of one unit of work.
// The change-capture hooks read it back through the statement context, so every
// write issued inside the transaction carries the same attribution.
func WithActor(ctx context.Context, actor ActorContext) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

// ActorFromContext reports the bound actor. The second return distinguishes an
// explicit system binding from no binding at all; both are recorded as NULL.
func ActorFromContext(ctx context.Context) (ActorContext, bool) {
	actor, ok := ctx.Value(actorCtxKey{}).(ActorContext)
	return actor, ok
}
