package context

import (
	"context"

	"wms/models"
)

type sessionKey struct{}

type actorKey struct{}

func NewContextWithSession(ctx context.Context, session models.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

func GetSessionFromContext(ctx context.Context) (models.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(models.Session)
	return s, ok
}

// NewContextWithActor stores the resolved caller for handlers. Both cookie
// sessions and bearer tokens end up here.
func NewContextWithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func GetActorFromContext(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(models.Actor)
	return a, ok && a.UserID > 0
}
