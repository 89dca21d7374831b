package context

import (
	"context"
	"slices"
)

// Actor is the authenticated scanner operator (or device) behind a request.
type Actor struct {
	ID        string
	SessionID string
	Roles     []string
}

type actorKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// GetActor returns Actor from context.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetActorID returns actor ID from context or empty string.
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.ID
	}
	return ""
}

// GetSessionID returns the scanning session ID from context or empty string.
func GetSessionID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.SessionID
	}
	return ""
}

// HasRole checks if actor has specific role.
func HasRole(ctx context.Context, role string) bool {
	a := GetActor(ctx)
	if a == nil {
		return false
	}
	return slices.Contains(a.Roles, role)
}
