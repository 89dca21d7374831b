package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), &Actor{ID: "alice", SessionID: "S1", Roles: []string{"admin"}})

	assert.Equal(t, "alice", GetActorID(ctx))
	assert.Equal(t, "S1", GetSessionID(ctx))
	assert.True(t, HasRole(ctx, "admin"))
	assert.False(t, HasRole(ctx, "auditor"))
}

func TestMissingActor(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, GetActor(ctx))
	assert.Empty(t, GetActorID(ctx))
	assert.False(t, HasRole(ctx, "admin"))
}

func TestTraceRoundTrip(t *testing.T) {
	assert.Nil(t, GetTrace(context.Background()))

	ctx := WithTrace(context.Background(), &TraceContext{TraceID: "t-1", RequestID: "r-1"})
	assert.Equal(t, &TraceContext{TraceID: "t-1", RequestID: "r-1"}, GetTrace(ctx))
}
