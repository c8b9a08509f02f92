package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkit/auth-service/internal/events"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestAuditServiceRecordAndRecent(t *testing.T) {
	_, client := newTestRedis(t)
	audit := NewAuditService(client, "auth:events")
	ctx := context.Background()

	first := events.NewEvent(events.EventLoginFailed, "ghost", map[string]string{"reason": "unknown_user"})
	second := events.NewEvent(events.EventLoginSucceeded, "alice", nil)
	require.NoError(t, audit.Record(ctx, first))
	require.NoError(t, audit.Record(ctx, second))

	recent, err := audit.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.ID, recent[0].ID)
	assert.Equal(t, first.ID, recent[1].ID)
	assert.Equal(t, "unknown_user", recent[1].Metadata["reason"])

	limited, err := audit.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestAuditServiceWithoutClientIsNoop(t *testing.T) {
	audit := NewAuditService(nil, "auth:events")

	assert.NoError(t, audit.Record(context.Background(), events.NewEvent(events.EventLoginSucceeded, "alice", nil)))
	recent, err := audit.Recent(context.Background(), 5)
	assert.NoError(t, err)
	assert.Empty(t, recent)
}

func TestAuditServiceReportsRedisFailure(t *testing.T) {
	mr, client := newTestRedis(t)
	audit := NewAuditService(client, "auth:events")
	mr.Close()

	err := audit.Record(context.Background(), events.NewEvent(events.EventLoginSucceeded, "alice", nil))
	assert.Error(t, err)
}
