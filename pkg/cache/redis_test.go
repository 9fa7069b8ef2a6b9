package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCachePrefixesAndEncodes(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	rc := NewRedisCacheFromClient(client, "fd")

	mock.ExpectSet("fd:scan:latest", []byte(`{"run_id":"r1","items":[2],"score":61}`), time.Minute).SetVal("OK")
	require.NoError(t, rc.Set(ctx, "scan:latest", scanEntry{RunID: "r1", Items: []int64{2}, Score: 61}, time.Minute))

	mock.ExpectGet("fd:scan:latest").SetVal(`{"run_id":"r1","items":[2],"score":61}`)
	var out scanEntry
	require.NoError(t, rc.Get(ctx, "scan:latest", &out))
	assert.Equal(t, "r1", out.RunID)

	mock.ExpectGet("fd:absent").RedisNil()
	assert.ErrorIs(t, rc.Get(ctx, "absent", &out), ErrCacheMiss)

	mock.ExpectGet("fd:broken").SetErr(errors.New("connection reset"))
	err := rc.Get(ctx, "broken", &out)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)

	mock.ExpectUnlink("fd:a", "fd:b").SetVal(2)
	require.NoError(t, rc.Delete(ctx, "a", "b"))
	require.NoError(t, rc.Delete(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLayeredCacheServesRepeatReadsFromMemory(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	lc := NewLayeredCache(NewRedisCacheFromClient(client, "fd"), WithLayeredMemoryTTL(time.Minute))
	defer lc.Close()

	mock.ExpectGet("fd:advice:2").SetVal(`"buy"`)
	var v string
	require.NoError(t, lc.Get(ctx, "advice:2", &v))
	assert.Equal(t, `"buy"`, v)
	require.NoError(t, lc.Get(ctx, "advice:2", &v))

	mock.ExpectUnlink("fd:advice:2").SetVal(1)
	require.NoError(t, lc.Delete(ctx, "advice:2"))
	mock.ExpectGet("fd:advice:2").RedisNil()
	assert.ErrorIs(t, lc.Get(ctx, "advice:2", &v), ErrCacheMiss)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLayeredCacheWriteFailureSkipsMemory(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	lc := NewLayeredCache(NewRedisCacheFromClient(client, "fd"))
	defer lc.Close()

	mock.ExpectSet("fd:k", []byte("v"), 10*time.Second).SetErr(errors.New("readonly"))
	require.Error(t, lc.Set(ctx, "k", "v", 10*time.Second))
	assert.Equal(t, 0, lc.mem.Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}
