package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FlipDesk/pkg/logger"
)

type recordJob struct {
	got []json.RawMessage
	err error
}

func (j *recordJob) Name() string { return "record" }
func (j *recordJob) Type() string { return "test.record" }
func (j *recordJob) Handle(_ context.Context, payload interface{}) error {
	j.got = append(j.got, payload.(json.RawMessage))
	return j.err
}

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newMockQueue(t *testing.T, job Job) (*RedisQueue, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	q := NewRedisQueue(logger.NewNop(), &QueueConfig{RetryLimit: 2, RetryDelay: time.Minute, DeadLetterCap: 50}, client, WithKeyPrefix("t"))
	q.now = func() time.Time { return fixedNow }
	if job != nil {
		q.RegisterJob(job)
	}
	return q, mock
}

func TestPublishRejectsUnknownTypeAndStoppedQueue(t *testing.T) {
	q, mock := newMockQueue(t, &recordJob{})

	err := q.PublishMessage(context.Background(), "other", map[string]int{"a": 1})
	assert.ErrorContains(t, err, "no job registered")

	err = q.PublishMessage(context.Background(), "test.record", map[string]int{"a": 1})
	assert.ErrorContains(t, err, "not running")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchSuccessTouchesNothing(t *testing.T) {
	job := &recordJob{}
	q, mock := newMockQueue(t, job)

	q.dispatch(context.Background(), Message{ID: "m1", Type: "test.record", Payload: json.RawMessage(`{"run_id":"r1"}`)})

	require.Len(t, job.got, 1)
	assert.JSONEq(t, `{"run_id":"r1"}`, string(job.got[0]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchSchedulesBackoff(t *testing.T) {
	job := &recordJob{err: errors.New("upstream 503")}
	q, mock := newMockQueue(t, job)

	msg := Message{ID: "m1", Type: "test.record", Payload: json.RawMessage(`{}`), Attempts: 1}
	want := msg
	want.Attempts = 2
	want.LastError = "upstream 503"
	// second retry waits twice the base delay
	mock.ExpectZAdd("t:retry", redis.Z{Score: float64(fixedNow.Add(2 * time.Minute).Unix()), Member: mustEncode(want)}).SetVal(1)

	q.dispatch(context.Background(), msg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchDeadLettersAfterRetryLimit(t *testing.T) {
	job := &recordJob{err: errors.New("bad payload")}
	q, mock := newMockQueue(t, job)

	msg := Message{ID: "m1", Type: "test.record", Payload: json.RawMessage(`{}`), Attempts: 2}
	want := msg
	want.LastError = "bad payload"
	mock.ExpectLPush("t:dlq", mustEncode(want)).SetVal(1)
	mock.ExpectLTrim("t:dlq", 0, 49).SetVal("OK")

	q.dispatch(context.Background(), msg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchUnknownTypeIsDeadLettered(t *testing.T) {
	q, mock := newMockQueue(t, nil)

	msg := Message{ID: "m9", Type: "gone"}
	want := msg
	want.LastError = "no job registered"
	mock.ExpectLPush("t:dlq", mustEncode(want)).SetVal(1)
	mock.ExpectLTrim("t:dlq", 0, 49).SetVal("OK")

	q.dispatch(context.Background(), msg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteDueSkipsRetriesTakenElsewhere(t *testing.T) {
	q, mock := newMockQueue(t, nil)

	mock.ExpectZRangeByScore("t:retry", &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(fixedNow.Unix(), 10),
		Count: pumpBatch,
	}).SetVal([]string{"a", "b"})
	mock.ExpectZRem("t:retry", "a").SetVal(1)
	mock.ExpectLPush("t:messages", "a").SetVal(1)
	mock.ExpectZRem("t:retry", "b").SetVal(0)

	moved, err := q.promoteDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParsePayload(t *testing.T) {
	type req struct {
		RunID string `json:"run_id"`
	}

	got, err := ParsePayload[req](json.RawMessage(`{"run_id":"r1"}`))
	require.NoError(t, err)
	assert.Equal(t, "r1", got.RunID)

	got, err = ParsePayload[req](map[string]interface{}{"run_id": "r2"})
	require.NoError(t, err)
	assert.Equal(t, "r2", got.RunID)

	same := &req{RunID: "r3"}
	got, err = ParsePayload[req](same)
	require.NoError(t, err)
	assert.Same(t, same, got)

	_, err = ParsePayload[req](nil)
	assert.Error(t, err)
}
