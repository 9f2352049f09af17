package workers

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/yoockh/voiceinterview/internal/models"
)

const (
	DefaultJobStream = "interview:jobs"
	DefaultJobGroup  = "interview-workers"

	// keep the stream bounded; acked entries are never read again
	jobStreamMaxLen = 10000
)

// RedisJobQueue appends jobs to a Redis stream consumed by JobPool.
type RedisJobQueue struct {
	rdb    *redis.Client
	stream string
}

func NewRedisJobQueue(rdb *redis.Client, stream string) *RedisJobQueue {
	if stream == "" {
		stream = DefaultJobStream
	}
	return &RedisJobQueue{rdb: rdb, stream: stream}
}

func (q *RedisJobQueue) Enqueue(ctx context.Context, job models.Job) error {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: jobStreamMaxLen,
		Approx: true,
		Values: map[string]any{
			"type":    job.Type,
			"call_id": job.CallID,
			"payload": string(job.Payload),
		},
	}).Err()
}

func StatusChannel(callID string) string {
	return "interview:call:" + callID + ":status"
}

// RedisStatusNotifier fans session progress out to websocket subscribers
// on any instance.
type RedisStatusNotifier struct {
	rdb *redis.Client
}

func NewRedisStatusNotifier(rdb *redis.Client) *RedisStatusNotifier {
	return &RedisStatusNotifier{rdb: rdb}
}

func (n *RedisStatusNotifier) Notify(ctx context.Context, u models.StatusUpdate) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, StatusChannel(u.CallID), b).Err()
}
