package common

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"rubicon/flightlog/internal/logging"
)

// BackfillRequest asks the coordinate worker to sweep after an import batch.
type BackfillRequest struct {
	CheckpointID string    `json:"checkpoint_id"`
	Records      int       `json:"records"`
	RequestedAt  time.Time `json:"requested_at"`
}

// BackfillQueue carries backfill requests from importers to the worker.
type BackfillQueue interface {
	Enqueue(ctx context.Context, req *BackfillRequest) error
	// Dequeue waits up to block for a request. A nil request means none arrived.
	Dequeue(ctx context.Context, consumer string, block time.Duration) (*BackfillRequest, string, error)
	Ack(ctx context.Context, messageID string) error
	Len(ctx context.Context) (int64, error)
}

// RedisBackfillQueue is a BackfillQueue on a Redis Stream with one consumer group.
type RedisBackfillQueue struct {
	client *redis.Client
	stream string
	group  string
}

var _ BackfillQueue = (*RedisBackfillQueue)(nil)

func NewRedisBackfillQueue(client *redis.Client, stream, group string) *RedisBackfillQueue {
	return &RedisBackfillQueue{client: client, stream: stream, group: group}
}

// CreateConsumerGroup creates the consumer group if it doesn't exist
func (q *RedisBackfillQueue) CreateConsumerGroup(ctx context.Context) error {
	// XGROUP CREATE stream group 0 MKSTREAM
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (q *RedisBackfillQueue) Enqueue(ctx context.Context, req *BackfillRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal backfill request: %w", err)
	}

	// XADD stream * data <json>
	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{"data": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}
	return nil
}

func (q *RedisBackfillQueue) Dequeue(ctx context.Context, consumer string, block time.Duration) (*BackfillRequest, string, error) {
	// XREADGROUP GROUP group consumer BLOCK ms COUNT 1 STREAMS stream >
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("failed to read from stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, "", nil
	}

	msg := streams[0].Messages[0]
	req, err := decodeBackfillMessage(msg)
	if err != nil {
		return nil, msg.ID, err
	}
	return req, msg.ID, nil
}

func decodeBackfillMessage(msg redis.XMessage) (*BackfillRequest, error) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid message format: data field missing")
	}
	var req BackfillRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal backfill request: %w", err)
	}
	return &req, nil
}

func (q *RedisBackfillQueue) Ack(ctx context.Context, messageID string) error {
	return q.client.XAck(ctx, q.stream, q.group, messageID).Err()
}

func (q *RedisBackfillQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.XLen(ctx, q.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return n, nil
}

// ClaimStale takes over messages another consumer left pending longer than minIdle.
func (q *RedisBackfillQueue) ClaimStale(ctx context.Context, consumer string, minIdle time.Duration) ([]*BackfillRequest, []string, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.group,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get pending messages: %w", err)
	}

	var staleIDs []string
	for _, p := range pending {
		if p.Idle >= minIdle {
			staleIDs = append(staleIDs, p.ID)
		}
	}
	if len(staleIDs) == 0 {
		return nil, nil, nil
	}

	messages, err := q.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: staleIDs,
	}).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to claim stale messages: %w", err)
	}

	var reqs []*BackfillRequest
	var ids []string
	for _, msg := range messages {
		req, err := decodeBackfillMessage(msg)
		if err != nil {
			logging.Warn("[BackfillQueue] Dropping unreadable claimed message", "id", msg.ID, "error", err)
			_ = q.Ack(ctx, msg.ID)
			continue
		}
		reqs = append(reqs, req)
		ids = append(ids, msg.ID)
	}
	return reqs, ids, nil
}

// LocalBackfillQueue is an in-process BackfillQueue. Requests beyond its
// capacity are dropped; the scheduled sweep still picks their records up.
type LocalBackfillQueue struct {
	ch chan *BackfillRequest
}

var _ BackfillQueue = (*LocalBackfillQueue)(nil)

func NewLocalBackfillQueue(capacity int) *LocalBackfillQueue {
	return &LocalBackfillQueue{ch: make(chan *BackfillRequest, capacity)}
}

func (q *LocalBackfillQueue) Enqueue(ctx context.Context, req *BackfillRequest) error {
	select {
	case q.ch <- req:
	default:
		logging.Debug("[BackfillQueue] Local queue full, dropping request", "checkpoint_id", req.CheckpointID)
	}
	return nil
}

func (q *LocalBackfillQueue) Dequeue(ctx context.Context, consumer string, block time.Duration) (*BackfillRequest, string, error) {
	timer := time.NewTimer(block)
	defer timer.Stop()
	select {
	case req := <-q.ch:
		return req, "", nil
	case <-timer.C:
		return nil, "", nil
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
}

func (q *LocalBackfillQueue) Ack(ctx context.Context, messageID string) error { return nil }

func (q *LocalBackfillQueue) Len(ctx context.Context) (int64, error) {
	return int64(len(q.ch)), nil
}
