package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"parcelsort/internal/core/apperror"
)

const keyPrefix = "parcelsort:idem:"

// record is the JSON value stored under each key.
type record struct {
	ActorID     string    `json:"actor_id"`
	Operation   string    `json:"operation"`
	RequestHash string    `json:"request_hash"`
	Status      Status    `json:"status"`
	Response    *Replay   `json:"response,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RedisStore keeps keys in redis with a TTL; SETNX decides ownership.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a redis backed store.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) Acquire(ctx context.Context, req Request) (*Replay, error) {
	rec := record{
		ActorID:     req.ActorID,
		Operation:   req.Operation,
		RequestHash: req.RequestHash,
		Status:      StatusPending,
		UpdatedAt:   s.now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal idempotency record: %w", err)
	}

	acquired, err := s.client.SetNX(ctx, keyPrefix+req.Key, data, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if acquired {
		return nil, nil
	}

	existing, err := s.load(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		// Expired between SETNX and GET.
		return s.Acquire(ctx, req)
	}

	if existing.ActorID != req.ActorID || existing.Operation != req.Operation || existing.RequestHash != req.RequestHash {
		return nil, apperror.NewIdempotencyMismatch(req.Key).
			WithDetail("stored_operation", existing.Operation).
			WithDetail("request_operation", req.Operation)
	}

	switch existing.Status {
	case StatusSuccess, StatusFailed:
		if existing.Response == nil {
			return normalizeReplay(&Replay{}), nil
		}
		return normalizeReplay(existing.Response), nil
	case StatusPending:
		if s.now().Sub(existing.UpdatedAt) > StaleAfter {
			if err := s.client.Set(ctx, keyPrefix+req.Key, data, s.ttl).Err(); err != nil {
				return nil, fmt.Errorf("reclaim stale key: %w", err)
			}
			return nil, nil
		}
		return nil, apperror.NewIdempotencyConflict(req.Key)
	}
	return nil, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, resp Replay) error {
	return s.finish(ctx, key, StatusSuccess, resp)
}

func (s *RedisStore) Fail(ctx context.Context, key string, resp Replay) error {
	return s.finish(ctx, key, StatusFailed, resp)
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *RedisStore) finish(ctx context.Context, key string, status Status, resp Replay) error {
	rec, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &record{}
	}
	rec.Status = status
	rec.Response = &resp
	rec.UpdatedAt = s.now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+key, data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("store idempotency response: %w", err)
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, key string) (*record, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load idempotency key: %w", err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency key: %w", err)
	}
	return &rec, nil
}
