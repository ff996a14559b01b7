package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type redisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) SessionStore {
	return &redisSessionStore{client: client}
}

func (s *redisSessionStore) Save(ctx context.Context, id uuid.UUID, data []byte, ttl time.Duration) error {
	return s.client.Set(ctx, sessionKey(id), data, ttl).Err()
}

func (s *redisSessionStore) Load(ctx context.Context, id uuid.UUID) ([]byte, error) {
	val, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (s *redisSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.client.Del(ctx, sessionKey(id)).Err()
}

func (s *redisSessionStore) Replace(ctx context.Context, id uuid.UUID, data []byte) (bool, error) {
	err := s.client.SetArgs(ctx, sessionKey(id), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return err == nil, err
}

func (s *redisSessionStore) Touch(ctx context.Context, id uuid.UUID, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		n, err := s.client.Exists(ctx, sessionKey(id)).Result()
		return n > 0, err
	}
	return s.client.Expire(ctx, sessionKey(id), ttl).Result()
}
