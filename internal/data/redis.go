package data

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"hawx.me/code/dashboard/internal/backend"
)

// Redis keeps the session under a single key, for when several dashctl
// processes should share a sign in.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, key string, ttl time.Duration) *Redis {
	return &Redis{client: client, key: key, ttl: ttl}
}

func OpenRedis(addr, password, key string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewRedis(client, key, ttl), nil
}

func (s *Redis) Load(ctx context.Context) (*backend.Session, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session backend.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}

	return &session, nil
}

func (s *Redis) Save(ctx context.Context, session *backend.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, s.key, raw, s.ttl).Err()
}

func (s *Redis) Remove(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

func (s *Redis) Close() error {
	return s.client.Close()
}
