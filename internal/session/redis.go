package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisState is the JSON document stored per user.
type redisState struct {
	Kind  Kind   `json:"kind"`
	Lines []Line `json:"lines"`
}

// RedisStore keeps cart sessions in Redis with a TTL equal to the session
// timeout, so the server evicts idle carts on its own and sessions survive
// process restarts.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
	prefix  string
}

// RedisConfig holds connection settings for the Redis session backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig, timeout time.Duration) (*RedisStore, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client, timeout: timeout, prefix: "trader:session:"}, nil
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + userID
}

func (s *RedisStore) load(ctx context.Context, userID string) (*redisState, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state redisState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// save writes the state back and resets the TTL, marking activity.
func (s *RedisStore) save(ctx context.Context, userID string, state *redisState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(userID), raw, s.timeout).Err()
}

func (s *RedisStore) Start(ctx context.Context, userID string, kind Kind) error {
	return s.save(ctx, userID, &redisState{Kind: kind})
}

func (s *RedisStore) AddLine(ctx context.Context, userID string, line Line) error {
	state, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if state == nil {
		state = &redisState{Kind: KindBuy}
	}
	state.Lines = append(state.Lines, line)
	return s.save(ctx, userID, state)
}

func (s *RedisStore) Lines(ctx context.Context, userID string) ([]Line, error) {
	state, err := s.load(ctx, userID)
	if err != nil || state == nil {
		return nil, err
	}
	return state.Lines, nil
}

func (s *RedisStore) Kind(ctx context.Context, userID string) (Kind, error) {
	state, err := s.load(ctx, userID)
	if err != nil || state == nil {
		return "", err
	}
	return state.Kind, nil
}

func (s *RedisStore) RemoveLast(ctx context.Context, userID string) (Line, error) {
	state, err := s.load(ctx, userID)
	if err != nil {
		return Line{}, err
	}
	if state == nil || len(state.Lines) == 0 {
		return Line{}, ErrEmptyCart
	}
	last := state.Lines[len(state.Lines)-1]
	state.Lines = state.Lines[:len(state.Lines)-1]
	if err := s.save(ctx, userID, state); err != nil {
		return Line{}, err
	}
	return last, nil
}

func (s *RedisStore) SetLines(ctx context.Context, userID string, lines []Line) error {
	state, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if state == nil {
		state = &redisState{Kind: KindBuy}
	}
	state.Lines = lines
	return s.save(ctx, userID, state)
}

func (s *RedisStore) End(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}

func (s *RedisStore) Active(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
