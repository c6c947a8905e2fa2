package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"realtopia/internal/game"
)

const DefaultSessionKey = "realtopia:session"

// Redis stores the session aggregate as one JSON document.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// Connect dials addr and verifies the server answers.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

// NewRedis wraps client. A zero ttl keeps the snapshot forever.
func NewRedis(client *redis.Client, key string, ttl time.Duration) *Redis {
	if key == "" {
		key = DefaultSessionKey
	}
	return &Redis{client: client, key: key, ttl: ttl}
}

func (r *Redis) LoadSession(ctx context.Context) (game.Session, bool, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return game.Session{}, false, nil
	}
	if err != nil {
		return game.Session{}, false, fmt.Errorf("get session: %w", err)
	}
	var sess game.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		// an undecodable snapshot would fail every restart
		if delErr := r.discard(ctx); delErr != nil {
			return game.Session{}, false, errors.Join(fmt.Errorf("decode session: %w", err), delErr)
		}
		return game.Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return sess, true, nil
}

func (r *Redis) SaveSession(ctx context.Context, sess game.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (r *Redis) discard(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("discard session: %w", err)
	}
	return nil
}
