package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis session backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// RedisSessions keeps sessions in Redis with native key expiry. Each user
// also has a set of its session hashes so all of them can be revoked.
type RedisSessions struct {
	rdb    *goredis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisSessions connects to Redis and verifies the connection.
func NewRedisSessions(ctx context.Context, opts RedisOptions) (*RedisSessions, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisSessionsFromClient(rdb, opts.TTL, opts.Prefix), nil
}

// NewRedisSessionsFromClient wraps an existing client.
func NewRedisSessionsFromClient(rdb *goredis.Client, ttl time.Duration, prefix string) *RedisSessions {
	if prefix == "" {
		prefix = "farmcost:"
	}
	return &RedisSessions{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (r *RedisSessions) sessionKey(hash string) string { return r.prefix + "session:" + hash }
func (r *RedisSessions) userKey(username string) string { return r.prefix + "user:" + username }

func (r *RedisSessions) Create(ctx context.Context, username string) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	hash := hashToken(token)

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.sessionKey(hash), username, r.ttl)
	pipe.SAdd(ctx, r.userKey(username), hash)
	pipe.Expire(ctx, r.userKey(username), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

func (r *RedisSessions) Lookup(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionNotFound
	}
	username, err := r.rdb.Get(ctx, r.sessionKey(hashToken(token))).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup session: %w", err)
	}
	return username, nil
}

func (r *RedisSessions) Delete(ctx context.Context, token string) error {
	hash := hashToken(token)
	key := r.sessionKey(hash)

	username, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, r.userKey(username), hash)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *RedisSessions) DeleteUser(ctx context.Context, username string) error {
	hashes, err := r.rdb.SMembers(ctx, r.userKey(username)).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, r.sessionKey(h))
	}
	keys = append(keys, r.userKey(username))
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (r *RedisSessions) Close() error {
	return r.rdb.Close()
}
