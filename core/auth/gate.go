package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"SeekBeat/core/apperr"
	"SeekBeat/logger"
)

const (
	// AccessCodeKey redis 中保存当前访问码哈希的键
	AccessCodeKey = "seekbeat:access_code"

	deniedMsg = "Invalid access code. Please Provide a valid Access Code"
)

func denied() error {
	return apperr.New(apperr.PermissionDenied, deniedMsg)
}

// StaticGate accepts a single code fixed at startup. An empty code denies
// everything.
type StaticGate struct {
	code string
}

func NewStaticGate(code string) *StaticGate {
	return &StaticGate{code: code}
}

func (g *StaticGate) Check(ctx context.Context, code string) error {
	if g.code == "" || code == "" {
		return denied()
	}
	if subtle.ConstantTimeCompare([]byte(g.code), []byte(code)) != 1 {
		return denied()
	}
	return nil
}

// RedisGate 访问码哈希存放在 redis 中, expiring with the session.
type RedisGate struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGate(rdb *redis.Client, ttl time.Duration) *RedisGate {
	return &RedisGate{rdb: rdb, ttl: ttl}
}

// Issue generates a fresh code, stores its hash and returns the plain code.
// Any previous code stops working.
func (g *RedisGate) Issue(ctx context.Context) (string, error) {
	code := GenerateCode()
	hash, err := HashCode(code)
	if err != nil {
		return "", err
	}
	if err := g.rdb.Set(ctx, AccessCodeKey, hash, g.ttl).Err(); err != nil {
		return "", fmt.Errorf("保存访问码失败: %w", err)
	}
	return code, nil
}

// Revoke ends the current session.
func (g *RedisGate) Revoke(ctx context.Context) error {
	return g.rdb.Del(ctx, AccessCodeKey).Err()
}

func (g *RedisGate) Check(ctx context.Context, code string) error {
	if code == "" {
		return denied()
	}
	hash, err := g.rdb.Get(ctx, AccessCodeKey).Result()
	if errors.Is(err, redis.Nil) {
		return denied()
	}
	if err != nil {
		logger.Error("读取访问码失败", logger.ErrorField(err))
		return apperr.Wrap(apperr.ServiceUnavailable, "Access check unavailable", err)
	}
	if !CheckCodeHash(code, hash) {
		return denied()
	}
	return nil
}
