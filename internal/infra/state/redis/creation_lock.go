// Package redisstate 提供基于 Redis 的运行时状态原语。
package redisstate

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// releaseScript 只在锁仍由本持有者持有时删除 key。
// 锁过期后被其他进程抢占时，旧持有者的 Release 不会误删新锁。
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// RedisCreationLock 是 repository.CreationLock 的 Redis 实现。
// 使用 SET NX PX 获取带 TTL 的锁：TTL 到期后锁自动失效，
// 新的建房尝试即可抢占，无需持有者显式释放。
type RedisCreationLock struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration

	// 本进程内各持有中锁的释放令牌，key 为 Redis 锁 key
	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisCreationLock 创建 RedisCreationLock 实例。
// ttl 为锁的过期时间，传 0 使用默认值 20 秒。
func NewRedisCreationLock(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisCreationLock {
	if client == nil {
		panic("redis client cannot be nil for RedisCreationLock")
	}
	if keyPrefix == "" {
		keyPrefix = "jf:"
	}
	if ttl <= 0 {
		ttl = 20 * time.Second
	}
	return &RedisCreationLock{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		tokens:    make(map[string]string),
	}
}

func (l *RedisCreationLock) lockKey(guildID, ownerID snowflake.ID) string {
	return fmt.Sprintf("%sroom:create:lock:%d:%d", l.keyPrefix, guildID, ownerID)
}

// TryAcquire 尝试获取建房锁。锁已被持有且未过期时返回 false。
func (l *RedisCreationLock) TryAcquire(ctx context.Context, guildID, ownerID snowflake.ID) (bool, error) {
	key := l.lockKey(guildID, ownerID)
	token, err := newToken()
	if err != nil {
		return false, fmt.Errorf("redis: generate lock token for %s: %w", key, err)
	}
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire creation lock %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

// Release 释放建房锁。令牌不匹配 (锁已过期并被抢占) 时静默跳过。
func (l *RedisCreationLock) Release(ctx context.Context, guildID, ownerID snowflake.ID) error {
	key := l.lockKey(guildID, ownerID)
	l.mu.Lock()
	token, held := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !held {
		return nil
	}
	released, err := l.client.Eval(ctx, releaseScript, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("redis: release creation lock %s: %w", key, err)
	}
	if released == 0 {
		// 锁在持有期间过期并被新的尝试抢占，属于预期内的情况
		logrus.WithField("lock_key", key).Debug("Creation lock already expired before release")
	}
	return nil
}

// newToken 生成随机释放令牌
func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
