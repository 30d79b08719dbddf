// Package lock は複数インスタンス間で同じジョブが重複実行されないための短期ロックを提供する。
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Release は取得したロックを解放する。
type Release func(ctx context.Context) error

// Locker はキー単位の排他ロックのインターフェース。
type Locker interface {
	// TryLock はロックの取得を試みる。他者が保持している場合はok=falseを返す。
	TryLock(ctx context.Context, key string, ttl time.Duration) (release Release, ok bool, err error)
}

// NopLocker は常にロックを取得できるLocker。単一インスタンス構成で使う。
type NopLocker struct{}

// TryLock は常に成功する。
func (NopLocker) TryLock(context.Context, string, time.Duration) (Release, bool, error) {
	return func(context.Context) error { return nil }, true, nil
}

// 自分が保持しているトークンの場合のみ削除する。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker はSET NX PXによるRedisロック。
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLocker はRedisLockerを生成する。
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client, prefix: "roombook:lock:"}
}

// TryLock はttl付きでロックを取得する。ttl経過後は自動的に解放される。
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Release, bool, error) {
	token, err := newToken()
	if err != nil {
		return nil, false, err
	}
	fullKey := l.prefix + key

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}

func newToken() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

// compile-time interface check
var _ Locker = (*RedisLocker)(nil)
var _ Locker = NopLocker{}
