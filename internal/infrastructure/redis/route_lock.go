package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// RouteLock は路線・乗車日単位のリース（Redisベースの分散ロック）
type RouteLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// RouteLockManager は在庫の読み書きを直列化する分散ロックを管理する。
// 取得はノンブロッキングで、失敗は即座に呼び出し元へ返る。
type RouteLockManager struct {
	client *redis.Client
}

func NewRouteLockManager(client *redis.Client) *RouteLockManager {
	return &RouteLockManager{client: client}
}

// LockKey は路線ID・乗車日からロックキーを生成する
func LockKey(routeID, travelDate string) string {
	return fmt.Sprintf("%s:%s", routeID, travelDate)
}

// Acquire はロックを取得する。保持者トークンにはUUIDを用い、
// TTL失効後に別の保持者が取得したリースを誤って解放しないようにする。
func (m *RouteLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (*RouteLock, error) {
	lockKey := fmt.Sprintf("seatlock:%s", key)
	lockValue := uuid.New().String()

	// SetNX を使用してロックを取得（キーが存在しない場合のみ設定）
	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return &RouteLock{
		client: m.client,
		key:    lockKey,
		value:  lockValue,
		ttl:    ttl,
	}, nil
}

// AcquireWithRetry はリトライ付きでロックを取得する。
// サービス本体は即時失敗を採用しており、バックオフを選ぶ呼び出し元向け。
func (m *RouteLockManager) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (*RouteLock, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		lock, err := m.Acquire(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		lastErr = err
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, lastErr
}

// Release はロックを解放する（Lua スクリプトで所有者確認と削除をアトミックに実行）
func (l *RouteLock) Release(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}

// Extend はロックの有効期限を延長する
func (l *RouteLock) Extend(ctx context.Context, ttl time.Duration) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("ロック延長に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	l.ttl = ttl
	return nil
}
