package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrHoldNotFound = errors.New("アクティブなホールドが見つかりません")
)

// HoldRecord はユーザーのアクティブな座席ホールドを表す。
// あくまで参照用の非正規化キャッシュであり、永続在庫が常に正。
type HoldRecord struct {
	RouteID     string    `json:"route_id"`
	TravelDate  string    `json:"travel_date"`
	SeatNumbers []string  `json:"seat_numbers"`
	LockExpiry  time.Time `json:"lock_expiry"`
}

// HoldsIndex はユーザーID単位のホールド索引を管理する
type HoldsIndex struct {
	client *redis.Client
}

// NewHoldsIndex は新しいHoldsIndexインスタンスを作成する
func NewHoldsIndex(client *redis.Client) *HoldsIndex {
	return &HoldsIndex{client: client}
}

// Get はユーザーのアクティブなホールドを取得する
func (h *HoldsIndex) Get(ctx context.Context, userID string) (*HoldRecord, error) {
	val, err := h.client.Get(ctx, h.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrHoldNotFound
		}
		return nil, fmt.Errorf("ホールド索引の取得に失敗: %w", err)
	}
	var record HoldRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, fmt.Errorf("ホールド索引の復元に失敗: %w", err)
	}
	return &record, nil
}

// Set はユーザーのホールドをTTL付きで記録する
func (h *HoldsIndex) Set(ctx context.Context, userID string, record *HoldRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("ホールド索引の変換に失敗: %w", err)
	}
	if err := h.client.Set(ctx, h.key(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("ホールド索引の保存に失敗: %w", err)
	}
	return nil
}

// Delete はユーザーのホールドを削除する
func (h *HoldsIndex) Delete(ctx context.Context, userID string) error {
	if err := h.client.Del(ctx, h.key(userID)).Err(); err != nil {
		return fmt.Errorf("ホールド索引の削除に失敗: %w", err)
	}
	return nil
}

func (h *HoldsIndex) key(userID string) string {
	return fmt.Sprintf("holds:user:%s", userID)
}
