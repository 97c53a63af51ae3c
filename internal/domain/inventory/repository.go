package inventory

import (
	"context"
	"time"
)

// Key は在庫を一意に識別する（路線ID・乗車日）
type Key struct {
	RouteID    string
	TravelDate string
}

// Repository は座席在庫ドキュメントストアのインターフェース。
// 在庫ドキュメントが唯一の正であり、保存は常にドキュメント全体の置き換え。
type Repository interface {
	// Get は路線ID・乗車日から在庫を取得する
	Get(ctx context.Context, routeID, travelDate string) (*SeatInventory, error)

	// Create は新しい在庫ドキュメントを作成する
	Create(ctx context.Context, inv *SeatInventory) error

	// Save は在庫ドキュメント全体を保存する
	Save(ctx context.Context, inv *SeatInventory) error

	// FindKeysWithExpiredLocks は期限切れロックを含む在庫のキー一覧を返す
	FindKeysWithExpiredLocks(ctx context.Context, now time.Time) ([]Key, error)

	// DeleteByRoute は路線削除に伴い当該路線の在庫を全削除する
	DeleteByRoute(ctx context.Context, routeID string) error
}
