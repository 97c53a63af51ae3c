package booking

import "context"

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を作成する
	Create(ctx context.Context, b *Booking) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// GetByUserID はユーザーIDから予約一覧を取得する
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*Booking, error)

	// Update は予約を更新する
	Update(ctx context.Context, b *Booking) error

	// ExistsByID は予約IDの存在を確認する（ID衝突チェック用）
	ExistsByID(ctx context.Context, id string) (bool, error)
}
