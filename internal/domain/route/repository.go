package route

import "context"

// Repository は路線リポジトリのインターフェース（読み取り専用の外部コラボレーター）
type Repository interface {
	// GetByID はIDから路線を取得する
	GetByID(ctx context.Context, id string) (*Route, error)

	// GetActive は有効な路線一覧を取得する
	GetActive(ctx context.Context) ([]*Route, error)
}
