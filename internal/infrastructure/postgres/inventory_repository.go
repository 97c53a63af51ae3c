package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/inventory"
)

type inventoryRow struct {
	RouteID    string          `db:"route_id"`
	TravelDate string          `db:"travel_date"`
	Doc        json.RawMessage `db:"doc"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

// InventoryRepository は座席在庫をJSONBドキュメントとして保存する。
// 保存は常にドキュメント全体の置き換えで、部分更新は行わない。
type InventoryRepository struct{ db *sqlx.DB }

func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) Get(ctx context.Context, routeID, travelDate string) (*inventory.SeatInventory, error) {
	query := `SELECT route_id, travel_date, doc, created_at, updated_at FROM seat_inventories WHERE route_id = $1 AND travel_date = $2`
	var row inventoryRow
	if err := r.db.GetContext(ctx, &row, query, routeID, travelDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrInventoryNotFound
		}
		return nil, fmt.Errorf("在庫取得に失敗: %w", err)
	}
	var inv inventory.SeatInventory
	if err := json.Unmarshal(row.Doc, &inv); err != nil {
		return nil, fmt.Errorf("在庫ドキュメントの復元に失敗: %w", err)
	}
	return &inv, nil
}

func (r *InventoryRepository) Create(ctx context.Context, inv *inventory.SeatInventory) error {
	doc, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("在庫ドキュメントの変換に失敗: %w", err)
	}
	query := `INSERT INTO seat_inventories (route_id, travel_date, doc, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, inv.RouteID, inv.TravelDate, doc, inv.CreatedAt, inv.UpdatedAt); err != nil {
		return fmt.Errorf("在庫作成に失敗: %w", err)
	}
	return nil
}

func (r *InventoryRepository) Save(ctx context.Context, inv *inventory.SeatInventory) error {
	doc, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("在庫ドキュメントの変換に失敗: %w", err)
	}
	query := `UPDATE seat_inventories SET doc = $1, updated_at = $2 WHERE route_id = $3 AND travel_date = $4`
	result, err := r.db.ExecContext(ctx, query, doc, inv.UpdatedAt, inv.RouteID, inv.TravelDate)
	if err != nil {
		return fmt.Errorf("在庫保存に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return inventory.ErrInventoryNotFound
	}
	return nil
}

// FindKeysWithExpiredLocks は期限切れロックを含む在庫のキーをJSONB走査で抽出する
func (r *InventoryRepository) FindKeysWithExpiredLocks(ctx context.Context, now time.Time) ([]inventory.Key, error) {
	query := `
		SELECT route_id, travel_date FROM seat_inventories
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(doc->'seats') AS s
			WHERE s->>'status' = 'locked'
			  AND (s->>'lock_expiry')::timestamptz < $1
		)`
	var rows []struct {
		RouteID    string `db:"route_id"`
		TravelDate string `db:"travel_date"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("期限切れロックの検索に失敗: %w", err)
	}
	keys := make([]inventory.Key, len(rows))
	for i, row := range rows {
		keys[i] = inventory.Key{RouteID: row.RouteID, TravelDate: row.TravelDate}
	}
	return keys, nil
}

func (r *InventoryRepository) DeleteByRoute(ctx context.Context, routeID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM seat_inventories WHERE route_id = $1`, routeID); err != nil {
		return fmt.Errorf("在庫削除に失敗: %w", err)
	}
	return nil
}

var _ inventory.Repository = (*InventoryRepository)(nil)
