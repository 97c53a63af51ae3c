package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/booking"
)

type bookingRow struct {
	ID        string          `db:"id"`
	UserID    string          `db:"user_id"`
	Doc       json.RawMessage `db:"doc"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r *bookingRow) toEntity() (*booking.Booking, error) {
	var b booking.Booking
	if err := json.Unmarshal(r.Doc, &b); err != nil {
		return nil, fmt.Errorf("予約ドキュメントの復元に失敗: %w", err)
	}
	return &b, nil
}

// BookingRepository は予約をJSONBドキュメントとして保存する
type BookingRepository struct{ db *sqlx.DB }

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	doc, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("予約ドキュメントの変換に失敗: %w", err)
	}
	query := `INSERT INTO bookings (id, user_id, doc, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, b.ID, b.UserID, doc, b.CreatedAt, b.UpdatedAt); err != nil {
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	query := `SELECT id, user_id, doc, created_at, updated_at FROM bookings WHERE id = $1`
	var row bookingRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity()
}

func (r *BookingRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	query := `SELECT id, user_id, doc, created_at, updated_at FROM bookings WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	bookings := make([]*booking.Booking, len(rows))
	for i, row := range rows {
		b, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		bookings[i] = b
	}
	return bookings, nil
}

func (r *BookingRepository) Update(ctx context.Context, b *booking.Booking) error {
	doc, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("予約ドキュメントの変換に失敗: %w", err)
	}
	query := `UPDATE bookings SET doc = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, doc, b.UpdatedAt, b.ID)
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return booking.ErrBookingNotFound
	}
	return nil
}

func (r *BookingRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("予約ID確認に失敗: %w", err)
	}
	return exists, nil
}

var _ booking.Repository = (*BookingRepository)(nil)
