package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/route"
)

type routeRow struct {
	ID            string          `db:"id"`
	Name          string          `db:"name"`
	Origin        string          `db:"origin"`
	Destination   string          `db:"destination"`
	DepartureTime string          `db:"departure_time"`
	ArrivalTime   string          `db:"arrival_time"`
	BaseFare      int             `db:"base_fare"`
	WindowPremium int             `db:"window_premium"`
	SeatTemplate  json.RawMessage `db:"seat_template"`
	IsActive      bool            `db:"is_active"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func (r *routeRow) toEntity() (*route.Route, error) {
	var template []route.SeatTemplateEntry
	if err := json.Unmarshal(r.SeatTemplate, &template); err != nil {
		return nil, fmt.Errorf("座席テンプレートの復元に失敗: %w", err)
	}
	return &route.Route{
		ID: r.ID, Name: r.Name, Origin: r.Origin, Destination: r.Destination,
		DepartureTime: r.DepartureTime, ArrivalTime: r.ArrivalTime,
		BaseFare: r.BaseFare, WindowPremium: r.WindowPremium,
		SeatTemplate: template, IsActive: r.IsActive,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}, nil
}

// RouteRepository は路線の読み取り専用リポジトリ
type RouteRepository struct{ db *sqlx.DB }

func NewRouteRepository(db *sqlx.DB) *RouteRepository {
	return &RouteRepository{db: db}
}

const routeColumns = `id, name, origin, destination, departure_time, arrival_time, base_fare, window_premium, seat_template, is_active, created_at, updated_at`

func (r *RouteRepository) GetByID(ctx context.Context, id string) (*route.Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes WHERE id = $1`
	var row routeRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, route.ErrRouteNotFound
		}
		return nil, fmt.Errorf("路線取得に失敗: %w", err)
	}
	return row.toEntity()
}

func (r *RouteRepository) GetActive(ctx context.Context) ([]*route.Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes WHERE is_active = true ORDER BY name`
	var rows []routeRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("路線一覧取得に失敗: %w", err)
	}
	routes := make([]*route.Route, len(rows))
	for i, row := range rows {
		rt, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		routes[i] = rt
	}
	return routes, nil
}

var _ route.Repository = (*RouteRepository)(nil)
