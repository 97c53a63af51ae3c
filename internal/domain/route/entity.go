package route

import (
	"fmt"
	"time"
)

// SeatType は座席の種別を表す
type SeatType string

const (
	SeatTypeWindow  SeatType = "window"
	SeatTypeAisle   SeatType = "aisle"
	SeatTypeSleeper SeatType = "sleeper"
)

// SeatTemplateEntry は路線の座席テンプレートの1座席分を表す
type SeatTemplateEntry struct {
	SeatNumber string   `json:"seat_number"`
	SeatType   SeatType `json:"seat_type"`
	// IsBlocked は運行者が恒久的に販売停止にした座席
	IsBlocked bool `json:"is_blocked"`
}

// Route は路線エンティティを表す
type Route struct {
	ID            string
	Name          string
	Origin        string
	Destination   string
	DepartureTime string // "HH:MM"
	ArrivalTime   string // "HH:MM"
	BaseFare      int
	WindowPremium int
	SeatTemplate  []SeatTemplateEntry
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TotalSeats はテンプレート上の座席数を返す
func (r *Route) TotalSeats() int {
	return len(r.SeatTemplate)
}

// SeatPrice は座席種別に応じた価格を返す（基本運賃＋窓側プレミアム）
func (r *Route) SeatPrice(seatType SeatType) int {
	price := r.BaseFare
	if seatType == SeatTypeWindow {
		price += r.WindowPremium
	}
	return price
}

// DepartureAt は乗車日と出発時刻から出発日時を算出する
func (r *Route) DepartureAt(travelDate string) (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04", travelDate+" "+r.DepartureTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("出発日時の解析に失敗: %w", err)
	}
	return t, nil
}

// Validate は路線の検証を行う
func (r *Route) Validate() error {
	if r.ID == "" {
		return ErrRouteIDRequired
	}
	if len(r.SeatTemplate) == 0 {
		return ErrSeatTemplateRequired
	}
	if r.BaseFare < 0 {
		return ErrInvalidFare
	}
	if _, err := time.Parse("15:04", r.DepartureTime); err != nil {
		return ErrInvalidDepartureTime
	}
	return nil
}
