package booking

import (
	"fmt"
	"math"
	"time"
)

// Status は予約の状態を表す
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no-show"
	StatusInTransit Status = "in-transit"
)

// PaymentStatus は支払いの状態を表す
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Passenger は乗客情報を表す
type Passenger struct {
	Name       string `json:"name"`
	Age        int    `json:"age"`
	Gender     string `json:"gender"`
	SeatNumber string `json:"seat_number"`
}

// Payment は支払い情報を表す。外部決済ゲートウェイの連携は対象外で、
// ここでは支払い状態の記録のみを扱う。
type Payment struct {
	Method        string        `json:"method"`
	Status        PaymentStatus `json:"status"`
	TotalAmount   int           `json:"total_amount"`
	TransactionID string        `json:"transaction_id,omitempty"`
}

// Cancellation はキャンセル結果を表す
type Cancellation struct {
	CancelledAt     time.Time `json:"cancelled_at"`
	RefundAmount    int       `json:"refund_amount"`
	CancellationFee int       `json:"cancellation_fee"`
	Reason          string    `json:"reason"`
}

// Modification は変更履歴の1レコードを表す。履歴は追記専用で、
// 編集・削除は行わない。
type Modification struct {
	Timestamp time.Time `json:"timestamp"`
	Field     string    `json:"field"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	Reason    string    `json:"reason"`
}

// Booking は予約エンティティを表す
type Booking struct {
	ID            string         `json:"id"`
	RouteID       string         `json:"route_id"`
	TravelDate    string         `json:"travel_date"`    // "2006-01-02"
	DepartureTime string         `json:"departure_time"` // "HH:MM"（作成時に路線から複製）
	UserID        string         `json:"user_id"`
	SeatNumbers   []string       `json:"seat_numbers"`
	Passengers    []Passenger    `json:"passengers"`
	Payment       Payment        `json:"payment"`
	Status        Status         `json:"status"`
	Cancellation  *Cancellation  `json:"cancellation,omitempty"`
	Modifications []Modification `json:"modifications"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// CancellationWindow はキャンセル受付の締切（出発前）
const CancellationWindow = 2 * time.Hour

// NewBookingID は予約IDを生成する（固定プレフィックス＋日付＋数値サフィックス）
func NewBookingID(date time.Time, suffix int) string {
	return fmt.Sprintf("SB%s%06d", date.Format("20060102"), suffix)
}

// NewBooking は新しい予約を作成する
func NewBooking(id, routeID, travelDate, departureTime, userID string, seatNumbers []string, passengers []Passenger, payment Payment) *Booking {
	now := time.Now()
	return &Booking{
		ID:            id,
		RouteID:       routeID,
		TravelDate:    travelDate,
		DepartureTime: departureTime,
		UserID:        userID,
		SeatNumbers:   seatNumbers,
		Passengers:    passengers,
		Payment:       payment,
		Status:        StatusConfirmed,
		Modifications: []Modification{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// DepartureAt は乗車日と出発時刻から出発日時を算出する
func (b *Booking) DepartureAt() (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04", b.TravelDate+" "+b.DepartureTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("出発日時の解析に失敗: %w", err)
	}
	return t, nil
}

// CanBeCancelled はキャンセル可能かを返す。
// confirmed状態かつ出発2時間前までに限る。
func (b *Booking) CanBeCancelled(now time.Time) error {
	if b.Status != StatusConfirmed {
		return ErrNotCancellable
	}
	departure, err := b.DepartureAt()
	if err != nil {
		return err
	}
	if departure.Sub(now) < CancellationWindow {
		return ErrCancellationWindowClosed
	}
	return nil
}

// FeeResult はキャンセル料計算の結果
type FeeResult struct {
	RefundAmount    int
	CancellationFee int
}

// CalculateCancellationFee は出発までの残り時間に応じた返金額・手数料を算出する。
// キャンセル不可の場合は全額没収（返金0）。
//
// 2時間の締切と4時間未満0%返金の段は重複しており、2〜4時間の予約は
// 「キャンセル可能だが返金0」となる。元仕様の挙動をそのまま保持している。
func (b *Booking) CalculateCancellationFee(now time.Time) FeeResult {
	total := b.Payment.TotalAmount
	if err := b.CanBeCancelled(now); err != nil {
		return FeeResult{RefundAmount: 0, CancellationFee: total}
	}

	departure, _ := b.DepartureAt()
	hours := departure.Sub(now).Hours()

	var refundPercent float64
	switch {
	case hours >= 48:
		refundPercent = 90
	case hours >= 24:
		refundPercent = 75
	case hours >= 4:
		refundPercent = 50
	default:
		refundPercent = 0
	}

	refund := int(math.Round(float64(total) * refundPercent / 100))
	return FeeResult{RefundAmount: refund, CancellationFee: total - refund}
}

// Cancel は予約をキャンセル状態に遷移させ、変更履歴を追記する
func (b *Booking) Cancel(fee FeeResult, reason string, now time.Time) error {
	if b.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	b.UpdateStatus(StatusCancelled, reason, now)
	b.Cancellation = &Cancellation{
		CancelledAt:     now,
		RefundAmount:    fee.RefundAmount,
		CancellationFee: fee.CancellationFee,
		Reason:          reason,
	}
	if fee.RefundAmount > 0 {
		b.Payment.Status = PaymentRefunded
	}
	return nil
}

// UpdateStatus は状態を更新し、変更履歴に追記する
func (b *Booking) UpdateStatus(newStatus Status, reason string, now time.Time) {
	b.Modifications = append(b.Modifications, Modification{
		Timestamp: now,
		Field:     "status",
		OldValue:  string(b.Status),
		NewValue:  string(newStatus),
		Reason:    reason,
	})
	b.Status = newStatus
	b.UpdatedAt = now
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.ID == "" {
		return ErrBookingIDRequired
	}
	if b.RouteID == "" {
		return ErrRouteIDRequired
	}
	if b.UserID == "" {
		return ErrUserIDRequired
	}
	if len(b.SeatNumbers) == 0 {
		return ErrSeatNumbersRequired
	}
	if len(b.Passengers) != len(b.SeatNumbers) {
		return ErrPassengerSeatMismatch
	}
	if b.Payment.TotalAmount < 0 {
		return ErrInvalidAmount
	}
	return nil
}
