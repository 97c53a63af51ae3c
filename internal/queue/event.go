package queue

import "time"

// BookingConfirmedEvent は予約確定時に発行されるイベント
type BookingConfirmedEvent struct {
	BookingID   string    `json:"booking_id"`
	RouteID     string    `json:"route_id"`
	TravelDate  string    `json:"travel_date"`
	UserID      string    `json:"user_id"`
	SeatNumbers []string  `json:"seat_numbers"`
	TotalAmount int       `json:"total_amount"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// BookingCancelledEvent は予約キャンセル時に発行されるイベント
type BookingCancelledEvent struct {
	BookingID       string    `json:"booking_id"`
	RouteID         string    `json:"route_id"`
	UserID          string    `json:"user_id"`
	RefundAmount    int       `json:"refund_amount"`
	CancellationFee int       `json:"cancellation_fee"`
	CancelledAt     time.Time `json:"cancelled_at"`
}

// キュー名
const (
	QueueBookingConfirmed = "booking.confirmed"
	QueueBookingCancelled = "booking.cancelled"
)
