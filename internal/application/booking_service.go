package application

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/booking"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/route"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/pkg/logger"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/pkg/metrics"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/queue"
)

// EventPublisher は予約イベントの発行先。nilの場合は発行しない。
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, event queue.BookingConfirmedEvent) error
	PublishBookingCancelled(ctx context.Context, event queue.BookingCancelledEvent) error
}

// BookingService は予約ライフサイクルを管理する
type BookingService struct {
	bookings  booking.Repository
	routes    route.Repository
	locking   *SeatLockingService
	publisher EventPublisher
	metrics   *metrics.Metrics

	now    func() time.Time
	randID func() int
}

func NewBookingService(
	br booking.Repository,
	rr route.Repository,
	ls *SeatLockingService,
	pub EventPublisher,
	m *metrics.Metrics,
) *BookingService {
	return &BookingService{
		bookings:  br,
		routes:    rr,
		locking:   ls,
		publisher: pub,
		metrics:   m,
		now:       time.Now,
		randID:    func() int { return rand.Intn(1000000) },
	}
}

// generateBookingID は予約IDを生成する。既存IDと衝突した場合は
// 新しいサフィックスで1回だけ再生成する。
func (s *BookingService) generateBookingID(ctx context.Context, travelDate time.Time) (string, error) {
	id := booking.NewBookingID(travelDate, s.randID())
	exists, err := s.bookings.ExistsByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("予約ID確認に失敗: %w", err)
	}
	if !exists {
		return id, nil
	}

	logger.Warn("予約IDが衝突したため再生成", zap.String("booking_id", id))
	id = booking.NewBookingID(travelDate, s.randID())
	exists, err = s.bookings.ExistsByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("予約ID確認に失敗: %w", err)
	}
	if exists {
		return "", ErrBookingIDGeneration
	}
	return id, nil
}

// CreateBookingInput は予約作成の入力
type CreateBookingInput struct {
	RouteID       string
	TravelDate    string
	UserID        string
	SeatNumbers   []string
	Passengers    []booking.Passenger
	PaymentMethod string
}

// CreateBooking はロック済み座席を予約確定し、予約レコードを作成する。
// 座席確定後に予約レコードの作成が失敗した場合は、確定済み座席を
// ベストエフォートで解放する補償処理を行う。
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*booking.Booking, error) {
	rt, err := s.routes.GetByID(ctx, input.RouteID)
	if err != nil {
		s.countBooking("create", "error")
		return nil, err
	}

	date, err := time.Parse("2006-01-02", input.TravelDate)
	if err != nil {
		s.countBooking("create", "error")
		return nil, ErrInvalidTravelDate
	}

	// 金額は在庫スナップショットの座席価格から算出
	inv, err := s.locking.GetInventory(ctx, input.RouteID, input.TravelDate)
	if err != nil {
		s.countBooking("create", "error")
		return nil, err
	}
	total := 0
	for _, num := range input.SeatNumbers {
		seat := inv.Seat(num)
		if seat == nil {
			s.countBooking("create", "error")
			return nil, fmt.Errorf("座席 %s が在庫に存在しません", num)
		}
		total += seat.Price
	}

	id, err := s.generateBookingID(ctx, date)
	if err != nil {
		s.countBooking("create", "error")
		return nil, err
	}

	b := booking.NewBooking(
		id, input.RouteID, input.TravelDate, rt.DepartureTime, input.UserID,
		input.SeatNumbers, input.Passengers,
		booking.Payment{Method: input.PaymentMethod, Status: booking.PaymentPaid, TotalAmount: total},
	)
	if err := b.Validate(); err != nil {
		s.countBooking("create", "error")
		return nil, err
	}

	if err := s.locking.ConfirmBooking(ctx, input.RouteID, input.TravelDate, input.SeatNumbers, input.UserID, id); err != nil {
		s.countBooking("create", "error")
		return nil, err
	}

	if err := s.bookings.Create(ctx, b); err != nil {
		// 補償: 確定済みにした座席を解放する。失敗はログのみで
		// 呼び出し元には元のエラーを返す。
		if _, cerr := s.locking.CancelBookingSeats(ctx, input.RouteID, input.TravelDate, id); cerr != nil {
			logger.Error("補償解放に失敗",
				zap.String("booking_id", id),
				zap.String("route_id", input.RouteID),
				zap.Error(cerr),
			)
		}
		s.countBooking("create", "error")
		return nil, fmt.Errorf("予約作成に失敗: %w", err)
	}

	s.countBooking("create", "success")
	s.publishConfirmed(ctx, b)
	return b, nil
}

// CancelBooking は予約をキャンセルし、座席を解放して返金額を確定する
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, reason string) (*booking.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		s.countBooking("cancel", "error")
		return nil, err
	}

	now := s.now()
	if err := b.CanBeCancelled(now); err != nil {
		s.countBooking("cancel", "error")
		return nil, err
	}
	fee := b.CalculateCancellationFee(now)

	// 在庫側の解放を先に行う。在庫ドキュメントが座席状態の唯一の正。
	if _, err := s.locking.CancelBookingSeats(ctx, b.RouteID, b.TravelDate, bookingID); err != nil {
		s.countBooking("cancel", "error")
		return nil, err
	}

	if err := b.Cancel(fee, reason, now); err != nil {
		s.countBooking("cancel", "error")
		return nil, err
	}
	if err := s.bookings.Update(ctx, b); err != nil {
		// 座席は解放済み。予約レコードの不整合はログに残して次回の
		// 再試行（二重キャンセルはエラー）に委ねる。
		logger.Error("キャンセル後の予約更新に失敗",
			zap.String("booking_id", bookingID),
			zap.Error(err),
		)
		s.countBooking("cancel", "error")
		return nil, fmt.Errorf("予約更新に失敗: %w", err)
	}

	s.countBooking("cancel", "success")
	s.publishCancelled(ctx, b)
	return b, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

func (s *BookingService) GetUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.bookings.GetByUserID(ctx, userID, limit, offset)
}

func (s *BookingService) countBooking(operation, status string) {
	if s.metrics != nil {
		s.metrics.BookingsTotal.WithLabelValues(operation, status).Inc()
	}
}

func (s *BookingService) publishConfirmed(ctx context.Context, b *booking.Booking) {
	if s.publisher == nil {
		return
	}
	event := queue.BookingConfirmedEvent{
		BookingID:   b.ID,
		RouteID:     b.RouteID,
		TravelDate:  b.TravelDate,
		UserID:      b.UserID,
		SeatNumbers: b.SeatNumbers,
		TotalAmount: b.Payment.TotalAmount,
		ConfirmedAt: b.CreatedAt,
	}
	if err := s.publisher.PublishBookingConfirmed(ctx, event); err != nil {
		logger.Warn("予約確定イベントの発行に失敗", zap.String("booking_id", b.ID), zap.Error(err))
	}
}

func (s *BookingService) publishCancelled(ctx context.Context, b *booking.Booking) {
	if s.publisher == nil || b.Cancellation == nil {
		return
	}
	event := queue.BookingCancelledEvent{
		BookingID:       b.ID,
		RouteID:         b.RouteID,
		UserID:          b.UserID,
		RefundAmount:    b.Cancellation.RefundAmount,
		CancellationFee: b.Cancellation.CancellationFee,
		CancelledAt:     b.Cancellation.CancelledAt,
	}
	if err := s.publisher.PublishBookingCancelled(ctx, event); err != nil {
		logger.Warn("予約キャンセルイベントの発行に失敗", zap.String("booking_id", b.ID), zap.Error(err))
	}
}

var _ EventPublisher = (*queue.Publisher)(nil)
