package handler

import (
	"context"

	"github.com/VishalSolanki135/Capsule-Cabs/internal/application"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/booking"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/inventory"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/route"
)

// SeatLockingServiceInterface は座席ロックサービスのインターフェース
type SeatLockingServiceInterface interface {
	LockSeats(ctx context.Context, routeID, travelDate string, seatNumbers []string, userID string, holdMinutes int) (*application.LockResult, error)
	ReleaseSeats(ctx context.Context, routeID, travelDate string, seatNumbers []string, userID string) (int, error)
	ExtendSeatLock(ctx context.Context, userID string, additionalMinutes int) (*application.ExtendResult, error)
	GetInventory(ctx context.Context, routeID, travelDate string) (*inventory.SeatInventory, error)
	InitializeForRoute(ctx context.Context, routeID, travelDate string) (*inventory.SeatInventory, error)
}

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error)
	CancelBooking(ctx context.Context, bookingID, reason string) (*booking.Booking, error)
	GetBooking(ctx context.Context, id string) (*booking.Booking, error)
	GetUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error)
}

// RouteServiceInterface は路線参照のインターフェース（route.Repositoryが満たす）
type RouteServiceInterface interface {
	GetByID(ctx context.Context, id string) (*route.Route, error)
	GetActive(ctx context.Context) ([]*route.Route, error)
}
