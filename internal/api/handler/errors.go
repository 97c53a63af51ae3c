package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/VishalSolanki135/Capsule-Cabs/internal/application"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/booking"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/inventory"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/route"
)

// APIError はドメインエラーの構造化レスポンス
type APIError struct {
	Error     string   `json:"error"`
	Code      string   `json:"code"`
	Seats     []string `json:"seats,omitempty"`
	Retryable bool     `json:"retryable,omitempty"`
}

// toHTTPError はドメイン・アプリケーション層のエラーをHTTPエラーに変換する
func toHTTPError(err error) error {
	var unavailable *inventory.SeatUnavailableError
	switch {
	case errors.As(err, &unavailable):
		return echo.NewHTTPError(http.StatusConflict, APIError{
			Error: unavailable.Error(),
			Code:  "seat_unavailable",
			Seats: unavailable.Seats,
		})
	case errors.Is(err, application.ErrLockAcquisitionFailed):
		return echo.NewHTTPError(http.StatusConflict, APIError{
			Error:     err.Error(),
			Code:      "lock_conflict",
			Retryable: true,
		})
	case errors.Is(err, inventory.ErrOwnershipMismatch),
		errors.Is(err, inventory.ErrLockExpired):
		return echo.NewHTTPError(http.StatusConflict, APIError{
			Error: err.Error(),
			Code:  "ownership_mismatch",
		})
	case errors.Is(err, booking.ErrCancellationWindowClosed),
		errors.Is(err, booking.ErrNotCancellable),
		errors.Is(err, booking.ErrAlreadyCancelled):
		return echo.NewHTTPError(http.StatusConflict, APIError{
			Error: err.Error(),
			Code:  "cancellation_rejected",
		})
	case errors.Is(err, inventory.ErrInventoryNotFound),
		errors.Is(err, route.ErrRouteNotFound),
		errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, inventory.ErrBookingSeatsNotFound):
		return echo.NewHTTPError(http.StatusNotFound, APIError{
			Error: err.Error(),
			Code:  "not_found",
		})
	case errors.Is(err, application.ErrNoActiveHold):
		return echo.NewHTTPError(http.StatusNotFound, APIError{
			Error: err.Error(),
			Code:  "no_active_hold",
		})
	case errors.Is(err, application.ErrInvalidTravelDate),
		errors.Is(err, inventory.ErrSeatNumbersRequired),
		errors.Is(err, booking.ErrSeatNumbersRequired),
		errors.Is(err, booking.ErrPassengerSeatMismatch),
		errors.Is(err, booking.ErrInvalidAmount):
		return echo.NewHTTPError(http.StatusBadRequest, APIError{
			Error: err.Error(),
			Code:  "validation_error",
		})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, APIError{
			Error: err.Error(),
			Code:  "internal_error",
		})
	}
}
