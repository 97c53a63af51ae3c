package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/VishalSolanki135/Capsule-Cabs/internal/application"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/booking"
)

// BookingHandler は予約ライフサイクルのハンドラー
type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

type PassengerRequest struct {
	Name       string `json:"name" validate:"required"`
	Age        int    `json:"age" validate:"min=0"`
	Gender     string `json:"gender"`
	SeatNumber string `json:"seat_number" validate:"required"`
}

type CreateBookingRequest struct {
	RouteID       string             `json:"route_id" validate:"required"`
	TravelDate    string             `json:"travel_date" validate:"required"`
	SeatNumbers   []string           `json:"seat_numbers" validate:"required,min=1"`
	Passengers    []PassengerRequest `json:"passengers" validate:"required,min=1,dive"`
	PaymentMethod string             `json:"payment_method" validate:"required"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

type CancellationResponse struct {
	CancelledAt     time.Time `json:"cancelled_at"`
	RefundAmount    int       `json:"refund_amount"`
	CancellationFee int       `json:"cancellation_fee"`
	Reason          string    `json:"reason,omitempty"`
}

type BookingResponse struct {
	ID            string                `json:"id"`
	RouteID       string                `json:"route_id"`
	TravelDate    string                `json:"travel_date"`
	DepartureTime string                `json:"departure_time"`
	UserID        string                `json:"user_id"`
	SeatNumbers   []string              `json:"seat_numbers"`
	Passengers    []booking.Passenger   `json:"passengers"`
	Status        string                `json:"status"`
	PaymentStatus string                `json:"payment_status"`
	TotalAmount   int                   `json:"total_amount"`
	Cancellation  *CancellationResponse `json:"cancellation,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	resp := BookingResponse{
		ID:            b.ID,
		RouteID:       b.RouteID,
		TravelDate:    b.TravelDate,
		DepartureTime: b.DepartureTime,
		UserID:        b.UserID,
		SeatNumbers:   b.SeatNumbers,
		Passengers:    b.Passengers,
		Status:        string(b.Status),
		PaymentStatus: string(b.Payment.Status),
		TotalAmount:   b.Payment.TotalAmount,
		CreatedAt:     b.CreatedAt,
	}
	if b.Cancellation != nil {
		resp.Cancellation = &CancellationResponse{
			CancelledAt:     b.Cancellation.CancelledAt,
			RefundAmount:    b.Cancellation.RefundAmount,
			CancellationFee: b.Cancellation.CancellationFee,
			Reason:          b.Cancellation.Reason,
		}
	}
	return resp
}

// Create はロック済み座席から予約を作成する
func (h *BookingHandler) Create(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	passengers := make([]booking.Passenger, len(req.Passengers))
	for i, p := range req.Passengers {
		passengers[i] = booking.Passenger{
			Name: p.Name, Age: p.Age, Gender: p.Gender, SeatNumber: p.SeatNumber,
		}
	}

	b, err := h.service.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		RouteID:       req.RouteID,
		TravelDate:    req.TravelDate,
		UserID:        userID,
		SeatNumbers:   req.SeatNumbers,
		Passengers:    passengers,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

type ConfirmSeatsRequest struct {
	SeatNumbers   []string           `json:"seat_numbers" validate:"required,min=1"`
	Passengers    []PassengerRequest `json:"passengers" validate:"required,min=1,dive"`
	PaymentMethod string             `json:"payment_method" validate:"required"`
}

// Confirm は在庫パス配下の確定エンドポイント。路線・乗車日をパスから
// 取り、予約作成として処理する。
func (h *BookingHandler) Confirm(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req ConfirmSeatsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	passengers := make([]booking.Passenger, len(req.Passengers))
	for i, p := range req.Passengers {
		passengers[i] = booking.Passenger{
			Name: p.Name, Age: p.Age, Gender: p.Gender, SeatNumber: p.SeatNumber,
		}
	}

	b, err := h.service.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		RouteID:       c.Param("route_id"),
		TravelDate:    c.Param("date"),
		UserID:        userID,
		SeatNumbers:   req.SeatNumbers,
		Passengers:    passengers,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// GetByID は予約を取得する
func (h *BookingHandler) GetByID(c echo.Context) error {
	b, err := h.service.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// GetUserBookings はユーザーの予約一覧を取得する
func (h *BookingHandler) GetUserBookings(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	bookings, err := h.service.GetUserBookings(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return toHTTPError(err)
	}
	resp := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = toBookingResponse(b)
	}
	return c.JSON(http.StatusOK, resp)
}

// Cancel は予約をキャンセルし、返金額を確定する
func (h *BookingHandler) Cancel(c echo.Context) error {
	var req CancelBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	b, err := h.service.CancelBooking(c.Request().Context(), c.Param("id"), req.Reason)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}
