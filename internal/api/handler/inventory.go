package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/inventory"
)

// InventoryHandler は座席在庫・座席ロックのハンドラー
type InventoryHandler struct {
	locking SeatLockingServiceInterface
}

func NewInventoryHandler(ls SeatLockingServiceInterface) *InventoryHandler {
	return &InventoryHandler{locking: ls}
}

type LockSeatsRequest struct {
	SeatNumbers []string `json:"seat_numbers" validate:"required,min=1"`
	HoldMinutes int      `json:"hold_minutes" validate:"min=0"`
}

type LockSeatsResponse struct {
	LockedSeats []string  `json:"locked_seats"`
	LockExpiry  time.Time `json:"lock_expiry"`
}

type ReleaseSeatsRequest struct {
	SeatNumbers []string `json:"seat_numbers" validate:"required,min=1"`
}

type ReleaseSeatsResponse struct {
	ReleasedCount int `json:"released_count"`
}

type ExtendLockRequest struct {
	AdditionalMinutes int `json:"additional_minutes" validate:"min=0"`
}

type ExtendLockResponse struct {
	SeatNumbers []string  `json:"seat_numbers"`
	NewExpiry   time.Time `json:"new_expiry"`
}

type SeatResponse struct {
	SeatNumber string     `json:"seat_number"`
	Status     string     `json:"status"`
	Price      int        `json:"price"`
	SeatType   string     `json:"seat_type"`
	LockExpiry *time.Time `json:"lock_expiry,omitempty"`
}

type InventoryResponse struct {
	RouteID    string            `json:"route_id"`
	TravelDate string            `json:"travel_date"`
	Seats      []SeatResponse    `json:"seats"`
	Summary    inventory.Summary `json:"summary"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func toInventoryResponse(inv *inventory.SeatInventory) InventoryResponse {
	seats := make([]SeatResponse, len(inv.Seats))
	for i, s := range inv.Seats {
		seats[i] = SeatResponse{
			SeatNumber: s.SeatNumber,
			Status:     string(s.Status),
			Price:      s.Price,
			SeatType:   string(s.SeatType),
			LockExpiry: s.LockExpiry,
		}
	}
	return InventoryResponse{
		RouteID:    inv.RouteID,
		TravelDate: inv.TravelDate,
		Seats:      seats,
		Summary:    inv.Summary,
		UpdatedAt:  inv.UpdatedAt,
	}
}

// Lock は座席を一括ロックする
func (h *InventoryHandler) Lock(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req LockSeatsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	result, err := h.locking.LockSeats(
		c.Request().Context(),
		c.Param("route_id"), c.Param("date"),
		req.SeatNumbers, userID, req.HoldMinutes,
	)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, LockSeatsResponse{
		LockedSeats: result.LockedSeats,
		LockExpiry:  result.LockExpiry,
	})
}

// Release はロック済み座席を明示的に解放する
func (h *InventoryHandler) Release(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req ReleaseSeatsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	released, err := h.locking.ReleaseSeats(
		c.Request().Context(),
		c.Param("route_id"), c.Param("date"),
		req.SeatNumbers, userID,
	)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, ReleaseSeatsResponse{ReleasedCount: released})
}

// Extend はアクティブホールドの有効期限を延長する
func (h *InventoryHandler) Extend(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req ExtendLockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	result, err := h.locking.ExtendSeatLock(c.Request().Context(), userID, req.AdditionalMinutes)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, ExtendLockResponse{
		SeatNumbers: result.SeatNumbers,
		NewExpiry:   result.NewExpiry,
	})
}

// Get は在庫スナップショットを返す。未生成の在庫は路線テンプレートから
// 初期化して返す。
func (h *InventoryHandler) Get(c echo.Context) error {
	inv, err := h.locking.GetInventory(c.Request().Context(), c.Param("route_id"), c.Param("date"))
	if err != nil {
		if errors.Is(err, inventory.ErrInventoryNotFound) {
			inv, err = h.locking.InitializeForRoute(c.Request().Context(), c.Param("route_id"), c.Param("date"))
		}
		if err != nil {
			return toHTTPError(err)
		}
	}
	return c.JSON(http.StatusOK, toInventoryResponse(inv))
}
