package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/route"
)

// RouteHandler は路線参照のハンドラー
type RouteHandler struct {
	service RouteServiceInterface
}

func NewRouteHandler(s RouteServiceInterface) *RouteHandler {
	return &RouteHandler{service: s}
}

type RouteResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
	BaseFare      int    `json:"base_fare"`
	WindowPremium int    `json:"window_premium"`
	TotalSeats    int    `json:"total_seats"`
}

func toRouteResponse(r *route.Route) RouteResponse {
	return RouteResponse{
		ID:            r.ID,
		Name:          r.Name,
		Origin:        r.Origin,
		Destination:   r.Destination,
		DepartureTime: r.DepartureTime,
		ArrivalTime:   r.ArrivalTime,
		BaseFare:      r.BaseFare,
		WindowPremium: r.WindowPremium,
		TotalSeats:    len(r.SeatTemplate),
	}
}

// List は運行中の路線一覧を返す
func (h *RouteHandler) List(c echo.Context) error {
	routes, err := h.service.GetActive(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	resp := make([]RouteResponse, len(routes))
	for i, r := range routes {
		resp[i] = toRouteResponse(r)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetByID は路線を取得する
func (h *RouteHandler) GetByID(c echo.Context) error {
	r, err := h.service.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toRouteResponse(r))
}
