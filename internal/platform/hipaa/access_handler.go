package hipaa

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/inderhuila/sportsmed/internal/platform/auth"
	"github.com/inderhuila/sportsmed/pkg/pagination"
)

// AccessLister is satisfied by *AccessLogger.
type AccessLister interface {
	List(ctx context.Context, f AccessFilter, limit, offset int) ([]*AccessLog, int, error)
}

type AccessHandler struct {
	logs AccessLister
}

func NewAccessHandler(logs AccessLister) *AccessHandler {
	return &AccessHandler{logs: logs}
}

// RegisterRoutes exposes the access log to administrators only.
func (h *AccessHandler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleAdmin))
	g.GET("/access-log", h.List)
}

func (h *AccessHandler) List(c echo.Context) error {
	var f AccessFilter
	if v := c.QueryParam("athlete_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid athlete_id")
		}
		f.AthleteID = &id
	}
	f.UserID = c.QueryParam("user_id")
	if v := c.QueryParam("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be RFC3339")
		}
		f.Since = &t
	}

	pg := pagination.FromContext(c)
	items, total, err := h.logs.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read access log")
	}
	if items == nil {
		items = []*AccessLog{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithNext(c))
}
