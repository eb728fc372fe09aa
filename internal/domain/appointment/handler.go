package appointment

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/inderhuila/sportsmed/internal/domain/athlete"
	"github.com/inderhuila/sportsmed/internal/platform/auth"
	"github.com/inderhuila/sportsmed/pkg/dates"
	"github.com/inderhuila/sportsmed/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleNurse, auth.RoleReceptionist))
	g.POST("/appointments", h.Create)
	g.GET("/appointments", h.List)
	g.GET("/appointments/today", h.Today)
	g.GET("/appointments/:id", h.Get)
	g.PUT("/appointments/:id", h.Update)
	g.DELETE("/appointments/:id", h.Delete)
	g.GET("/athletes/:id/appointments", h.ListByAthlete)
}

func errorResponse(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, athlete.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "appointment operation failed").SetInternal(err)
	}
}

func (h *Handler) Create(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&a); err != nil {
		return err
	}
	if err := h.svc.Create(c.Request().Context(), &a); err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = id
	if err := h.svc.Update(c.Request().Context(), &a); err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return errorResponse(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// List accepts date (a single day), from/to, period (today, week, month)
// and status_id.
func (h *Handler) List(c echo.Context) error {
	var f Filter
	if p := c.QueryParam("period"); p != "" {
		from, to, err := h.svc.Range(p)
		if err != nil {
			return errorResponse(err)
		}
		f.From, f.To = &from, &to
	}
	for _, q := range []struct {
		name string
		dst  []**dates.Date
	}{
		{"date", []**dates.Date{&f.From, &f.To}},
		{"from", []**dates.Date{&f.From}},
		{"to", []**dates.Date{&f.To}},
	} {
		raw := c.QueryParam(q.name)
		if raw == "" {
			continue
		}
		d, err := dates.ParseDate(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, q.name+": "+err.Error())
		}
		for _, dst := range q.dst {
			*dst = &d
		}
	}
	if raw := c.QueryParam("status_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status_id")
		}
		f.StatusID = &id
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return errorResponse(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithNext(c))
}

func (h *Handler) Today(c echo.Context) error {
	days, err := h.svc.Today(c.Request().Context())
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, days)
}

func (h *Handler) ListByAthlete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListByAthlete(c.Request().Context(), id)
	if err != nil {
		return errorResponse(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, items)
}
