package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/inderhuila/sportsmed/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes exposes catalogs to all staff; changes are admin only.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleNurse, auth.RoleReceptionist))
	read.GET("/catalogs", h.ListCatalogs)
	read.GET("/catalogs/:name", h.GetCatalog)

	write := api.Group("", auth.RequireRole(auth.RoleAdmin))
	write.POST("/catalogs", h.CreateCatalog)
	write.POST("/catalogs/:name/items", h.AddItem)
	write.PUT("/catalog-items/:id", h.UpdateItem)
	write.DELETE("/catalog-items/:id", h.DeactivateItem)
}

func errorResponse(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrItemNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "catalog operation failed").SetInternal(err)
	}
}

func (h *Handler) ListCatalogs(c echo.Context) error {
	items, err := h.svc.ListCatalogs(c.Request().Context())
	if err != nil {
		return errorResponse(err)
	}
	if items == nil {
		items = []*Catalog{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetCatalog(c echo.Context) error {
	includeInactive, _ := strconv.ParseBool(c.QueryParam("include_inactive"))
	cat, err := h.svc.GetCatalogByName(c.Request().Context(), c.Param("name"), includeInactive)
	if err != nil {
		return errorResponse(err)
	}
	if cat.Items == nil {
		cat.Items = []*Item{}
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *Handler) CreateCatalog(c echo.Context) error {
	var cat Catalog
	if err := c.Bind(&cat); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&cat); err != nil {
		return err
	}
	if err := h.svc.CreateCatalog(c.Request().Context(), &cat); err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, cat)
}

func (h *Handler) AddItem(c echo.Context) error {
	var it Item
	if err := c.Bind(&it); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&it); err != nil {
		return err
	}
	if err := h.svc.AddItem(c.Request().Context(), c.Param("name"), &it); err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, it)
}

func (h *Handler) UpdateItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var u ItemUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&u); err != nil {
		return err
	}
	it, err := h.svc.UpdateItem(c.Request().Context(), id, u)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, it)
}

func (h *Handler) DeactivateItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeactivateItem(c.Request().Context(), id); err != nil {
		return errorResponse(err)
	}
	return c.NoContent(http.StatusNoContent)
}
