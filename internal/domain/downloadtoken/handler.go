package downloadtoken

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/inderhuila/sportsmed/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts issuance on the authenticated API.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleNurse))
	staff.POST("/tokens", h.Issue)
}

// RegisterPublicRoutes mounts the routes used by the download page. verify
// wraps the verification endpoint, typically with a rate limiter.
func (h *Handler) RegisterPublicRoutes(public *echo.Group, verify ...echo.MiddlewareFunc) {
	public.POST("/tokens/verify", h.Verify, verify...)
	public.GET("/tokens/:token/download", h.Download)
	public.GET("/tokens/:token/status", h.Status)
}

func errorResponse(err error) error {
	var (
		invalid   *InvalidCredentialError
		forbidden *ForbiddenError
		failure   *ServiceFailureError
	)
	switch {
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusUnauthorized, map[string]interface{}{
			"message":            ErrInvalidCredential.Error(),
			"attempts_remaining": invalid.AttemptsRemaining,
		})
	case errors.As(err, &forbidden):
		return echo.NewHTTPError(http.StatusForbidden, forbidden.Reason)
	case errors.As(err, &failure):
		return echo.NewHTTPError(http.StatusInternalServerError, "the document could not be generated").SetInternal(err)
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrExpired):
		return echo.NewHTTPError(http.StatusGone, err.Error())
	case errors.Is(err, ErrTooManyAttempts):
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "download link operation failed").SetInternal(err)
	}
}

func (h *Handler) Issue(c echo.Context) error {
	var req IssueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	out, err := h.svc.Issue(c.Request().Context(), req)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, out)
}

type verifyRequest struct {
	Token          string `json:"token" validate:"required,max=64"`
	DocumentNumber string `json:"document_number" validate:"required,max=30"`
}

type verifyResponse struct {
	Verified  bool   `json:"verified"`
	HistoryID string `json:"history_id"`
}

func (h *Handler) Verify(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	id, err := h.svc.Verify(c.Request().Context(), req.Token, req.DocumentNumber)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, verifyResponse{Verified: true, HistoryID: id.String()})
}

func (h *Handler) Download(c echo.Context) error {
	doc, err := h.svc.Download(c.Request().Context(), c.Param("token"))
	if err != nil {
		return errorResponse(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+doc.FileName)
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, "application/pdf", doc.Content)
}

func (h *Handler) Status(c echo.Context) error {
	st, err := h.svc.Status(c.Request().Context(), c.Param("token"))
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, st)
}
