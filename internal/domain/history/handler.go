package history

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/inderhuila/sportsmed/internal/domain/athlete"
	"github.com/inderhuila/sportsmed/internal/platform/auth"
	"github.com/inderhuila/sportsmed/internal/platform/blobstore"
	"github.com/inderhuila/sportsmed/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinical := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleNurse))
	clinical.POST("/histories/complete", h.CreateComplete)
	clinical.GET("/histories", h.List)
	clinical.GET("/histories/:id", h.Get)
	clinical.PATCH("/histories/:id/status", h.UpdateStatus)
	clinical.GET("/histories/:id/bundle", h.GetBundle)
	clinical.GET("/histories/:id/pdf", h.DownloadPDF)
	clinical.POST("/histories/:id/files", h.UploadFile)
	clinical.GET("/histories/:id/files", h.ListFiles)
	clinical.GET("/histories/:id/files/:fid", h.DownloadFile)
	clinical.DELETE("/histories/:id/files/:fid", h.DeleteFile)
	clinical.GET("/athletes/:id/histories", h.ListByAthlete)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/histories/:id", h.Delete)
}

func errorResponse(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrFileNotFound), errors.Is(err, athlete.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, blobstore.ErrBlobNotFound), errors.Is(err, blobstore.ErrFileTooLarge),
		errors.Is(err, blobstore.ErrInvalidContentType), errors.Is(err, blobstore.ErrMissingFileName),
		errors.Is(err, blobstore.ErrMissingFile):
		return blobstore.HTTPError(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "clinical history operation failed").SetInternal(err)
	}
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

type completeResponse struct {
	History  *ClinicalHistory `json:"history"`
	Sections *Sections        `json:"sections"`
}

func (h *Handler) CreateComplete(c echo.Context) error {
	var req CompleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	hist, err := h.svc.CreateComplete(c.Request().Context(), &req)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, completeResponse{History: hist, Sections: &req.Sections})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	hist, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, hist)
}

func (h *Handler) List(c echo.Context) error {
	var f Filter
	if raw := c.QueryParam("athlete_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid athlete_id")
		}
		f.AthleteID = &id
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return errorResponse(err)
	}
	if items == nil {
		items = []*ClinicalHistory{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithNext(c))
}

func (h *Handler) ListByAthlete(c echo.Context) error {
	athleteID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByAthlete(c.Request().Context(), athleteID, pg.Limit, pg.Offset)
	if err != nil {
		return errorResponse(err)
	}
	if items == nil {
		items = []*ClinicalHistory{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithNext(c))
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var u StatusUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	hist, err := h.svc.UpdateStatus(c.Request().Context(), id, u)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, hist)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return errorResponse(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetBundle(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	b, err := h.svc.GetBundle(c.Request().Context(), id)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, b)
}

// PDFFileName is the attachment name of a rendered history.
func PDFFileName(documentNumber string) string {
	return fmt.Sprintf("historia_clinica_%s.pdf", documentNumber)
}

func (h *Handler) DownloadPDF(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	out, doc, err := h.svc.RenderPDF(c.Request().Context(), id)
	if err != nil {
		return errorResponse(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+PDFFileName(doc))
	return c.Blob(http.StatusOK, "application/pdf", out)
}

func (h *Handler) UploadFile(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	upload, err := blobstore.FromMultipart(c, "file", blobstore.AttachmentTypes)
	if err != nil {
		return errorResponse(err)
	}
	defer upload.Close()

	f, err := h.svc.AddFile(c.Request().Context(), id, c.FormValue("category"), upload)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) ListFiles(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListFiles(c.Request().Context(), id)
	if err != nil {
		return errorResponse(err)
	}
	if items == nil {
		items = []*File{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DownloadFile(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	fileID, err := parseID(c, "fid")
	if err != nil {
		return err
	}
	rc, meta, err := h.svc.OpenFile(c.Request().Context(), id, fileID)
	if err != nil {
		return errorResponse(err)
	}
	return blobstore.Attachment(c, rc, meta)
}

func (h *Handler) DeleteFile(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	fileID, err := parseID(c, "fid")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteFile(c.Request().Context(), id, fileID); err != nil {
		return errorResponse(err)
	}
	return c.NoContent(http.StatusNoContent)
}
