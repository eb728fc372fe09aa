package athlete

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/inderhuila/sportsmed/internal/platform/auth"
	"github.com/inderhuila/sportsmed/internal/platform/blobstore"
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
	staff := auth.RequireRole(auth.RolePhysician, auth.RoleNurse, auth.RoleReceptionist)
	clinical := auth.RequireRole(auth.RolePhysician, auth.RoleNurse)

	read := api.Group("", staff)
	read.GET("/athletes", h.List)
	read.GET("/athletes/search", h.Search)
	read.GET("/athletes/by-document/:number", h.GetByDocument)
	read.GET("/athletes/:id", h.Get)

	write := api.Group("", staff)
	write.POST("/athletes", h.Create)
	write.PUT("/athletes/:id", h.Update)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/athletes/:id", h.Delete)

	vac := api.Group("", clinical)
	vac.POST("/athletes/:id/vaccines", h.AddVaccine)
	vac.GET("/athletes/:id/vaccines", h.ListVaccines)
	vac.GET("/athletes/:id/vaccines/:vid/file", h.DownloadVaccineFile)
	vac.DELETE("/athletes/:id/vaccines/:vid", h.DeleteVaccine)
}

func errorResponse(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrVaccineNotFound), errors.Is(err, ErrNoFile):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateDocument):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, blobstore.ErrBlobNotFound), errors.Is(err, blobstore.ErrFileTooLarge),
		errors.Is(err, blobstore.ErrInvalidContentType), errors.Is(err, blobstore.ErrMissingFileName),
		errors.Is(err, blobstore.ErrMissingFile):
		return blobstore.HTTPError(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "athlete operation failed").SetInternal(err)
	}
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var a Athlete
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
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) GetByDocument(c echo.Context) error {
	a, err := h.svc.GetByDocument(c.Request().Context(), c.Param("number"))
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return errorResponse(err)
	}
	if items == nil {
		items = []*Athlete{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithNext(c))
}

func (h *Handler) Search(c echo.Context) error {
	items, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return errorResponse(err)
	}
	if items == nil {
		items = []*Athlete{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var a Athlete
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&a); err != nil {
		return err
	}
	a.ID = id
	if err := h.svc.Update(c.Request().Context(), &a); err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, a)
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

// AddVaccine accepts either JSON or a multipart form whose optional "file"
// part is the certificate.
func (h *Handler) AddVaccine(c echo.Context) error {
	athleteID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	v := Vaccine{AthleteID: athleteID}
	var upload *blobstore.Upload
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		if err := vaccineFromForm(c, &v); err != nil {
			return err
		}
		if _, ferr := c.FormFile("file"); ferr == nil {
			upload, err = blobstore.FromMultipart(c, "file", blobstore.CertificateTypes)
			if err != nil {
				return errorResponse(err)
			}
			defer upload.Close()
		}
	} else {
		if err := c.Bind(&v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		v.AthleteID = athleteID
	}

	if err := h.svc.AddVaccine(c.Request().Context(), &v, upload); err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func vaccineFromForm(c echo.Context, v *Vaccine) error {
	v.VaccineName = c.FormValue("vaccine_name")
	v.Notes = c.FormValue("notes")
	for field, dst := range map[string]**dates.Date{
		"administered_on": &v.AdministeredOn,
		"next_dose_on":    &v.NextDoseOn,
	} {
		raw := c.FormValue(field)
		if raw == "" {
			continue
		}
		d, err := dates.ParseDate(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, field+": "+err.Error())
		}
		*dst = &d
	}
	return nil
}

func (h *Handler) ListVaccines(c echo.Context) error {
	athleteID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListVaccines(c.Request().Context(), athleteID)
	if err != nil {
		return errorResponse(err)
	}
	if items == nil {
		items = []*Vaccine{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DownloadVaccineFile(c echo.Context) error {
	athleteID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	vaccineID, err := parseID(c, "vid")
	if err != nil {
		return err
	}
	rc, meta, err := h.svc.OpenVaccineFile(c.Request().Context(), athleteID, vaccineID)
	if err != nil {
		return errorResponse(err)
	}
	return blobstore.Attachment(c, rc, meta)
}

func (h *Handler) DeleteVaccine(c echo.Context) error {
	athleteID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	vaccineID, err := parseID(c, "vid")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteVaccine(c.Request().Context(), athleteID, vaccineID); err != nil {
		return errorResponse(err)
	}
	return c.NoContent(http.StatusNoContent)
}
