package athlete

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inderhuila/sportsmed/internal/platform/validate"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _, _ := newTestService()
	e := echo.New()
	e.Validator = validate.New()
	return NewHandler(svc), e
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "expected *echo.HTTPError, got %v", err)
	return he.Code
}

func athleteJSON(doc string) string {
	return `{"document_type_id":"` + uuid.NewString() + `","document_number":"` + doc + `",` +
		`"first_names":"Andrés","last_names":"Suárez","birth_date":"2003-11-02",` +
		`"sex_id":"` + uuid.NewString() + `","status_id":"` + uuid.NewString() + `","email":"andres@example.com"}`
}

func TestHandler_Create(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(athleteJSON("1080000001")))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Create(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var got Athlete
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "2003-11-02", got.BirthDate.String())

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(athleteJSON("1080000001")))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	err := h.Create(e.NewContext(req, httptest.NewRecorder()))
	assert.Equal(t, http.StatusConflict, httpCode(t, err))
}

func TestHandler_Create_Invalid(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"first_names":"A","email":"bad"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	err := h.Create(e.NewContext(req, httptest.NewRecorder()))
	assert.Equal(t, http.StatusBadRequest, httpCode(t, err))
}

func TestHandler_Get(t *testing.T) {
	h, e := newTestHandler()
	a := validAthlete(t, "1080000002")
	require.NoError(t, h.svc.Create(context.Background(), a))

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	assert.Equal(t, http.StatusNotFound, httpCode(t, h.Get(c)))

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("abc")
	assert.Equal(t, http.StatusBadRequest, httpCode(t, h.Get(c)))
}

func TestHandler_SearchAndList(t *testing.T) {
	h, e := newTestHandler()
	require.NoError(t, h.svc.Create(context.Background(), validAthlete(t, "1080000003")))

	err := h.Search(e.NewContext(httptest.NewRequest(http.MethodGet, "/?q=x", nil), httptest.NewRecorder()))
	assert.Equal(t, http.StatusBadRequest, httpCode(t, err))

	rec := httptest.NewRecorder()
	require.NoError(t, h.Search(e.NewContext(httptest.NewRequest(http.MethodGet, "/?q=laura", nil), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1080000003")

	rec = httptest.NewRecorder()
	require.NoError(t, h.List(e.NewContext(httptest.NewRequest(http.MethodGet, "/athletes?limit=5", nil), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
}

func TestHandler_VaccineUploadAndDownload(t *testing.T) {
	h, e := newTestHandler()
	a := validAthlete(t, "1080000004")
	require.NoError(t, h.svc.Create(context.Background(), a))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("vaccine_name", "Hepatitis B"))
	require.NoError(t, mw.WriteField("administered_on", "2025-02-01"))
	fw, err := mw.CreateFormFile("file", "hepb.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4\n%test certificate"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	require.NoError(t, h.AddVaccine(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var v Vaccine
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	require.NotNil(t, v.FileID)
	assert.Equal(t, "application/pdf", v.ContentType)
	require.NotNil(t, v.AdministeredOn)
	assert.Equal(t, "2025-02-01", v.AdministeredOn.String())

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id", "vid")
	c.SetParamValues(a.ID.String(), v.ID.String())
	require.NoError(t, h.DownloadVaccineFile(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "hepb.pdf")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
}

func TestHandler_VaccineUpload_RejectsType(t *testing.T) {
	h, e := newTestHandler()
	a := validAthlete(t, "1080000005")
	require.NoError(t, h.svc.Create(context.Background(), a))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("vaccine_name", "X"))
	fw, err := mw.CreateFormFile("file", "run.exe")
	require.NoError(t, err)
	_, err = fw.Write([]byte("MZ\x90\x00\x03\x00\x00\x00\x04\x00\x00\x00\xff\xff"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	assert.Equal(t, http.StatusUnsupportedMediaType, httpCode(t, h.AddVaccine(c)))
}
