package blobstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Allowed content types for documents attached to athletes and histories.
var (
	CertificateTypes = map[string]bool{
		"application/pdf": true,
		"image/jpeg":      true,
		"image/png":       true,
	}
	AttachmentTypes = map[string]bool{
		"application/pdf": true,
		"image/jpeg":      true,
		"image/png":       true,
		"text/plain":      true,
	}
)

// Upload is a multipart file ready to be stored.
type Upload struct {
	Meta    Metadata
	Content io.Reader
	closer  io.Closer
}

func (u *Upload) Close() error {
	if u.closer == nil {
		return nil
	}
	return u.closer.Close()
}

// FromMultipart opens the form file under field and checks its content type
// against allowed. The type is sniffed from the first 512 bytes, so a renamed
// executable is not accepted as a PDF. Callers must Close the result.
func FromMultipart(c echo.Context, field string, allowed map[string]bool) (*Upload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%w: form field %q", ErrMissingFile, field)
	}
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open uploaded file: %w", err)
	}

	br := bufio.NewReader(src)
	head, _ := br.Peek(512)
	contentType := sniff(head, fh.Header.Get(echo.HeaderContentType))
	if !allowed[contentType] {
		src.Close()
		return nil, fmt.Errorf("%w: %s", ErrInvalidContentType, contentType)
	}

	return &Upload{
		Meta:    Metadata{FileName: fh.Filename, ContentType: contentType},
		Content: br,
		closer:  src,
	}, nil
}

func sniff(head []byte, declared string) string {
	detected := http.DetectContentType(head)
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	// text/plain is what DetectContentType reports for most unknown text.
	if detected == "text/plain" && declared != "" {
		if i := strings.IndexByte(declared, ';'); i >= 0 {
			declared = declared[:i]
		}
		if strings.TrimSpace(declared) == "text/plain" {
			return "text/plain"
		}
	}
	return detected
}

// HTTPError maps store errors to echo errors.
func HTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrBlobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	case errors.Is(err, ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, ErrMissingFileName), errors.Is(err, ErrMissingFile):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "file storage error")
	}
}

// Attachment streams rc with a Content-Disposition attachment header.
func Attachment(c echo.Context, rc io.ReadCloser, meta *Metadata) error {
	defer rc.Close()
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s"`, strings.ReplaceAll(meta.FileName, `"`, "")))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}
