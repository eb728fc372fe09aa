package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/inderhuila/sportsmed/internal/platform/auth"
)

const publicTokenPrefix = "/api/v1/public/tokens/"

// AuditEntry records who touched which clinical resource and how.
type AuditEntry struct {
	UserID       string
	UserRoles    []string
	ResourceType string
	ResourceID   string
	AthleteID    string
	Action       string // read, create, update, delete
	IPAddress    string
	UserAgent    string
	Path         string
	Method       string
	Timestamp    time.Time
	RequestID    string
	StatusCode   int
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(ctx context.Context, entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

// Audit logs every /api/v1 request after the handler ran, and hands the entry
// to recorder when one is given. Download tokens are secrets, so the token
// segment of public paths is redacted before anything is written.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isAuditablePath(req.URL.Path) {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			path := redactPath(req.URL.Path)
			ctx := req.Context()
			entry := AuditEntry{
				UserID:       auth.UserIDFromContext(ctx),
				UserRoles:    auth.RolesFromContext(ctx),
				ResourceType: extractResourceType(path),
				Action:       httpMethodToAction(req.Method),
				IPAddress:    c.RealIP(),
				UserAgent:    req.UserAgent(),
				Path:         path,
				Method:       req.Method,
				Timestamp:    time.Now().UTC(),
				StatusCode:   status,
			}
			entry.ResourceID = extractResourceID(path)
			entry.AthleteID = extractAthleteID(c, path)
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			if recorder != nil {
				if recErr := recorder.RecordAccess(ctx, entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource_type", entry.ResourceType).
				Str("resource_id", entry.ResourceID).
				Str("athlete_id", entry.AthleteID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("clinical_access")

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/api/v1/")
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// redactPath replaces the token in /api/v1/public/tokens/<token>/... with
// "{token}". The verify endpoint has no token in its path.
func redactPath(path string) string {
	if !strings.HasPrefix(path, publicTokenPrefix) {
		return path
	}
	rest := strings.TrimPrefix(path, publicTokenPrefix)
	tok, tail, _ := strings.Cut(rest, "/")
	if tok == "" || tok == "verify" {
		return path
	}
	if tail == "" {
		return publicTokenPrefix + "{token}"
	}
	return publicTokenPrefix + "{token}/" + tail
}

func apiSegments(path string) []string {
	rest := strings.TrimPrefix(path, "/api/v1/")
	rest = strings.TrimPrefix(rest, "public/")
	return strings.Split(strings.Trim(rest, "/"), "/")
}

// extractResourceType returns the first collection segment:
//   - /api/v1/athletes/123        -> athletes
//   - /api/v1/public/tokens/x     -> tokens
func extractResourceType(path string) string {
	segs := apiSegments(path)
	if len(segs) > 0 && segs[0] != "" {
		return segs[0]
	}
	return "unknown"
}

func extractResourceID(path string) string {
	segs := apiSegments(path)
	if len(segs) > 1 && isUUIDLike(segs[1]) {
		return segs[1]
	}
	return ""
}

// extractAthleteID looks for /athletes/<id> in the path, then ?athlete_id=.
func extractAthleteID(c echo.Context, path string) string {
	segs := apiSegments(path)
	for i := 0; i+1 < len(segs); i++ {
		if segs[i] == "athletes" && isUUIDLike(segs[i+1]) {
			return segs[i+1]
		}
	}
	if id := c.QueryParam("athlete_id"); isUUIDLike(id) {
		return id
	}
	return ""
}

func isUUIDLike(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
