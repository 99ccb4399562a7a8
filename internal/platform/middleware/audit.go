package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/kinetic/kinetic/internal/platform/auth"
)

// AccessEntry records one read or write of patient-identifiable data.
type AccessEntry struct {
	Time       time.Time
	RequestID  string
	ActorID    string
	Roles      []string
	Resource   string
	ResourceID string
	Action     string
	Method     string
	Route      string
	Status     int
}

type AccessRecorder interface {
	RecordAccess(entry AccessEntry) error
}

type AccessRecorderFunc func(entry AccessEntry) error

func (f AccessRecorderFunc) RecordAccess(entry AccessEntry) error { return f(entry) }

// patientDataResources are the first path segments under /api/v1 whose
// responses carry clinical content.
var patientDataResources = map[string]bool{
	"episodes":            true,
	"patients":            true,
	"consents":            true,
	"continuity-consents": true,
	"summaries":           true,
	"transitions":         true,
	"physios":             true,
}

// Audit logs every /api/v1 request that touches patient data. Denied
// requests are logged too, at warn level.
func Audit(logger zerolog.Logger, recorders ...AccessRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			resource, id := splitResource(req.URL.Path)
			if !patientDataResources[resource] {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = statusOf(err)
			}
			ctx := req.Context()
			rid, _ := c.Get("request_id").(string)
			entry := AccessEntry{
				Time:       time.Now().UTC(),
				RequestID:  rid,
				ActorID:    auth.ActorIDFromContext(ctx),
				Roles:      auth.RolesFromContext(ctx),
				Resource:   resource,
				ResourceID: id,
				Action:     actionFor(req.Method),
				Method:     req.Method,
				Route:      c.Path(),
				Status:     status,
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).Str("request_id", rid).Msg("failed to record access")
				}
			}

			evt := logger.Info()
			if status == http.StatusForbidden || status == http.StatusUnauthorized {
				evt = logger.Warn()
			}
			evt.
				Str("type", "patient_data_access").
				Str("request_id", entry.RequestID).
				Str("actor_id", entry.ActorID).
				Strs("roles", entry.Roles).
				Str("resource", entry.Resource).
				Str("resource_id", entry.ResourceID).
				Str("action", entry.Action).
				Str("route", entry.Route).
				Int("status", entry.Status).
				Msg("access")

			return err
		}
	}
}

func splitResource(path string) (resource, id string) {
	rest, ok := strings.CutPrefix(path, "/api/v1/")
	if !ok {
		return "", ""
	}
	parts := strings.SplitN(rest, "/", 3)
	resource = parts[0]
	if len(parts) > 1 {
		id = parts[1]
	}
	return resource, id
}

func actionFor(method string) string {
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
