package consent

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kinetic/kinetic/internal/platform/apperr"
	"github.com/kinetic/kinetic/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	patient := auth.RequireRole(auth.RolePatient)
	api.POST("/consents", h.Grant, patient)
	api.DELETE("/consents/:id", h.Revoke, patient)
	api.GET("/patients/:id/consents", h.ListForPatient, patient, auth.RequireSelf("id"))

	api.GET("/physios/:id/consented-episodes", h.ListConsentedEpisodes,
		auth.RequireRole(auth.RolePhysio), auth.RequireSelf("id"))
}

type grantRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	EpisodeID uuid.UUID `json:"episode_id"`
}

// actsFor reports whether the caller may act for patientID.
func actsFor(c echo.Context, patientID uuid.UUID) bool {
	ctx := c.Request().Context()
	return auth.HasRole(ctx, auth.RoleAdmin) || auth.ActorIDFromContext(ctx) == patientID.String()
}

func (h *Handler) Grant(c echo.Context) error {
	var req grantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !actsFor(c, req.PatientID) {
		return echo.NewHTTPError(http.StatusForbidden, "consent can only be granted by the patient")
	}
	out, err := h.svc.Grant(c.Request().Context(), req.PatientID, req.EpisodeID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) Revoke(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	existing, err := h.svc.Get(ctx, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if !actsFor(c, existing.PatientID) {
		return echo.NewHTTPError(http.StatusForbidden, "consent can only be revoked by the patient")
	}
	out, err := h.svc.Revoke(ctx, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ListForPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	out, err := h.svc.ListForPatient(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ListConsentedEpisodes(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	out, err := h.svc.AnonymizedEpisodes(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}
