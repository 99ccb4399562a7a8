package continuity

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
	physio := auth.RequireRole(auth.RolePhysio)
	patient := auth.RequireRole(auth.RolePatient)
	self := auth.RequireSelf("id")

	api.POST("/transitions", h.Initiate, physio)
	api.POST("/transitions/:id/decline", h.Decline, physio)
	api.GET("/physios/:id/transitions", h.ListForPhysio, physio, self)
	api.GET("/physios/:id/summaries/:sid", h.GetSummary, physio, self)
	api.POST("/summaries/:id/approve", h.Approve, physio)
	api.POST("/summaries/:id/release", h.Release, physio)

	api.POST("/transitions/:id/continuity-consent", h.GrantConsent, patient)
	api.DELETE("/continuity-consents/:id", h.RevokeConsent, patient)

	api.POST("/gps/:id/referrals", h.CreateGPReferral, auth.RequireRole(auth.RoleGP), self)
}

// isActor reports whether the caller is id, or an admin.
func isActor(c echo.Context, id uuid.UUID) bool {
	ctx := c.Request().Context()
	return auth.HasRole(ctx, auth.RoleAdmin) || auth.ActorIDFromContext(ctx) == id.String()
}

func actorID(c echo.Context) uuid.UUID {
	id, err := uuid.Parse(auth.ActorIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func parseParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) Initiate(c echo.Context) error {
	var req InitiateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !auth.HasRole(c.Request().Context(), auth.RoleAdmin) {
		req.RequestedBy = actorID(c)
	}
	t, err := h.svc.InitiateTransition(c.Request().Context(), req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) Decline(c echo.Context) error {
	id, err := parseParam(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	t, err := h.svc.GetTransition(ctx, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if !isActor(c, t.OriginPhysioID) {
		return echo.NewHTTPError(http.StatusForbidden, "only the origin physio may decline a transition")
	}
	out, err := h.svc.DeclineTransition(ctx, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ListForPhysio(c echo.Context) error {
	id, err := parseParam(c, "id")
	if err != nil {
		return err
	}
	out, err := h.svc.ListTransitionsForPhysio(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetSummary(c echo.Context) error {
	physioID, err := parseParam(c, "id")
	if err != nil {
		return err
	}
	summaryID, err := parseParam(c, "sid")
	if err != nil {
		return err
	}
	out, err := h.svc.GetSummaryForPhysio(c.Request().Context(), physioID, summaryID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

type approveRequest struct {
	PhysioAnnotations *string `json:"physio_annotations"`
}

// ownSummary loads a summary and checks the caller is its origin physio.
func (h *Handler) ownSummary(c echo.Context) (uuid.UUID, error) {
	id, err := parseParam(c, "id")
	if err != nil {
		return uuid.Nil, err
	}
	sum, err := h.svc.GetSummary(c.Request().Context(), id)
	if err != nil {
		return uuid.Nil, apperr.ToHTTP(err)
	}
	if !isActor(c, sum.OriginPhysioID) {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "only the origin physio may review this summary")
	}
	return id, nil
}

func (h *Handler) Approve(c echo.Context) error {
	id, err := h.ownSummary(c)
	if err != nil {
		return err
	}
	var req approveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.ApproveSummary(c.Request().Context(), id, req.PhysioAnnotations)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Release(c echo.Context) error {
	id, err := h.ownSummary(c)
	if err != nil {
		return err
	}
	out, err := h.svc.ReleaseSummary(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

type grantRequest struct {
	PatientID       uuid.UUID `json:"patient_id"`
	OriginEpisodeID uuid.UUID `json:"origin_episode_id"`
}

func (h *Handler) GrantConsent(c echo.Context) error {
	id, err := parseParam(c, "id")
	if err != nil {
		return err
	}
	var req grantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID == uuid.Nil {
		req.PatientID = actorID(c)
	}
	if !isActor(c, req.PatientID) {
		return echo.NewHTTPError(http.StatusForbidden, "consent can only be granted by the patient")
	}
	out, err := h.svc.GrantContinuityConsent(c.Request().Context(), req.PatientID, id, req.OriginEpisodeID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) RevokeConsent(c echo.Context) error {
	id, err := parseParam(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	existing, err := h.svc.GetContinuityConsent(ctx, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if !isActor(c, existing.PatientID) {
		return echo.NewHTTPError(http.StatusForbidden, "consent can only be revoked by the patient")
	}
	out, err := h.svc.RevokeContinuityConsent(ctx, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateGPReferral(c echo.Context) error {
	gpID, err := parseParam(c, "id")
	if err != nil {
		return err
	}
	var req GPReferralRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.CreateGPReferral(c.Request().Context(), gpID, req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, out)
}
