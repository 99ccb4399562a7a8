package episode

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kinetic/kinetic/internal/platform/apperr"
	"github.com/kinetic/kinetic/internal/platform/auth"
	"github.com/kinetic/kinetic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	physio := auth.RequireRole(auth.RolePhysio)
	api.POST("/episodes", h.CreateEpisode, physio)
	api.GET("/episodes/:id", h.GetEpisode, physio)
	api.POST("/episodes/:id/visits", h.RecordVisit, physio)
	api.PUT("/episodes/:id/status", h.ChangeStatus, physio)
	api.GET("/physios/:id/episodes", h.ListEpisodes, physio, auth.RequireSelf("id"))
}

func (h *Handler) CreateEpisode(c echo.Context) error {
	var e Episode
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateEpisode(c.Request().Context(), &e); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetEpisode(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.svc.GetEpisode(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListEpisodes(c echo.Context) error {
	physioID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid physio id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListEpisodes(c.Request().Context(), physioID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type visitRequest struct {
	VisitDate         *time.Time `json:"visit_date"`
	PainScore         *int       `json:"pain_score"`
	FunctionScore     *int       `json:"function_score"`
	Escalated         bool       `json:"escalated"`
	TreatmentAdjusted bool       `json:"treatment_adjusted"`
	NotesSummary      *string    `json:"notes_summary"`
}

func (h *Handler) RecordVisit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req visitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v := Visit{
		EpisodeID:         id,
		PainScore:         req.PainScore,
		FunctionScore:     req.FunctionScore,
		Escalated:         req.Escalated,
		TreatmentAdjusted: req.TreatmentAdjusted,
		NotesSummary:      req.NotesSummary,
	}
	if req.VisitDate != nil {
		v.VisitDate = *req.VisitDate
	}
	if err := h.svc.RecordVisit(c.Request().Context(), &v); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.ChangeStatus(c.Request().Context(), id, body.Status)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, e)
}
