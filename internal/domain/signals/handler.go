package signals

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
	self := auth.RequireSelf("id")
	api.GET("/physios/:id/signals", h.GetSignals, physio, self)
	api.POST("/physios/:id/signals/recompute", h.Recompute, physio, self)
}

func (h *Handler) GetSignals(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	out, err := h.svc.GetSignals(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if out == nil {
		out = []Signal{}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Recompute(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	out, err := h.svc.ComputeForPhysio(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}
