package directory

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
	admin := auth.RequireRole(auth.RoleAdmin)
	api.POST("/physios", h.CreatePhysio, admin)
	api.POST("/gps", h.CreateGP, admin)
	api.POST("/patients", h.CreatePatient, admin)

	physio := auth.RequireRole(auth.RolePhysio)
	self := auth.RequireSelf("id")
	api.GET("/physios/:id", h.GetPhysio, physio, self)
	api.PUT("/physios/:id/opt-in", h.SetOptIn, physio, self)
	api.DELETE("/physios/:id/preview-mode", h.DisablePreviewMode, physio, self)

	api.GET("/gps", h.ListGPs, auth.RequireRole(auth.RoleGP, auth.RolePhysio))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreatePhysio(c echo.Context) error {
	var p Physiotherapist
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePhysio(c.Request().Context(), &p); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPhysio(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPhysio(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SetOptIn(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body struct {
		OptedIn *bool `json:"opted_in"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.OptedIn == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "opted_in is required")
	}
	p, err := h.svc.SetOptIn(c.Request().Context(), id, *body.OptedIn)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DisablePreviewMode(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.DisablePreviewMode(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CreateGP(c echo.Context) error {
	var g GP
	if err := c.Bind(&g); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateGP(c.Request().Context(), &g); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *Handler) ListGPs(c echo.Context) error {
	gps, err := h.svc.ListGPs(c.Request().Context())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, gps)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePatient(c.Request().Context(), &p); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}
