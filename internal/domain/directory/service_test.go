package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kinetic/kinetic/internal/platform/apperr"
)

func newTestService() *Service {
	m := NewMemoryRepo()
	return NewService(m.Physios(), m.GPs(), m.Patients())
}

func createPhysio(t *testing.T, svc *Service) *Physiotherapist {
	t.Helper()
	p := &Physiotherapist{Name: "Dana Reyes", Email: "dana@example.com", Region: "north"}
	if err := svc.CreatePhysio(context.Background(), p); err != nil {
		t.Fatalf("CreatePhysio: %v", err)
	}
	return p
}

func TestCreatePhysio_Defaults(t *testing.T) {
	svc := newTestService()
	p := &Physiotherapist{Name: "Dana", Email: "dana@example.com", Region: "north", OptedIn: true, PreviewMode: false}
	if err := svc.CreatePhysio(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Capacity != CapacityAvailable {
		t.Errorf("expected available capacity, got %s", p.Capacity)
	}
	if p.OptedIn || !p.PreviewMode {
		t.Error("new physios must start opted out and in preview mode")
	}
}

func TestCreatePhysio_Validation(t *testing.T) {
	svc := newTestService()
	tests := []Physiotherapist{
		{Email: "a@example.com", Region: "north"},
		{Name: "A", Email: "not-an-email", Region: "north"},
		{Name: "A", Email: "a@example.com"},
		{Name: "A", Email: "a@example.com", Region: "north", Capacity: "full"},
	}
	for _, p := range tests {
		p := p
		if err := svc.CreatePhysio(context.Background(), &p); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("expected validation error for %+v, got %v", p, err)
		}
	}
}

func TestSetOptIn(t *testing.T) {
	svc := newTestService()
	p := createPhysio(t, svc)

	got, err := svc.SetOptIn(context.Background(), p.ID, true)
	if err != nil {
		t.Fatalf("SetOptIn: %v", err)
	}
	if !got.OptedIn || got.OptedInAt == nil || !got.PreviewMode {
		t.Errorf("expected opted in with preview mode, got %+v", got)
	}

	if _, err := svc.DisablePreviewMode(context.Background(), p.ID); err != nil {
		t.Fatalf("DisablePreviewMode: %v", err)
	}
	discoverable, _ := svc.ListDiscoverablePhysios(context.Background())
	if len(discoverable) != 1 {
		t.Errorf("expected physio to be discoverable, got %d", len(discoverable))
	}

	got, err = svc.SetOptIn(context.Background(), p.ID, false)
	if err != nil {
		t.Fatalf("SetOptIn(false): %v", err)
	}
	if got.OptedIn || got.OptedOutAt == nil {
		t.Errorf("expected opted out with timestamp, got %+v", got)
	}
	discoverable, _ = svc.ListDiscoverablePhysios(context.Background())
	if len(discoverable) != 0 {
		t.Errorf("opted-out physio must not be discoverable")
	}

	got, _ = svc.SetOptIn(context.Background(), p.ID, true)
	if !got.PreviewMode {
		t.Error("re-joining must restart in preview mode")
	}
}

func TestDisablePreviewMode_RequiresOptIn(t *testing.T) {
	svc := newTestService()
	p := createPhysio(t, svc)
	if _, err := svc.DisablePreviewMode(context.Background(), p.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCreatePatient_FutureBirthDate(t *testing.T) {
	svc := newTestService()
	dob := time.Now().Add(48 * time.Hour)
	err := svc.CreatePatient(context.Background(), &Patient{Name: "Sam", Region: "north", DateOfBirth: &dob})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_SetOptIn_RequiresBody(t *testing.T) {
	svc := newTestService()
	p := createPhysio(t, svc)
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	err := h.SetOptIn(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_SetOptIn(t *testing.T) {
	svc := newTestService()
	p := createPhysio(t, svc)
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"opted_in":true}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.SetOptIn(c); err != nil {
		t.Fatalf("SetOptIn: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"opted_in":true`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
