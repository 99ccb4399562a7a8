package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newRoleContext(actor string, roles []string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithActor(req.Context(), actor, roles))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRequireRole_Allowed(t *testing.T) {
	c, rec := newRoleContext("gp-1", []string{RoleGP})
	if err := RequireRole(RoleGP, RolePhysio)(okHandler)(c); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c, _ := newRoleContext("patient-1", []string{RolePatient})
	err := RequireRole(RolePhysio)(okHandler)(c)
	if err == nil {
		t.Fatal("expected error for unauthorized role")
	}
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	c, _ := newRoleContext("root", []string{RoleAdmin})
	if err := RequireRole(RolePhysio)(okHandler)(c); err != nil {
		t.Errorf("expected admin to pass, got %v", err)
	}
}

func TestRequireRole_NoRoles(t *testing.T) {
	c, _ := newRoleContext("", nil)
	if err := RequireRole(RolePhysio)(okHandler)(c); err == nil {
		t.Error("expected error when caller has no roles")
	}
}

func TestRequireSelf(t *testing.T) {
	tests := []struct {
		name    string
		actor   string
		roles   []string
		param   string
		allowed bool
	}{
		{"same physio", "p1", []string{RolePhysio}, "p1", true},
		{"other physio", "p2", []string{RolePhysio}, "p1", false},
		{"admin", "root", []string{RoleAdmin}, "p1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newRoleContext(tt.actor, tt.roles)
			c.SetParamNames("id")
			c.SetParamValues(tt.param)
			err := RequireSelf("id")(okHandler)(c)
			if tt.allowed && err != nil {
				t.Errorf("expected access, got %v", err)
			}
			if !tt.allowed && err == nil {
				t.Error("expected forbidden")
			}
		})
	}
}
