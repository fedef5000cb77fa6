package main

import (
	"context"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clearpath/prevention/internal/config"
	"github.com/clearpath/prevention/internal/domain/appointment"
	"github.com/clearpath/prevention/internal/domain/survey"
	"github.com/clearpath/prevention/internal/platform/auth"
	"github.com/clearpath/prevention/internal/platform/middleware"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func testConfig() *config.Config {
	return &config.Config{
		Env:                "production",
		AuthSigningKey:     testSigningKey,
		CORSOrigins:        []string{"http://localhost:3000"},
		RateLimitRPS:       100,
		RateLimitBurst:     100,
		SweepBatchSize:     25,
		ExpiryGrace:        20 * time.Minute,
		CheckInOpensBefore: 10 * time.Minute,
		CheckInClosesAfter: 45 * time.Minute,
		SurveySessionTTL:   time.Hour,
	}
}

func newTestRouter(t *testing.T) *echo.Echo {
	t.Helper()
	health := func(c echo.Context) error { return c.JSON(http.StatusOK, map[string]string{"status": "ok"}) }
	return newRouter(testConfig(), zerolog.Nop(), health,
		survey.NewHandler(nil), appointment.NewHandler(nil))
}

func TestRouter_HealthIsPublic(t *testing.T) {
	e := newTestRouter(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}
}

func TestRouter_APIRequiresToken(t *testing.T) {
	e := newTestRouter(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/surveys", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRouter_ExpireRequiresAdmin(t *testing.T) {
	e := newTestRouter(t)

	tok, err := auth.IssueToken([]byte(testSigningKey), "", "member-1", []string{auth.RoleMember}, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/expire", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRouter_RejectsForeignSigningKey(t *testing.T) {
	e := newTestRouter(t)

	tok, err := auth.IssueToken([]byte("another-key-another-key-another-k"), "", "member-1", []string{auth.RoleAdmin}, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/expire", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestNewSessionStore_MemoryFallback(t *testing.T) {
	cfg := testConfig()
	store, check, closeFn, err := newSessionStore(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if check != nil {
		t.Error("expected no health check for the in-memory store")
	}
	if _, ok := store.(*survey.MemorySessionStore); !ok {
		t.Errorf("expected *survey.MemorySessionStore, got %T", store)
	}
}

func TestAppointmentSettings(t *testing.T) {
	s := appointmentSettings(testConfig())
	if s.SweepBatchSize != 25 {
		t.Errorf("expected batch size 25, got %d", s.SweepBatchSize)
	}
	if s.ExpiryGrace != 20*time.Minute {
		t.Errorf("expected 20m grace, got %s", s.ExpiryGrace)
	}
	if s.CheckIn.OpensBefore != 10*time.Minute || s.CheckIn.ClosesAfter != 45*time.Minute {
		t.Errorf("unexpected check-in window %+v", s.CheckIn)
	}
	if s.SweepWorkers != appointment.DefaultSettings().SweepWorkers {
		t.Errorf("expected default worker count, got %d", s.SweepWorkers)
	}
}

func TestSplitRoles(t *testing.T) {
	got := splitRoles(" member, consultant ,,")
	if len(got) != 2 || got[0] != "member" || got[1] != "consultant" {
		t.Errorf("splitRoles = %q", got)
	}
}

func TestMigrationsFS_Embedded(t *testing.T) {
	matches, err := fs.Glob(migrationsFS(""), "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) == 0 {
		t.Error("expected embedded migrations")
	}
}
