package main

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rxdesk/rxdesk/internal/config"
	"github.com/rxdesk/rxdesk/internal/domain/medicine"
	"github.com/rxdesk/rxdesk/internal/domain/prescription"
	"github.com/rxdesk/rxdesk/internal/platform/db"
	"github.com/rxdesk/rxdesk/internal/platform/middleware"
	"github.com/rxdesk/rxdesk/internal/platform/rxdoc"
)

// -- Stubs --

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type emptyMedicines struct{}

func (emptyMedicines) Create(context.Context, *medicine.Medicine) error { return nil }
func (emptyMedicines) GetByID(context.Context, uuid.UUID) (*medicine.Medicine, error) {
	return nil, medicine.ErrNotFound
}
func (emptyMedicines) Update(context.Context, *medicine.Medicine) error { return medicine.ErrNotFound }
func (emptyMedicines) Delete(context.Context, uuid.UUID) error { return medicine.ErrNotFound }
func (emptyMedicines) Search(context.Context, string, int, int) ([]*medicine.Medicine, int, error) {
	return nil, 0, nil
}

type emptyPrescriptions struct{}

func (emptyPrescriptions) Create(context.Context, *prescription.Prescription) error { return nil }
func (emptyPrescriptions) GetByID(context.Context, uuid.UUID) (*prescription.Prescription, error) {
	return nil, prescription.ErrNotFound
}
func (emptyPrescriptions) List(context.Context, string, int, int) ([]*prescription.Prescription, int, error) {
	return nil, 0, nil
}
func (emptyPrescriptions) Stats(context.Context, time.Time, time.Time) (*prescription.Stats, error) {
	return &prescription.Stats{TotalMedicines: 3}, nil
}

type auditLog struct {
	mu      sync.Mutex
	entries []middleware.AuditEntry
}

func (a *auditLog) RecordAccess(e middleware.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func testConfig() *config.Config {
	lh := rxdoc.DefaultLetterhead()
	return &config.Config{
		Env:                 "test",
		AuthUsername:        "doctor",
		AuthPassword:        "s3cret",
		SessionSecret:       strings.Repeat("k", 32),
		SessionTTL:          time.Hour,
		RateLimitRPS:        100,
		RateLimitBurst:      100,
		LoginRateLimitRPS:   100,
		LoginRateLimitBurst: 100,
		BodyLimit:           "1M",
		AssetURLPrefix:      "/assets/",
		PractitionerName:    lh.PractitionerName,
		ClinicName:          lh.ClinicName,
	}
}

func newTestServer(t *testing.T) (*echo.Echo, *auditLog) {
	t.Helper()
	audit := &auditLog{}
	e, cleanup, err := newServer(testConfig(), zerolog.Nop(), deps{
		pinger:        stubPinger{},
		medicines:     emptyMedicines{},
		prescriptions: emptyPrescriptions{},
		audit:         audit,
	})
	if err != nil {
		t.Fatalf("newServer() error: %v", err)
	}
	t.Cleanup(cleanup)
	return e, audit
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func loginCookie(t *testing.T, e *echo.Echo) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"doctor","password":"s3cret"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := serve(e, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func TestServer_HealthIsPublic(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"service":"rxdesk"`) {
		t.Errorf("unexpected /health response %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected /health/db 200, got %d", rec.Code)
	}
}

func TestServer_HealthDBUnavailable(t *testing.T) {
	e, cleanup, err := newServer(testConfig(), zerolog.Nop(), deps{
		pinger:        stubPinger{err: errors.New("connection refused")},
		medicines:     emptyMedicines{},
		prescriptions: emptyPrescriptions{},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestServer_APIRequiresSession(t *testing.T) {
	e, audit := newTestServer(t)

	for _, path := range []string{"/api/v1/medicines", "/api/v1/prescriptions", "/api/v1/dashboard/stats"} {
		rec := serve(e, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
	if len(audit.entries) != 0 {
		t.Errorf("unauthenticated requests reach no handler and are not audited, got %d entries", len(audit.entries))
	}
}

func TestServer_SessionFlow(t *testing.T) {
	e, audit := newTestServer(t)
	cookie := loginCookie(t, e)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/stats", nil)
	req.AddCookie(cookie)
	rec := serve(e, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"totalMedicines":3`) {
		t.Errorf("unexpected stats %s", rec.Body.String())
	}

	if len(audit.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(audit.entries))
	}
	if got := audit.entries[0]; got.UserID != "doctor" || got.Resource != "dashboard" || got.StatusCode != http.StatusOK {
		t.Errorf("unexpected audit entry %+v", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(cookie)
	serve(e, req)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/medicines", nil)
	req.AddCookie(cookie)
	if rec := serve(e, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected revoked session to be rejected, got %d", rec.Code)
	}
}

func TestServer_BearerToken(t *testing.T) {
	e, _ := newTestServer(t)
	cookie := loginCookie(t, e)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/medicines", nil)
	req.Header.Set("Authorization", "Bearer "+cookie.Value)
	rec := serve(e, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected empty list, got %s", rec.Body.String())
	}
}

func TestServer_RenderDraft(t *testing.T) {
	e, _ := newTestServer(t)
	cookie := loginCookie(t, e)

	body := `{"date":"2024-03-05","patient_name":"Ravi","age":30,"medicines":[{"name":"Tulsi","morning":true}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/prescriptions/render?format=pdf", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(cookie)
	rec := serve(e, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Error("expected a PDF body")
	}
	if csp := rec.Header().Get("Content-Security-Policy"); csp != middleware.APIContentSecurityPolicy {
		t.Errorf("PDF should keep the API CSP, got %q", csp)
	}
}

func TestServer_MetricsCountLogins(t *testing.T) {
	e, _ := newTestServer(t)
	loginCookie(t, e)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `rxdesk_logins_total{outcome="success"} 1`) {
		t.Errorf("login not counted:\n%s", rec.Body.String())
	}
}

func TestServer_AssetsArePublic(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/assets/"+rxdoc.LogoAsset, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestServer_MissingAssets(t *testing.T) {
	cfg := testConfig()
	cfg.AssetDir = t.TempDir()
	if _, _, err := newServer(cfg, zerolog.Nop(), deps{}); err == nil {
		t.Fatal("expected error for an asset directory without images")
	}
}

func TestServer_BadCredentialConfig(t *testing.T) {
	cfg := testConfig()
	cfg.AuthPassword = ""
	if _, _, err := newServer(cfg, zerolog.Nop(), deps{}); err == nil {
		t.Fatal("expected credential error")
	}
}

func TestRenderFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "rx.json")
	draft := `{"date":"2024-03-05","patient_name":"Ravi","age":30,"medicines":[{"name":"Tulsi","night":true}]}`
	if err := os.WriteFile(in, []byte(draft), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "rx.pdf")
	var stdout bytes.Buffer
	if err := renderFile(testConfig(), in, out, "pdf", nil, &stdout); err != nil {
		t.Fatalf("renderFile() error: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("output is not a PDF")
	}
	if !strings.Contains(stdout.String(), "Wrote ") {
		t.Errorf("unexpected output %q", stdout.String())
	}
}

func TestRenderFile_StdinToStdout(t *testing.T) {
	draft := `{"date":"2024-03-05","patient_name":"Ravi","age":30,"medicines":[{"name":"Tulsi","night":true}]}`
	var stdout bytes.Buffer
	if err := renderFile(testConfig(), "-", "-", "html", strings.NewReader(draft), &stdout); err != nil {
		t.Fatalf("renderFile() error: %v", err)
	}
	if !strings.Contains(stdout.String(), "<html") {
		t.Error("expected an HTML document on stdout")
	}
}

func TestRenderFile_Errors(t *testing.T) {
	cfg := testConfig()
	if err := renderFile(cfg, "-", "-", "docx", strings.NewReader("{}"), &bytes.Buffer{}); err == nil {
		t.Error("expected unknown format error")
	}
	if err := renderFile(cfg, "-", "-", "pdf", strings.NewReader("not json"), &bytes.Buffer{}); err == nil {
		t.Error("expected decode error")
	}

	err := renderFile(cfg, "-", "-", "pdf", strings.NewReader(`{"date":"2024-03-05"}`), &bytes.Buffer{})
	var verr *rxdoc.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestMigrationSource(t *testing.T) {
	if _, err := fs.Stat(migrationSource(""), "001_core.sql"); err != nil {
		t.Errorf("embedded migrations missing 001_core.sql: %v", err)
	}

	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "009_extra.sql"), []byte("SELECT 1;"), 0o644)
	if _, err := fs.Stat(migrationSource(dir), "009_extra.sql"); err != nil {
		t.Errorf("directory source not used: %v", err)
	}
}

func TestPrintStatus(t *testing.T) {
	applied := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "001_core.sql", Applied: true, AppliedAt: &applied},
		{Version: 2, Name: "002_access_log.sql"},
	})

	out := buf.String()
	if !strings.Contains(out, "2024-03-05 09:30:00") || !strings.Contains(out, "pending") {
		t.Errorf("unexpected status output:\n%s", out)
	}
}
