package medicine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected echo.HTTPError, got %v", err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, he.Code, he.Message)
	}
}

func TestCreateMedicine_Success(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/medicines",
		`{"name":"Paracetamol","strength":"500mg","dosage_form":"Tablet"}`), rec)

	if err := h.CreateMedicine(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["display_name"] != "Paracetamol 500mg (Tablet)" {
		t.Errorf("display_name = %v", body["display_name"])
	}
	if body["id"] == "" || body["id"] == uuid.Nil.String() {
		t.Error("expected an id")
	}
}

func TestCreateMedicine_MissingName(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{"strength":"5mg"}`), httptest.NewRecorder())
	expectHTTPError(t, h.CreateMedicine(c), http.StatusBadRequest)
}

func TestCreateMedicine_BadJSON(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{"name":`), httptest.NewRecorder())
	expectHTTPError(t, h.CreateMedicine(c), http.StatusBadRequest)
}

func TestGetMedicine(t *testing.T) {
	h, e := newTestHandler()
	m := &Medicine{Name: "Triphala"}
	h.svc.CreateMedicine(context.Background(), m)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())
	if err := h.GetMedicine(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestGetMedicine_Errors(t *testing.T) {
	h, e := newTestHandler()
	tests := []struct {
		id   string
		code int
	}{
		{"not-a-uuid", http.StatusBadRequest},
		{uuid.New().String(), http.StatusNotFound},
	}
	for _, tt := range tests {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(tt.id)
		expectHTTPError(t, h.GetMedicine(c), tt.code)
	}
}

func TestListMedicines_Search(t *testing.T) {
	h, e := newTestHandler()
	for _, n := range []string{"Paracetamol", "Pantoprazole", "Amoxicillin"} {
		h.svc.CreateMedicine(context.Background(), &Medicine{Name: n})
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/medicines?search=para&limit=1", nil), rec)
	if err := h.ListMedicines(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Data []map[string]interface{} `json:"data"`
		Total int                     `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || len(resp.Data) != 1 || resp.Data[0]["name"] != "Paracetamol" {
		t.Errorf("unexpected response %s", rec.Body.String())
	}
}

func TestListMedicines_Pagination(t *testing.T) {
	h, e := newTestHandler()
	for _, n := range []string{"A", "B", "C"} {
		h.svc.CreateMedicine(context.Background(), &Medicine{Name: n})
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/medicines?limit=2", nil), rec)
	h.ListMedicines(c)

	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["has_more"] != true || resp["next"] != "/api/v1/medicines?limit=2&offset=2" {
		t.Errorf("unexpected pagination %v", resp)
	}
}

func TestUpdateMedicine(t *testing.T) {
	h, e := newTestHandler()
	m := &Medicine{Name: "Old"}
	h.svc.CreateMedicine(context.Background(), m)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, "/", `{"name":"New","strength":"10ml"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())
	if err := h.UpdateMedicine(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := h.svc.GetMedicine(context.Background(), m.ID)
	if got.Name != "New" || got.DisplayName() != "New 10ml" {
		t.Errorf("unexpected stored medicine %+v", got)
	}
}

func TestUpdateMedicine_Handler_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(jsonRequest(http.MethodPut, "/", `{"name":"New"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	expectHTTPError(t, h.UpdateMedicine(c), http.StatusNotFound)
}

func TestDeleteMedicine_Handler(t *testing.T) {
	h, e := newTestHandler()
	m := &Medicine{Name: "Neem"}
	h.svc.CreateMedicine(context.Background(), m)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())
	if err := h.DeleteMedicine(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestRegisterRoutes(t *testing.T) {
	h, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))

	want := map[string]bool{
		"GET /api/v1/medicines":        false,
		"POST /api/v1/medicines":       false,
		"GET /api/v1/medicines/:id":    false,
		"PUT /api/v1/medicines/:id":    false,
		"DELETE /api/v1/medicines/:id": false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}
