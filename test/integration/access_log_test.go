//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rxdesk/rxdesk/internal/platform/middleware"
)

func TestPGAuditRecorder(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	rec := middleware.NewPGAuditRecorder(globalPool)

	id := uuid.New()
	entries := []middleware.AuditEntry{
		{UserID: "doctor", Resource: "prescriptions", RecordID: id.String(), Action: "render",
			Method: "GET", Path: "/api/v1/prescriptions/" + id.String() + "/pdf", StatusCode: 200,
			Timestamp: time.Now().UTC(), RequestID: "req-1", IPAddress: "10.0.0.1"},
		{UserID: "doctor", Resource: "dashboard", Action: "read",
			Method: "GET", Path: "/api/v1/dashboard/stats", StatusCode: 200, Timestamp: time.Now().UTC()},
	}
	for _, e := range entries {
		if err := rec.RecordAccess(e); err != nil {
			t.Fatalf("RecordAccess: %v", err)
		}
	}

	var n int
	if err := globalPool.QueryRow(ctx, `SELECT COUNT(*) FROM access_log WHERE record_id = $1 AND action = 'render'`, id).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 render row for the record, got %d", n)
	}

	if err := globalPool.QueryRow(ctx, `SELECT COUNT(*) FROM access_log WHERE record_id IS NULL`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 row without record id, got %d", n)
	}
}
