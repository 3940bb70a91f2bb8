package middleware

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type fakeExecer struct {
	sql  string
	args []interface{}
	err  error
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if _, ok := ctx.Deadline(); !ok {
		return pgconn.CommandTag{}, errors.New("expected a deadline")
	}
	f.sql = sql
	f.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestPGAuditRecorder_Insert(t *testing.T) {
	db := &fakeExecer{}
	r := NewPGAuditRecorder(db)

	ts := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	err := r.RecordAccess(AuditEntry{
		UserID:     "doctor",
		Resource:   "prescriptions",
		RecordID:   "0c7c0e36-4d4b-4c5c-9a54-8c6ad0c7a001",
		Action:     "render",
		Method:     "GET",
		Path:       "/api/v1/prescriptions/0c7c0e36-4d4b-4c5c-9a54-8c6ad0c7a001/pdf",
		Timestamp:  ts,
		RequestID:  "req-1",
		StatusCode: 200,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(db.sql, "INSERT INTO access_log") {
		t.Errorf("unexpected sql %q", db.sql)
	}
	if len(db.args) != 11 {
		t.Fatalf("expected 11 args, got %d", len(db.args))
	}
	if db.args[0] != ts || db.args[2] != "doctor" || db.args[5] != "render" || db.args[8] != 200 {
		t.Errorf("unexpected args %v", db.args)
	}
}

func TestPGAuditRecorder_EmptyRecordIDIsNull(t *testing.T) {
	db := &fakeExecer{}
	NewPGAuditRecorder(db).RecordAccess(AuditEntry{Resource: "prescriptions"})
	if db.args[4] != nil {
		t.Errorf("expected nil record id, got %v", db.args[4])
	}
}

func TestPGAuditRecorder_PropagatesError(t *testing.T) {
	db := &fakeExecer{err: errors.New("relation does not exist")}
	if err := NewPGAuditRecorder(db).RecordAccess(AuditEntry{}); err == nil {
		t.Fatal("expected error")
	}
}
