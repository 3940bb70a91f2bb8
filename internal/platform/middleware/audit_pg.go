package middleware

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PGAuditRecorder appends audit entries to the access_log table.
type PGAuditRecorder struct {
	db      execer
	timeout time.Duration
}

// NewPGAuditRecorder creates a recorder writing through db, normally a
// *pgxpool.Pool.
func NewPGAuditRecorder(db execer) *PGAuditRecorder {
	return &PGAuditRecorder{db: db, timeout: 2 * time.Second}
}

func (r *PGAuditRecorder) RecordAccess(e AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	var recordID interface{}
	if e.RecordID != "" {
		recordID = e.RecordID
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO access_log (occurred_at, request_id, user_name, resource, record_id,
			action, method, path, status, ip_address, user_agent)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		e.Timestamp, e.RequestID, e.UserID, e.Resource, recordID,
		e.Action, e.Method, e.Path, e.StatusCode, e.IPAddress, e.UserAgent)
	return err
}
