package prescription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("prescription not found")

// Repository persists prescriptions together with their medicine lines and
// test reports.
type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	// List returns prescriptions newest first, optionally filtered by a
	// case-insensitive patient name substring.
	List(ctx context.Context, patient string, limit, offset int) ([]*Prescription, int, error)
	// Stats counts prescriptions and catalog medicines, and those created in
	// [from, to).
	Stats(ctx context.Context, from, to time.Time) (*Stats, error)
}
