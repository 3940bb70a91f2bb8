package medicine

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no medicine has the requested id.
var ErrNotFound = errors.New("medicine not found")

type Repository interface {
	Create(ctx context.Context, m *Medicine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error)
	Update(ctx context.Context, m *Medicine) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Search lists medicines ordered by name; an empty query matches all.
	Search(ctx context.Context, query string, limit, offset int) ([]*Medicine, int, error)
}
