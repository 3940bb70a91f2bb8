package medicine

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxNameLen = 255

// ErrInvalid wraps every validation failure so handlers can map it to 400.
var ErrInvalid = errors.New("invalid medicine")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func validate(m *Medicine) error {
	m.normalize()
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if utf8.RuneCountInString(m.Name) > maxNameLen {
		return fmt.Errorf("%w: name must be at most %d characters", ErrInvalid, maxNameLen)
	}
	return nil
}

func (s *Service) CreateMedicine(ctx context.Context, m *Medicine) error {
	if err := validate(m); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return fmt.Errorf("create medicine: %w", err)
	}
	return nil
}

func (s *Service) GetMedicine(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateMedicine(ctx context.Context, m *Medicine) error {
	if err := validate(m); err != nil {
		return err
	}
	return s.repo.Update(ctx, m)
}

func (s *Service) DeleteMedicine(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) SearchMedicines(ctx context.Context, query string, limit, offset int) ([]*Medicine, int, error) {
	items, total, err := s.repo.Search(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search medicines: %w", err)
	}
	if items == nil {
		items = []*Medicine{}
	}
	return items, total, nil
}
