package medicine

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	store map[uuid.UUID]*Medicine
	err   error
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Medicine)}
}

func (m *mockRepo) Create(_ context.Context, med *Medicine) error {
	if m.err != nil {
		return m.err
	}
	med.ID = uuid.New()
	med.CreatedAt = time.Now()
	med.UpdatedAt = med.CreatedAt
	m.store[med.ID] = med
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Medicine, error) {
	med, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return med, nil
}

func (m *mockRepo) Update(_ context.Context, med *Medicine) error {
	if _, ok := m.store[med.ID]; !ok {
		return ErrNotFound
	}
	m.store[med.ID] = med
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockRepo) Search(_ context.Context, query string, limit, offset int) ([]*Medicine, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	var all []*Medicine
	for _, med := range m.store {
		if query == "" || strings.Contains(strings.ToLower(med.Name), strings.ToLower(query)) {
			all = append(all, med)
		}
	}
	sort.Slice(all, func(i, j int) bool { return strings.ToLower(all[i].Name) < strings.ToLower(all[j].Name) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo), repo
}

func strPtr(s string) *string { return &s }

func TestCreateMedicine(t *testing.T) {
	svc, repo := newTestService()
	m := &Medicine{Name: "  Paracetamol ", Strength: strPtr("500mg"), DosageForm: strPtr("  "), Manufacturer: strPtr("")}

	if err := svc.CreateMedicine(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ID == uuid.Nil {
		t.Error("expected ID to be assigned")
	}
	if m.Name != "Paracetamol" {
		t.Errorf("expected trimmed name, got %q", m.Name)
	}
	if m.DosageForm != nil || m.Manufacturer != nil {
		t.Error("blank optional fields should be stored as NULL")
	}
	if len(repo.store) != 1 {
		t.Errorf("expected 1 stored medicine, got %d", len(repo.store))
	}
}

func TestCreateMedicine_Validation(t *testing.T) {
	svc, _ := newTestService()
	tests := []struct {
		name string
		med  *Medicine
	}{
		{"empty name", &Medicine{}},
		{"blank name", &Medicine{Name: "   "}},
		{"long name", &Medicine{Name: strings.Repeat("x", 256)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CreateMedicine(context.Background(), tt.med)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestCreateMedicine_RepoError(t *testing.T) {
	svc, repo := newTestService()
	repo.err = errors.New("connection reset")
	err := svc.CreateMedicine(context.Background(), &Medicine{Name: "Tulsi"})
	if err == nil || errors.Is(err, ErrInvalid) {
		t.Fatalf("expected wrapped repository error, got %v", err)
	}
}

func TestUpdateMedicine_NotFound(t *testing.T) {
	svc, _ := newTestService()
	err := svc.UpdateMedicine(context.Background(), &Medicine{ID: uuid.New(), Name: "Ashwagandha"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteMedicine(t *testing.T) {
	svc, repo := newTestService()
	m := &Medicine{Name: "Triphala"}
	svc.CreateMedicine(context.Background(), m)

	if err := svc.DeleteMedicine(context.Background(), m.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.store) != 0 {
		t.Error("expected medicine to be removed")
	}
	if err := svc.DeleteMedicine(context.Background(), m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSearchMedicines(t *testing.T) {
	svc, _ := newTestService()
	for _, n := range []string{"Paracetamol", "Pantoprazole", "amoxicillin"} {
		svc.CreateMedicine(context.Background(), &Medicine{Name: n})
	}

	items, total, err := svc.SearchMedicines(context.Background(), "PA", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || items[0].Name != "Pantoprazole" || items[1].Name != "Paracetamol" {
		t.Errorf("unexpected search result total=%d items=%v", total, items)
	}

	items, _, _ = svc.SearchMedicines(context.Background(), "zzz", 10, 0)
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", items)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		med  Medicine
		want string
	}{
		{Medicine{Name: "Paracetamol", Strength: strPtr("500mg"), DosageForm: strPtr("Tablet")}, "Paracetamol 500mg (Tablet)"},
		{Medicine{Name: "Paracetamol", Strength: strPtr("500mg")}, "Paracetamol 500mg"},
		{Medicine{Name: "Chyawanprash", DosageForm: strPtr("Paste")}, "Chyawanprash (Paste)"},
		{Medicine{Name: "Tulsi", Strength: strPtr(" ")}, "Tulsi"},
	}
	for _, tt := range tests {
		if got := tt.med.DisplayName(); got != tt.want {
			t.Errorf("DisplayName() = %q, want %q", got, tt.want)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Errorf("escapeLike = %q", got)
	}
}
