package medicine

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Medicine maps to the medicine table: the practitioner's catalog that
// prescription lines are picked from.
type Medicine struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  *string   `db:"description" json:"description,omitempty"`
	DosageForm   *string   `db:"dosage_form" json:"dosage_form,omitempty"`
	Strength     *string   `db:"strength" json:"strength,omitempty"`
	Manufacturer *string   `db:"manufacturer" json:"manufacturer,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName is the label used on a prescription line, e.g.
// "Paracetamol 500mg (Tablet)".
func (m *Medicine) DisplayName() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(m.Name))
	if s := deref(m.Strength); s != "" {
		b.WriteString(" ")
		b.WriteString(s)
	}
	if f := deref(m.DosageForm); f != "" {
		b.WriteString(" (")
		b.WriteString(f)
		b.WriteString(")")
	}
	return b.String()
}

// normalize trims every field and turns blank optional fields into nil.
func (m *Medicine) normalize() {
	m.Name = strings.TrimSpace(m.Name)
	m.Description = blankToNil(m.Description)
	m.DosageForm = blankToNil(m.DosageForm)
	m.Strength = blankToNil(m.Strength)
	m.Manufacturer = blankToNil(m.Manufacturer)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
