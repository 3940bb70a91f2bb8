package prescription

import (
	"time"

	"github.com/google/uuid"

	"github.com/rxdesk/rxdesk/internal/platform/rxdoc"
)

// Prescription is a persisted document model. The embedded fields are
// flattened into the JSON representation.
type Prescription struct {
	ID uuid.UUID `json:"id"`
	rxdoc.Prescription
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats backs the dashboard counters. Today is the local calendar day of the
// server.
type Stats struct {
	TodayPrescriptions int `json:"todayPrescriptions"`
	TodayMedicines     int `json:"todayMedicines"`
	TotalPrescriptions int `json:"totalPrescriptions"`
	TotalMedicines     int `json:"totalMedicines"`
}
