// Package rxdoc composes prescription documents. It owns the Document Model
// consumed by every presentation, the derived-field helpers (quantities and
// date formatting) shared between them, and the two renderers: an HTML
// preview for on-screen review and a fixed-layout A4 PDF for download.
//
// Renderers never mutate the model. Callers are expected to run
// ApplyQuantities after every edit to courseDays or a dosage flag, and to
// reject models that fail Validate before they reach rendering.
package rxdoc

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultCourseDays is applied by Normalize when the caller leaves the course
// length unset.
const DefaultCourseDays = 5

// Length limits on stored text fields, in characters.
const (
	MaxNameLen  = 255
	MaxPhoneLen = 50
)

// Medicine is one line of a prescription. Name is a display string that may
// already carry strength and form, e.g. "Paracetamol 500mg (Tablet)".
type Medicine struct {
	Name      string `json:"name"`
	Morning   bool   `json:"morning"`
	Afternoon bool   `json:"afternoon"`
	Evening   bool   `json:"evening"`
	Night     bool   `json:"night"`
	Quantity  int    `json:"quantity"`
}

// Dosage returns the medicine's dosage-time flags.
func (m Medicine) Dosage() Dosage {
	return Dosage{Morning: m.Morning, Afternoon: m.Afternoon, Evening: m.Evening, Night: m.Night}
}

// VitalSigns holds free-text vital readings. Every field is optional.
type VitalSigns struct {
	Pulse         string `json:"pulse,omitempty"`
	BloodPressure string `json:"blood_pressure,omitempty"`
	Sugar         string `json:"sugar,omitempty"`
}

// IsEmpty reports whether no reading is present. A nil receiver is empty.
func (v *VitalSigns) IsEmpty() bool {
	if v == nil {
		return true
	}
	return strings.TrimSpace(v.Pulse) == "" &&
		strings.TrimSpace(v.BloodPressure) == "" &&
		strings.TrimSpace(v.Sugar) == ""
}

// TestReport is a single lab or investigation result attached to the
// prescription. Date is optional.
type TestReport struct {
	TestName string `json:"test_name"`
	Result   string `json:"result"`
	Date     string `json:"date,omitempty"`
}

// Prescription is the Document Model root. Dates are carried as strings in
// YYYY-MM-DD form (or an ISO date-time when read back from storage) so that
// the renderers can degrade gracefully on malformed input.
type Prescription struct {
	Date        string       `json:"date"`
	PatientName string       `json:"patient_name"`
	Age         *int         `json:"age"`
	PhoneNumber string       `json:"phone_number,omitempty"`
	CourseDays  int          `json:"course_days"`
	VitalSigns  *VitalSigns  `json:"vital_signs,omitempty"`
	Medicines   []Medicine   `json:"medicines"`
	TestReports []TestReport `json:"test_reports"`
	DoctorNotes string       `json:"doctor_notes,omitempty"`
	NextVisit   string       `json:"next_visit,omitempty"`
}

// Normalize applies producer-side defaults: an unset course length becomes
// DefaultCourseDays, empty vital signs are dropped and nil slices are
// replaced with empty ones.
func (p *Prescription) Normalize() {
	if p.CourseDays == 0 {
		p.CourseDays = DefaultCourseDays
	}
	p.PatientName = strings.TrimSpace(p.PatientName)
	p.PhoneNumber = strings.TrimSpace(p.PhoneNumber)
	if p.VitalSigns.IsEmpty() {
		p.VitalSigns = nil
	}
	if p.Medicines == nil {
		p.Medicines = []Medicine{}
	}
	if p.TestReports == nil {
		p.TestReports = []TestReport{}
	}
}

// FieldError describes one problem found by Validate.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a model is incomplete and must not be
// rendered or persisted.
type ValidationError struct {
	Problems []FieldError `json:"problems"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Field + " " + p.Message
	}
	return "incomplete prescription: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, format string, args ...interface{}) {
	e.Problems = append(e.Problems, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks the submission invariants: patient name, an age that is
// present and not negative, a parsable issue date, a positive course length
// and at least one medicine, each with a name and at least one dosage time.
// Optional dates must parse when present and text must fit the store.
func (p *Prescription) Validate() error {
	return p.validate(true)
}

// ValidateDraft applies the checks of Validate except that dates are only
// required to be present. Renderers echo an unparsable date as given.
func (p *Prescription) ValidateDraft() error {
	return p.validate(false)
}

func (p *Prescription) validate(strictDates bool) error {
	verr := &ValidationError{}

	if strings.TrimSpace(p.PatientName) == "" {
		verr.add("patient_name", "is required")
	}
	verr.maxLen("patient_name", p.PatientName, MaxNameLen)
	verr.maxLen("phone_number", p.PhoneNumber, MaxPhoneLen)
	switch {
	case p.Age == nil:
		verr.add("age", "is required")
	case *p.Age < 0:
		verr.add("age", "must not be negative")
	}
	if strings.TrimSpace(p.Date) == "" {
		verr.add("date", "is required")
	} else if strictDates {
		verr.date("date", p.Date)
	}
	if p.CourseDays <= 0 {
		verr.add("course_days", "must be positive")
	}
	if p.NextVisit != "" && strictDates {
		verr.date("next_visit", p.NextVisit)
	}

	if len(p.Medicines) == 0 {
		verr.add("medicines", "must contain at least one medicine")
	}
	for i, m := range p.Medicines {
		field := fmt.Sprintf("medicines[%d].name", i)
		if strings.TrimSpace(m.Name) == "" {
			verr.add(field, "is required")
		}
		verr.maxLen(field, m.Name, MaxNameLen)
		if DosesPerDay(m) == 0 {
			verr.add(fmt.Sprintf("medicines[%d]", i), "needs at least one of morning, afternoon, evening or night")
		}
	}

	for i, t := range p.TestReports {
		field := fmt.Sprintf("test_reports[%d].test_name", i)
		if strings.TrimSpace(t.TestName) == "" {
			verr.add(field, "is required")
		}
		verr.maxLen(field, t.TestName, MaxNameLen)
		if t.Date != "" && strictDates {
			verr.date(fmt.Sprintf("test_reports[%d].date", i), t.Date)
		}
	}

	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}

func (e *ValidationError) maxLen(field, value string, n int) {
	if utf8.RuneCountInString(value) > n {
		e.add(field, "must be at most %d characters", n)
	}
}

func (e *ValidationError) date(field, value string) {
	if _, ok := ParseDate(value); !ok {
		e.add(field, "must be a YYYY-MM-DD date, got %q", value)
	}
}

// Clone returns a deep copy so a caller can hand the copy to a renderer
// while continuing to edit the original.
func (p *Prescription) Clone() *Prescription {
	c := *p
	if p.Age != nil {
		age := *p.Age
		c.Age = &age
	}
	if p.VitalSigns != nil {
		vs := *p.VitalSigns
		c.VitalSigns = &vs
	}
	if p.Medicines != nil {
		c.Medicines = make([]Medicine, len(p.Medicines))
		copy(c.Medicines, p.Medicines)
	}
	if p.TestReports != nil {
		c.TestReports = make([]TestReport, len(p.TestReports))
		copy(c.TestReports, p.TestReports)
	}
	return &c
}
