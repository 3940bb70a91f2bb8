package rxdoc

import (
	"strconv"
	"strings"
)

// Field is a labelled value, e.g. {"Age", "42"}.
type Field struct {
	Label string
	Value string
}

// MedicineRow is a medicines table row with every cell already formatted.
type MedicineRow struct {
	Name      string
	Morning   bool
	Afternoon bool
	Evening   bool
	Night     bool
	Quantity  string
}

// TestRow is a test reports table row.
type TestRow struct {
	Name   string
	Result string
	Date   string
}

// View is the fully formatted content of a prescription document. Both
// renderers read only from a View, so they cannot disagree on a displayed
// value, a formatted date or which optional sections are present.
type View struct {
	Date       string
	Letterhead Letterhead
	Patient    []Field
	Vitals     []Field
	CourseNote string
	Medicines  []MedicineRow
	Tests      []TestRow
	Notes      []string
	NextVisit  string
}

// HasVitals reports whether the vital signs section is shown.
func (v *View) HasVitals() bool { return len(v.Vitals) > 0 }

// HasMedicines reports whether the medicines section is shown.
func (v *View) HasMedicines() bool { return len(v.Medicines) > 0 }

// HasTests reports whether the test reports section is shown.
func (v *View) HasTests() bool { return len(v.Tests) > 0 }

// HasNotes reports whether the doctor's notes section is shown.
func (v *View) HasNotes() bool { return len(v.Notes) > 0 }

// HasNextVisit reports whether the next visit line is shown.
func (v *View) HasNextVisit() bool { return v.NextVisit != "" }

// NotesText returns the notes with their original line breaks.
func (v *View) NotesText() string { return strings.Join(v.Notes, "\n") }

// BuildView formats p for display. It does not modify p.
func BuildView(p *Prescription, lh Letterhead) *View {
	v := &View{
		Date:       FormatDate(p.Date),
		Letterhead: lh,
	}

	age := Placeholder
	if p.Age != nil {
		age = strconv.Itoa(*p.Age)
	}
	v.Patient = append(v.Patient,
		Field{Label: "Name", Value: p.PatientName},
		Field{Label: "Age", Value: age},
	)
	if phone := strings.TrimSpace(p.PhoneNumber); phone != "" {
		v.Patient = append(v.Patient, Field{Label: "Phone", Value: phone})
	}

	if vs := p.VitalSigns; !vs.IsEmpty() {
		for _, f := range []Field{
			{Label: "Pulse", Value: vs.Pulse},
			{Label: "BP", Value: vs.BloodPressure},
			{Label: "Sugar", Value: vs.Sugar},
		} {
			if f.Value = strings.TrimSpace(f.Value); f.Value != "" {
				v.Vitals = append(v.Vitals, f)
			}
		}
	}

	if len(p.Medicines) > 0 && p.CourseDays > 0 {
		v.CourseNote = "Course: " + strconv.Itoa(p.CourseDays) + " days"
	}
	for _, m := range p.Medicines {
		qty := Placeholder
		if m.Quantity > 0 {
			qty = strconv.Itoa(m.Quantity)
		}
		v.Medicines = append(v.Medicines, MedicineRow{
			Name:      m.Name,
			Morning:   m.Morning,
			Afternoon: m.Afternoon,
			Evening:   m.Evening,
			Night:     m.Night,
			Quantity:  qty,
		})
	}

	for _, t := range p.TestReports {
		v.Tests = append(v.Tests, TestRow{
			Name:   t.TestName,
			Result: t.Result,
			Date:   FormatOptionalDate(t.Date),
		})
	}

	if notes := strings.TrimRight(p.DoctorNotes, " \t\r\n"); strings.TrimSpace(notes) != "" {
		v.Notes = strings.Split(strings.ReplaceAll(notes, "\r\n", "\n"), "\n")
	}

	if strings.TrimSpace(p.NextVisit) != "" {
		v.NextVisit = FormatDate(p.NextVisit)
	}

	return v
}
