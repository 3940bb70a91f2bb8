package rxdoc

import "fmt"

// Dosage is the set of dosage-time flags for one medicine.
type Dosage struct {
	Morning   bool `json:"morning"`
	Afternoon bool `json:"afternoon"`
	Evening   bool `json:"evening"`
	Night     bool `json:"night"`
}

// Count returns how many dosage times are set (0-4).
func (d Dosage) Count() int {
	n := 0
	for _, on := range [...]bool{d.Morning, d.Afternoon, d.Evening, d.Night} {
		if on {
			n++
		}
	}
	return n
}

// DosesPerDay returns the number of dosage times set on m.
func DosesPerDay(m Medicine) int {
	return m.Dosage().Count()
}

// DeriveQuantity returns the total units to dispense for m over courseDays.
// A negative course length counts as zero.
func DeriveQuantity(m Medicine, courseDays int) int {
	if courseDays < 0 {
		courseDays = 0
	}
	return DosesPerDay(m) * courseDays
}

// ApplyQuantities overwrites the quantity of every medicine with its derived
// value. Any previously stored or hand-edited quantity is discarded.
func ApplyQuantities(p *Prescription) {
	for i := range p.Medicines {
		p.Medicines[i].Quantity = DeriveQuantity(p.Medicines[i], p.CourseDays)
	}
}

// SetCourseDays changes the course length and recomputes all quantities.
func SetCourseDays(p *Prescription, days int) {
	p.CourseDays = days
	ApplyQuantities(p)
}

// SetDosage replaces the dosage flags of the medicine at index i and
// recomputes all quantities.
func SetDosage(p *Prescription, i int, d Dosage) error {
	if i < 0 || i >= len(p.Medicines) {
		return fmt.Errorf("medicine index %d out of range [0,%d)", i, len(p.Medicines))
	}
	m := &p.Medicines[i]
	m.Morning, m.Afternoon, m.Evening, m.Night = d.Morning, d.Afternoon, d.Evening, d.Night
	ApplyQuantities(p)
	return nil
}
