package prescription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rxdesk/rxdesk/internal/platform/db"
	"github.com/rxdesk/rxdesk/internal/platform/rxdoc"
)

const dateLayout = "2006-01-02"

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const prescriptionCols = `id, issue_date, patient_name, age, phone_number, course_days,
	vital_signs, doctor_notes, next_visit, created_by, created_at, updated_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var (
		p                Prescription
		issued           time.Time
		nextVisit        *time.Time
		phone, notes, by *string
		vitals           []byte
	)
	err := row.Scan(&p.ID, &issued, &p.PatientName, &p.Age, &phone, &p.CourseDays,
		&vitals, &notes, &nextVisit, &by, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Date = issued.Format(dateLayout)
	if nextVisit != nil {
		p.NextVisit = nextVisit.Format(dateLayout)
	}
	p.PhoneNumber = deref(phone)
	p.DoctorNotes = deref(notes)
	p.CreatedBy = deref(by)
	if len(vitals) > 0 {
		var vs rxdoc.VitalSigns
		if err := json.Unmarshal(vitals, &vs); err != nil {
			return nil, fmt.Errorf("decode vital signs: %w", err)
		}
		p.VitalSigns = &vs
	}
	p.Medicines = []rxdoc.Medicine{}
	p.TestReports = []rxdoc.TestReport{}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	issued, ok := rxdoc.ParseDate(p.Date)
	if !ok {
		return fmt.Errorf("unparsable issue date %q", p.Date)
	}
	nextVisit, err := optionalDate(p.NextVisit)
	if err != nil {
		return err
	}
	var vitals []byte
	if !p.VitalSigns.IsEmpty() {
		if vitals, err = json.Marshal(p.VitalSigns); err != nil {
			return fmt.Errorf("encode vital signs: %w", err)
		}
	}

	p.ID = uuid.New()
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		err := q.QueryRow(ctx, `
			INSERT INTO prescription (id, issue_date, patient_name, age, phone_number, course_days,
				vital_signs, doctor_notes, next_visit, created_by)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			RETURNING created_at, updated_at`,
			p.ID, issued, p.PatientName, p.Age, nullable(p.PhoneNumber), p.CourseDays,
			vitals, nullable(p.DoctorNotes), nextVisit, nullable(p.CreatedBy),
		).Scan(&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert prescription: %w", err)
		}

		for i, m := range p.Medicines {
			_, err := q.Exec(ctx, `
				INSERT INTO prescription_medicine (id, prescription_id, position, name,
					morning, afternoon, evening, night, quantity)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
				uuid.New(), p.ID, i, m.Name, m.Morning, m.Afternoon, m.Evening, m.Night, m.Quantity)
			if err != nil {
				return fmt.Errorf("insert medicine %d: %w", i, err)
			}
		}

		for i, t := range p.TestReports {
			reportDate, err := optionalDate(t.Date)
			if err != nil {
				return err
			}
			_, err = q.Exec(ctx, `
				INSERT INTO prescription_test_report (id, prescription_id, position, test_name, result, report_date)
				VALUES ($1,$2,$3,$4,$5,$6)`,
				uuid.New(), p.ID, i, t.TestName, t.Result, reportDate)
			if err != nil {
				return fmt.Errorf("insert test report %d: %w", i, err)
			}
		}
		return nil
	})
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx, `SELECT `+prescriptionCols+` FROM prescription WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, []*Prescription{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) List(ctx context.Context, patient string, limit, offset int) ([]*Prescription, int, error) {
	where := ""
	args := []interface{}{}
	idx := 1
	if patient != "" {
		where = fmt.Sprintf(" WHERE patient_name ILIKE $%d", idx)
		args = append(args, "%"+escapeLike(patient)+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM prescription`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sql := fmt.Sprintf(`SELECT `+prescriptionCols+` FROM prescription%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, where, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	if err := r.loadLines(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// loadLines fills medicines and test reports for ps in two queries.
func (r *repoPG) loadLines(ctx context.Context, ps []*Prescription) error {
	if len(ps) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Prescription, len(ps))
	ids := make([]uuid.UUID, len(ps))
	for i, p := range ps {
		byID[p.ID] = p
		ids[i] = p.ID
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT prescription_id, name, morning, afternoon, evening, night, quantity
		FROM prescription_medicine WHERE prescription_id = ANY($1)
		ORDER BY prescription_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load medicines: %w", err)
	}
	for rows.Next() {
		var pid uuid.UUID
		var m rxdoc.Medicine
		if err := rows.Scan(&pid, &m.Name, &m.Morning, &m.Afternoon, &m.Evening, &m.Night, &m.Quantity); err != nil {
			rows.Close()
			return err
		}
		if p := byID[pid]; p != nil {
			p.Medicines = append(p.Medicines, m)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.conn(ctx).Query(ctx, `
		SELECT prescription_id, test_name, result, report_date
		FROM prescription_test_report WHERE prescription_id = ANY($1)
		ORDER BY prescription_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load test reports: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pid uuid.UUID
		var t rxdoc.TestReport
		var date *time.Time
		if err := rows.Scan(&pid, &t.TestName, &t.Result, &date); err != nil {
			return err
		}
		if date != nil {
			t.Date = date.Format(dateLayout)
		}
		if p := byID[pid]; p != nil {
			p.TestReports = append(p.TestReports, t)
		}
	}
	return rows.Err()
}

func (r *repoPG) Stats(ctx context.Context, from, to time.Time) (*Stats, error) {
	var s Stats
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM prescription WHERE created_at >= $1 AND created_at < $2),
			(SELECT COUNT(*) FROM medicine WHERE created_at >= $1 AND created_at < $2),
			(SELECT COUNT(*) FROM prescription),
			(SELECT COUNT(*) FROM medicine)`, from, to,
	).Scan(&s.TodayPrescriptions, &s.TodayMedicines, &s.TotalPrescriptions, &s.TotalMedicines)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func optionalDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, ok := rxdoc.ParseDate(s)
	if !ok {
		return nil, fmt.Errorf("unparsable date %q", s)
	}
	return &t, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
