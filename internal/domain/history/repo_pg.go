package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inderhuila/sportsmed/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Pick(ctx, r.pool)
}

const historyCols = `id, athlete_id, opened_on, status_id, created_at, updated_at`

func scanHistory(row pgx.Row) (*ClinicalHistory, error) {
	var h ClinicalHistory
	if err := row.Scan(&h.ID, &h.AthleteID, &h.OpenedOn, &h.StatusID, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *repoPG) Create(ctx context.Context, h *ClinicalHistory) error {
	h.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinical_histories (id, athlete_id, opened_on, status_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		h.ID, h.AthleteID, h.OpenedOn, h.StatusID).Scan(&h.CreatedAt, &h.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: unknown athlete or status", ErrInvalid)
	}
	if err != nil {
		return fmt.Errorf("insert clinical history: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*ClinicalHistory, error) {
	h, err := scanHistory(r.conn(ctx).QueryRow(ctx, `SELECT `+historyCols+` FROM clinical_histories WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get clinical history: %w", err)
	}
	return h, nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*ClinicalHistory, int, error) {
	where, args := "", []interface{}{}
	if f.AthleteID != nil {
		where = ` WHERE athlete_id = $1`
		args = append(args, *f.AthleteID)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM clinical_histories`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count clinical histories: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM clinical_histories%s ORDER BY opened_on DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		historyCols, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list clinical histories: %w", err)
	}
	defer rows.Close()
	var items []*ClinicalHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan clinical history: %w", err)
		}
		items = append(items, h)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, id, statusID uuid.UUID) (*ClinicalHistory, error) {
	h, err := scanHistory(r.conn(ctx).QueryRow(ctx, `
		UPDATE clinical_histories SET status_id = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+historyCols, id, statusID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if db.IsForeignKeyViolation(err) {
		return nil, fmt.Errorf("%w: unknown status_id", ErrInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("update clinical history status: %w", err)
	}
	return h, nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM clinical_histories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete clinical history: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertSections sends every insert in one batch. Callers run it inside a
// transaction so a failing row rolls back the whole history.
func (r *repoPG) InsertSections(ctx context.Context, historyID uuid.UUID, s *Sections) error {
	b := &pgx.Batch{}
	id := func() uuid.UUID { return uuid.New() }

	if c := s.ConsultationReason; c != nil {
		c.ID = id()
		b.Queue(`INSERT INTO consultation_reasons (id, history_id, appointment_type, reason, current_illness)
			VALUES ($1,$2,NULLIF($3,''),$4,NULLIF($5,''))`, c.ID, historyID, c.AppointmentType, c.Reason, c.CurrentIllness)
	}
	for i := range s.PersonalHistory {
		p := &s.PersonalHistory[i]
		p.ID = id()
		b.Queue(`INSERT INTO personal_history (id, history_id, cie11_code, disease_name, notes)
			VALUES ($1,$2,NULLIF($3,''),$4,NULLIF($5,''))`, p.ID, historyID, p.CIE11Code, p.DiseaseName, p.Notes)
	}
	for i := range s.FamilyHistory {
		f := &s.FamilyHistory[i]
		f.ID = id()
		b.Queue(`INSERT INTO family_history (id, history_id, relative, cie11_code, disease_name, notes)
			VALUES ($1,$2,$3,NULLIF($4,''),$5,NULLIF($6,''))`, f.ID, historyID, f.Relative, f.CIE11Code, f.DiseaseName, f.Notes)
	}
	for i := range s.SportsInjuries {
		j := &s.SportsInjuries[i]
		j.ID = id()
		b.Queue(`INSERT INTO sports_injuries (id, history_id, injury_type, injury_date, treatment, notes)
			VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,''))`, j.ID, historyID, j.InjuryType, j.InjuryDate, j.Treatment, j.Notes)
	}
	for i := range s.PriorSurgeries {
		p := &s.PriorSurgeries[i]
		p.ID = id()
		b.Queue(`INSERT INTO prior_surgeries (id, history_id, surgery_type, surgery_date, notes)
			VALUES ($1,$2,$3,$4,NULLIF($5,''))`, p.ID, historyID, p.SurgeryType, p.SurgeryDate, p.Notes)
	}
	for i := range s.Allergies {
		a := &s.Allergies[i]
		a.ID = id()
		b.Queue(`INSERT INTO allergies (id, history_id, allergy_type, description, reaction)
			VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''))`, a.ID, historyID, a.AllergyType, a.Description, a.Reaction)
	}
	for i := range s.Medications {
		m := &s.Medications[i]
		m.ID = id()
		b.Queue(`INSERT INTO medications (id, history_id, name, dose, frequency, duration, indication)
			VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),NULLIF($6,''),NULLIF($7,''))`,
			m.ID, historyID, m.Name, m.Dose, m.Frequency, m.Duration, m.Indication)
	}
	for i := range s.Vaccinations {
		v := &s.Vaccinations[i]
		v.ID = id()
		b.Queue(`INSERT INTO vaccinations (id, history_id, vaccine_name, administered_on, next_dose_on)
			VALUES ($1,$2,$3,$4,$5)`, v.ID, historyID, v.VaccineName, v.AdministeredOn, v.NextDoseOn)
	}
	for i := range s.SystemsReview {
		sr := &s.SystemsReview[i]
		sr.ID = id()
		b.Queue(`INSERT INTO systems_review (id, history_id, system, status, findings)
			VALUES ($1,$2,$3,$4,NULLIF($5,''))`, sr.ID, historyID, sr.System, sr.Status, sr.Findings)
	}
	if v := s.VitalSigns; v != nil {
		v.ID = id()
		b.Queue(`INSERT INTO vital_signs (id, history_id, height_cm, weight_kg, heart_rate, systolic, diastolic,
				respiratory_rate, temperature_c, oxygen_saturation, bmi)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			v.ID, historyID, v.HeightCM, v.WeightKG, v.HeartRate, v.Systolic, v.Diastolic,
			v.RespiratoryRate, v.TemperatureC, v.OxygenSaturation, v.BMI)
	}
	for i := range s.PhysicalExams {
		p := &s.PhysicalExams[i]
		p.ID = id()
		b.Queue(`INSERT INTO physical_exams (id, history_id, system, findings)
			VALUES ($1,$2,$3,NULLIF($4,''))`, p.ID, historyID, p.System, p.Findings)
	}
	for i := range s.ComplementaryTests {
		t := &s.ComplementaryTests[i]
		t.ID = id()
		b.Queue(`INSERT INTO complementary_tests (id, history_id, category, test_name, cups_code, result)
			VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,''))`, t.ID, historyID, t.Category, t.TestName, t.CUPSCode, t.Result)
	}
	for i := range s.Diagnoses {
		d := &s.Diagnoses[i]
		d.ID = id()
		b.Queue(`INSERT INTO diagnoses (id, history_id, cie11_code, name, notes, objective_analysis, diagnostic_impression)
			VALUES ($1,$2,NULLIF($3,''),$4,NULLIF($5,''),NULLIF($6,''),NULLIF($7,''))`,
			d.ID, historyID, d.CIE11Code, d.Name, d.Notes, d.ObjectiveAnalysis, d.DiagnosticImpression)
	}
	if p := s.TreatmentPlan; p != nil {
		p.ID = id()
		b.Queue(`INSERT INTO treatment_plans (id, history_id, medical_indications, training_recommendations, follow_up_plan)
			VALUES ($1,$2,NULLIF($3,''),NULLIF($4,''),NULLIF($5,''))`,
			p.ID, historyID, p.MedicalIndications, p.TrainingRecommendations, p.FollowUpPlan)
	}
	for i := range s.SpecialistReferrals {
		ref := &s.SpecialistReferrals[i]
		ref.ID = id()
		b.Queue(`INSERT INTO specialist_referrals (id, history_id, specialist, reason, priority, referral_date)
			VALUES ($1,$2,$3,$4,$5,$6)`, ref.ID, historyID, ref.Specialist, ref.Reason, ref.Priority, ref.ReferralDate)
	}

	if b.Len() == 0 {
		return nil
	}
	br := r.conn(ctx).SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert history section %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("insert history sections: %w", err)
	}
	return nil
}

// sectionQuery is one SELECT of LoadSections and the scan of a single row.
type sectionQuery struct {
	sql  string
	scan func(rows pgx.Rows) error
}

func (r *repoPG) LoadSections(ctx context.Context, historyID uuid.UUID) (*Sections, error) {
	s := &Sections{}
	queries := []sectionQuery{
		{`SELECT id, COALESCE(appointment_type,''), reason, COALESCE(current_illness,'')
			FROM consultation_reasons WHERE history_id = $1 ORDER BY created_at DESC LIMIT 1`,
			func(rows pgx.Rows) error {
				var c ConsultationReason
				if err := rows.Scan(&c.ID, &c.AppointmentType, &c.Reason, &c.CurrentIllness); err != nil {
					return err
				}
				s.ConsultationReason = &c
				return nil
			}},
		{`SELECT id, COALESCE(cie11_code,''), disease_name, COALESCE(notes,'')
			FROM personal_history WHERE history_id = $1 ORDER BY created_at, id`,
			func(rows pgx.Rows) error {
				var p PersonalHistory
				if err := rows.Scan(&p.ID, &p.CIE11Code, &p.DiseaseName, &p.Notes); err != nil {
					return err
				}
				s.PersonalHistory = append(s.PersonalHistory, p)
				return nil
			}},
		{`SELECT id, relative, COALESCE(cie11_code,''), disease_name, COALESCE(notes,'')
			FROM family_history WHERE history_id = $1 ORDER BY created_at, id`,
			func(rows pgx.Rows) error {
				var f FamilyHistory
				if err := rows.Scan(&f.ID, &f.Relative, &f.CIE11Code, &f.DiseaseName, &f.Notes); err != nil {
					return err
				}
				s.FamilyHistory = append(s.FamilyHistory, f)
				return nil
			}},
		{`SELECT id, injury_type, injury_date, COALESCE(treatment,''), COALESCE(notes,'')
			FROM sports_injuries WHERE history_id = $1 ORDER BY created_at, id`,
			func(rows pgx.Rows) error {
				var j SportsInjury
				if err := rows.Scan(&j.ID, &j.InjuryType, &j.InjuryDate, &j.Treatment, &j.Notes); err != nil {
					return err
				}
				s.SportsInjuries = append(s.SportsInjuries, j)
				return nil
			}},
		{`SELECT id, surgery_type, surgery_date, COALESCE(notes,'')
			FROM prior_surgeries WHERE history_id = $1 ORDER BY created_at, id`,
			func(rows pgx.Rows) error {
				var p PriorSurgery
				if err := rows.Scan(&p.ID, &p.SurgeryType, &p.SurgeryDate, &p.Notes); err != nil {
					return err
				}
				s.PriorSurgeries = append(s.PriorSurgeries, p)
				return nil
			}},
		{`SELECT id, allergy_type, COALESCE(description,''), COALESCE(reaction,'')
			FROM allergies WHERE history_id = $1 ORDER BY created_at, id`,
			func(rows pgx.Rows) error {
				var a Allergy
				if err := rows.Scan(&a.ID, &a.AllergyType, &a.Description, &a.Reaction); err != nil {
					return err
				}
				s.Allergies = append(s.Allergies, a)
				return nil
			}},
		{`SELECT id, name, COALESCE(dose,''), COALESCE(frequency,''), COALESCE(duration,''), COALESCE(indication,'')
			FROM medications WHERE history_id = $1 ORDER BY created_at, id`,
			func(rows pgx.Rows) error {
				var m Medication
				if err := rows.Scan(&m.ID, &m.Name, &m.Dose, &m.Frequency, &m.Duration, &m.Indication); err != nil {
					return err
				}
				s.Medications = append(s.Medications, m)
				return nil
			}},
		{`SELECT id, vaccine_name, administered_on, next_dose_on
			FROM vaccinations WHERE history_id = $1 ORDER BY created_at, id`,
			func(rows pgx.Rows) error {
				var v Vaccination
				if err := rows.Scan(&v.ID, &v.VaccineName, &v.AdministeredOn, &v.NextDoseOn); err != nil {
					return err
				}
				s.Vaccinations = append(s.Vaccinations, v)
				return nil
			}},
		{`SELECT id, system, status, COALESCE(findings,'')
			FROM systems_review WHERE history_id = $1 ORDER BY created_at, id`,
			func(rows pgx.Rows) error {
				var sr SystemReview
				if err := rows.Scan(&sr.ID, &sr.System, &sr.Status, &sr.Findings); err != nil {
					return err
				}
				s.SystemsReview = append(s.SystemsReview, sr)
				return nil
			}},
		{`SELECT id, height_cm, weight_kg, heart_rate, systolic, diastolic, respiratory_rate,
				temperature_c, oxygen_saturation, bmi
			FROM vital_signs WHERE history_id = $1 ORDER BY created_at DESC LIMIT 1`,
			func(rows pgx.Rows) error {
				var v VitalSigns
				if err := rows.Scan(&v.ID, &v.HeightCM, &v.WeightKG, &v.HeartRate, &v.Systolic, &v.Diastolic,
					&v.RespiratoryRate, &v.TemperatureC, &v.OxygenSaturation, &v.BMI); err != nil {
					return err
				}
				s.VitalSigns = &v
				return nil
			}},
		{`SELECT id, system, COALESCE(findings,'')
			FROM physical_exams WHERE history_id = $1 ORDER BY created_at, id`,
			func(rows pgx.Rows) error {
				var p PhysicalExam
				if err := rows.Scan(&p.ID, &p.System, &p.Findings); err != nil {
					return err
				}
				s.PhysicalExams = append(s.PhysicalExams, p)
				return nil
			}},
		{`SELECT id, category, test_name, COALESCE(cups_code,''), COALESCE(result,'')
			FROM complementary_tests WHERE history_id = $1 ORDER BY created_at, id`,
			func(rows pgx.Rows) error {
				var t ComplementaryTest
				if err := rows.Scan(&t.ID, &t.Category, &t.TestName, &t.CUPSCode, &t.Result); err != nil {
					return err
				}
				s.ComplementaryTests = append(s.ComplementaryTests, t)
				return nil
			}},
		{`SELECT id, COALESCE(cie11_code,''), name, COALESCE(notes,''), COALESCE(objective_analysis,''),
				COALESCE(diagnostic_impression,'')
			FROM diagnoses WHERE history_id = $1 ORDER BY created_at, id`,
			func(rows pgx.Rows) error {
				var d Diagnosis
				if err := rows.Scan(&d.ID, &d.CIE11Code, &d.Name, &d.Notes, &d.ObjectiveAnalysis, &d.DiagnosticImpression); err != nil {
					return err
				}
				s.Diagnoses = append(s.Diagnoses, d)
				return nil
			}},
		{`SELECT id, COALESCE(medical_indications,''), COALESCE(training_recommendations,''), COALESCE(follow_up_plan,'')
			FROM treatment_plans WHERE history_id = $1 ORDER BY created_at DESC LIMIT 1`,
			func(rows pgx.Rows) error {
				var p TreatmentPlan
				if err := rows.Scan(&p.ID, &p.MedicalIndications, &p.TrainingRecommendations, &p.FollowUpPlan); err != nil {
					return err
				}
				s.TreatmentPlan = &p
				return nil
			}},
		{`SELECT id, specialist, reason, priority, referral_date
			FROM specialist_referrals WHERE history_id = $1 ORDER BY created_at, id`,
			func(rows pgx.Rows) error {
				var ref SpecialistReferral
				if err := rows.Scan(&ref.ID, &ref.Specialist, &ref.Reason, &ref.Priority, &ref.ReferralDate); err != nil {
					return err
				}
				s.SpecialistReferrals = append(s.SpecialistReferrals, ref)
				return nil
			}},
	}

	b := &pgx.Batch{}
	for _, q := range queries {
		b.Queue(q.sql, historyID)
	}
	br := r.conn(ctx).SendBatch(ctx, b)
	defer br.Close()
	for i, q := range queries {
		rows, err := br.Query()
		if err != nil {
			return nil, fmt.Errorf("load history section %d: %w", i, err)
		}
		for rows.Next() {
			if err := q.scan(rows); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan history section %d: %w", i, err)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("load history section %d: %w", i, err)
		}
	}
	return s, nil
}

func (r *repoPG) Header(ctx context.Context, historyID uuid.UUID) (*Bundle, error) {
	var (
		h ClinicalHistory
		a AthleteSummary
		b = Bundle{History: &h}
	)
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT h.id, h.athlete_id, h.opened_on, h.status_id, h.created_at, h.updated_at, st.name,
			a.id, dt.name, a.document_number, a.first_names, a.last_names, a.birth_date, sx.name,
			COALESCE(a.sport, ''), COALESCE(a.email, ''), COALESCE(a.phone, '')
		FROM clinical_histories h
		JOIN athletes a ON a.id = h.athlete_id
		JOIN catalog_items st ON st.id = h.status_id
		JOIN catalog_items dt ON dt.id = a.document_type_id
		JOIN catalog_items sx ON sx.id = a.sex_id
		WHERE h.id = $1`, historyID).Scan(
		&h.ID, &h.AthleteID, &h.OpenedOn, &h.StatusID, &h.CreatedAt, &h.UpdatedAt, &b.Status,
		&a.ID, &a.DocumentType, &a.DocumentNumber, &a.FirstNames, &a.LastNames, &a.BirthDate, &a.Sex,
		&a.Sport, &a.Email, &a.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get clinical history header: %w", err)
	}
	b.Athlete = a
	return &b, nil
}

const fileCols = `id, history_id, file_id, file_name, content_type, size, category, created_at`

func scanFile(row pgx.Row) (*File, error) {
	var f File
	if err := row.Scan(&f.ID, &f.HistoryID, &f.FileID, &f.FileName, &f.ContentType, &f.Size, &f.Category, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *repoPG) CreateFile(ctx context.Context, f *File) error {
	f.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO history_files (id, history_id, file_id, file_name, content_type, size, category)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		f.ID, f.HistoryID, f.FileID, f.FileName, f.ContentType, f.Size, f.Category).Scan(&f.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert history file: %w", err)
	}
	return nil
}

func (r *repoPG) GetFile(ctx context.Context, id uuid.UUID) (*File, error) {
	f, err := scanFile(r.conn(ctx).QueryRow(ctx, `SELECT `+fileCols+` FROM history_files WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get history file: %w", err)
	}
	return f, nil
}

func (r *repoPG) ListFiles(ctx context.Context, historyID uuid.UUID) ([]*File, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+fileCols+` FROM history_files
		WHERE history_id = $1 ORDER BY created_at DESC`, historyID)
	if err != nil {
		return nil, fmt.Errorf("list history files: %w", err)
	}
	defer rows.Close()
	var items []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history file: %w", err)
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

func (r *repoPG) DeleteFile(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM history_files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete history file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}
