package athlete

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const athleteCols = `id, document_type_id, document_number, first_names, last_names, birth_date,
	sex_id, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(address, ''), COALESCE(sport, ''),
	status_id, created_at, updated_at`

func scanAthlete(row pgx.Row) (*Athlete, error) {
	var a Athlete
	err := row.Scan(&a.ID, &a.DocumentTypeID, &a.DocumentNumber, &a.FirstNames, &a.LastNames, &a.BirthDate,
		&a.SexID, &a.Phone, &a.Email, &a.Address, &a.Sport,
		&a.StatusID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) getOne(ctx context.Context, where string, arg interface{}) (*Athlete, error) {
	a, err := scanAthlete(r.conn(ctx).QueryRow(ctx, `SELECT `+athleteCols+` FROM athletes WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get athlete: %w", err)
	}
	return a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Athlete) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO athletes (id, document_type_id, document_number, first_names, last_names, birth_date,
			sex_id, phone, email, address, sport, status_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),NULLIF($9,''),NULLIF($10,''),NULLIF($11,''),$12)
		RETURNING created_at, updated_at`,
		a.ID, a.DocumentTypeID, a.DocumentNumber, a.FirstNames, a.LastNames, a.BirthDate,
		a.SexID, a.Phone, a.Email, a.Address, a.Sport, a.StatusID).Scan(&a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateDocument
	}
	if err != nil {
		return fmt.Errorf("insert athlete: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Athlete, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *repoPG) GetByDocument(ctx context.Context, number string) (*Athlete, error) {
	return r.getOne(ctx, `document_number = $1`, number)
}

func (r *repoPG) Update(ctx context.Context, a *Athlete) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE athletes SET document_type_id=$2, document_number=$3, first_names=$4, last_names=$5,
			birth_date=$6, sex_id=$7, phone=NULLIF($8,''), email=NULLIF($9,''), address=NULLIF($10,''),
			sport=NULLIF($11,''), status_id=$12, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		a.ID, a.DocumentTypeID, a.DocumentNumber, a.FirstNames, a.LastNames,
		a.BirthDate, a.SexID, a.Phone, a.Email, a.Address, a.Sport, a.StatusID).Scan(&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if db.IsUniqueViolation(err) {
		return ErrDuplicateDocument
	}
	if err != nil {
		return fmt.Errorf("update athlete: %w", err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM athletes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete athlete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectAthletes(rows pgx.Rows) ([]*Athlete, error) {
	defer rows.Close()
	var items []*Athlete
	for rows.Next() {
		a, err := scanAthlete(rows)
		if err != nil {
			return nil, fmt.Errorf("scan athlete: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Athlete, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM athletes`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count athletes: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+athleteCols+` FROM athletes ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list athletes: %w", err)
	}
	items, err := collectAthletes(rows)
	return items, total, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *repoPG) Search(ctx context.Context, q string, limit int) ([]*Athlete, error) {
	pattern := "%" + escapeLike(q) + "%"
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+athleteCols+` FROM athletes
		WHERE first_names ILIKE $1 OR last_names ILIKE $1 OR document_number ILIKE $1
			OR (first_names || ' ' || last_names) ILIKE $1
		ORDER BY last_names, first_names
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search athletes: %w", err)
	}
	return collectAthletes(rows)
}

const vaccineCols = `id, athlete_id, vaccine_name, administered_on, next_dose_on, COALESCE(notes, ''),
	file_id, COALESCE(file_name, ''), COALESCE(content_type, ''), created_at`

func scanVaccine(row pgx.Row) (*Vaccine, error) {
	var v Vaccine
	err := row.Scan(&v.ID, &v.AthleteID, &v.VaccineName, &v.AdministeredOn, &v.NextDoseOn, &v.Notes,
		&v.FileID, &v.FileName, &v.ContentType, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repoPG) CreateVaccine(ctx context.Context, v *Vaccine) error {
	v.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO athlete_vaccines (id, athlete_id, vaccine_name, administered_on, next_dose_on, notes,
			file_id, file_name, content_type)
		VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,NULLIF($8,''),NULLIF($9,''))
		RETURNING created_at`,
		v.ID, v.AthleteID, v.VaccineName, v.AdministeredOn, v.NextDoseOn, v.Notes,
		v.FileID, v.FileName, v.ContentType).Scan(&v.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert vaccine: %w", err)
	}
	return nil
}

func (r *repoPG) GetVaccine(ctx context.Context, id uuid.UUID) (*Vaccine, error) {
	v, err := scanVaccine(r.conn(ctx).QueryRow(ctx, `SELECT `+vaccineCols+` FROM athlete_vaccines WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVaccineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vaccine: %w", err)
	}
	return v, nil
}

func (r *repoPG) ListVaccines(ctx context.Context, athleteID uuid.UUID) ([]*Vaccine, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+vaccineCols+` FROM athlete_vaccines
		WHERE athlete_id = $1 ORDER BY administered_on DESC NULLS LAST, created_at DESC`, athleteID)
	if err != nil {
		return nil, fmt.Errorf("list vaccines: %w", err)
	}
	defer rows.Close()
	var items []*Vaccine
	for rows.Next() {
		v, err := scanVaccine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vaccine: %w", err)
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (r *repoPG) DeleteVaccine(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM athlete_vaccines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete vaccine: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVaccineNotFound
	}
	return nil
}
