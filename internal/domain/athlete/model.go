package athlete

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inderhuila/sportsmed/pkg/dates"
)

var (
	ErrNotFound          = errors.New("athlete not found")
	ErrDuplicateDocument = errors.New("an athlete with this document number already exists")
	ErrVaccineNotFound   = errors.New("vaccine record not found")
	ErrNoFile            = errors.New("vaccine record has no certificate")
	ErrInvalid           = errors.New("invalid input")
)

// MinSearchLength is the shortest query Search accepts.
const MinSearchLength = 2

// SearchLimit caps Search results.
const SearchLimit = 10

type Athlete struct {
	ID             uuid.UUID  `json:"id"`
	DocumentTypeID uuid.UUID  `json:"document_type_id" validate:"required"`
	DocumentNumber string     `json:"document_number" validate:"required,max=20"`
	FirstNames     string     `json:"first_names" validate:"required,max=100"`
	LastNames      string     `json:"last_names" validate:"required,max=100"`
	BirthDate      dates.Date `json:"birth_date"`
	SexID          uuid.UUID  `json:"sex_id" validate:"required"`
	Phone          string     `json:"phone,omitempty" validate:"max=20"`
	Email          string     `json:"email,omitempty" validate:"omitempty,email,max=100"`
	Address        string     `json:"address,omitempty"`
	Sport          string     `json:"sport,omitempty" validate:"max=100"`
	StatusID       uuid.UUID  `json:"status_id" validate:"required"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// FullName is "first last".
func (a *Athlete) FullName() string {
	return strings.TrimSpace(a.FirstNames + " " + a.LastNames)
}

// Vaccine is a vaccination certificate attached to an athlete. The file
// itself lives in the blob store under FileID.
type Vaccine struct {
	ID             uuid.UUID   `json:"id"`
	AthleteID      uuid.UUID   `json:"athlete_id"`
	VaccineName    string      `json:"vaccine_name" validate:"required,max=100"`
	AdministeredOn *dates.Date `json:"administered_on,omitempty"`
	NextDoseOn     *dates.Date `json:"next_dose_on,omitempty"`
	Notes          string      `json:"notes,omitempty"`
	FileID         *uuid.UUID  `json:"file_id,omitempty"`
	FileName       string      `json:"file_name,omitempty"`
	ContentType    string      `json:"content_type,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}
