package history

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/inderhuila/sportsmed/pkg/dates"
)

var (
	ErrNotFound     = errors.New("clinical history not found")
	ErrFileNotFound = errors.New("clinical file not found")
	ErrInvalid      = errors.New("invalid input")
)

// DefaultStatusCode is the history_status item given to new histories.
const DefaultStatusCode = "ABIERTA"

type ClinicalHistory struct {
	ID        uuid.UUID  `json:"id"`
	AthleteID uuid.UUID  `json:"athlete_id"`
	OpenedOn  dates.Date `json:"opened_on"`
	StatusID  uuid.UUID  `json:"status_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Filter narrows List.
type Filter struct {
	AthleteID *uuid.UUID
}

// CompleteRequest is a history with all of its sections, written at once by
// Service.CreateComplete.
type CompleteRequest struct {
	AthleteID uuid.UUID   `json:"athlete_id" validate:"required"`
	OpenedOn  *dates.Date `json:"opened_on,omitempty"`
	StatusID  *uuid.UUID  `json:"status_id,omitempty"`
	Sections
}

// AthleteSummary is the part of the athlete record printed on a history.
type AthleteSummary struct {
	ID             uuid.UUID  `json:"id"`
	DocumentType   string     `json:"document_type"`
	DocumentNumber string     `json:"document_number"`
	FirstNames     string     `json:"first_names"`
	LastNames      string     `json:"last_names"`
	BirthDate      dates.Date `json:"birth_date"`
	Sex            string     `json:"sex"`
	Sport          string     `json:"sport,omitempty"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
}

// Bundle is a history with its athlete and every section, as rendered to PDF.
type Bundle struct {
	History  *ClinicalHistory `json:"history"`
	Status   string           `json:"status"`
	Athlete  AthleteSummary   `json:"athlete"`
	Sections *Sections        `json:"sections"`
}

// Owner identifies the athlete a history belongs to.
type Owner struct {
	HistoryID      uuid.UUID `json:"history_id"`
	AthleteID      uuid.UUID `json:"athlete_id"`
	DocumentNumber string    `json:"document_number"`
	Email          string    `json:"email,omitempty"`
	FullName       string    `json:"full_name"`
}

// File is an attachment (lab result, image, report) of a history. The bytes
// live in the blob store under FileID.
type File struct {
	ID          uuid.UUID `json:"id"`
	HistoryID   uuid.UUID `json:"history_id"`
	FileID      uuid.UUID `json:"file_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}
