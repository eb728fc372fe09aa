package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Well-known catalog names referenced by other domains.
const (
	DocumentType      = "document_type"
	Sex               = "sex"
	AthleteStatus     = "athlete_status"
	HistoryStatus     = "history_status"
	AppointmentType   = "appointment_type"
	AppointmentStatus = "appointment_status"
)

var (
	ErrNotFound     = errors.New("catalog not found")
	ErrItemNotFound = errors.New("catalog item not found")
	ErrDuplicate    = errors.New("catalog entry already exists")
	ErrInvalid      = errors.New("invalid input")
)

type Catalog struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name" validate:"required,max=50"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	Items       []*Item   `json:"items,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Item struct {
	ID        uuid.UUID `json:"id"`
	CatalogID uuid.UUID `json:"catalog_id"`
	Code      string    `json:"code" validate:"required,max=30"`
	Name      string    `json:"name" validate:"required,max=100"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
