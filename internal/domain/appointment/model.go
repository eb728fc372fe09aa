package appointment

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/inderhuila/sportsmed/internal/domain/athlete"
	"github.com/inderhuila/sportsmed/pkg/dates"
)

var (
	ErrNotFound = errors.New("appointment not found")
	ErrInvalid  = errors.New("invalid input")
)

// Status code given to new appointments when none is supplied.
const DefaultStatusCode = "PROG"

type Appointment struct {
	ID        uuid.UUID    `json:"id"`
	AthleteID uuid.UUID    `json:"athlete_id" validate:"required"`
	Date      dates.Date   `json:"date"`
	Time      *dates.Clock `json:"time" validate:"required"`
	TypeID    uuid.UUID    `json:"type_id" validate:"required"`
	StatusID  uuid.UUID    `json:"status_id"`
	Notes     string       `json:"notes,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Filter narrows List. Zero values mean "any".
type Filter struct {
	From     *dates.Date
	To       *dates.Date
	StatusID *uuid.UUID
}

// DayAgenda is one athlete with the appointments it has on a given day.
type DayAgenda struct {
	Athlete      *athlete.Athlete `json:"athlete"`
	Appointments []*Appointment   `json:"appointments"`
}
