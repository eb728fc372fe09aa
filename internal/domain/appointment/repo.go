package appointment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List orders by date then time.
	List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error)
	ListByAthlete(ctx context.Context, athleteID uuid.UUID) ([]*Appointment, error)
}
