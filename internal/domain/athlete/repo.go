package athlete

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Athlete) error
	GetByID(ctx context.Context, id uuid.UUID) (*Athlete, error)
	GetByDocument(ctx context.Context, number string) (*Athlete, error)
	Update(ctx context.Context, a *Athlete) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Athlete, int, error)
	Search(ctx context.Context, q string, limit int) ([]*Athlete, error)

	CreateVaccine(ctx context.Context, v *Vaccine) error
	GetVaccine(ctx context.Context, id uuid.UUID) (*Vaccine, error)
	ListVaccines(ctx context.Context, athleteID uuid.UUID) ([]*Vaccine, error)
	DeleteVaccine(ctx context.Context, id uuid.UUID) error
}
