package history

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, h *ClinicalHistory) error
	GetByID(ctx context.Context, id uuid.UUID) (*ClinicalHistory, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*ClinicalHistory, int, error)
	UpdateStatus(ctx context.Context, id, statusID uuid.UUID) (*ClinicalHistory, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// InsertSections writes every non-empty section of s under historyID.
	InsertSections(ctx context.Context, historyID uuid.UUID, s *Sections) error
	LoadSections(ctx context.Context, historyID uuid.UUID) (*Sections, error)
	// Header loads the history with its status name and athlete summary.
	Header(ctx context.Context, historyID uuid.UUID) (*Bundle, error)

	CreateFile(ctx context.Context, f *File) error
	GetFile(ctx context.Context, id uuid.UUID) (*File, error)
	ListFiles(ctx context.Context, historyID uuid.UUID) ([]*File, error)
	DeleteFile(ctx context.Context, id uuid.UUID) error
}
