package downloadtoken

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create fails with ErrDuplicate when the token string is taken.
	Create(ctx context.Context, t *Token) error
	Get(ctx context.Context, token string) (*Token, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, token string) (*Token, error)
	// Save persists the mutable state: attempts, locked, used, used_at.
	Save(ctx context.Context, t *Token) error
	// LockActive locks every unlocked token of a history and returns how many.
	LockActive(ctx context.Context, historyID uuid.UUID) (int64, error)
}
