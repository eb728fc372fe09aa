package downloadtoken

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

const tokenCols = `id, token, history_id, athlete_id, subject_document_number, failed_attempts,
	locked, used, created_at, expires_at, used_at`

func scanToken(row pgx.Row) (*Token, error) {
	var t Token
	err := row.Scan(&t.ID, &t.Token, &t.HistoryID, &t.AthleteID, &t.SubjectDocumentNumber, &t.FailedAttempts,
		&t.Locked, &t.Used, &t.CreatedAt, &t.ExpiresAt, &t.UsedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repoPG) Create(ctx context.Context, t *Token) error {
	t.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO download_tokens (id, token, history_id, athlete_id, subject_document_number, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (token) DO NOTHING
		RETURNING created_at`,
		t.ID, t.Token, t.HistoryID, t.AthleteID, t.SubjectDocumentNumber, t.ExpiresAt).Scan(&t.CreatedAt)
	// A colliding token inserts nothing, so the transaction stays usable for a retry.
	if errors.Is(err, pgx.ErrNoRows) || db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if db.IsForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert download token: %w", err)
	}
	return nil
}

func (r *repoPG) get(ctx context.Context, query, token string) (*Token, error) {
	t, err := scanToken(r.conn(ctx).QueryRow(ctx, query, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get download token: %w", err)
	}
	return t, nil
}

func (r *repoPG) Get(ctx context.Context, token string) (*Token, error) {
	return r.get(ctx, `SELECT `+tokenCols+` FROM download_tokens WHERE token = $1`, token)
}

func (r *repoPG) GetForUpdate(ctx context.Context, token string) (*Token, error) {
	return r.get(ctx, `SELECT `+tokenCols+` FROM download_tokens WHERE token = $1 FOR UPDATE`, token)
}

func (r *repoPG) Save(ctx context.Context, t *Token) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE download_tokens SET failed_attempts = $2, locked = $3, used = $4, used_at = $5
		WHERE id = $1`,
		t.ID, t.FailedAttempts, t.Locked, t.Used, t.UsedAt)
	if err != nil {
		return fmt.Errorf("update download token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) LockActive(ctx context.Context, historyID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE download_tokens SET locked = TRUE WHERE history_id = $1 AND NOT locked AND NOT used`, historyID)
	if err != nil {
		return 0, fmt.Errorf("lock download tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
