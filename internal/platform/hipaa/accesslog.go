package hipaa

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inderhuila/sportsmed/internal/platform/db"
)

// AccessLog is one row of clinical_access_log: who touched which athlete
// record, through which endpoint, and with what result.
type AccessLog struct {
	ID           uuid.UUID  `json:"id"`
	AthleteID    *uuid.UUID `json:"athlete_id,omitempty"`
	ResourceType string     `json:"resource_type"`
	ResourceID   *uuid.UUID `json:"resource_id,omitempty"`
	Action       string     `json:"action"`
	UserID       string     `json:"user_id"`
	UserRoles    []string   `json:"user_roles"`
	Method       string     `json:"method"`
	Path         string     `json:"path"`
	StatusCode   int        `json:"status_code"`
	IPAddress    string     `json:"ip_address"`
	UserAgent    string     `json:"user_agent"`
	RequestID    string     `json:"request_id"`
	AccessedAt   time.Time  `json:"accessed_at"`
}

// AccessFilter narrows List. Zero values mean "any".
type AccessFilter struct {
	AthleteID *uuid.UUID
	UserID    string
	Since     *time.Time
}

// AccessLogger writes and reads clinical_access_log.
type AccessLogger struct {
	pool *pgxpool.Pool
}

func NewAccessLogger(pool *pgxpool.Pool) *AccessLogger {
	return &AccessLogger{pool: pool}
}

// Record inserts entry on the request connection when there is one.
func (a *AccessLogger) Record(ctx context.Context, entry *AccessLog) error {
	if entry.AccessedAt.IsZero() {
		entry.AccessedAt = time.Now().UTC()
	}
	if entry.UserRoles == nil {
		entry.UserRoles = []string{}
	}
	entry.ID = uuid.New()

	_, err := db.Pick(ctx, a.pool).Exec(ctx, `
		INSERT INTO clinical_access_log (
			id, athlete_id, resource_type, resource_id, action,
			user_id, user_roles, method, path, status_code,
			ip_address, user_agent, request_id, accessed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		entry.ID, entry.AthleteID, entry.ResourceType, entry.ResourceID, entry.Action,
		entry.UserID, entry.UserRoles, entry.Method, entry.Path, entry.StatusCode,
		entry.IPAddress, entry.UserAgent, entry.RequestID, entry.AccessedAt)
	if err != nil {
		return fmt.Errorf("insert access log: %w", err)
	}
	return nil
}

// List returns entries newest first with the total matching count.
func (a *AccessLogger) List(ctx context.Context, f AccessFilter, limit, offset int) ([]*AccessLog, int, error) {
	where, args := f.clause()
	q := db.Pick(ctx, a.pool)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM clinical_access_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count access log: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT id, athlete_id, resource_type, resource_id, action,
			user_id, user_roles, method, path, status_code,
			ip_address, user_agent, request_id, accessed_at
		FROM clinical_access_log%s
		ORDER BY accessed_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list access log: %w", err)
	}
	defer rows.Close()

	var out []*AccessLog
	for rows.Next() {
		var e AccessLog
		if err := rows.Scan(&e.ID, &e.AthleteID, &e.ResourceType, &e.ResourceID, &e.Action,
			&e.UserID, &e.UserRoles, &e.Method, &e.Path, &e.StatusCode,
			&e.IPAddress, &e.UserAgent, &e.RequestID, &e.AccessedAt); err != nil {
			return nil, 0, fmt.Errorf("scan access log: %w", err)
		}
		out = append(out, &e)
	}
	return out, total, rows.Err()
}

func (f AccessFilter) clause() (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.AthleteID != nil {
		args = append(args, *f.AthleteID)
		conds = append(conds, fmt.Sprintf("athlete_id = $%d", len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Since != nil {
		args = append(args, *f.Since)
		conds = append(conds, fmt.Sprintf("accessed_at >= $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	where := " WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args
}
