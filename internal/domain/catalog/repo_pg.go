package catalog

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

const catalogCols = `id, name, COALESCE(description, ''), active, created_at`

func scanCatalog(row pgx.Row) (*Catalog, error) {
	var c Catalog
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Active, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) ListCatalogs(ctx context.Context) ([]*Catalog, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+catalogCols+` FROM catalogs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list catalogs: %w", err)
	}
	defer rows.Close()
	var out []*Catalog
	for rows.Next() {
		c, err := scanCatalog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repoPG) GetCatalogByName(ctx context.Context, name string) (*Catalog, error) {
	c, err := scanCatalog(r.conn(ctx).QueryRow(ctx, `SELECT `+catalogCols+` FROM catalogs WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get catalog %q: %w", name, err)
	}
	return c, nil
}

func (r *repoPG) CreateCatalog(ctx context.Context, c *Catalog) error {
	c.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO catalogs (id, name, description, active)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		RETURNING created_at`,
		c.ID, c.Name, c.Description, c.Active).Scan(&c.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert catalog: %w", err)
	}
	return nil
}

func (r *repoPG) UpsertCatalog(ctx context.Context, c *Catalog) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO catalogs (id, name, description, active)
		VALUES ($1, $2, NULLIF($3, ''), TRUE)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, active = TRUE
		RETURNING id, active, created_at`,
		uuid.New(), c.Name, c.Description).Scan(&c.ID, &c.Active, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert catalog %q: %w", c.Name, err)
	}
	return nil
}

const itemCols = `id, catalog_id, code, name, active, created_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	if err := row.Scan(&it.ID, &it.CatalogID, &it.Code, &it.Name, &it.Active, &it.CreatedAt); err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *repoPG) ListItems(ctx context.Context, catalogID uuid.UUID, includeInactive bool) ([]*Item, error) {
	q := `SELECT ` + itemCols + ` FROM catalog_items WHERE catalog_id = $1`
	if !includeInactive {
		q += ` AND active`
	}
	q += ` ORDER BY name`
	rows, err := r.conn(ctx).Query(ctx, q, catalogID)
	if err != nil {
		return nil, fmt.Errorf("list catalog items: %w", err)
	}
	defer rows.Close()
	var out []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *repoPG) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	it, err := scanItem(r.conn(ctx).QueryRow(ctx, `SELECT `+itemCols+` FROM catalog_items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get catalog item: %w", err)
	}
	return it, nil
}

func (r *repoPG) CreateItem(ctx context.Context, it *Item) error {
	it.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO catalog_items (id, catalog_id, code, name, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		it.ID, it.CatalogID, it.Code, it.Name, it.Active).Scan(&it.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert catalog item: %w", err)
	}
	return nil
}

func (r *repoPG) UpdateItem(ctx context.Context, it *Item) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE catalog_items SET code = $2, name = $3, active = $4 WHERE id = $1`,
		it.ID, it.Code, it.Name, it.Active)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update catalog item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *repoPG) UpsertItem(ctx context.Context, it *Item) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO catalog_items (id, catalog_id, code, name, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (catalog_id, code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, active, created_at`,
		uuid.New(), it.CatalogID, it.Code, it.Name).Scan(&it.ID, &it.Active, &it.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert catalog item %q: %w", it.Code, err)
	}
	return nil
}
