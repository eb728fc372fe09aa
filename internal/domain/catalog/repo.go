package catalog

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	ListCatalogs(ctx context.Context) ([]*Catalog, error)
	GetCatalogByName(ctx context.Context, name string) (*Catalog, error)
	CreateCatalog(ctx context.Context, c *Catalog) error
	// UpsertCatalog inserts c or refreshes the description of the catalog
	// with the same name, filling c.ID either way.
	UpsertCatalog(ctx context.Context, c *Catalog) error

	ListItems(ctx context.Context, catalogID uuid.UUID, includeInactive bool) ([]*Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	CreateItem(ctx context.Context, it *Item) error
	UpdateItem(ctx context.Context, it *Item) error
	// UpsertItem matches on (catalog_id, code).
	UpsertItem(ctx context.Context, it *Item) error
}
