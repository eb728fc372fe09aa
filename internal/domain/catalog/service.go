package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/inderhuila/sportsmed/internal/platform/db"
)

type Service struct {
	repo   Repository
	tx     db.Transactor
	logger zerolog.Logger
}

func NewService(repo Repository, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, logger: logger.With().Str("component", "catalog").Logger()}
}

func (s *Service) ListCatalogs(ctx context.Context) ([]*Catalog, error) {
	return s.repo.ListCatalogs(ctx)
}

// GetCatalogByName returns the catalog with its items. Inactive items are
// left out unless includeInactive is set.
func (s *Service) GetCatalogByName(ctx context.Context, name string, includeInactive bool) (*Catalog, error) {
	c, err := s.repo.GetCatalogByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, c.ID, includeInactive)
	if err != nil {
		return nil, err
	}
	c.Items = items
	return c, nil
}

func (s *Service) CreateCatalog(ctx context.Context, c *Catalog) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	c.Active = true
	return s.repo.CreateCatalog(ctx, c)
}

func (s *Service) AddItem(ctx context.Context, catalogName string, it *Item) error {
	if err := validateItem(it); err != nil {
		return err
	}
	c, err := s.repo.GetCatalogByName(ctx, catalogName)
	if err != nil {
		return err
	}
	it.CatalogID = c.ID
	it.Active = true
	return s.repo.CreateItem(ctx, it)
}

// ItemUpdate carries the editable fields of an item. A nil Active keeps the
// current flag.
type ItemUpdate struct {
	Code   string `json:"code" validate:"required,max=30"`
	Name   string `json:"name" validate:"required,max=100"`
	Active *bool  `json:"active,omitempty"`
}

func (s *Service) UpdateItem(ctx context.Context, id uuid.UUID, u ItemUpdate) (*Item, error) {
	it, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	it.Code, it.Name = u.Code, u.Name
	if u.Active != nil {
		it.Active = *u.Active
	}
	if err := validateItem(it); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateItem(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// DeactivateItem hides an item from pickers. Rows that reference it keep
// pointing at it.
func (s *Service) DeactivateItem(ctx context.Context, id uuid.UUID) error {
	it, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if !it.Active {
		return nil
	}
	it.Active = false
	return s.repo.UpdateItem(ctx, it)
}

func validateItem(it *Item) error {
	it.Code = strings.TrimSpace(it.Code)
	it.Name = strings.TrimSpace(it.Name)
	if it.Code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalid)
	}
	if it.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	return nil
}

// ItemID resolves an active item by catalog name and code, e.g.
// ("appointment_status", "PROG").
func (s *Service) ItemID(ctx context.Context, catalogName, code string) (uuid.UUID, error) {
	c, err := s.GetCatalogByName(ctx, catalogName, false)
	if err != nil {
		return uuid.Nil, err
	}
	for _, it := range c.Items {
		if it.Code == code {
			return it.ID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("%w: %s/%s", ErrItemNotFound, catalogName, code)
}
