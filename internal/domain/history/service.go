package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/inderhuila/sportsmed/internal/domain/athlete"
	"github.com/inderhuila/sportsmed/internal/domain/catalog"
	"github.com/inderhuila/sportsmed/internal/platform/blobstore"
	"github.com/inderhuila/sportsmed/internal/platform/db"
	"github.com/inderhuila/sportsmed/pkg/dates"
)

// AthleteGetter is satisfied by *athlete.Service.
type AthleteGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*athlete.Athlete, error)
}

// ItemResolver is satisfied by *catalog.Service.
type ItemResolver interface {
	ItemID(ctx context.Context, catalogName, code string) (uuid.UUID, error)
}

// Renderer turns a bundle into a document. PDFRenderer is the production one.
type Renderer interface {
	Render(b *Bundle) ([]byte, error)
}

// StatusUpdate selects the new status by id or by history_status code.
type StatusUpdate struct {
	StatusID   *uuid.UUID `json:"status_id,omitempty"`
	StatusCode string     `json:"status_code,omitempty"`
}

type Service struct {
	repo     Repository
	tx       db.Transactor
	athletes AthleteGetter
	items    ItemResolver
	files    blobstore.Store
	renderer Renderer
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, tx db.Transactor, athletes AthleteGetter, items ItemResolver,
	files blobstore.Store, renderer Renderer, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		athletes: athletes,
		items:    items,
		files:    files,
		renderer: renderer,
		logger:   logger.With().Str("component", "history").Logger(),
		now:      time.Now,
	}
}

// CreateComplete writes the history and all of its sections in one
// transaction. Section ids are filled in on req.
func (s *Service) CreateComplete(ctx context.Context, req *CompleteRequest) (*ClinicalHistory, error) {
	if req.AthleteID == uuid.Nil {
		return nil, fmt.Errorf("%w: athlete_id is required", ErrInvalid)
	}
	if err := req.Sections.Normalize(); err != nil {
		return nil, err
	}
	if _, err := s.athletes.Get(ctx, req.AthleteID); err != nil {
		return nil, err
	}

	h := &ClinicalHistory{AthleteID: req.AthleteID, OpenedOn: dates.NewDate(s.now())}
	if req.OpenedOn != nil && !req.OpenedOn.IsZero() {
		h.OpenedOn = *req.OpenedOn
	}
	if req.StatusID != nil {
		h.StatusID = *req.StatusID
	} else {
		id, err := s.items.ItemID(ctx, catalog.HistoryStatus, DefaultStatusCode)
		if err != nil {
			return nil, fmt.Errorf("resolve default history status: %w", err)
		}
		h.StatusID = id
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, h); err != nil {
			return err
		}
		return s.repo.InsertSections(ctx, h.ID, &req.Sections)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("history_id", h.ID.String()).Str("athlete_id", h.AthleteID.String()).
		Msg("clinical history created")
	return h, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ClinicalHistory, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*ClinicalHistory, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// ListByAthlete fails with athlete.ErrNotFound for an unknown athlete.
func (s *Service) ListByAthlete(ctx context.Context, athleteID uuid.UUID, limit, offset int) ([]*ClinicalHistory, int, error) {
	if _, err := s.athletes.Get(ctx, athleteID); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, Filter{AthleteID: &athleteID}, limit, offset)
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, u StatusUpdate) (*ClinicalHistory, error) {
	var statusID uuid.UUID
	switch {
	case u.StatusID != nil && *u.StatusID != uuid.Nil:
		statusID = *u.StatusID
	case strings.TrimSpace(u.StatusCode) != "":
		resolved, err := s.items.ItemID(ctx, catalog.HistoryStatus, strings.ToUpper(strings.TrimSpace(u.StatusCode)))
		if errors.Is(err, catalog.ErrItemNotFound) {
			return nil, fmt.Errorf("%w: unknown status_code %q", ErrInvalid, u.StatusCode)
		}
		if err != nil {
			return nil, err
		}
		statusID = resolved
	default:
		return nil, fmt.Errorf("%w: status_id or status_code is required", ErrInvalid)
	}
	return s.repo.UpdateStatus(ctx, id, statusID)
}

// Delete removes the history; sections, files and download tokens follow by
// cascade. Attachment blobs are removed afterwards.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	files, err := s.repo.ListFiles(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	for _, f := range files {
		s.removeBlob(ctx, f)
	}
	return nil
}

// GetBundle loads everything the PDF needs.
func (s *Service) GetBundle(ctx context.Context, id uuid.UUID) (*Bundle, error) {
	b, err := s.repo.Header(ctx, id)
	if err != nil {
		return nil, err
	}
	sections, err := s.repo.LoadSections(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Sections = sections
	return b, nil
}

func (s *Service) GetOwner(ctx context.Context, id uuid.UUID) (*Owner, error) {
	b, err := s.repo.Header(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Owner{
		HistoryID:      b.History.ID,
		AthleteID:      b.Athlete.ID,
		DocumentNumber: b.Athlete.DocumentNumber,
		Email:          b.Athlete.Email,
		FullName:       strings.TrimSpace(b.Athlete.FirstNames + " " + b.Athlete.LastNames),
	}, nil
}

// RenderPDF returns the rendered history and the document number it is
// filed under.
func (s *Service) RenderPDF(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	b, err := s.GetBundle(ctx, id)
	if err != nil {
		return nil, "", err
	}
	out, err := s.renderer.Render(b)
	if err != nil {
		return nil, "", err
	}
	return out, b.Athlete.DocumentNumber, nil
}

// AddFile stores the attachment blob and then its row. The blob is removed
// again when the row cannot be written.
func (s *Service) AddFile(ctx context.Context, historyID uuid.UUID, category string, upload *blobstore.Upload) (*File, error) {
	if upload == nil {
		return nil, blobstore.ErrMissingFile
	}
	if _, err := s.repo.GetByID(ctx, historyID); err != nil {
		return nil, err
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = "general"
	}

	meta, err := s.files.Put(ctx, upload.Meta, upload.Content)
	if err != nil {
		return nil, err
	}
	blobID, err := uuid.Parse(meta.ID)
	if err != nil {
		return nil, fmt.Errorf("blob id %q: %w", meta.ID, err)
	}
	f := &File{
		HistoryID:   historyID,
		FileID:      blobID,
		FileName:    meta.FileName,
		ContentType: meta.ContentType,
		Size:        meta.Size,
		Category:    category,
	}
	if err := s.repo.CreateFile(ctx, f); err != nil {
		s.removeBlob(ctx, f)
		return nil, err
	}
	return f, nil
}

func (s *Service) ListFiles(ctx context.Context, historyID uuid.UUID) ([]*File, error) {
	if _, err := s.repo.GetByID(ctx, historyID); err != nil {
		return nil, err
	}
	return s.repo.ListFiles(ctx, historyID)
}

func (s *Service) fileOf(ctx context.Context, historyID, fileID uuid.UUID) (*File, error) {
	f, err := s.repo.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.HistoryID != historyID {
		return nil, ErrFileNotFound
	}
	return f, nil
}

// OpenFile returns the attachment content. Callers close it.
func (s *Service) OpenFile(ctx context.Context, historyID, fileID uuid.UUID) (io.ReadCloser, *blobstore.Metadata, error) {
	f, err := s.fileOf(ctx, historyID, fileID)
	if err != nil {
		return nil, nil, err
	}
	rc, meta, err := s.files.Open(ctx, f.FileID.String())
	if err != nil {
		return nil, nil, err
	}
	meta.FileName = f.FileName
	return rc, meta, nil
}

func (s *Service) DeleteFile(ctx context.Context, historyID, fileID uuid.UUID) error {
	f, err := s.fileOf(ctx, historyID, fileID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteFile(ctx, fileID); err != nil {
		return err
	}
	s.removeBlob(ctx, f)
	return nil
}

func (s *Service) removeBlob(ctx context.Context, f *File) {
	if err := s.files.Delete(ctx, f.FileID.String()); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		s.logger.Warn().Err(err).Str("file_id", f.ID.String()).Msg("failed to delete clinical attachment")
	}
}
