package athlete

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/inderhuila/sportsmed/internal/platform/blobstore"
)

type Service struct {
	repo   Repository
	files  blobstore.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, files blobstore.Store, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		files:  files,
		logger: logger.With().Str("component", "athlete").Logger(),
		now:    time.Now,
	}
}

func (s *Service) validate(a *Athlete) error {
	a.DocumentNumber = strings.TrimSpace(a.DocumentNumber)
	a.FirstNames = strings.TrimSpace(a.FirstNames)
	a.LastNames = strings.TrimSpace(a.LastNames)
	a.Email = strings.TrimSpace(a.Email)

	switch {
	case a.DocumentTypeID == uuid.Nil:
		return fmt.Errorf("%w: document_type_id is required", ErrInvalid)
	case a.DocumentNumber == "":
		return fmt.Errorf("%w: document_number is required", ErrInvalid)
	case a.FirstNames == "":
		return fmt.Errorf("%w: first_names is required", ErrInvalid)
	case a.LastNames == "":
		return fmt.Errorf("%w: last_names is required", ErrInvalid)
	case a.BirthDate.IsZero():
		return fmt.Errorf("%w: birth_date is required", ErrInvalid)
	case a.BirthDate.After(s.now()):
		return fmt.Errorf("%w: birth_date cannot be in the future", ErrInvalid)
	case a.SexID == uuid.Nil:
		return fmt.Errorf("%w: sex_id is required", ErrInvalid)
	case a.StatusID == uuid.Nil:
		return fmt.Errorf("%w: status_id is required", ErrInvalid)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, a *Athlete) error {
	if err := s.validate(a); err != nil {
		return err
	}
	return s.repo.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Athlete, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByDocument(ctx context.Context, number string) (*Athlete, error) {
	return s.repo.GetByDocument(ctx, strings.TrimSpace(number))
}

func (s *Service) Update(ctx context.Context, a *Athlete) error {
	if err := s.validate(a); err != nil {
		return err
	}
	return s.repo.Update(ctx, a)
}

// Delete removes the athlete. Histories, appointments and vaccine rows go
// with it through ON DELETE CASCADE; certificate blobs are removed here.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	vaccines, err := s.repo.ListVaccines(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	for _, v := range vaccines {
		s.removeBlob(ctx, v)
	}
	return nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Athlete, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Search matches names or document number case-insensitively.
func (s *Service) Search(ctx context.Context, q string) ([]*Athlete, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < MinSearchLength {
		return nil, fmt.Errorf("%w: q must have at least %d characters", ErrInvalid, MinSearchLength)
	}
	return s.repo.Search(ctx, q, SearchLimit)
}

// AddVaccine stores the optional certificate and then the record. When the
// record cannot be written the blob is removed again.
func (s *Service) AddVaccine(ctx context.Context, v *Vaccine, file *blobstore.Upload) error {
	v.VaccineName = strings.TrimSpace(v.VaccineName)
	if v.VaccineName == "" {
		return fmt.Errorf("%w: vaccine_name is required", ErrInvalid)
	}
	if v.AdministeredOn != nil && v.NextDoseOn != nil && v.NextDoseOn.Before(v.AdministeredOn.Time) {
		return fmt.Errorf("%w: next_dose_on must not be before administered_on", ErrInvalid)
	}
	if _, err := s.repo.GetByID(ctx, v.AthleteID); err != nil {
		return err
	}

	if file != nil {
		meta, err := s.files.Put(ctx, file.Meta, file.Content)
		if err != nil {
			return err
		}
		id, err := uuid.Parse(meta.ID)
		if err != nil {
			return fmt.Errorf("blob id %q: %w", meta.ID, err)
		}
		v.FileID = &id
		v.FileName = meta.FileName
		v.ContentType = meta.ContentType
	}

	if err := s.repo.CreateVaccine(ctx, v); err != nil {
		s.removeBlob(ctx, v)
		return err
	}
	return nil
}

func (s *Service) ListVaccines(ctx context.Context, athleteID uuid.UUID) ([]*Vaccine, error) {
	if _, err := s.repo.GetByID(ctx, athleteID); err != nil {
		return nil, err
	}
	return s.repo.ListVaccines(ctx, athleteID)
}

func (s *Service) vaccineOf(ctx context.Context, athleteID, vaccineID uuid.UUID) (*Vaccine, error) {
	v, err := s.repo.GetVaccine(ctx, vaccineID)
	if err != nil {
		return nil, err
	}
	if v.AthleteID != athleteID {
		return nil, ErrVaccineNotFound
	}
	return v, nil
}

// OpenVaccineFile returns the certificate content. Callers close it.
func (s *Service) OpenVaccineFile(ctx context.Context, athleteID, vaccineID uuid.UUID) (io.ReadCloser, *blobstore.Metadata, error) {
	v, err := s.vaccineOf(ctx, athleteID, vaccineID)
	if err != nil {
		return nil, nil, err
	}
	if v.FileID == nil {
		return nil, nil, ErrNoFile
	}
	rc, meta, err := s.files.Open(ctx, v.FileID.String())
	if err != nil {
		return nil, nil, err
	}
	meta.FileName = v.FileName
	return rc, meta, nil
}

func (s *Service) DeleteVaccine(ctx context.Context, athleteID, vaccineID uuid.UUID) error {
	v, err := s.vaccineOf(ctx, athleteID, vaccineID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteVaccine(ctx, vaccineID); err != nil {
		return err
	}
	s.removeBlob(ctx, v)
	return nil
}

func (s *Service) removeBlob(ctx context.Context, v *Vaccine) {
	if v.FileID == nil {
		return
	}
	if err := s.files.Delete(ctx, v.FileID.String()); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		s.logger.Warn().Err(err).Str("vaccine_id", v.ID.String()).Msg("failed to delete certificate file")
	}
}
