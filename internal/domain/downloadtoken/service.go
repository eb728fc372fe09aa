package downloadtoken

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/inderhuila/sportsmed/internal/domain/history"
	"github.com/inderhuila/sportsmed/internal/platform/db"
	"github.com/inderhuila/sportsmed/internal/platform/notification"
)

const (
	tokenBytes    = 32
	createRetries = 3
)

// HistoryStore is satisfied by *history.Service.
type HistoryStore interface {
	GetOwner(ctx context.Context, id uuid.UUID) (*history.Owner, error)
	GetBundle(ctx context.Context, id uuid.UUID) (*history.Bundle, error)
}

// Renderer is satisfied by *history.PDFRenderer.
type Renderer interface {
	Render(b *history.Bundle) ([]byte, error)
}

// Cipher protects the document number at rest. *hipaa.EncryptionService
// satisfies it.
type Cipher interface {
	Encrypt(value string) (string, error)
	Decrypt(value string) (string, error)
}

// Notifier is satisfied by *notification.Notifier.
type Notifier interface {
	SendTemplate(ctx context.Context, templateID, recipient string, data map[string]string) error
}

type plainCipher struct{}

func (plainCipher) Encrypt(v string) (string, error) { return v, nil }
func (plainCipher) Decrypt(v string) (string, error) { return v, nil }

// Options carries the optional collaborators of a Service.
type Options struct {
	// BaseURL is the public front-end origin; links are BaseURL/descargar/<token>.
	BaseURL  string
	Cipher   Cipher
	Notifier Notifier
	// NewToken replaces the random token generator.
	NewToken func() (string, error)
}

type Service struct {
	repo      Repository
	tx        db.Transactor
	histories HistoryStore
	renderer  Renderer
	cipher    Cipher
	notifier  Notifier
	baseURL   string
	logger    zerolog.Logger
	now       func() time.Time
	newToken  func() (string, error)
}

func NewService(repo Repository, tx db.Transactor, histories HistoryStore, renderer Renderer,
	opts Options, logger zerolog.Logger) *Service {
	s := &Service{
		repo:      repo,
		tx:        tx,
		histories: histories,
		renderer:  renderer,
		cipher:    opts.Cipher,
		notifier:  opts.Notifier,
		baseURL:   opts.BaseURL,
		logger:    logger.With().Str("component", "downloadtoken").Logger(),
		now:       time.Now,
		newToken:  randomToken,
	}
	if s.cipher == nil {
		s.cipher = plainCipher{}
	}
	if opts.NewToken != nil {
		s.newToken = opts.NewToken
	}
	return s
}

func randomToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// URL is the shareable link for token.
func (s *Service) URL(token string) string {
	return s.baseURL + "/descargar/" + token
}

// Issue creates a link for a history and locks every earlier unlocked link
// of the same history in the same transaction.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	if req.HistoryID == uuid.Nil {
		return nil, fmt.Errorf("%w: history_id is required", ErrInvalid)
	}
	owner, err := s.histories.GetOwner(ctx, req.HistoryID)
	if errors.Is(err, history.ErrNotFound) {
		return nil, ErrHistoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load history owner: %w", err)
	}
	doc, err := s.cipher.Encrypt(owner.DocumentNumber)
	if err != nil {
		return nil, &ServiceFailureError{Op: "encrypt document number", Err: err}
	}

	t := &Token{
		HistoryID:             owner.HistoryID,
		AthleteID:             owner.AthleteID,
		SubjectDocumentNumber: doc,
		ExpiresAt:             s.now().Add(TTL),
	}
	var revoked int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.repo.LockActive(ctx, t.HistoryID)
		if err != nil {
			return err
		}
		revoked = n
		for attempt := 1; ; attempt++ {
			if t.Token, err = s.newToken(); err != nil {
				return err
			}
			err = s.repo.Create(ctx, t)
			if !errors.Is(err, ErrDuplicate) || attempt == createRetries {
				return err
			}
		}
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("history_id", t.HistoryID.String()).Int64("revoked", revoked).
		Msg("download link issued")

	out := &Issued{
		Token:          t.Token,
		URL:            s.URL(t.Token),
		ExpiresInHours: int(TTL / time.Hour),
		ExpiresAt:      t.ExpiresAt,
	}
	if req.NotifyEmail {
		out.Notified = s.notify(ctx, owner, out)
	}
	return out, nil
}

func (s *Service) notify(ctx context.Context, owner *history.Owner, out *Issued) bool {
	log := s.logger.With().Str("history_id", owner.HistoryID.String()).Logger()
	if s.notifier == nil || owner.Email == "" {
		log.Info().Msg("download link not e-mailed: no notifier or no address on file")
		return false
	}
	err := s.notifier.SendTemplate(ctx, notification.TemplateHistoryDownloadLink, owner.Email, map[string]string{
		"athlete_name":     owner.FullName,
		"url":              out.URL,
		"expires_at":       out.ExpiresAt.Format("02/01/2006 15:04"),
		"expires_in_hours": strconv.Itoa(out.ExpiresInHours),
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to e-mail download link")
		return false
	}
	return true
}

// Verify checks the claimed document number. A match marks the token used
// and returns the history it opens. Rejections that change the token (lazy
// expiry, a counted mismatch) are committed before the error is returned.
func (s *Service) Verify(ctx context.Context, token, documentNumber string) (uuid.UUID, error) {
	claimed := NormalizeDocument(documentNumber)
	if token == "" || claimed == "" {
		return uuid.Nil, fmt.Errorf("%w: token and document_number are required", ErrInvalid)
	}

	var (
		historyID uuid.UUID
		outcome   error
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.repo.GetForUpdate(ctx, token)
		if errors.Is(err, ErrNotFound) {
			outcome = ErrNotFound
			return nil
		}
		if err != nil {
			return err
		}
		if t.Locked {
			outcome = ErrNotFound
			if t.FailedAttempts >= MaxAttempts {
				outcome = ErrTooManyAttempts
			}
			return nil
		}

		now := s.now()
		if t.expired(now) {
			t.Locked = true
			outcome = ErrExpired
			return s.repo.Save(ctx, t)
		}
		if t.FailedAttempts >= MaxAttempts {
			t.Locked = true
			outcome = ErrTooManyAttempts
			return s.repo.Save(ctx, t)
		}

		stored, err := s.cipher.Decrypt(t.SubjectDocumentNumber)
		if err != nil {
			return &ServiceFailureError{Op: "decrypt document number", Err: err}
		}
		if subtle.ConstantTimeCompare([]byte(claimed), []byte(NormalizeDocument(stored))) != 1 {
			t.FailedAttempts++
			if t.FailedAttempts >= MaxAttempts {
				t.Locked = true
			}
			outcome = &InvalidCredentialError{AttemptsRemaining: t.attemptsRemaining()}
			s.logger.Info().Str("history_id", t.HistoryID.String()).Int("failed_attempts", t.FailedAttempts).
				Msg("download link verification failed")
			return s.repo.Save(ctx, t)
		}

		historyID = t.HistoryID
		t.Used = true
		t.UsedAt = &now
		return s.repo.Save(ctx, t)
	})
	if err != nil {
		return uuid.Nil, err
	}
	if outcome != nil {
		return uuid.Nil, outcome
	}
	s.logger.Info().Str("history_id", historyID.String()).Msg("download link verified")
	return historyID, nil
}

// Download renders the history of a verified token and locks the token, so
// a link yields one document. A rendering failure rolls back and leaves the
// token usable.
func (s *Service) Download(ctx context.Context, token string) (*Document, error) {
	var (
		doc     *Document
		outcome error
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.repo.GetForUpdate(ctx, token)
		if errors.Is(err, ErrNotFound) {
			outcome = ErrNotFound
			return nil
		}
		if err != nil {
			return err
		}
		switch {
		case t.Locked:
			outcome = &ForbiddenError{Reason: ReasonNoLongerAvailable}
			return nil
		case !t.Used:
			outcome = &ForbiddenError{Reason: ReasonVerifyFirst}
			return nil
		case t.expired(s.now()):
			t.Locked = true
			outcome = ErrExpired
			return s.repo.Save(ctx, t)
		}

		bundle, err := s.histories.GetBundle(ctx, t.HistoryID)
		if errors.Is(err, history.ErrNotFound) {
			outcome = ErrNotFound
			return nil
		}
		if err != nil {
			return &ServiceFailureError{Op: "load history", Err: err}
		}
		content, err := s.renderer.Render(bundle)
		if err != nil {
			return &ServiceFailureError{Op: "render history", Err: err}
		}
		number, err := s.cipher.Decrypt(t.SubjectDocumentNumber)
		if err != nil {
			return &ServiceFailureError{Op: "decrypt document number", Err: err}
		}

		t.Locked = true
		if err := s.repo.Save(ctx, t); err != nil {
			return err
		}
		doc = &Document{Content: content, FileName: history.PDFFileName(NormalizeDocument(number))}
		s.logger.Info().Str("history_id", t.HistoryID.String()).Int("bytes", len(content)).
			Msg("clinical history downloaded")
		return nil
	})
	if err != nil {
		var sf *ServiceFailureError
		if errors.As(err, &sf) {
			s.logger.Error().Err(sf.Err).Str("op", sf.Op).Msg("download failed")
		}
		return nil, err
	}
	if outcome != nil {
		return nil, outcome
	}
	return doc, nil
}

// Status reports whether a token can still be used. It never consumes an
// attempt and never changes the token.
func (s *Service) Status(ctx context.Context, token string) (*Status, error) {
	t, err := s.repo.Get(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return &Status{Reason: StatusNotFound}, nil
	}
	if err != nil {
		return nil, err
	}
	switch {
	case t.expired(s.now()):
		return &Status{Reason: StatusExpired}, nil
	case t.FailedAttempts >= MaxAttempts:
		return &Status{Reason: StatusMaxAttempts}, nil
	case t.Locked:
		return &Status{Reason: StatusAlreadyUsed}, nil
	}
	remaining := t.attemptsRemaining()
	expires := t.ExpiresAt
	return &Status{Valid: true, AttemptsRemaining: &remaining, ExpiresAt: &expires}, nil
}
