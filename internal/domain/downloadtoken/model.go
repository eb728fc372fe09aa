// Package downloadtoken lets an athlete download their clinical history
// through a short-lived link. The link's token must first be confirmed with
// the athlete's document number; it then allows exactly one download.
package downloadtoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxAttempts is how many wrong document numbers a token tolerates.
	MaxAttempts = 3
	// TTL is the lifetime of a token from issuance.
	TTL = 2 * time.Hour
)

var (
	ErrNotFound        = errors.New("download link is not valid")
	ErrExpired         = errors.New("download link has expired")
	ErrTooManyAttempts = errors.New("maximum verification attempts reached, request a new link")
	ErrInvalid         = errors.New("invalid input")
	// ErrDuplicate is returned by repositories when a token string collides.
	ErrDuplicate = errors.New("token already exists")
	// ErrInvalidCredential matches every *InvalidCredentialError.
	ErrInvalidCredential = errors.New("document number does not match")
	// ErrHistoryNotFound is returned by Issue for an unknown history. It
	// matches ErrNotFound.
	ErrHistoryNotFound error = notFoundError{msg: "clinical history not found"}
)

type notFoundError struct{ msg string }

func (e notFoundError) Error() string        { return e.msg }
func (e notFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidCredentialError reports a mismatched document number.
type InvalidCredentialError struct {
	AttemptsRemaining int
}

func (e *InvalidCredentialError) Error() string {
	return fmt.Sprintf("%s, %d attempts remaining", ErrInvalidCredential, e.AttemptsRemaining)
}

func (e *InvalidCredentialError) Is(target error) bool { return target == ErrInvalidCredential }

// ForbiddenError is a download refused because of the token's state.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string { return e.Reason }

// Download refusal reasons.
const (
	ReasonNoLongerAvailable = "this link is no longer available"
	ReasonVerifyFirst       = "the document number must be verified first"
)

// ServiceFailureError wraps a collaborator failure (history load, rendering,
// decryption). The token is left untouched.
type ServiceFailureError struct {
	Op  string
	Err error
}

func (e *ServiceFailureError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *ServiceFailureError) Unwrap() error { return e.Err }

// Token is one issued download link.
type Token struct {
	ID        uuid.UUID
	Token     string
	HistoryID uuid.UUID
	AthleteID uuid.UUID
	// SubjectDocumentNumber is stored encrypted when a PHI key is configured.
	SubjectDocumentNumber string
	FailedAttempts        int
	Locked                bool
	Used                  bool
	CreatedAt             time.Time
	ExpiresAt             time.Time
	UsedAt                *time.Time
}

func (t *Token) expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func (t *Token) attemptsRemaining() int {
	if n := MaxAttempts - t.FailedAttempts; n > 0 {
		return n
	}
	return 0
}

// Status reasons.
const (
	StatusNotFound    = "not-found"
	StatusAlreadyUsed = "already-used"
	StatusExpired     = "expired"
	StatusMaxAttempts = "max-attempts"
)

// Status is the health of a token as shown to the download page.
type Status struct {
	Valid             bool       `json:"valid"`
	Reason            string     `json:"reason,omitempty"`
	AttemptsRemaining *int       `json:"attempts_remaining,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
}

// IssueRequest asks for a new link to a history.
type IssueRequest struct {
	HistoryID uuid.UUID `json:"history_id" validate:"required"`
	// NotifyEmail e-mails the link to the athlete's address on file.
	NotifyEmail bool `json:"notify_email"`
}

type Issued struct {
	Token          string    `json:"token"`
	URL            string    `json:"url"`
	ExpiresInHours int       `json:"expires_in_hours"`
	ExpiresAt      time.Time `json:"expires_at"`
	Notified       bool      `json:"notified"`
}

// Document is a rendered history ready to be sent as an attachment.
type Document struct {
	Content  []byte
	FileName string
}

var documentNoise = strings.NewReplacer(".", "", ",", "", " ", "")

// NormalizeDocument strips the separators people type into document
// numbers, so "900.123.456" matches "900123456".
func NormalizeDocument(s string) string {
	return strings.TrimSpace(documentNoise.Replace(s))
}
