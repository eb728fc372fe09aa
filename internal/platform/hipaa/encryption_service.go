package hipaa

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
)

// EncryptionService is the FieldEncryptor handed to repositories. Without a
// key it stores values as-is, which is only accepted outside production.
type EncryptionService struct {
	encryptor FieldEncryptor
}

// NewEncryptionService parses a 64-char hex key. An empty key disables
// encryption and logs a warning.
func NewEncryptionService(key string, logger zerolog.Logger) (*EncryptionService, error) {
	if key == "" {
		logger.Warn().Msg("PHI encryption disabled: HIPAA_ENCRYPTION_KEY is not set")
		return &EncryptionService{}, nil
	}

	keyBytes, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("HIPAA_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("HIPAA_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
	}

	enc, err := NewPHIEncryptor(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("create PHI encryptor: %w", err)
	}
	logger.Info().Msg("PHI field-level encryption enabled")
	return &EncryptionService{encryptor: enc}, nil
}

func (s *EncryptionService) Enabled() bool {
	return s.encryptor != nil
}

func (s *EncryptionService) Encrypt(value string) (string, error) {
	if s.encryptor == nil || value == "" {
		return value, nil
	}
	return s.encryptor.Encrypt(value)
}

// Decrypt passes through values that were stored unencrypted.
func (s *EncryptionService) Decrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	if s.encryptor == nil {
		return "", fmt.Errorf("phi decrypt: encrypted value but no key configured")
	}
	return s.encryptor.Decrypt(value)
}
