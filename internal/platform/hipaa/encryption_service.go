package hipaa

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
)

// EncryptionService owns the configured FieldEncryptor. Without a key it runs
// disabled and every value passes through unchanged.
type EncryptionService struct {
	encryptor FieldEncryptor
}

// NewEncryptionService parses key as 64 hex characters. An empty key disables
// encryption; a malformed key is an error so the server refuses to start.
func NewEncryptionService(key string, logger zerolog.Logger) (*EncryptionService, error) {
	if key == "" {
		logger.Warn().Msg("PHI encryption disabled: PHI_ENCRYPTION_KEY is not set")
		return &EncryptionService{}, nil
	}
	raw, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("PHI_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("PHI_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(raw))
	}
	enc, err := NewPHIEncryptor(raw)
	if err != nil {
		return nil, err
	}
	logger.Info().Strs("fields", PatientPHIFields).Msg("PHI field-level encryption enabled")
	return &EncryptionService{encryptor: enc}, nil
}

// Encryptor returns nil when encryption is disabled.
func (s *EncryptionService) Encryptor() FieldEncryptor {
	return s.encryptor
}

func (s *EncryptionService) IsEnabled() bool {
	return s.encryptor != nil
}
