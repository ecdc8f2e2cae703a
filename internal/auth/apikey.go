// Package auth provides authentication primitives for the admin dashboard,
// including API key generation/validation and session token creation/verification.
// Two authentication methods are supported: session JWTs (issued after Discord
// login, stateless verification) and API keys (long-lived tokens for the game
// bot and automation, with bcrypt hashing).
// See internal/middleware/auth.go for the request-time authentication logic
// that uses these primitives.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultKeyPrefix tags generated keys so a leaked credential can be
	// attributed to this service by secret scanners.
	DefaultKeyPrefix = "tvk"

	// DisplayPrefixLength is how much of the key is stored in plaintext,
	// for listing and for the indexed lookup that narrows the candidate
	// set before the bcrypt comparison.
	DisplayPrefixLength = 10

	// BcryptCost is the hashing cost for stored keys.
	BcryptCost = 12

	randomKeyBytes = 32
)

// GeneratedKey holds a freshly minted API key. Raw is shown to the caller
// exactly once; only Hash and DisplayPrefix are ever persisted.
type GeneratedKey struct {
	Raw           string
	Hash          string
	DisplayPrefix string
}

// NewAPIKey mints a key of the form prefix_<random>, with the random part
// drawn from 32 bytes of crypto/rand in URL-safe base64.
func NewAPIKey(prefix string) (*GeneratedKey, error) {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	buf := make([]byte, randomKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate key material: %w", err)
	}
	raw := prefix + "_" + base64.RawURLEncoding.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash api key: %w", err)
	}

	display := raw
	if len(display) > DisplayPrefixLength {
		display = display[:DisplayPrefixLength]
	}
	return &GeneratedKey{Raw: raw, Hash: string(hash), DisplayPrefix: display}, nil
}

// ValidateAPIKey reports whether the provided key matches the stored hash.
func ValidateAPIKey(providedKey, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(providedKey)) == nil
}
