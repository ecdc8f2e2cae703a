package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// APIKey is a stored bot credential. The raw key is never persisted, only
// its bcrypt hash plus a short plaintext prefix for indexed lookup.
type APIKey struct {
	ID            string     `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	KeyHash       string     `db:"key_hash" json:"-"`
	DisplayPrefix string     `db:"display_prefix" json:"display_prefix"`
	CreatedBy     string     `db:"created_by" json:"created_by"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	LastUsedAt    *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	ExpiresAt     *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	RevokedAt     *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

// APIKeyStore persists API keys.
type APIKeyStore struct {
	db *sqlx.DB
}

// NewAPIKeyStore creates an APIKeyStore backed by the given database.
func NewAPIKeyStore(db *sqlx.DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

// Create stores a new key record and returns it.
func (s *APIKeyStore) Create(ctx context.Context, name, keyHash, displayPrefix, createdBy string, expiresAt *time.Time) (*APIKey, error) {
	key := &APIKey{
		ID:            uuid.New().String(),
		Name:          name,
		KeyHash:       keyHash,
		DisplayPrefix: displayPrefix,
		CreatedBy:     createdBy,
		CreatedAt:     time.Now().UTC(),
		ExpiresAt:     expiresAt,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, name, key_hash, display_prefix, created_by, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.DisplayPrefix, key.CreatedBy, key.CreatedAt, key.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("insert api key: %w", err)
	}
	return key, nil
}

// GetByPrefix returns unrevoked keys whose stored display prefix matches,
// narrowing the candidate set before the bcrypt comparison.
func (s *APIKeyStore) GetByPrefix(ctx context.Context, prefix string) ([]*APIKey, error) {
	keys := []*APIKey{}
	err := s.db.SelectContext(ctx, &keys, `
		SELECT id, name, key_hash, display_prefix, created_by, created_at, last_used_at, expires_at, revoked_at
		FROM api_keys
		WHERE display_prefix = $1 AND revoked_at IS NULL`,
		prefix)
	if err != nil {
		return nil, fmt.Errorf("lookup api keys by prefix: %w", err)
	}
	return keys, nil
}

// UpdateLastUsed stamps the key's last use time.
func (s *APIKeyStore) UpdateLastUsed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = now() WHERE id = $1`, id)
	return err
}

// Revoke marks the key as revoked. Revoked keys fail authentication but
// stay listed for audit purposes.
func (s *APIKeyStore) Revoke(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE api_keys SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns all keys, newest first.
func (s *APIKeyStore) List(ctx context.Context) ([]*APIKey, error) {
	keys := []*APIKey{}
	err := s.db.SelectContext(ctx, &keys, `
		SELECT id, name, key_hash, display_prefix, created_by, created_at, last_used_at, expires_at, revoked_at
		FROM api_keys
		ORDER BY created_at DESC`)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}
