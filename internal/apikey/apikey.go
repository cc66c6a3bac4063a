// Package apikey mints API keys. Only the bcrypt hash and an 8 character
// lookup prefix are stored; the raw key is shown once to the caller.
package apikey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rollreview/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	keyPrefix    = "rr_"
	secretBytes  = 24
	lookupLength = 8
)

var (
	ErrNameRequired = errors.New("api key name is required")
	ErrUnknownScope = errors.New("unknown api key scope")
)

var knownScopes = []string{models.ScopeRead, models.ScopeWrite, models.ScopeAdmin}

// Generate creates a new key named name. An empty scope list defaults to
// read-only access.
func Generate(name string, scopes []string) (string, *models.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, ErrNameRequired
	}
	scopes, err := NormalizeScopes(scopes)
	if err != nil {
		return "", nil, err
	}

	secret := make([]byte, secretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", nil, fmt.Errorf("reading random bytes: %w", err)
	}
	raw := keyPrefix + hex.EncodeToString(secret)

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hashing api key: %w", err)
	}

	now := time.Now().UTC()
	return raw, &models.APIKey{
		ID:        uuid.New(),
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: raw[:lookupLength],
		Scopes:    scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NormalizeScopes trims, dedupes and validates scopes.
func NormalizeScopes(scopes []string) ([]string, error) {
	var out []string
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" || slices.Contains(out, s) {
			continue
		}
		if !slices.Contains(knownScopes, s) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownScope, s)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		out = []string{models.ScopeRead}
	}
	return out, nil
}
