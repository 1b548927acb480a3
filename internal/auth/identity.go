package auth

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when a participant id or secret does
// not match.
var ErrInvalidCredentials = errors.New("invalid participant credentials")

// dummyHash is compared against when a participant id is unknown.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("composer"), bcrypt.DefaultCost)

// IdentityStore holds participant credentials for the local strategy.
// Secrets are stored bcrypt-hashed.
type IdentityStore struct {
	mu      sync.RWMutex
	secrets map[string][]byte
}

// NewIdentityStore creates an empty identity store.
func NewIdentityStore() *IdentityStore {
	return &IdentityStore{secrets: make(map[string][]byte)}
}

// Add registers a participant with the given secret.
func (s *IdentityStore) Add(participantID, secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.secrets[participantID] = hash
	s.mu.Unlock()
	return nil
}

// Validate checks a participant id and secret against the store.
func (s *IdentityStore) Validate(participantID, secret string) error {
	s.mu.RLock()
	hash, ok := s.secrets[participantID]
	s.mu.RUnlock()

	if !ok {
		// Burn a comparison anyway so unknown ids cost the same as bad
		// secrets.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
		return ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(secret)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
