package memory

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"quiz-eval-service/internal/domain"

	"github.com/google/uuid"
)

type tokenEntry struct {
	token     domain.SubmitToken
	expiresAt time.Time
}

// TokenStore is an in-memory implementation of app.TokenStore.
type TokenStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu     sync.Mutex
	tokens map[string]tokenEntry
}

func NewTokenStore(ttl time.Duration) *TokenStore {
	return NewTokenStoreWithClock(ttl, time.Now)
}

// NewTokenStoreWithClock allows deterministic expiry in tests.
func NewTokenStoreWithClock(ttl time.Duration, clock func() time.Time) *TokenStore {
	return &TokenStore{
		ttl:    ttl,
		clock:  clock,
		tokens: make(map[string]tokenEntry),
	}
}

func (s *TokenStore) Issue(_ context.Context, sessionID string) (domain.SubmitToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	issuedAt := now.UTC()
	if entry, ok := s.tokens[sessionID]; ok && s.live(entry, now) {
		issuedAt = entry.token.IssuedAt
	}
	token := domain.SubmitToken{Value: uuid.NewString(), IssuedAt: issuedAt}
	entry := tokenEntry{token: token}
	if s.ttl > 0 {
		entry.expiresAt = now.Add(s.ttl)
	}
	s.tokens[sessionID] = entry
	return token, nil
}

func (s *TokenStore) Consume(_ context.Context, sessionID, token string) (domain.SubmitToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tokens[sessionID]
	delete(s.tokens, sessionID)
	if !ok || !s.live(entry, s.clock()) || token == "" {
		return domain.SubmitToken{}, domain.ErrInvalidSubmission
	}
	if subtle.ConstantTimeCompare([]byte(entry.token.Value), []byte(token)) != 1 {
		return domain.SubmitToken{}, domain.ErrInvalidSubmission
	}
	return entry.token, nil
}

func (s *TokenStore) live(entry tokenEntry, now time.Time) bool {
	return entry.expiresAt.IsZero() || entry.expiresAt.After(now)
}
