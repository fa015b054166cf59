package redis

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"quiz-eval-service/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenStore keeps one-time submission tokens in Redis, one key per session:
//
//	SET quiz:token:{sessionID} "{token}|{issuedAtUnixNano}" EX ttl
//
// Consume uses GETDEL so a token can be redeemed at most once, even when
// several instances share the Redis.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl, now: time.Now}
}

func (s *TokenStore) Issue(ctx context.Context, sessionID string) (domain.SubmitToken, error) {
	key := s.key(sessionID)

	issuedAt := s.now().UTC()
	raw, err := s.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if prev, ok := decodeToken(raw); ok {
			issuedAt = prev.IssuedAt
		}
	case errors.Is(err, redis.Nil):
	default:
		return domain.SubmitToken{}, fmt.Errorf("%w: read submit token: %w", domain.ErrStorageFailure, err)
	}

	token := domain.SubmitToken{Value: uuid.NewString(), IssuedAt: issuedAt}
	if err := s.client.Set(ctx, key, encodeToken(token), s.ttl).Err(); err != nil {
		return domain.SubmitToken{}, fmt.Errorf("%w: store submit token: %w", domain.ErrStorageFailure, err)
	}
	return token, nil
}

func (s *TokenStore) Consume(ctx context.Context, sessionID, token string) (domain.SubmitToken, error) {
	raw, err := s.client.GetDel(ctx, s.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.SubmitToken{}, fmt.Errorf("%w: no submit token for session", domain.ErrInvalidSubmission)
	}
	if err != nil {
		return domain.SubmitToken{}, fmt.Errorf("%w: consume submit token: %w", domain.ErrStorageFailure, err)
	}

	stored, ok := decodeToken(raw)
	if !ok || token == "" || subtle.ConstantTimeCompare([]byte(stored.Value), []byte(token)) != 1 {
		return domain.SubmitToken{}, fmt.Errorf("%w: submit token mismatch", domain.ErrInvalidSubmission)
	}
	return stored, nil
}

func (s *TokenStore) key(sessionID string) string {
	return "quiz:token:" + sessionID
}

func encodeToken(t domain.SubmitToken) string {
	return t.Value + "|" + strconv.FormatInt(t.IssuedAt.UnixNano(), 10)
}

func decodeToken(raw string) (domain.SubmitToken, bool) {
	value, ts, ok := strings.Cut(raw, "|")
	if !ok || value == "" {
		return domain.SubmitToken{}, false
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return domain.SubmitToken{}, false
	}
	return domain.SubmitToken{Value: value, IssuedAt: time.Unix(0, nanos).UTC()}, true
}
