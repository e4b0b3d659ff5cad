package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "oauth:state:"

// StateEntry is what is remembered between the redirect to a provider and
// its callback.
type StateEntry struct {
	Provider string `json:"provider"`
	Nonce    string `json:"nonce"`
	ReturnTo string `json:"return_to,omitempty"`
}

// StateStore keeps anti-forgery state in Redis. Each state can be redeemed
// once and expires after the configured TTL.
type StateStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewStateStore creates a state store.
func NewStateStore(rdb redis.Cmdable, ttl time.Duration) *StateStore {
	return &StateStore{rdb: rdb, ttl: ttl}
}

// Issue stores entry under a fresh random state and returns the state.
func (s *StateStore) Issue(ctx context.Context, entry StateEntry) (string, error) {
	val, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("serialize oauth state: %w", err)
	}

	for range 3 {
		state, err := randomToken(32)
		if err != nil {
			return "", err
		}
		ok, err := s.rdb.SetNX(ctx, stateKeyPrefix+state, val, s.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("store oauth state: %w", err)
		}
		if ok {
			return state, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique oauth state")
}

// Redeem returns and deletes the entry for state. Unknown, expired and
// already redeemed states return ErrInvalidState.
func (s *StateStore) Redeem(ctx context.Context, state string) (StateEntry, error) {
	if state == "" {
		return StateEntry{}, ErrInvalidState
	}

	val, err := s.rdb.GetDel(ctx, stateKeyPrefix+state).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return StateEntry{}, ErrInvalidState
		}
		return StateEntry{}, fmt.Errorf("redeem oauth state: %w", err)
	}

	var entry StateEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return StateEntry{}, fmt.Errorf("deserialize oauth state: %w", err)
	}
	return entry, nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
