package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"cnom/internal/middleware"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrDemoSessionNotFound is returned when a token has no live demo session.
var ErrDemoSessionNotFound = errors.New("demo session not found")

// DemoSession is the stored binding between an opaque token and a demo role.
type DemoSession struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DemoSessionStore keeps demo sessions in Redis and falls back to process
// memory while Redis is unavailable.
type DemoSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	memory map[string]DemoSession
}

// NewDemoSessionStore returns a store whose sessions live for ttl. rdb may be nil.
func NewDemoSessionStore(rdb *redis.Client, ttl time.Duration) *DemoSessionStore {
	return &DemoSessionStore{
		rdb:    rdb,
		ttl:    ttl,
		now:    time.Now,
		memory: make(map[string]DemoSession),
	}
}

// Create starts a new demo session for role and returns it.
func (s *DemoSessionStore) Create(ctx context.Context, role string) (DemoSession, error) {
	now := s.now().UTC()
	sess := DemoSession{
		Token:     uuid.NewString(),
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if s.rdb != nil {
		payload, err := json.Marshal(sess)
		if err != nil {
			return DemoSession{}, err
		}
		err = s.rdb.Set(ctx, DemoSessionKey(sess.Token), payload, s.ttl).Err()
		if err == nil {
			return sess, nil
		}
		middleware.Logger.Warn("demo session store falling back to memory",
			"operation", "create", "error", err)
	}

	s.mu.Lock()
	s.memory[sess.Token] = sess
	s.mu.Unlock()
	return sess, nil
}

// Get returns the live session for token or ErrDemoSessionNotFound.
func (s *DemoSessionStore) Get(ctx context.Context, token string) (DemoSession, error) {
	if token == "" {
		return DemoSession{}, ErrDemoSessionNotFound
	}

	if s.rdb != nil {
		raw, err := s.rdb.Get(ctx, DemoSessionKey(token)).Bytes()
		switch {
		case err == nil:
			var sess DemoSession
			if err := json.Unmarshal(raw, &sess); err != nil {
				return DemoSession{}, err
			}
			return sess, nil
		case !errors.Is(err, redis.Nil):
			middleware.Logger.Warn("demo session store falling back to memory",
				"operation", "get", "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.memory[token]
	if !ok {
		return DemoSession{}, ErrDemoSessionNotFound
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.memory, token)
		return DemoSession{}, ErrDemoSessionNotFound
	}
	return sess, nil
}

// Delete ends the session for token. Deleting an unknown token is not an error.
func (s *DemoSessionStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.memory, token)
	s.mu.Unlock()

	if s.rdb == nil || token == "" {
		return nil
	}
	return s.rdb.Del(ctx, DemoSessionKey(token)).Err()
}
