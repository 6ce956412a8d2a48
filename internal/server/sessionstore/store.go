// Package sessionstore implements the in-memory, mutex-protected session
// table described in spec §3/§5: one process-wide map of session id to
// *models.Session, with idle and absolute timeouts enforced on every Get.
package sessionstore

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/dmitrijs2005/kstor/internal/server/models"
)

// Store is a thread-safe table of live sessions. All operations take the
// same mutex (spec §5: "all ops under the lock").
type Store struct {
	mu            sync.Mutex
	sessions      map[string]*models.Session
	idleTimeout   time.Duration
	lifeTimeout   time.Duration
}

func New(idleTimeout, lifeTimeout time.Duration) *Store {
	return &Store{
		sessions:    make(map[string]*models.Session),
		idleTimeout: idleTimeout,
		lifeTimeout: lifeTimeout,
	}
}

// NewSessionID generates a random, URL-safe 128-bit session identifier
// (spec §3).
func NewSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create registers a new session for userID holding secretKey, returning
// the session. secretKey is retained for the session's lifetime so
// subsequent requests can re-unlock the user without re-prompting
// (spec §3).
func (s *Store) Create(userID int64, secretKey []byte) (*models.Session, error) {
	id, err := NewSessionID()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	sess := &models.Session{
		ID:        id,
		UserID:    userID,
		SecretKey: secretKey,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	return sess, nil
}

// Get returns the session for id if it exists and has not expired,
// touching its UpdatedAt timestamp (best-effort, per spec §5). A missing or
// expired session returns (nil, false); an expired session is evicted.
func (s *Store) Get(id string) (*models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}

	now := time.Now()
	if sess.Expired(now, s.idleTimeout, s.lifeTimeout) {
		delete(s.sessions, id)
		return nil, false
	}

	sess.UpdatedAt = now
	return sess, true
}

// Delete removes a session, discarding its cached secret key. Used when
// rotating a session after a password change.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports the number of live (not necessarily unexpired) sessions.
// Exposed for tests and operational introspection only.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
