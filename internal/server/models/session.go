package models

import "time"

// Session is a server-side memo of a successful authentication (spec §3).
// SecretKey is the passphrase-derived symmetric key, cached so subsequent
// requests can re-unlock the user without re-prompting for a password.
type Session struct {
	ID        string
	UserID    int64
	SecretKey []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the session has exceeded either its absolute
// lifetime or its idle timeout, as of now.
func (s *Session) Expired(now time.Time, idleTimeout, lifeTimeout time.Duration) bool {
	if s.CreatedAt.Add(lifeTimeout).Before(now) {
		return true
	}
	if s.UpdatedAt.Add(idleTimeout).Before(now) {
		return true
	}
	return false
}
