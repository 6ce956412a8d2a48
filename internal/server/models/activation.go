package models

// ActivationToken is a time-bounded, one-use secret that lets a `new` user
// supply their initial passphrase (spec §3).
type ActivationToken struct {
	UserID    int64
	Token     string
	NotBefore int64 // epoch seconds
	NotAfter  int64 // epoch seconds
}

// Valid reports whether the token is currently usable: now falls inside
// [NotBefore, NotAfter] and the owning user is still `new`. The caller
// supplies the owning user's status because the token itself does not carry
// it.
func (t ActivationToken) Valid(nowEpoch int64, ownerStatus Status) bool {
	return ownerStatus == StatusNew && nowEpoch >= t.NotBefore && nowEpoch <= t.NotAfter
}
