package models

// Secret is the logical row in the `secrets` table: an id plus the two
// authorship pointers. Its actual ciphertext lives in one SecretValue row
// per group it has been shared with (spec §3).
type Secret struct {
	ID            int64
	ValueAuthorID int64
	MetaAuthorID  int64
	Dirty         bool
}

// SecretValue is one per-group sealed copy of a secret: independently
// encrypted ciphertext and metadata for a single group.
type SecretValue struct {
	SecretID          int64
	GroupID           int64
	Ciphertext        []byte
	EncryptedMetadata []byte
	Dirty             bool
}

// UnlockedSecret is the ephemeral, in-memory result of SecretController's
// Unlock operation: the decrypted payload plus the authorship and sharing
// context needed to answer a secret_unlock request.
type UnlockedSecret struct {
	Secret *Secret

	Plaintext []byte
	Metadata  SecretMeta

	ValueAuthor *User
	MetaAuthor  *User
	Groups      []*Group

	// GroupID is the group whose keychain entry was used to reach and
	// decrypt this secret (spec §3: "the group through which the current
	// reader reached it").
	GroupID int64
}

// SecretSearchHit is one row of a secret_search response: enough to decide
// whether the secret matches without exposing more than the metadata.
type SecretSearchHit struct {
	SecretID int64
	GroupID  int64
	Metadata SecretMeta
}
