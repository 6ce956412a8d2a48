// Package secrets declares and implements the persistence contract for the
// logical secrets row plus its per-group secret_values fan-out.
package secrets

import "context"

// ValueRow is one group's sealed copy of a secret's ciphertext and/or
// metadata, as written by secret_create/update_value/update_meta.
type ValueRow struct {
	GroupID           int64
	Ciphertext        []byte
	EncryptedMetadata []byte
}

// SearchCandidate is one secret reachable through some group in the
// searching user's keychain, with an arbitrary (deterministically chosen)
// group's sealed metadata attached for decryption.
type SearchCandidate struct {
	SecretID          int64
	GroupID           int64
	MetaAuthorID      int64
	EncryptedMetadata []byte
}

// UnlockRow is the single secret_values row reachable by a user for one
// secret_unlock call.
type UnlockRow struct {
	SecretID          int64
	GroupID           int64
	ValueAuthorID     int64
	MetaAuthorID      int64
	Ciphertext        []byte
	EncryptedMetadata []byte
}

// Repository persists the secrets/secret_values pair described in spec §3
// and §6.
type Repository interface {
	// Create inserts one secrets row and one secret_values row per entry in
	// values, returning the new secret id.
	Create(ctx context.Context, valueAuthorID, metaAuthorID int64, values []ValueRow) (int64, error)

	// GroupIDsForSecret returns every group currently sharing secretID.
	GroupIDsForSecret(ctx context.Context, secretID int64) ([]int64, error)

	// SearchCandidates returns one row per secret reachable through any
	// group in memberGroupIDs, each with the secret_values row for the
	// lowest group id among the groups that both share the secret and
	// appear in memberGroupIDs (spec §4.4: "arbitrary group chosen
	// deterministically by ORDER BY secret_id, group_id").
	SearchCandidates(ctx context.Context, memberGroupIDs []int64) ([]SearchCandidate, error)

	// GetForUser fetches the secret_values row for secretID restricted to
	// memberGroupIDs, deterministically picking the lowest matching group
	// id. Returns (nil, false) if no such row exists — i.e. the user cannot
	// reach this secret through any group they belong to.
	GetForUser(ctx context.Context, secretID int64, memberGroupIDs []int64) (*UnlockRow, bool, error)

	// UpdateValues overwrites ciphertext for every row in values and sets
	// secrets.value_author_id.
	UpdateValues(ctx context.Context, secretID int64, values []ValueRow, valueAuthorID int64) error

	// UpdateMetadata overwrites encrypted_metadata for every row in values
	// and sets secrets.meta_author_id.
	UpdateMetadata(ctx context.Context, secretID int64, values []ValueRow, metaAuthorID int64) error

	// Delete cascades to every secret_values row for secretID.
	Delete(ctx context.Context, secretID int64) error
}
