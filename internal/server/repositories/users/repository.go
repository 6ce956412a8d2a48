// Package users declares and implements the persistence contract for
// User aggregates: the users row itself, its crypto side-table, keychain
// membership, and activation tokens.
package users

import (
	"context"

	"github.com/dmitrijs2005/kstor/internal/server/models"
)

// Repository persists and retrieves User aggregates. Returned users carry
// their crypto fields (pubk, kdf_params, encrypted_privk) and keychain
// populated, but never Privk (callers must Unlock explicitly).
type Repository interface {
	// Count returns the total number of users, used by the authentication
	// controller to detect the empty-store bootstrap case.
	Count(ctx context.Context) (int64, error)

	// Create inserts a new user row (status and identity only; no crypto
	// data yet) and returns it with its assigned id.
	Create(ctx context.Context, login, name string, status models.Status) (*models.User, error)

	// GetByID loads a user, including crypto data and keychain, by id.
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByLogin loads a user, including crypto data and keychain, by login.
	GetByLogin(ctx context.Context, login string) (*models.User, error)

	// SaveCrypto upserts a user's kdf_params/pubk/encrypted_privk and status
	// (an upsert of the crypto row, then an update of the users row), used
	// by reset_password, change_password, and
	// activation.
	SaveCrypto(ctx context.Context, u *models.User) error

	// PutKeychainItem upserts a single keychain row for user u and group
	// kci.GroupID.
	PutKeychainItem(ctx context.Context, userID int64, kci *models.KeychainItem) error

	// DeleteKeychainItem removes the keychain row for (userID, groupID).
	DeleteKeychainItem(ctx context.Context, userID int64, groupID int64) error

	// CreateActivation stores a fresh activation token for userID.
	CreateActivation(ctx context.Context, tok *models.ActivationToken) error

	// GetActivation loads the most recent activation token for userID.
	GetActivation(ctx context.Context, userID int64) (*models.ActivationToken, error)

	// PurgeActivations deletes all activation tokens for userID, called once
	// activation succeeds.
	PurgeActivations(ctx context.Context, userID int64) error
}
