package adminctl

import (
	"context"
	"time"

	"github.com/dmitrijs2005/kstor/internal/cryptox"
	"github.com/dmitrijs2005/kstor/internal/dbx"
	"github.com/dmitrijs2005/kstor/internal/kstorerr"
	"github.com/dmitrijs2005/kstor/internal/server/authctl"
	"github.com/dmitrijs2005/kstor/internal/server/models"
)

// CreateUser implements user_create: a new user row with empty crypto data
// and no keychain, plus a fresh activation token. If tokenLifespan is zero,
// DefaultActivationTTL is used.
func (c *Controller) CreateUser(ctx context.Context, db dbx.DBTX, login, name string, tokenLifespan time.Duration) (*models.User, *models.ActivationToken, error) {
	if tokenLifespan <= 0 {
		tokenLifespan = DefaultActivationTTL
	}

	user, err := c.repos.Users(db).Create(ctx, login, name, models.StatusNew)
	if err != nil {
		return nil, nil, err
	}

	tok, err := authctl.NewActivationToken(user.ID, tokenLifespan)
	if err != nil {
		return nil, nil, kstorerr.Wrap(err)
	}
	if err := c.repos.Users(db).CreateActivation(ctx, tok); err != nil {
		return nil, nil, err
	}
	return user, tok, nil
}

// ChangeUserPassword implements user_change_password. Unlike
// User.ChangePassword (which also re-derives the old key from a
// passphrase), the caller here has already been authenticated for this
// request, so user is already unlocked: this re-seals the existing
// private key and keychain under a freshly derived key directly. Returns
// the new secret key so the dispatcher can rotate the session.
func (c *Controller) ChangeUserPassword(ctx context.Context, db dbx.DBTX, user *models.User, newPassword []byte) (*cryptox.SecretKey, error) {
	newKey, err := cryptox.DeriveKey(newPassword, nil)
	if err != nil {
		return nil, kstorerr.Wrap(err)
	}
	if err := user.Encrypt(newKey.Value); err != nil {
		return nil, err
	}
	user.KDFParams = newKey.Params

	if err := c.repos.Users(db).SaveCrypto(ctx, user); err != nil {
		return nil, err
	}
	for _, kci := range user.Keychain {
		if err := c.repos.Users(db).PutKeychainItem(ctx, user.ID, kci); err != nil {
			return nil, err
		}
	}
	user.Dirty = false
	c.cache.InvalidateUser(user.ID)

	return newKey, nil
}
