// Package authctl implements the authentication controller described in
// spec §4.3: resolving a wire request to an unlocked user and a session id,
// bootstrapping the very first user, and handling new-user activation.
package authctl

import (
	"context"
	"time"

	"github.com/dmitrijs2005/kstor/internal/dbx"
	"github.com/dmitrijs2005/kstor/internal/kstorerr"
	"github.com/dmitrijs2005/kstor/internal/server/models"
	"github.com/dmitrijs2005/kstor/internal/server/repocache"
	"github.com/dmitrijs2005/kstor/internal/server/repomanager"
	"github.com/dmitrijs2005/kstor/internal/server/sessionstore"
	"github.com/google/uuid"
)

// Request carries the fields the authentication controller needs out of an
// incoming wire message; it is intentionally narrower than the full
// dispatch envelope.
type Request struct {
	Type      string
	Login     string
	Password  []byte
	SessionID string
}

// Controller implements spec §4.3.
type Controller struct {
	repos    repomanager.RepositoryManager
	cache    *repocache.Cache
	sessions *sessionstore.Store
}

func New(repos repomanager.RepositoryManager, cache *repocache.Cache, sessions *sessionstore.Store) *Controller {
	return &Controller{repos: repos, cache: cache, sessions: sessions}
}

// Allowed implements the authorization predicate from spec §4.3:
// allowed?(user, req) = (status=active ∨ status=admin) ∨ (status=new ∧ req=user_activate).
func Allowed(status models.Status, reqType string) bool {
	if status == models.StatusActive || status == models.StatusAdmin {
		return true
	}
	return status == models.StatusNew && reqType == "user_activate"
}

// Authenticate resolves req to an unlocked user and a session id, per
// spec §4.3's three branches: empty-store bootstrap, activation, and the
// ordinary session-or-password path.
func (c *Controller) Authenticate(ctx context.Context, db dbx.DBTX, req Request) (*models.User, string, error) {
	userRepo := c.repos.Users(db)

	n, err := userRepo.Count(ctx)
	if err != nil {
		return nil, "", err
	}
	if n == 0 {
		return c.bootstrapFirstUser(ctx, userRepo, req)
	}

	if req.Type == "user_activate" {
		return c.activate(ctx, userRepo, req)
	}

	if req.SessionID != "" {
		sess, ok := c.sessions.Get(req.SessionID)
		if !ok {
			return nil, "", kstorerr.New(kstorerr.AuthBadSession)
		}
		user, err := c.loadUser(ctx, userRepo, sess.UserID)
		if err != nil {
			return nil, "", err
		}
		if err := user.Unlock(sess.SecretKey); err != nil {
			return nil, "", err
		}
		return user, sess.ID, nil
	}

	if req.Login == "" || len(req.Password) == 0 {
		return nil, "", kstorerr.New(kstorerr.AuthMissing)
	}

	user, err := userRepo.GetByLogin(ctx, req.Login)
	if err != nil {
		return nil, "", err
	}
	secretKey, err := user.SecretKeyFor(req.Password)
	if err != nil {
		return nil, "", err
	}
	if user.Dirty {
		if err := userRepo.SaveCrypto(ctx, user); err != nil {
			return nil, "", err
		}
		user.Dirty = false
	}
	if err := user.Unlock(secretKey.Value); err != nil {
		return nil, "", err
	}
	sess, err := c.sessions.Create(user.ID, secretKey.Value)
	if err != nil {
		return nil, "", err
	}
	c.cache.PutUser(user)
	return user, sess.ID, nil
}

func (c *Controller) bootstrapFirstUser(ctx context.Context, userRepo interface {
	Create(ctx context.Context, login, name string, status models.Status) (*models.User, error)
	SaveCrypto(ctx context.Context, u *models.User) error
}, req Request) (*models.User, string, error) {
	if req.Login == "" || len(req.Password) == 0 {
		return nil, "", kstorerr.New(kstorerr.AuthMissing)
	}

	user, err := userRepo.Create(ctx, req.Login, req.Login, models.StatusAdmin)
	if err != nil {
		return nil, "", err
	}
	secretKey, err := user.SecretKeyFor(req.Password)
	if err != nil {
		return nil, "", err
	}
	if err := userRepo.SaveCrypto(ctx, user); err != nil {
		return nil, "", err
	}
	if err := user.Unlock(secretKey.Value); err != nil {
		return nil, "", err
	}
	sess, err := c.sessions.Create(user.ID, secretKey.Value)
	if err != nil {
		return nil, "", err
	}
	c.cache.PutUser(user)
	return user, sess.ID, nil
}

func (c *Controller) activate(ctx context.Context, userRepo interface {
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	SaveCrypto(ctx context.Context, u *models.User) error
	GetActivation(ctx context.Context, userID int64) (*models.ActivationToken, error)
	PurgeActivations(ctx context.Context, userID int64) error
}, req Request) (*models.User, string, error) {
	if req.Login == "" || len(req.Password) == 0 {
		return nil, "", kstorerr.New(kstorerr.AuthMissing)
	}

	user, err := userRepo.GetByLogin(ctx, req.Login)
	if err != nil {
		return nil, "", err
	}
	if user.Status != models.StatusNew {
		return nil, "", kstorerr.New(kstorerr.AuthForbidden)
	}
	tok, err := userRepo.GetActivation(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	if !tok.Valid(time.Now().Unix(), user.Status) {
		return nil, "", kstorerr.New(kstorerr.AuthForbidden)
	}

	secretKey, err := user.SecretKeyFor(req.Password)
	if err != nil {
		return nil, "", err
	}
	user.Status = models.StatusActive
	if err := userRepo.SaveCrypto(ctx, user); err != nil {
		return nil, "", err
	}
	if err := userRepo.PurgeActivations(ctx, user.ID); err != nil {
		return nil, "", err
	}
	if err := user.Unlock(secretKey.Value); err != nil {
		return nil, "", err
	}
	sess, err := c.sessions.Create(user.ID, secretKey.Value)
	if err != nil {
		return nil, "", err
	}
	c.cache.PutUser(user)
	return user, sess.ID, nil
}

// loadUser resolves userID through the cache, falling through to the
// repository (and repopulating the cache) on a miss.
func (c *Controller) loadUser(ctx context.Context, userRepo interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}, userID int64) (*models.User, error) {
	if u, ok := c.cache.User(userID); ok {
		return u, nil
	}
	u, err := userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.cache.PutUser(u)
	return u, nil
}

// RotateSession discards oldSessionID and creates a fresh session for
// userID holding newSecretKey, per spec §4.3's password-change side effect.
func (c *Controller) RotateSession(oldSessionID string, userID int64, newSecretKey []byte) (string, error) {
	c.sessions.Delete(oldSessionID)
	sess, err := c.sessions.Create(userID, newSecretKey)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// NewActivationToken generates a random opaque token valid from now until
// now+ttl, used by adminctl.CreateUser.
func NewActivationToken(userID int64, ttl time.Duration) (*models.ActivationToken, error) {
	now := time.Now()
	return &models.ActivationToken{
		UserID:    userID,
		Token:     uuid.NewString(),
		NotBefore: now.Unix(),
		NotAfter:  now.Add(ttl).Unix(),
	}, nil
}
