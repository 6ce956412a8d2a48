// Package secretctl implements the secret operations described in spec
// §4.4: create, search, unlock, update_meta, update_value, delete, and the
// per-group fan-out re-encryption rules that back them.
package secretctl

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/kstor/internal/cryptox"
	"github.com/dmitrijs2005/kstor/internal/dbx"
	"github.com/dmitrijs2005/kstor/internal/kstorerr"
	"github.com/dmitrijs2005/kstor/internal/server/models"
	"github.com/dmitrijs2005/kstor/internal/server/repocache"
	"github.com/dmitrijs2005/kstor/internal/server/repomanager"
	"github.com/dmitrijs2005/kstor/internal/server/repositories/secrets"
)

// Controller implements spec §4.4. Every method requires its user argument
// to already be unlocked (the dispatcher guarantees this via authctl before
// any controller runs).
type Controller struct {
	repos repomanager.RepositoryManager
	cache *repocache.Cache
}

func New(repos repomanager.RepositoryManager, cache *repocache.Cache) *Controller {
	return &Controller{repos: repos, cache: cache}
}

func (c *Controller) groupRepo(db dbx.DBTX) interface {
	GetByID(ctx context.Context, id int64) (*models.Group, error)
} {
	return c.repos.Groups(db)
}

// resolveGroup looks up g by id through the cache, falling through to the
// repository and repopulating the cache on a miss.
func (c *Controller) resolveGroup(ctx context.Context, db dbx.DBTX, groupID int64) (*models.Group, error) {
	if g, ok := c.cache.Group(groupID); ok {
		return g, nil
	}
	g, err := c.groupRepo(db).GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	c.cache.PutGroup(g)
	return g, nil
}

// Create implements secret_create: seals plaintext and meta once per
// requested group, then persists one secrets row plus one secret_values row
// per group.
func (c *Controller) Create(ctx context.Context, db dbx.DBTX, user *models.User, plaintext []byte, groupIDs []int64, meta models.SecretMeta) (int64, error) {
	if len(groupIDs) == 0 {
		return 0, kstorerr.New(kstorerr.ReqMissingArgs, "group_ids")
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("encode metadata: %w", err)
	}

	values := make([]secrets.ValueRow, 0, len(groupIDs))
	for _, gid := range groupIDs {
		g, err := c.resolveGroup(ctx, db, gid)
		if err != nil {
			return 0, err
		}
		ciphertext, err := cryptox.SealPair(&g.Pubk, user.Privk, plaintext)
		if err != nil {
			return 0, kstorerr.Wrap(err)
		}
		encMeta, err := cryptox.SealPair(&g.Pubk, user.Privk, metaBytes)
		if err != nil {
			return 0, kstorerr.Wrap(err)
		}
		values = append(values, secrets.ValueRow{GroupID: gid, Ciphertext: ciphertext, EncryptedMetadata: encMeta})
	}

	secretID, err := c.repos.Secrets(db).Create(ctx, user.ID, user.ID, values)
	if err != nil {
		return 0, err
	}
	return secretID, nil
}

// Search implements secret_search: returns every secret reachable through
// any of the user's keychain groups whose decrypted metadata matches
// pattern.
func (c *Controller) Search(ctx context.Context, db dbx.DBTX, user *models.User, pattern models.SecretMeta) ([]models.SecretSearchHit, error) {
	if len(user.Keychain) == 0 {
		return nil, nil
	}

	groupIDs := make([]int64, 0, len(user.Keychain))
	for gid := range user.Keychain {
		groupIDs = append(groupIDs, gid)
	}
	sort.Slice(groupIDs, func(i, j int) bool { return groupIDs[i] < groupIDs[j] })

	candidates, err := c.repos.Secrets(db).SearchCandidates(ctx, groupIDs)
	if err != nil {
		return nil, err
	}

	var hits []models.SecretSearchHit
	for _, cand := range candidates {
		kci := user.Keychain[cand.GroupID]
		if kci == nil || kci.Privk == nil {
			continue
		}
		metaAuthor, err := c.loadUserPubk(ctx, db, cand.MetaAuthorID)
		if err != nil {
			return nil, err
		}
		metaBytes, err := cryptox.OpenPair(&metaAuthor, kci.Privk, cand.EncryptedMetadata)
		if err != nil {
			return nil, kstorerr.Wrap(err)
		}
		var meta models.SecretMeta
		if err := json.Unmarshal(metaBytes, &meta); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		if meta.Match(pattern) {
			hits = append(hits, models.SecretSearchHit{SecretID: cand.SecretID, GroupID: cand.GroupID, Metadata: meta})
		}
	}
	return hits, nil
}

// loadUserPubk resolves a user's public key through the cache, needed to
// verify the sender identity on open_pair without loading the full user
// aggregate twice.
func (c *Controller) loadUserPubk(ctx context.Context, db dbx.DBTX, userID int64) ([32]byte, error) {
	if u, ok := c.cache.User(userID); ok {
		return u.Pubk, nil
	}
	u, err := c.repos.Users(db).GetByID(ctx, userID)
	if err != nil {
		return [32]byte{}, err
	}
	c.cache.PutUser(u)
	return u.Pubk, nil
}

// Unlock implements secret_unlock.
func (c *Controller) Unlock(ctx context.Context, db dbx.DBTX, user *models.User, secretID int64) (*models.UnlockedSecret, error) {
	groupIDs := make([]int64, 0, len(user.Keychain))
	for gid := range user.Keychain {
		groupIDs = append(groupIDs, gid)
	}
	sort.Slice(groupIDs, func(i, j int) bool { return groupIDs[i] < groupIDs[j] })

	row, ok, err := c.repos.Secrets(db).GetForUser(ctx, secretID, groupIDs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, kstorerr.New(kstorerr.SecretNotFound, secretID)
	}
	kci := user.Keychain[row.GroupID]
	if kci == nil || kci.Privk == nil {
		return nil, kstorerr.New(kstorerr.SecretNotFound, secretID)
	}

	valueAuthorPubk, err := c.loadUserPubk(ctx, db, row.ValueAuthorID)
	if err != nil {
		return nil, err
	}
	metaAuthorPubk, err := c.loadUserPubk(ctx, db, row.MetaAuthorID)
	if err != nil {
		return nil, err
	}

	plaintext, err := cryptox.OpenPair(&valueAuthorPubk, kci.Privk, row.Ciphertext)
	if err != nil {
		return nil, kstorerr.Wrap(err)
	}
	metaBytes, err := cryptox.OpenPair(&metaAuthorPubk, kci.Privk, row.EncryptedMetadata)
	if err != nil {
		return nil, kstorerr.Wrap(err)
	}
	var meta models.SecretMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	groupIDsForSecret, err := c.repos.Secrets(db).GroupIDsForSecret(ctx, secretID)
	if err != nil {
		return nil, err
	}
	groupsSharing := make([]*models.Group, 0, len(groupIDsForSecret))
	for _, gid := range groupIDsForSecret {
		g, err := c.resolveGroup(ctx, db, gid)
		if err != nil {
			return nil, err
		}
		groupsSharing = append(groupsSharing, g)
	}

	valueAuthor, err := c.repos.Users(db).GetByID(ctx, row.ValueAuthorID)
	if err != nil {
		return nil, err
	}
	metaAuthor, err := c.repos.Users(db).GetByID(ctx, row.MetaAuthorID)
	if err != nil {
		return nil, err
	}

	return &models.UnlockedSecret{
		Secret:      &models.Secret{ID: secretID, ValueAuthorID: row.ValueAuthorID, MetaAuthorID: row.MetaAuthorID},
		Plaintext:   plaintext,
		Metadata:    meta,
		ValueAuthor: valueAuthor,
		MetaAuthor:  metaAuthor,
		Groups:      groupsSharing,
		GroupID:     row.GroupID,
	}, nil
}

// UpdateMeta implements secret_update_meta: decrypt the existing metadata
// through whichever of the user's groups reaches this secret, merge in
// partial, then re-seal the merged result for every group currently sharing
// the secret.
func (c *Controller) UpdateMeta(ctx context.Context, db dbx.DBTX, user *models.User, secretID int64, partial models.SecretMeta) error {
	current, err := c.Unlock(ctx, db, user, secretID)
	if err != nil {
		return err
	}
	merged := current.Metadata.Merge(partial)
	mergedBytes, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	values := make([]secrets.ValueRow, 0, len(current.Groups))
	for _, g := range current.Groups {
		encMeta, err := cryptox.SealPair(&g.Pubk, user.Privk, mergedBytes)
		if err != nil {
			return kstorerr.Wrap(err)
		}
		values = append(values, secrets.ValueRow{GroupID: g.ID, EncryptedMetadata: encMeta})
	}
	return c.repos.Secrets(db).UpdateMetadata(ctx, secretID, values, user.ID)
}

// UpdateValue implements secret_update_value, symmetric to UpdateMeta but
// re-sealing the ciphertext instead of the metadata.
func (c *Controller) UpdateValue(ctx context.Context, db dbx.DBTX, user *models.User, secretID int64, plaintext []byte) error {
	current, err := c.Unlock(ctx, db, user, secretID)
	if err != nil {
		return err
	}

	values := make([]secrets.ValueRow, 0, len(current.Groups))
	for _, g := range current.Groups {
		ciphertext, err := cryptox.SealPair(&g.Pubk, user.Privk, plaintext)
		if err != nil {
			return kstorerr.Wrap(err)
		}
		values = append(values, secrets.ValueRow{GroupID: g.ID, Ciphertext: ciphertext})
	}
	return c.repos.Secrets(db).UpdateValues(ctx, secretID, values, user.ID)
}

// Delete implements secret_delete: verify the user can reach the secret,
// then cascade-delete it.
func (c *Controller) Delete(ctx context.Context, db dbx.DBTX, user *models.User, secretID int64) error {
	if _, err := c.Unlock(ctx, db, user, secretID); err != nil {
		return err
	}
	return c.repos.Secrets(db).Delete(ctx, secretID)
}
