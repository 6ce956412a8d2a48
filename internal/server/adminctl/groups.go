package adminctl

import (
	"context"

	"github.com/dmitrijs2005/kstor/internal/cryptox"
	"github.com/dmitrijs2005/kstor/internal/dbx"
	"github.com/dmitrijs2005/kstor/internal/kstorerr"
	"github.com/dmitrijs2005/kstor/internal/server/models"
)

// CreateGroup implements group_create: generate a fresh group keypair,
// persist the group, and add the creating admin as its first member by
// sealing the new private key under their own public key.
func (c *Controller) CreateGroup(ctx context.Context, db dbx.DBTX, admin *models.User, name string) (*models.Group, error) {
	kp, err := cryptox.GenerateKeyPair()
	if err != nil {
		return nil, kstorerr.Wrap(err)
	}

	g, err := c.repos.Groups(db).Create(ctx, name, kp.Pub)
	if err != nil {
		return nil, err
	}

	sealed, err := cryptox.SealPair(&admin.Pubk, &kp.Priv, kp.Priv[:])
	if err != nil {
		return nil, kstorerr.Wrap(err)
	}
	kci := &models.KeychainItem{GroupID: g.ID, GroupPubk: g.Pubk, EncryptedPrivk: sealed, Privk: &kp.Priv}
	if err := c.repos.Users(db).PutKeychainItem(ctx, admin.ID, kci); err != nil {
		return nil, err
	}
	admin.Keychain[g.ID] = kci
	c.cache.InvalidateUser(admin.ID)
	c.cache.PutGroup(g)

	return g, nil
}

// RenameGroup implements group_rename.
func (c *Controller) RenameGroup(ctx context.Context, db dbx.DBTX, groupID int64, newName string) error {
	if err := c.repos.Groups(db).Rename(ctx, groupID, newName); err != nil {
		return err
	}
	c.cache.InvalidateGroup(groupID)
	return nil
}

// DeleteGroup implements group_delete: refused if any member other than the
// caller still holds a keychain entry for the group.
func (c *Controller) DeleteGroup(ctx context.Context, db dbx.DBTX, caller *models.User, groupID int64) error {
	n, err := c.repos.Groups(db).MemberCount(ctx, groupID)
	if err != nil {
		return err
	}
	isMember, err := c.repos.Groups(db).IsMember(ctx, groupID, caller.ID)
	if err != nil {
		return err
	}
	want := int64(0)
	if isMember {
		want = 1
	}
	if n > want {
		return kstorerr.New(kstorerr.StoreGroupHasUsers, groupID)
	}

	if err := c.repos.Groups(db).Delete(ctx, groupID); err != nil {
		return err
	}
	c.cache.InvalidateGroup(groupID)
	return nil
}

// SearchGroups implements group_search.
func (c *Controller) SearchGroups(ctx context.Context, db dbx.DBTX, nameGlob string) ([]*models.Group, error) {
	return c.repos.Groups(db).Search(ctx, nameGlob)
}

// GetGroup implements group_get, returning the group with its member list.
func (c *Controller) GetGroup(ctx context.Context, db dbx.DBTX, groupID int64) (*models.Group, error) {
	return c.repos.Groups(db).GetByID(ctx, groupID)
}

// AddUserToGroup implements group_add_user: caller must already hold the
// group's private key in their own keychain; a new keychain item is built
// for target, sealing the group private key under target's public key, and
// persisted.
func (c *Controller) AddUserToGroup(ctx context.Context, db dbx.DBTX, caller *models.User, targetUserID int64, groupID int64) error {
	callerKci := caller.Keychain[groupID]
	if callerKci == nil || callerKci.Privk == nil {
		return kstorerr.New(kstorerr.StoreUnknownGroupPrivk, groupID)
	}

	target, err := c.repos.Users(db).GetByID(ctx, targetUserID)
	if err != nil {
		return err
	}

	sealed, err := cryptox.SealPair(&target.Pubk, callerKci.Privk, callerKci.Privk[:])
	if err != nil {
		return kstorerr.Wrap(err)
	}

	kci := &models.KeychainItem{GroupID: groupID, GroupPubk: callerKci.GroupPubk, EncryptedPrivk: sealed}
	if err := c.repos.Users(db).PutKeychainItem(ctx, targetUserID, kci); err != nil {
		return err
	}

	// Invalidate only the cached user/group entries; the in-flight target
	// user object (if this were their own request) is intentionally left
	// untouched — spec §9 requires the new keychain entry to become visible
	// only on a subsequent re-authentication, not within the current request.
	c.cache.InvalidateUser(targetUserID)
	c.cache.InvalidateGroup(groupID)
	return nil
}

// RemoveUserFromGroup implements group_remove_user: deletes the keychain
// row. Existing secret_values rows for the group are untouched and remain
// readable by any other member.
func (c *Controller) RemoveUserFromGroup(ctx context.Context, db dbx.DBTX, groupID int64, userID int64) error {
	if err := c.repos.Users(db).DeleteKeychainItem(ctx, userID, groupID); err != nil {
		return err
	}
	c.cache.InvalidateUser(userID)
	c.cache.InvalidateGroup(groupID)
	return nil
}
