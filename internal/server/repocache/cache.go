// Package repocache implements the process-wide, read-through cache of
// users and groups described in spec §5: every dispatched request resolves
// its actor and any referenced groups through this cache instead of hitting
// Postgres directly, and every write path invalidates the entries it
// touches.
package repocache

import (
	"sync"

	"github.com/dmitrijs2005/kstor/internal/server/models"
)

// Cache holds the users and groups put into it in memory behind a single
// RWMutex. It has no eviction policy: entries live until explicitly
// invalidated by a write, matching the small expected cardinality of a
// multi-user secret store (spec §5 guidance: "the whole user/group graph
// is small enough to keep resident").
type Cache struct {
	mu     sync.RWMutex
	users  map[int64]*models.User
	groups map[int64]*models.Group

	usersByLogin map[string]int64
}

func New() *Cache {
	return &Cache{
		users:        make(map[int64]*models.User),
		groups:       make(map[int64]*models.Group),
		usersByLogin: make(map[string]int64),
	}
}

// PutUser stores a sealed copy of u, regardless of whether u itself is
// currently unlocked. Privk and every KeychainItem.Privk are ephemeral,
// request-scoped fields (spec §3); a process-wide cache that retained them
// would hand two concurrent requests for the same user a shared key they
// could Unlock/Lock out from under each other. Sealing on the way in makes
// that impossible no matter what state the caller's own copy is in.
func (c *Cache) PutUser(u *models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sealed := sealedClone(u)
	if old, ok := c.users[sealed.ID]; ok && old.Login != sealed.Login {
		delete(c.usersByLogin, old.Login)
	}
	c.users[sealed.ID] = sealed
	c.usersByLogin[sealed.Login] = sealed.ID
}

// User returns an independent copy of the cached user, never the pointer
// held in the cache. Since cache entries are always sealed (see PutUser),
// every caller unlocks its own copy; no two requests ever observe or
// mutate the same Privk/KeychainItem.Privk through the cache.
func (c *Cache) User(id int64) (*models.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.users[id]
	if !ok {
		return nil, false
	}
	return cloneUser(u), true
}

func (c *Cache) UserByLogin(login string) (*models.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.usersByLogin[login]
	if !ok {
		return nil, false
	}
	u, ok := c.users[id]
	if !ok {
		return nil, false
	}
	return cloneUser(u), true
}

// cloneUser deep-copies u, including a fresh Keychain map with fresh
// KeychainItem values, so the returned user shares no mutable pointer with
// the original.
func cloneUser(u *models.User) *models.User {
	clone := *u
	clone.Privk = clonePrivk(u.Privk)

	clone.Keychain = make(map[int64]*models.KeychainItem, len(u.Keychain))
	for id, kci := range u.Keychain {
		kciClone := *kci
		kciClone.Privk = clonePrivk(kci.Privk)
		clone.Keychain[id] = &kciClone
	}
	return &clone
}

// sealedClone is cloneUser with every ephemeral private key stripped, as if
// Lock had already run. PutUser uses this so the cache never becomes a
// backdoor for sharing unlock state across requests.
func sealedClone(u *models.User) *models.User {
	clone := cloneUser(u)
	clone.Privk = nil
	for _, kci := range clone.Keychain {
		kci.Privk = nil
	}
	return clone
}

func clonePrivk(p *[32]byte) *[32]byte {
	if p == nil {
		return nil
	}
	var out [32]byte
	copy(out[:], p[:])
	return &out
}

// InvalidateUser drops a user so the next lookup falls through to the
// repository. Called after any write that changes a user row or its
// crypto material (reset_password, change_password, keychain updates).
func (c *Cache) InvalidateUser(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if u, ok := c.users[id]; ok {
		delete(c.usersByLogin, u.Login)
	}
	delete(c.users, id)
}

func (c *Cache) PutGroup(g *models.Group) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups[g.ID] = g
}

func (c *Cache) Group(id int64) (*models.Group, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.groups[id]
	return g, ok
}

// InvalidateGroup drops a group. Called after group_rename, group_delete,
// group_add_user and group_remove_user — any of these change either the
// group row itself or the membership list cached on it.
func (c *Cache) InvalidateGroup(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.groups, id)
}
