// Package adminctl implements the group and user administration operations
// from spec §4.5: group lifecycle, membership management, and user
// creation/activation/password-change.
package adminctl

import (
	"time"

	"github.com/dmitrijs2005/kstor/internal/server/repocache"
	"github.com/dmitrijs2005/kstor/internal/server/repomanager"
)

// Controller implements spec §4.5. Group-mutating methods are admin-only;
// the dispatcher enforces that with its adminOnly table before routing here.
type Controller struct {
	repos repomanager.RepositoryManager
	cache *repocache.Cache
}

func New(repos repomanager.RepositoryManager, cache *repocache.Cache) *Controller {
	return &Controller{repos: repos, cache: cache}
}

// DefaultActivationTTL is the activation token lifespan used by user_create
// when the request omits an explicit token_lifespan.
const DefaultActivationTTL = 7 * 24 * time.Hour
