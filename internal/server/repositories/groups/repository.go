// Package groups declares and implements the persistence contract for
// Group aggregates and their membership lists.
package groups

import (
	"context"

	"github.com/dmitrijs2005/kstor/internal/server/models"
)

// Repository persists and retrieves Group aggregates. GetByID populates
// Members (login/name/status only, no crypto data); Search does not.
type Repository interface {
	Create(ctx context.Context, name string, pubk [32]byte) (*models.Group, error)
	GetByID(ctx context.Context, id int64) (*models.Group, error)
	Rename(ctx context.Context, id int64, newName string) error
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, nameGlob string) ([]*models.Group, error)

	// MemberCount returns how many users currently hold a keychain entry
	// for groupID, used by group_delete's "refused if it has members other
	// than the caller" rule.
	MemberCount(ctx context.Context, groupID int64) (int64, error)

	// IsMember reports whether userID holds a keychain entry for groupID.
	IsMember(ctx context.Context, groupID int64, userID int64) (bool, error)
}
