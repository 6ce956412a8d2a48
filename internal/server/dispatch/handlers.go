package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/kstor/internal/armor"
	"github.com/dmitrijs2005/kstor/internal/dbx"
	"github.com/dmitrijs2005/kstor/internal/kstorerr"
	"github.com/dmitrijs2005/kstor/internal/server/models"
)

func handlePing(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error) {
	var args pingArgs
	_ = decodeArgs(raw, &args) // payload is optional
	return "pong", pongArgs{Payload: args.Payload}, nil
}

func handleGroupCreate(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error) {
	var args groupCreateArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Name == "" {
		return "", nil, kstorerr.New(kstorerr.ReqMissingArgs, "name")
	}
	g, err := d.admin.CreateGroup(ctx, tx, user, args.Name)
	if err != nil {
		return "", nil, err
	}
	return "group_created", groupCreatedArgs{GroupID: g.ID, Name: g.Name}, nil
}

func handleGroupRename(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error) {
	var args groupRenameArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Name == "" {
		return "", nil, kstorerr.New(kstorerr.ReqMissingArgs, "name")
	}
	if err := d.admin.RenameGroup(ctx, tx, args.GroupID, args.Name); err != nil {
		return "", nil, err
	}
	return "group_updated", groupUpdatedArgs{GroupID: args.GroupID}, nil
}

func handleGroupDelete(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error) {
	var args groupDeleteArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if err := d.admin.DeleteGroup(ctx, tx, user, args.GroupID); err != nil {
		return "", nil, err
	}
	return "group_deleted", groupDeletedArgs{GroupID: args.GroupID}, nil
}

func handleGroupSearch(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error) {
	var args groupSearchArgs
	_ = decodeArgs(raw, &args) // empty pattern matches everything
	groups, err := d.admin.SearchGroups(ctx, tx, args.Name)
	if err != nil {
		return "", nil, err
	}
	return "group_list", groupListArgs{Groups: groupsToWire(groups)}, nil
}

func handleGroupGet(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error) {
	var args groupGetArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	g, err := d.admin.GetGroup(ctx, tx, args.GroupID)
	if err != nil {
		return "", nil, err
	}
	return "group_info", groupInfoArgs{GroupID: g.ID, Name: g.Name, Members: membersToWire(g.Members)}, nil
}

func handleGroupAddUser(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error) {
	var args groupAddUserArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if err := d.admin.AddUserToGroup(ctx, tx, user, args.UserID, args.GroupID); err != nil {
		return "", nil, err
	}
	return "group_updated", groupUpdatedArgs{GroupID: args.GroupID}, nil
}

func handleGroupRemoveUser(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error) {
	var args groupRemoveUserArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if err := d.admin.RemoveUserFromGroup(ctx, tx, args.GroupID, args.UserID); err != nil {
		return "", nil, err
	}
	return "group_updated", groupUpdatedArgs{GroupID: args.GroupID}, nil
}

func handleUserCreate(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error) {
	var args userCreateArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Login == "" {
		return "", nil, kstorerr.New(kstorerr.ReqMissingArgs, "login")
	}
	newUser, tok, err := d.admin.CreateUser(ctx, tx, args.Login, args.Name, time.Duration(args.TokenLifespanSecs)*time.Second)
	if err != nil {
		return "", nil, err
	}
	return "user_created", userCreatedArgs{UserID: newUser.ID, Login: newUser.Login, ActivationToken: tok.Token}, nil
}

// handleUserActivate is a no-op handler: activation itself already happened
// inside authctl.Authenticate before the handler runs, since user_activate
// requires its own crypto-bootstrap path rather than an ordinary unlock
// (spec §4.3, item 2).
func handleUserActivate(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error) {
	return "user_updated", userUpdatedArgs{UserID: user.ID}, nil
}

func handleUserChangePassword(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error) {
	var args userChangePasswordArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.NewPassword == "" {
		return "", nil, kstorerr.New(kstorerr.ReqMissingArgs, "new_password")
	}
	newKey, err := d.admin.ChangeUserPassword(ctx, tx, user, []byte(args.NewPassword))
	if err != nil {
		return "", nil, err
	}
	return "user_password_changed", passwordChangeResult{userID: user.ID, secretKey: newKey.Value}, nil
}

func handleSecretCreate(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error) {
	var args secretCreateArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	plaintext, err := unarmorPlaintext(args.Plaintext)
	if err != nil {
		return "", nil, err
	}
	secretID, err := d.secret.Create(ctx, tx, user, plaintext, args.GroupIDs, args.Meta.toModel())
	if err != nil {
		return "", nil, err
	}
	return "secret_created", secretCreatedArgs{SecretID: secretID}, nil
}

func handleSecretSearch(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error) {
	var args secretSearchArgs
	_ = decodeArgs(raw, &args) // empty pattern matches everything
	hits, err := d.secret.Search(ctx, tx, user, args.Meta.toModel())
	if err != nil {
		return "", nil, err
	}
	out := make([]secretHitWire, 0, len(hits))
	for _, h := range hits {
		out = append(out, secretHitWire{SecretID: h.SecretID, GroupID: h.GroupID, Meta: metaFromModel(h.Metadata)})
	}
	return "secret_list", secretListArgs{Secrets: out}, nil
}

func handleSecretUnlock(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error) {
	var args secretUnlockArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	u, err := d.secret.Unlock(ctx, tx, user, args.SecretID)
	if err != nil {
		return "", nil, err
	}
	return "secret_value", secretValueArgs{
		SecretID:    args.SecretID,
		Plaintext:   armor.Armor(u.Plaintext),
		Meta:        metaFromModel(u.Metadata),
		ValueAuthor: authorWire{UserID: u.ValueAuthor.ID, Login: u.ValueAuthor.Login},
		MetaAuthor:  authorWire{UserID: u.MetaAuthor.ID, Login: u.MetaAuthor.Login},
		Groups:      groupsToWire(u.Groups),
	}, nil
}

func handleSecretUpdateMeta(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error) {
	var args secretUpdateMetaArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if err := d.secret.UpdateMeta(ctx, tx, user, args.SecretID, args.Meta.toModel()); err != nil {
		return "", nil, err
	}
	return "secret_updated", secretUpdatedArgs{SecretID: args.SecretID}, nil
}

func handleSecretUpdateValue(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error) {
	var args secretUpdateValueArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	plaintext, err := unarmorPlaintext(args.Plaintext)
	if err != nil {
		return "", nil, err
	}
	if err := d.secret.UpdateValue(ctx, tx, user, args.SecretID, plaintext); err != nil {
		return "", nil, err
	}
	return "secret_updated", secretUpdatedArgs{SecretID: args.SecretID}, nil
}

func handleSecretDelete(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error) {
	var args secretDeleteArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if err := d.secret.Delete(ctx, tx, user, args.SecretID); err != nil {
		return "", nil, err
	}
	return "secret_deleted", secretDeletedArgs{SecretID: args.SecretID}, nil
}
