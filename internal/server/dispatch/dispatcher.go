package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/kstor/internal/armor"
	"github.com/dmitrijs2005/kstor/internal/dbx"
	"github.com/dmitrijs2005/kstor/internal/kstorerr"
	"github.com/dmitrijs2005/kstor/internal/logging"
	"github.com/dmitrijs2005/kstor/internal/server/adminctl"
	"github.com/dmitrijs2005/kstor/internal/server/authctl"
	"github.com/dmitrijs2005/kstor/internal/server/models"
	"github.com/dmitrijs2005/kstor/internal/server/secretctl"
)

// handlerFunc runs inside the request's transaction with the already
// unlocked, authenticated user. It returns the response type tag and its
// args, or an error to be translated into an error response.
type handlerFunc func(ctx context.Context, d *Dispatcher, tx dbx.DBTX, user *models.User, raw json.RawMessage) (string, any, error)

// Dispatcher implements spec §4.6. It is state-free beyond its collaborator
// references: all per-request state lives in the transaction and the
// *models.User passed to each handler.
type Dispatcher struct {
	db     *sql.DB
	auth   *authctl.Controller
	secret *secretctl.Controller
	admin  *adminctl.Controller
	logger logging.Logger

	routes map[string]handlerFunc
}

func New(db *sql.DB, auth *authctl.Controller, secret *secretctl.Controller, admin *adminctl.Controller, logger logging.Logger) *Dispatcher {
	d := &Dispatcher{db: db, auth: auth, secret: secret, admin: admin, logger: logger}
	d.routes = map[string]handlerFunc{
		"ping":                  handlePing,
		"group_create":          handleGroupCreate,
		"group_rename":          handleGroupRename,
		"group_delete":          handleGroupDelete,
		"group_search":          handleGroupSearch,
		"group_get":             handleGroupGet,
		"group_add_user":        handleGroupAddUser,
		"group_remove_user":     handleGroupRemoveUser,
		"user_create":           handleUserCreate,
		"user_activate":         handleUserActivate,
		"user_change_password":  handleUserChangePassword,
		"secret_create":         handleSecretCreate,
		"secret_search":         handleSecretSearch,
		"secret_unlock":         handleSecretUnlock,
		"secret_update_meta":    handleSecretUpdateMeta,
		"secret_update_value":   handleSecretUpdateValue,
		"secret_delete":         handleSecretDelete,
	}
	return d
}

// adminOnly lists request types restricted to admin users (spec §4.5:
// "Admin-only except where noted").
var adminOnly = map[string]bool{
	"group_create":      true,
	"group_rename":      true,
	"group_delete":      true,
	"group_add_user":    true,
	"group_remove_user": true,
	"user_create":       true,
}

// Handle parses raw, authenticates it, routes it, and returns the response
// bytes to write back on the connection. A malformed message gets a
// MSG/INVALID error response; a *kstorerr.Error raised while handling keeps
// its code, and any other error becomes CRYPTO/UNSPECIFIED. Panics are not
// recovered here.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) []byte {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return mustMarshal(errorResponse("", kstorerr.New(kstorerr.MsgInvalid)))
	}
	if msg.Type == "" {
		return mustMarshal(errorResponse("", kstorerr.New(kstorerr.MsgInvalid)))
	}
	if msg.SessionID == "" && (msg.Login == "" || msg.Password == "") {
		return mustMarshal(errorResponse("", kstorerr.New(kstorerr.MsgInvalid)))
	}

	handler, ok := d.routes[msg.Type]
	if !ok {
		return mustMarshal(errorResponse(msg.SessionID, kstorerr.New(kstorerr.ReqUnknown, msg.Type)))
	}

	authReq := authctl.Request{Type: msg.Type, Login: msg.Login, Password: []byte(msg.Password), SessionID: msg.SessionID}

	var (
		user           *models.User
		sessionID      string
		respType       string
		respArgs       any
		rotatedSession string
	)

	err := dbx.WithTx(ctx, d.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var authErr error
		user, sessionID, authErr = d.auth.Authenticate(ctx, tx, authReq)
		if authErr != nil {
			return authErr
		}
		defer user.Lock()

		if !authctl.Allowed(user.Status, msg.Type) {
			return kstorerr.New(kstorerr.AuthForbidden)
		}
		if adminOnly[msg.Type] && user.Status != models.StatusAdmin {
			return kstorerr.New(kstorerr.AuthForbidden)
		}

		var handlerErr error
		respType, respArgs, handlerErr = handler(ctx, d, tx, user, msg.Args)
		if handlerErr != nil {
			return handlerErr
		}

		if respType == "user_password_changed" {
			pc := respArgs.(passwordChangeResult)
			newSessionID, rotErr := d.auth.RotateSession(sessionID, user.ID, pc.secretKey)
			if rotErr != nil {
				return rotErr
			}
			rotatedSession = newSessionID
			respArgs = userPasswordChangedArgs{UserID: pc.userID}
		}
		return nil
	})

	if err != nil {
		if d.logger != nil {
			d.logger.Error(ctx, "request failed", "type", msg.Type, "error", err.Error())
		}
		return mustMarshal(errorResponse(sessionID, err))
	}

	finalSession := sessionID
	if rotatedSession != "" {
		finalSession = rotatedSession
	}
	return mustMarshal(Response{Type: respType, Args: respArgs, SessionID: finalSession})
}

func errorResponse(sessionID string, err error) Response {
	kerr := kstorerr.Wrap(err)
	return Response{
		Type:      "error",
		Args:      errorArgs{Code: string(kerr.Code), Message: kerr.Message},
		SessionID: sessionID,
	}
}

func mustMarshal(r Response) []byte {
	b, err := json.Marshal(r)
	if err != nil {
		// Marshaling our own, fully-typed Response can't fail in practice;
		// fall back to a minimal hand-built error payload if it ever does.
		return []byte(fmt.Sprintf(`{"type":"error","args":{"code":"%s","message":"response encoding failed"}}`, kstorerr.CryptoUnspecified))
	}
	return b
}

// passwordChangeResult is the internal handoff between handleUserChangePassword
// and Handle's post-processing step (spec §4.3's password-change side effect).
type passwordChangeResult struct {
	userID    int64
	secretKey []byte
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return kstorerr.New(kstorerr.ReqMissingArgs, "args")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return kstorerr.New(kstorerr.MsgInvalid)
	}
	return nil
}

func unarmorPlaintext(s string) ([]byte, error) {
	if s == "" {
		return nil, kstorerr.New(kstorerr.ReqMissingArgs, "plaintext")
	}
	b, err := armor.Unarmor(s)
	if err != nil {
		return nil, kstorerr.New(kstorerr.MsgInvalid)
	}
	return b, nil
}
