// Package api wraps internal/client/transport with typed request/response
// helpers for every operation in spec §4, plus session bookkeeping so
// callers can authenticate once and reuse the resulting session id.
package api

import (
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/kstor/internal/armor"
	"github.com/dmitrijs2005/kstor/internal/client/transport"
)

// Session holds the client side of an authenticated conversation: once a
// session id is returned by the server, subsequent requests supply it
// instead of login/password (spec §4.3).
type Session struct {
	client    *transport.Client
	login     string
	password  string
	sessionID string
}

// New returns a Session bound to the UNIX socket at socketPath.
func New(socketPath string, timeout time.Duration) *Session {
	return &Session{client: transport.New(socketPath, timeout)}
}

// Credentials sets the login/password this session falls back to while it
// has no active session id yet (the very first request of a conversation,
// or after Logout).
func (s *Session) Credentials(login, password string) {
	s.login = login
	s.password = password
}

// Logout drops the locally cached session id; the next request re-derives
// one from Credentials.
func (s *Session) Logout() {
	s.sessionID = ""
}

func (s *Session) send(reqType string, args any) (*transport.Response, error) {
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	msg := transport.Message{Type: reqType, Args: raw, SessionID: s.sessionID}
	if s.sessionID == "" {
		msg.Login = s.login
		msg.Password = s.password
	}

	resp, err := s.client.Send(msg)
	if err != nil {
		return resp, err
	}
	if resp.SessionID != "" {
		s.sessionID = resp.SessionID
	}
	return resp, nil
}

func decode[T any](resp *transport.Response, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if len(resp.Args) == 0 {
		return out, nil
	}
	err = json.Unmarshal(resp.Args, &out)
	return out, err
}

// Ping round-trips an arbitrary payload off the server (spec §4.1).
func (s *Session) Ping(payload string) (string, error) {
	resp, err := decode[pongArgs](s.send("ping", pingArgs{Payload: payload}))
	return resp.Payload, err
}

type pingArgs struct {
	Payload string `json:"payload,omitempty"`
}
type pongArgs struct {
	Payload string `json:"payload,omitempty"`
}

// CreateUser provisions a new user and its activation token (spec §4.5,
// admin-only).
func (s *Session) CreateUser(login, name string, tokenLifespan time.Duration) (userCreatedArgs, error) {
	return decode[userCreatedArgs](s.send("user_create", userCreateArgs{
		Login:             login,
		Name:              name,
		TokenLifespanSecs: int(tokenLifespan.Seconds()),
	}))
}

type userCreateArgs struct {
	Login             string `json:"login"`
	Name              string `json:"name,omitempty"`
	TokenLifespanSecs int    `json:"token_lifespan,omitempty"`
}
type userCreatedArgs struct {
	UserID          int64  `json:"user_id"`
	Login           string `json:"login"`
	ActivationToken string `json:"activation_token"`
}

// Activate completes a new user's first login, deriving and persisting
// their keypair from the Session's password, which becomes their
// passphrase. The server accepts it while the login has an unexpired
// activation token; the token value itself is not sent.
func (s *Session) Activate() (userUpdatedArgs, error) {
	return decode[userUpdatedArgs](s.send("user_activate", nil))
}

type userUpdatedArgs struct {
	UserID int64 `json:"user_id"`
}

// ChangePassword re-encrypts the caller's keychain under newPassword and
// rotates the session (spec §4.3, item 3).
func (s *Session) ChangePassword(newPassword string) (userUpdatedArgs, error) {
	return decode[userUpdatedArgs](s.send("user_change_password", userChangePasswordArgs{NewPassword: newPassword}))
}

type userChangePasswordArgs struct {
	NewPassword string `json:"new_password"`
}

// CreateGroup creates a new sharing group and seals its private key for
// the caller (spec §4.5).
func (s *Session) CreateGroup(name string) (groupCreatedArgs, error) {
	return decode[groupCreatedArgs](s.send("group_create", groupCreateArgs{Name: name}))
}

type groupCreateArgs struct {
	Name string `json:"name"`
}
type groupCreatedArgs struct {
	GroupID int64  `json:"group_id"`
	Name    string `json:"name"`
}

// RenameGroup renames an existing group.
func (s *Session) RenameGroup(groupID int64, name string) error {
	_, err := s.send("group_rename", groupRenameArgs{GroupID: groupID, Name: name})
	return err
}

type groupRenameArgs struct {
	GroupID int64  `json:"group_id"`
	Name    string `json:"name"`
}

// DeleteGroup deletes a group with no remaining members.
func (s *Session) DeleteGroup(groupID int64) error {
	_, err := s.send("group_delete", groupDeleteArgs{GroupID: groupID})
	return err
}

type groupDeleteArgs struct {
	GroupID int64 `json:"group_id"`
}

// SearchGroups lists groups whose name matches a glob pattern.
func (s *Session) SearchGroups(nameGlob string) (groupListArgs, error) {
	return decode[groupListArgs](s.send("group_search", groupSearchArgs{Name: nameGlob}))
}

type groupSearchArgs struct {
	Name string `json:"name,omitempty"`
}
type groupListArgs struct {
	Groups []groupCreatedArgs `json:"groups"`
}

// GetGroup fetches one group's membership.
func (s *Session) GetGroup(groupID int64) (groupInfoArgs, error) {
	return decode[groupInfoArgs](s.send("group_get", groupGetArgs{GroupID: groupID}))
}

type groupGetArgs struct {
	GroupID int64 `json:"group_id"`
}
type groupMemberWire struct {
	UserID int64  `json:"user_id"`
	Login  string `json:"login"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status"`
}
type groupInfoArgs struct {
	GroupID int64             `json:"group_id"`
	Name    string            `json:"name"`
	Members []groupMemberWire `json:"members"`
}

// AddUserToGroup shares the caller's already-decrypted group key with
// another user (spec §4.5).
func (s *Session) AddUserToGroup(groupID, userID int64) error {
	_, err := s.send("group_add_user", groupAddUserArgs{GroupID: groupID, UserID: userID})
	return err
}

type groupAddUserArgs struct {
	GroupID int64 `json:"group_id"`
	UserID  int64 `json:"user_id"`
}

// RemoveUserFromGroup revokes a member's access to a group.
func (s *Session) RemoveUserFromGroup(groupID, userID int64) error {
	_, err := s.send("group_remove_user", groupRemoveUserArgs{GroupID: groupID, UserID: userID})
	return err
}

type groupRemoveUserArgs struct {
	GroupID int64 `json:"group_id"`
	UserID  int64 `json:"user_id"`
}

// MetaWire mirrors dispatch's wire shape for secret metadata.
type MetaWire struct {
	App      string `json:"app,omitempty"`
	Database string `json:"database,omitempty"`
	Login    string `json:"login,omitempty"`
	Server   string `json:"server,omitempty"`
	URL      string `json:"url,omitempty"`
}

// CreateSecret armors plaintext, creates one secret shared with groupIDs,
// and returns its id (spec §4.4).
func (s *Session) CreateSecret(plaintext []byte, groupIDs []int64, meta MetaWire) (int64, error) {
	out, err := decode[secretCreatedArgs](s.send("secret_create", secretCreateArgs{
		Plaintext: armor.Armor(plaintext),
		GroupIDs:  groupIDs,
		Meta:      meta,
	}))
	return out.SecretID, err
}

type secretCreateArgs struct {
	Plaintext string   `json:"plaintext"`
	GroupIDs  []int64  `json:"group_ids"`
	Meta      MetaWire `json:"meta,omitempty"`
}
type secretCreatedArgs struct {
	SecretID int64 `json:"secret_id"`
}

// SecretHit is one row of a secret_search result.
type SecretHit struct {
	SecretID int64    `json:"secret_id"`
	GroupID  int64    `json:"group_id"`
	Meta     MetaWire `json:"meta"`
}

// SearchSecrets lists secrets visible to the caller whose metadata matches
// pattern (spec §4.4).
func (s *Session) SearchSecrets(pattern MetaWire) ([]SecretHit, error) {
	out, err := decode[secretListArgs](s.send("secret_search", secretSearchArgs{Meta: pattern}))
	return out.Secrets, err
}

type secretSearchArgs struct {
	Meta MetaWire `json:"meta,omitempty"`
}
type secretListArgs struct {
	Secrets []SecretHit `json:"secrets"`
}

// UnlockedSecret is a fully decrypted secret's wire representation.
type UnlockedSecret struct {
	SecretID    int64
	Plaintext   []byte
	Meta        MetaWire
	ValueAuthor AuthorWire
	MetaAuthor  AuthorWire
	Groups      []groupCreatedArgs
}

// AuthorWire names who last wrote a secret's value or metadata.
type AuthorWire struct {
	UserID int64  `json:"user_id"`
	Login  string `json:"login"`
}

// UnlockSecret fetches and decrypts one secret's value (spec §4.4).
func (s *Session) UnlockSecret(secretID int64) (UnlockedSecret, error) {
	var wire secretValueWire
	resp, err := s.send("secret_unlock", secretUnlockArgs{SecretID: secretID})
	if err != nil {
		return UnlockedSecret{}, err
	}
	if err := json.Unmarshal(resp.Args, &wire); err != nil {
		return UnlockedSecret{}, err
	}
	plaintext, err := armor.Unarmor(wire.Plaintext)
	if err != nil {
		return UnlockedSecret{}, err
	}
	return UnlockedSecret{
		SecretID:    wire.SecretID,
		Plaintext:   plaintext,
		Meta:        wire.Meta,
		ValueAuthor: wire.ValueAuthor,
		MetaAuthor:  wire.MetaAuthor,
		Groups:      wire.Groups,
	}, nil
}

type secretUnlockArgs struct {
	SecretID int64 `json:"secret_id"`
}
type secretValueWire struct {
	SecretID    int64              `json:"secret_id"`
	Plaintext   string             `json:"plaintext"`
	Meta        MetaWire           `json:"metadata"`
	ValueAuthor AuthorWire         `json:"value_author"`
	MetaAuthor  AuthorWire         `json:"meta_author"`
	Groups      []groupCreatedArgs `json:"groups"`
}

// UpdateSecretMeta patches a secret's metadata fields, leaving its value
// untouched.
func (s *Session) UpdateSecretMeta(secretID int64, meta MetaWire) error {
	_, err := s.send("secret_update_meta", secretUpdateMetaArgs{SecretID: secretID, Meta: meta})
	return err
}

type secretUpdateMetaArgs struct {
	SecretID int64    `json:"secret_id"`
	Meta     MetaWire `json:"meta"`
}

// UpdateSecretValue re-seals a secret's value for every group it is
// currently shared with.
func (s *Session) UpdateSecretValue(secretID int64, plaintext []byte) error {
	_, err := s.send("secret_update_value", secretUpdateValueArgs{
		SecretID:  secretID,
		Plaintext: armor.Armor(plaintext),
	})
	return err
}

type secretUpdateValueArgs struct {
	SecretID  int64  `json:"secret_id"`
	Plaintext string `json:"plaintext"`
}

// DeleteSecret removes a secret and every sealed value row backing it.
func (s *Session) DeleteSecret(secretID int64) error {
	_, err := s.send("secret_delete", secretDeleteArgs{SecretID: secretID})
	return err
}

type secretDeleteArgs struct {
	SecretID int64 `json:"secret_id"`
}
