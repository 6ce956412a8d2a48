package authctl

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/kstor/internal/dbx"
	"github.com/dmitrijs2005/kstor/internal/kstorerr"
	"github.com/dmitrijs2005/kstor/internal/server/models"
	"github.com/dmitrijs2005/kstor/internal/server/repocache"
	"github.com/dmitrijs2005/kstor/internal/server/repositories/groups"
	"github.com/dmitrijs2005/kstor/internal/server/repositories/secrets"
	"github.com/dmitrijs2005/kstor/internal/server/repositories/users"
	"github.com/dmitrijs2005/kstor/internal/server/sessionstore"
)

// fakeUsersRepo is an in-memory stand-in for users.Repository, keyed the
// way the real Postgres table is: by id and by login.
type fakeUsersRepo struct {
	byID    map[int64]*models.User
	byLogin map[string]*models.User
	nextID  int64

	activations map[int64]*models.ActivationToken
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{
		byID:        make(map[int64]*models.User),
		byLogin:     make(map[string]*models.User),
		activations: make(map[int64]*models.ActivationToken),
	}
}

func (f *fakeUsersRepo) Count(ctx context.Context) (int64, error) { return int64(len(f.byID)), nil }

func (f *fakeUsersRepo) Create(ctx context.Context, login, name string, status models.Status) (*models.User, error) {
	f.nextID++
	u := &models.User{ID: f.nextID, Login: login, Name: name, Status: status, Keychain: map[int64]*models.KeychainItem{}}
	f.byID[u.ID] = u
	f.byLogin[login] = u
	return u, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, kstorerr.New(kstorerr.StoreUnknownUser, id)
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	u, ok := f.byLogin[login]
	if !ok {
		return nil, kstorerr.New(kstorerr.StoreUnknownUser, login)
	}
	return u, nil
}

func (f *fakeUsersRepo) SaveCrypto(ctx context.Context, u *models.User) error {
	f.byID[u.ID] = u
	f.byLogin[u.Login] = u
	return nil
}

func (f *fakeUsersRepo) PutKeychainItem(ctx context.Context, userID int64, kci *models.KeychainItem) error {
	f.byID[userID].Keychain[kci.GroupID] = kci
	return nil
}

func (f *fakeUsersRepo) DeleteKeychainItem(ctx context.Context, userID int64, groupID int64) error {
	delete(f.byID[userID].Keychain, groupID)
	return nil
}

func (f *fakeUsersRepo) CreateActivation(ctx context.Context, tok *models.ActivationToken) error {
	f.activations[tok.UserID] = tok
	return nil
}

func (f *fakeUsersRepo) GetActivation(ctx context.Context, userID int64) (*models.ActivationToken, error) {
	tok, ok := f.activations[userID]
	if !ok {
		return nil, kstorerr.New(kstorerr.ReqMissingArgs, "activation token")
	}
	return tok, nil
}

func (f *fakeUsersRepo) PurgeActivations(ctx context.Context, userID int64) error {
	delete(f.activations, userID)
	return nil
}

// stubRepoManager implements repomanager.RepositoryManager, handing out a
// single in-memory fakeUsersRepo regardless of the dbx.DBTX passed in.
// authctl never touches Groups or Secrets, so those return nil.
type stubRepoManager struct {
	users *fakeUsersRepo
}

func (m *stubRepoManager) Users(db dbx.DBTX) users.Repository     { return m.users }
func (m *stubRepoManager) Groups(db dbx.DBTX) groups.Repository   { return nil }
func (m *stubRepoManager) Secrets(db dbx.DBTX) secrets.Repository { return nil }
func (m *stubRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}

func newController(t *testing.T) (*Controller, *fakeUsersRepo) {
	t.Helper()
	fr := newFakeUsersRepo()
	rm := &stubRepoManager{users: fr}
	return New(rm, repocache.New(), sessionstore.New(time.Minute, time.Hour)), fr
}

func TestAuthenticate_BootstrapsFirstUserAsAdmin(t *testing.T) {
	c, fr := newController(t)

	user, sessID, err := c.Authenticate(context.Background(), nil, Request{
		Type: "user_create", Login: "root", Password: []byte("hunter2"),
	})
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if user.Status != models.StatusAdmin {
		t.Fatalf("expected first user to be admin, got %v", user.Status)
	}
	if sessID == "" {
		t.Fatalf("expected non-empty session id")
	}
	if !fr.byID[user.ID].Initialized() {
		t.Fatalf("expected bootstrapped user to have crypto data persisted")
	}
}

func TestAuthenticate_BootstrapRequiresCredentials(t *testing.T) {
	c, _ := newController(t)
	_, _, err := c.Authenticate(context.Background(), nil, Request{Type: "ping"})
	var kerr *kstorerr.Error
	if !errors.As(err, &kerr) || kerr.Code != kstorerr.AuthMissing {
		t.Fatalf("expected AUTH/MISSING, got %v", err)
	}
}

func TestAuthenticate_PasswordLoginAfterBootstrap(t *testing.T) {
	c, _ := newController(t)
	_, _, err := c.Authenticate(context.Background(), nil, Request{Type: "user_create", Login: "root", Password: []byte("hunter2")})
	if err != nil {
		t.Fatalf("bootstrap error: %v", err)
	}

	user, sessID, err := c.Authenticate(context.Background(), nil, Request{Type: "ping", Login: "root", Password: []byte("hunter2")})
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	if user.Login != "root" || sessID == "" {
		t.Fatalf("unexpected login result: user=%+v sess=%q", user, sessID)
	}
}

func TestAuthenticate_SessionReuse(t *testing.T) {
	c, _ := newController(t)
	_, sessID, err := c.Authenticate(context.Background(), nil, Request{Type: "user_create", Login: "root", Password: []byte("hunter2")})
	if err != nil {
		t.Fatalf("bootstrap error: %v", err)
	}

	user, sessID2, err := c.Authenticate(context.Background(), nil, Request{Type: "ping", SessionID: sessID})
	if err != nil {
		t.Fatalf("session auth error: %v", err)
	}
	if sessID2 != sessID {
		t.Fatalf("expected same session id to be reused, got %q vs %q", sessID2, sessID)
	}
	if user.Login != "root" {
		t.Fatalf("unexpected user for reused session: %+v", user)
	}
}

func TestAuthenticate_UnknownSessionID(t *testing.T) {
	c, _ := newController(t)
	_, _, err := c.Authenticate(context.Background(), nil, Request{Type: "user_create", Login: "root", Password: []byte("hunter2")})
	if err != nil {
		t.Fatalf("bootstrap error: %v", err)
	}

	_, _, err = c.Authenticate(context.Background(), nil, Request{Type: "ping", SessionID: "bogus"})
	var kerr *kstorerr.Error
	if !errors.As(err, &kerr) || kerr.Code != kstorerr.AuthBadSession {
		t.Fatalf("expected AUTH/BADSESSION, got %v", err)
	}
}

func TestAllowed(t *testing.T) {
	cases := []struct {
		status  models.Status
		reqType string
		want    bool
	}{
		{models.StatusActive, "secret_create", true},
		{models.StatusAdmin, "group_create", true},
		{models.StatusNew, "user_activate", true},
		{models.StatusNew, "secret_create", false},
		{models.StatusArchived, "ping", false},
	}
	for _, tc := range cases {
		if got := Allowed(tc.status, tc.reqType); got != tc.want {
			t.Errorf("Allowed(%v, %q) = %v, want %v", tc.status, tc.reqType, got, tc.want)
		}
	}
}

func TestNewActivationToken_WindowMatchesTTL(t *testing.T) {
	tok, err := NewActivationToken(1, time.Hour)
	if err != nil {
		t.Fatalf("NewActivationToken error: %v", err)
	}
	if tok.NotAfter-tok.NotBefore != int64(time.Hour.Seconds()) {
		t.Fatalf("unexpected token window: %+v", tok)
	}
}
