package secretctl

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"

	"github.com/dmitrijs2005/kstor/internal/cryptox"
	"github.com/dmitrijs2005/kstor/internal/dbx"
	"github.com/dmitrijs2005/kstor/internal/kstorerr"
	"github.com/dmitrijs2005/kstor/internal/server/models"
	"github.com/dmitrijs2005/kstor/internal/server/repocache"
	groupsrepo "github.com/dmitrijs2005/kstor/internal/server/repositories/groups"
	"github.com/dmitrijs2005/kstor/internal/server/repositories/secrets"
	usersrepo "github.com/dmitrijs2005/kstor/internal/server/repositories/users"
)

// fakeGroupsRepo is an in-memory stand-in for groups.Repository; secretctl
// only ever calls GetByID.
type fakeGroupsRepo struct {
	byID map[int64]*models.Group
}

func (f *fakeGroupsRepo) Create(ctx context.Context, name string, pubk [32]byte) (*models.Group, error) {
	panic("not used by secretctl")
}

func (f *fakeGroupsRepo) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	g, ok := f.byID[id]
	if !ok {
		return nil, kstorerr.New(kstorerr.StoreUnknownGroup, id)
	}
	return g, nil
}

func (f *fakeGroupsRepo) Rename(ctx context.Context, id int64, newName string) error { return nil }
func (f *fakeGroupsRepo) Delete(ctx context.Context, id int64) error                 { return nil }
func (f *fakeGroupsRepo) Search(ctx context.Context, nameGlob string) ([]*models.Group, error) {
	return nil, nil
}
func (f *fakeGroupsRepo) MemberCount(ctx context.Context, groupID int64) (int64, error) {
	return 0, nil
}
func (f *fakeGroupsRepo) IsMember(ctx context.Context, groupID int64, userID int64) (bool, error) {
	return false, nil
}

// fakeUsersRepo is an in-memory stand-in for users.Repository; secretctl
// only ever calls GetByID to resolve a secret's authors' public keys.
type fakeUsersRepo struct {
	byID map[int64]*models.User
}

func (f *fakeUsersRepo) Count(ctx context.Context) (int64, error) { return int64(len(f.byID)), nil }
func (f *fakeUsersRepo) Create(ctx context.Context, login, name string, status models.Status) (*models.User, error) {
	panic("not used by secretctl")
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, kstorerr.New(kstorerr.StoreUnknownUser, id)
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	panic("not used by secretctl")
}
func (f *fakeUsersRepo) SaveCrypto(ctx context.Context, u *models.User) error { return nil }
func (f *fakeUsersRepo) PutKeychainItem(ctx context.Context, userID int64, kci *models.KeychainItem) error {
	return nil
}
func (f *fakeUsersRepo) DeleteKeychainItem(ctx context.Context, userID int64, groupID int64) error {
	return nil
}
func (f *fakeUsersRepo) CreateActivation(ctx context.Context, tok *models.ActivationToken) error {
	return nil
}
func (f *fakeUsersRepo) GetActivation(ctx context.Context, userID int64) (*models.ActivationToken, error) {
	return nil, kstorerr.New(kstorerr.ReqMissingArgs, "activation token")
}
func (f *fakeUsersRepo) PurgeActivations(ctx context.Context, userID int64) error { return nil }

// fakeSecretsRepo is an in-memory stand-in for secrets.Repository, storing
// one row per (secretID, groupID) the way the real secret_values table does.
type fakeSecretsRepo struct {
	nextID  int64
	rows    map[int64][]secrets.ValueRow
	valAuth map[int64]int64
	metAuth map[int64]int64
}

func newFakeSecretsRepo() *fakeSecretsRepo {
	return &fakeSecretsRepo{
		rows:    make(map[int64][]secrets.ValueRow),
		valAuth: make(map[int64]int64),
		metAuth: make(map[int64]int64),
	}
}

func (f *fakeSecretsRepo) Create(ctx context.Context, valueAuthorID, metaAuthorID int64, values []secrets.ValueRow) (int64, error) {
	f.nextID++
	f.rows[f.nextID] = values
	f.valAuth[f.nextID] = valueAuthorID
	f.metAuth[f.nextID] = metaAuthorID
	return f.nextID, nil
}

func (f *fakeSecretsRepo) GroupIDsForSecret(ctx context.Context, secretID int64) ([]int64, error) {
	var ids []int64
	for _, v := range f.rows[secretID] {
		ids = append(ids, v.GroupID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeSecretsRepo) SearchCandidates(ctx context.Context, memberGroupIDs []int64) ([]secrets.SearchCandidate, error) {
	if len(memberGroupIDs) == 0 {
		return nil, nil
	}
	member := make(map[int64]bool, len(memberGroupIDs))
	for _, id := range memberGroupIDs {
		member[id] = true
	}

	var out []secrets.SearchCandidate
	for secretID, values := range f.rows {
		var best *secrets.ValueRow
		for i, v := range values {
			if !member[v.GroupID] {
				continue
			}
			if best == nil || v.GroupID < best.GroupID {
				best = &values[i]
			}
		}
		if best != nil {
			out = append(out, secrets.SearchCandidate{
				SecretID: secretID, GroupID: best.GroupID,
				MetaAuthorID: f.metAuth[secretID], EncryptedMetadata: best.EncryptedMetadata,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SecretID < out[j].SecretID })
	return out, nil
}

func (f *fakeSecretsRepo) GetForUser(ctx context.Context, secretID int64, memberGroupIDs []int64) (*secrets.UnlockRow, bool, error) {
	member := make(map[int64]bool, len(memberGroupIDs))
	for _, id := range memberGroupIDs {
		member[id] = true
	}
	values, ok := f.rows[secretID]
	if !ok {
		return nil, false, nil
	}
	var best *secrets.ValueRow
	for i, v := range values {
		if !member[v.GroupID] {
			continue
		}
		if best == nil || v.GroupID < best.GroupID {
			best = &values[i]
		}
	}
	if best == nil {
		return nil, false, nil
	}
	return &secrets.UnlockRow{
		SecretID: secretID, GroupID: best.GroupID,
		ValueAuthorID: f.valAuth[secretID], MetaAuthorID: f.metAuth[secretID],
		Ciphertext: best.Ciphertext, EncryptedMetadata: best.EncryptedMetadata,
	}, true, nil
}

func (f *fakeSecretsRepo) UpdateValues(ctx context.Context, secretID int64, values []secrets.ValueRow, valueAuthorID int64) error {
	byGroup := make(map[int64]secrets.ValueRow, len(values))
	for _, v := range values {
		byGroup[v.GroupID] = v
	}
	existing := f.rows[secretID]
	for i, v := range existing {
		if nv, ok := byGroup[v.GroupID]; ok {
			existing[i].Ciphertext = nv.Ciphertext
		}
	}
	f.valAuth[secretID] = valueAuthorID
	return nil
}

func (f *fakeSecretsRepo) UpdateMetadata(ctx context.Context, secretID int64, values []secrets.ValueRow, metaAuthorID int64) error {
	byGroup := make(map[int64]secrets.ValueRow, len(values))
	for _, v := range values {
		byGroup[v.GroupID] = v
	}
	existing := f.rows[secretID]
	for i, v := range existing {
		if nv, ok := byGroup[v.GroupID]; ok {
			existing[i].EncryptedMetadata = nv.EncryptedMetadata
		}
	}
	f.metAuth[secretID] = metaAuthorID
	return nil
}

func (f *fakeSecretsRepo) Delete(ctx context.Context, secretID int64) error {
	delete(f.rows, secretID)
	delete(f.valAuth, secretID)
	delete(f.metAuth, secretID)
	return nil
}

// stubRepoManager implements repomanager.RepositoryManager over the fakes
// above; secretctl only needs Groups, Secrets, and Users.
type stubRepoManager struct {
	groups  *fakeGroupsRepo
	secrets *fakeSecretsRepo
	users   *fakeUsersRepo
}

func (m *stubRepoManager) Users(db dbx.DBTX) usersrepo.Repository  { return m.users }
func (m *stubRepoManager) Groups(db dbx.DBTX) groupsrepo.Repository { return m.groups }
func (m *stubRepoManager) Secrets(db dbx.DBTX) secrets.Repository  { return m.secrets }
func (m *stubRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

// fixture wires one unlocked user who is a member of one group, ready to
// exercise Create/Search/Unlock/UpdateMeta/UpdateValue/Delete end to end.
type fixture struct {
	ctl   *Controller
	user  *models.User
	group *models.Group
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	groupKP, err := cryptox.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate group keypair: %v", err)
	}
	group := &models.Group{ID: 1, Name: "ops", Pubk: groupKP.Pub}

	user := &models.User{ID: 10, Login: "alice", Status: models.StatusActive}
	if _, err := user.ResetPassword([]byte("hunter2")); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	sealedGroupPriv, err := cryptox.SealPair(&user.Pubk, &groupKP.Priv, groupKP.Priv[:])
	if err != nil {
		t.Fatalf("seal group key: %v", err)
	}
	user.Keychain[group.ID] = &models.KeychainItem{
		GroupID: group.ID, GroupPubk: group.Pubk, EncryptedPrivk: sealedGroupPriv,
	}
	user.Lock()
	sk, err := user.SecretKeyFor([]byte("hunter2"))
	if err != nil {
		t.Fatalf("derive secret key: %v", err)
	}
	if err := user.Unlock(sk.Value); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	rm := &stubRepoManager{
		groups:  &fakeGroupsRepo{byID: map[int64]*models.Group{group.ID: group}},
		secrets: newFakeSecretsRepo(),
		users:   &fakeUsersRepo{byID: map[int64]*models.User{user.ID: user}},
	}

	return &fixture{ctl: New(rm, repocache.New()), user: user, group: group}
}

func strp(s string) *string { return &s }

func TestCreate_ThenUnlock_RoundTrips(t *testing.T) {
	fx := newFixture(t)

	secretID, err := fx.ctl.Create(context.Background(), nil, fx.user, []byte("s3cr3t"), []int64{fx.group.ID},
		models.SecretMeta{App: strp("vault"), Login: strp("root")})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	unlocked, err := fx.ctl.Unlock(context.Background(), nil, fx.user, secretID)
	if err != nil {
		t.Fatalf("Unlock error: %v", err)
	}
	if string(unlocked.Plaintext) != "s3cr3t" {
		t.Fatalf("got plaintext %q, want %q", unlocked.Plaintext, "s3cr3t")
	}
	if unlocked.Metadata.App == nil || *unlocked.Metadata.App != "vault" {
		t.Fatalf("unexpected metadata: %+v", unlocked.Metadata)
	}
	if len(unlocked.Groups) != 1 || unlocked.Groups[0].ID != fx.group.ID {
		t.Fatalf("unexpected sharing groups: %+v", unlocked.Groups)
	}
}

func TestCreate_RequiresGroupIDs(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.ctl.Create(context.Background(), nil, fx.user, []byte("x"), nil, models.SecretMeta{})
	var kerr *kstorerr.Error
	if err == nil {
		t.Fatalf("expected error for empty group_ids")
	}
	if !errors.As(err, &kerr) || kerr.Code != kstorerr.ReqMissingArgs {
		t.Fatalf("expected REQ/MISSINGARGS, got %v", err)
	}
}

func TestSearch_MatchesOnMetadata(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.ctl.Create(context.Background(), nil, fx.user, []byte("v"), []int64{fx.group.ID},
		models.SecretMeta{App: strp("Database"), Server: strp("db1.internal")})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	hits, err := fx.ctl.Search(context.Background(), nil, fx.user, models.SecretMeta{App: strp("d*")})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d: %+v", len(hits), hits)
	}

	misses, err := fx.ctl.Search(context.Background(), nil, fx.user, models.SecretMeta{App: strp("web")})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(misses) != 0 {
		t.Fatalf("expected no hits, got %+v", misses)
	}
}

func TestSearch_NoKeychainReturnsNil(t *testing.T) {
	fx := newFixture(t)
	fx.user.Keychain = map[int64]*models.KeychainItem{}

	hits, err := fx.ctl.Search(context.Background(), nil, fx.user, models.SecretMeta{})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if hits != nil {
		t.Fatalf("expected nil hits for empty keychain, got %+v", hits)
	}
}

func TestUpdateValue_ChangesPlaintextButNotMeta(t *testing.T) {
	fx := newFixture(t)
	secretID, err := fx.ctl.Create(context.Background(), nil, fx.user, []byte("old"), []int64{fx.group.ID},
		models.SecretMeta{App: strp("vault")})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if err := fx.ctl.UpdateValue(context.Background(), nil, fx.user, secretID, []byte("new")); err != nil {
		t.Fatalf("UpdateValue error: %v", err)
	}

	unlocked, err := fx.ctl.Unlock(context.Background(), nil, fx.user, secretID)
	if err != nil {
		t.Fatalf("Unlock error: %v", err)
	}
	if string(unlocked.Plaintext) != "new" {
		t.Fatalf("got plaintext %q, want %q", unlocked.Plaintext, "new")
	}
	if unlocked.Metadata.App == nil || *unlocked.Metadata.App != "vault" {
		t.Fatalf("update_value must not touch metadata, got %+v", unlocked.Metadata)
	}
}

func TestUpdateMeta_MergesIntoExisting(t *testing.T) {
	fx := newFixture(t)
	secretID, err := fx.ctl.Create(context.Background(), nil, fx.user, []byte("v"), []int64{fx.group.ID},
		models.SecretMeta{App: strp("vault"), Login: strp("root")})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if err := fx.ctl.UpdateMeta(context.Background(), nil, fx.user, secretID, models.SecretMeta{Login: strp("admin")}); err != nil {
		t.Fatalf("UpdateMeta error: %v", err)
	}

	unlocked, err := fx.ctl.Unlock(context.Background(), nil, fx.user, secretID)
	if err != nil {
		t.Fatalf("Unlock error: %v", err)
	}
	if *unlocked.Metadata.App != "vault" {
		t.Fatalf("unrelated field must survive merge, got %+v", unlocked.Metadata)
	}
	if *unlocked.Metadata.Login != "admin" {
		t.Fatalf("merged field must be updated, got %+v", unlocked.Metadata)
	}
}

func TestDelete_RemovesSecret(t *testing.T) {
	fx := newFixture(t)
	secretID, err := fx.ctl.Create(context.Background(), nil, fx.user, []byte("v"), []int64{fx.group.ID}, models.SecretMeta{})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if err := fx.ctl.Delete(context.Background(), nil, fx.user, secretID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	_, err = fx.ctl.Unlock(context.Background(), nil, fx.user, secretID)
	var kerr *kstorerr.Error
	if !errors.As(err, &kerr) || kerr.Code != kstorerr.SecretNotFound {
		t.Fatalf("expected SECRET/NOTFOUND after delete, got %v", err)
	}
}

func TestUnlock_UnreachableSecret(t *testing.T) {
	fx := newFixture(t)
	secretID, err := fx.ctl.Create(context.Background(), nil, fx.user, []byte("v"), []int64{fx.group.ID}, models.SecretMeta{})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	outsider := &models.User{ID: 11, Login: "bob", Status: models.StatusActive, Keychain: map[int64]*models.KeychainItem{}}
	if _, err := outsider.ResetPassword([]byte("pw")); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	_, err = fx.ctl.Unlock(context.Background(), nil, outsider, secretID)
	var kerr *kstorerr.Error
	if !errors.As(err, &kerr) || kerr.Code != kstorerr.SecretNotFound {
		t.Fatalf("expected SECRET/NOTFOUND for outsider, got %v", err)
	}
}
