package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/kstor/internal/kstorerr"
	"github.com/dmitrijs2005/kstor/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT count\(\*\) FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if n != 3 {
		t.Fatalf("got %d, want 3", n)
	}
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)INSERT INTO users.*RETURNING id`).
		WithArgs("alice", "Alice", string(models.StatusAdmin)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	u, err := repo.Create(context.Background(), "alice", "Alice", models.StatusAdmin)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if u.ID != 1 || u.Login != "alice" || u.Keychain == nil {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestGetByLogin_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, login, name, status FROM users WHERE login = \$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByLogin(context.Background(), "ghost")
	var kerr *kstorerr.Error
	if !errors.As(err, &kerr) || kerr.Code != kstorerr.StoreUnknownUser {
		t.Fatalf("expected STORE/UNKNOWNUSER, got %v", err)
	}
}

func TestGetByLogin_LoadsCryptoAndKeychain(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, login, name, status FROM users WHERE login = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "login", "name", "status"}).
			AddRow(int64(7), "alice", "Alice", string(models.StatusActive)))

	mock.ExpectQuery(`SELECT kdf_params, pubk, encrypted_privk FROM users_crypto_data WHERE user_id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"kdf_params", "pubk", "encrypted_privk"}).
			AddRow([]byte(`{}`), make([]byte, 32), make([]byte, 48)))

	mock.ExpectQuery(`(?s)SELECT group_id, g.pubk, gm.encrypted_privk.*WHERE gm.user_id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "pubk", "encrypted_privk"}).
			AddRow(int64(2), make([]byte, 32), make([]byte, 48)))

	u, err := repo.GetByLogin(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByLogin error: %v", err)
	}
	if u.Status != models.StatusActive {
		t.Fatalf("unexpected status: %v", u.Status)
	}
	if _, ok := u.Keychain[2]; !ok {
		t.Fatalf("expected keychain entry for group 2, got %+v", u.Keychain)
	}
}

func TestSaveCrypto(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	u := &models.User{ID: 1, Status: models.StatusActive}

	mock.ExpectExec(`(?s)INSERT INTO users_crypto_data.*ON CONFLICT`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET status = \$1 WHERE id = \$2`).
		WithArgs(string(models.StatusActive), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveCrypto(context.Background(), u); err != nil {
		t.Fatalf("SaveCrypto error: %v", err)
	}
}

func TestGetActivation_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT user_id, token, not_before, not_after FROM user_activations.*LIMIT 1`).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetActivation(context.Background(), 9)
	var kerr *kstorerr.Error
	if !errors.As(err, &kerr) || kerr.Code != kstorerr.ReqMissingArgs {
		t.Fatalf("expected REQ/MISSINGARGS, got %v", err)
	}
}
