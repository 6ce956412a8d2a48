package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/kstor/internal/cryptox"
	"github.com/dmitrijs2005/kstor/internal/dbx"
	"github.com/dmitrijs2005/kstor/internal/kstorerr"
	"github.com/dmitrijs2005/kstor/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or
// *sql.Tx), so the same code path serves both standalone queries and
// transaction-scoped writes.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Create(ctx context.Context, login, name string, status models.Status) (*models.User, error) {
	query := `
		INSERT INTO users (login, name, status)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	u := &models.User{Login: login, Name: name, Status: status}
	err := r.db.QueryRowContext(ctx, query, login, name, string(status)).Scan(&u.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	u.Keychain = make(map[int64]*models.KeychainItem)
	return u, nil
}

// loadCryptoAndKeychain loads the users_crypto_data row, if present, and the
// keychain rows for a user already resolved to id/login/name/status.
func (r *PostgresRepository) loadCryptoAndKeychain(ctx context.Context, u *models.User) error {
	var (
		kdfRaw []byte
		pubk   []byte
		privk  []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT kdf_params, pubk, encrypted_privk FROM users_crypto_data WHERE user_id = $1
	`, u.ID).Scan(&kdfRaw, &pubk, &privk)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// uninitialized user: no crypto row yet.
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	default:
		var params cryptox.KDFParams
		if err := json.Unmarshal(kdfRaw, &params); err != nil {
			return fmt.Errorf("decode kdf_params: %w", err)
		}
		u.KDFParams = params
		copy(u.Pubk[:], pubk)
		u.EncryptedPrivk = privk
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT group_id, g.pubk, gm.encrypted_privk
		FROM group_members gm JOIN groups g ON g.id = gm.group_id
		WHERE gm.user_id = $1
	`, u.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	u.Keychain = make(map[int64]*models.KeychainItem)
	for rows.Next() {
		var kci models.KeychainItem
		var groupPubk []byte
		if err := rows.Scan(&kci.GroupID, &groupPubk, &kci.EncryptedPrivk); err != nil {
			return err
		}
		copy(kci.GroupPubk[:], groupPubk)
		u.Keychain[kci.GroupID] = &kci
	}
	return rows.Err()
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	var status string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, login, name, status FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Login, &u.Name, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kstorerr.New(kstorerr.StoreUnknownUser, id)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	u.Status = models.Status(status)

	if err := r.loadCryptoAndKeychain(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PostgresRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	u := &models.User{}
	var status string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, login, name, status FROM users WHERE login = $1
	`, login).Scan(&u.ID, &u.Login, &u.Name, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kstorerr.New(kstorerr.StoreUnknownUser, login)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	u.Status = models.Status(status)

	if err := r.loadCryptoAndKeychain(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PostgresRepository) SaveCrypto(ctx context.Context, u *models.User) error {
	kdfRaw, err := json.Marshal(u.KDFParams)
	if err != nil {
		return fmt.Errorf("encode kdf_params: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users_crypto_data (user_id, kdf_params, pubk, encrypted_privk)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			kdf_params = EXCLUDED.kdf_params,
			pubk = EXCLUDED.pubk,
			encrypted_privk = EXCLUDED.encrypted_privk
	`, u.ID, kdfRaw, u.Pubk[:], u.EncryptedPrivk)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE users SET status = $1 WHERE id = $2`, string(u.Status), u.ID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) PutKeychainItem(ctx context.Context, userID int64, kci *models.KeychainItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO group_members (user_id, group_id, encrypted_privk)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, group_id) DO UPDATE SET encrypted_privk = EXCLUDED.encrypted_privk
	`, userID, kci.GroupID, kci.EncryptedPrivk)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteKeychainItem(ctx context.Context, userID int64, groupID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM group_members WHERE user_id = $1 AND group_id = $2
	`, userID, groupID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateActivation(ctx context.Context, tok *models.ActivationToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_activations (user_id, token, not_before, not_after)
		VALUES ($1, $2, $3, $4)
	`, tok.UserID, tok.Token, tok.NotBefore, tok.NotAfter)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetActivation(ctx context.Context, userID int64) (*models.ActivationToken, error) {
	tok := &models.ActivationToken{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, token, not_before, not_after FROM user_activations
		WHERE user_id = $1
		ORDER BY not_before DESC
		LIMIT 1
	`, userID).Scan(&tok.UserID, &tok.Token, &tok.NotBefore, &tok.NotAfter)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kstorerr.New(kstorerr.ReqMissingArgs, "activation token")
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tok, nil
}

func (r *PostgresRepository) PurgeActivations(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_activations WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
