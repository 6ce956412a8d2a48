package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/kstor/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, valueAuthorID, metaAuthorID int64, values []ValueRow) (int64, error) {
	var secretID int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO secrets (value_author_id, meta_author_id) VALUES ($1, $2) RETURNING id
	`, valueAuthorID, metaAuthorID).Scan(&secretID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	for _, v := range values {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO secret_values (secret_id, group_id, ciphertext, encrypted_metadata)
			VALUES ($1, $2, $3, $4)
		`, secretID, v.GroupID, v.Ciphertext, v.EncryptedMetadata)
		if err != nil {
			return 0, fmt.Errorf("db error: %w", err)
		}
	}
	return secretID, nil
}

func (r *PostgresRepository) GroupIDsForSecret(ctx context.Context, secretID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT group_id FROM secret_values WHERE secret_id = $1 ORDER BY group_id
	`, secretID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SearchCandidates picks, per secret, the lowest-numbered group id that both
// shares the secret and belongs to memberGroupIDs, using DISTINCT ON to
// express the "ORDER BY secret_id, group_id" deterministic choice from
// spec §4.4 directly in SQL.
func (r *PostgresRepository) SearchCandidates(ctx context.Context, memberGroupIDs []int64) ([]SearchCandidate, error) {
	if len(memberGroupIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (sv.secret_id)
			sv.secret_id, sv.group_id, s.meta_author_id, sv.encrypted_metadata
		FROM secret_values sv
		JOIN secrets s ON s.id = sv.secret_id
		WHERE sv.group_id = ANY($1)
		ORDER BY sv.secret_id, sv.group_id
	`, memberGroupIDs)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []SearchCandidate
	for rows.Next() {
		var c SearchCandidate
		if err := rows.Scan(&c.SecretID, &c.GroupID, &c.MetaAuthorID, &c.EncryptedMetadata); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetForUser(ctx context.Context, secretID int64, memberGroupIDs []int64) (*UnlockRow, bool, error) {
	if len(memberGroupIDs) == 0 {
		return nil, false, nil
	}

	row := &UnlockRow{SecretID: secretID}
	err := r.db.QueryRowContext(ctx, `
		SELECT sv.group_id, s.value_author_id, s.meta_author_id, sv.ciphertext, sv.encrypted_metadata
		FROM secret_values sv
		JOIN secrets s ON s.id = sv.secret_id
		WHERE sv.secret_id = $1 AND sv.group_id = ANY($2)
		ORDER BY sv.group_id
		LIMIT 1
	`, secretID, memberGroupIDs).Scan(&row.GroupID, &row.ValueAuthorID, &row.MetaAuthorID, &row.Ciphertext, &row.EncryptedMetadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("db error: %w", err)
	}
	return row, true, nil
}

func (r *PostgresRepository) UpdateValues(ctx context.Context, secretID int64, values []ValueRow, valueAuthorID int64) error {
	for _, v := range values {
		_, err := r.db.ExecContext(ctx, `
			UPDATE secret_values SET ciphertext = $1 WHERE secret_id = $2 AND group_id = $3
		`, v.Ciphertext, secretID, v.GroupID)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	_, err := r.db.ExecContext(ctx, `UPDATE secrets SET value_author_id = $1 WHERE id = $2`, valueAuthorID, secretID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateMetadata(ctx context.Context, secretID int64, values []ValueRow, metaAuthorID int64) error {
	for _, v := range values {
		_, err := r.db.ExecContext(ctx, `
			UPDATE secret_values SET encrypted_metadata = $1 WHERE secret_id = $2 AND group_id = $3
		`, v.EncryptedMetadata, secretID, v.GroupID)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	_, err := r.db.ExecContext(ctx, `UPDATE secrets SET meta_author_id = $1 WHERE id = $2`, metaAuthorID, secretID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, secretID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM secrets WHERE id = $1`, secretID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
