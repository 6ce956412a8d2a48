package groups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/kstor/internal/dbx"
	"github.com/dmitrijs2005/kstor/internal/kstorerr"
	"github.com/dmitrijs2005/kstor/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, name string, pubk [32]byte) (*models.Group, error) {
	g := &models.Group{Name: name, Pubk: pubk}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO groups (name, pubk) VALUES ($1, $2) RETURNING id
	`, name, pubk[:]).Scan(&g.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return g, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	g := &models.Group{}
	var pubk []byte
	err := r.db.QueryRowContext(ctx, `SELECT id, name, pubk FROM groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &pubk)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kstorerr.New(kstorerr.StoreUnknownGroup, id)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	copy(g.Pubk[:], pubk)

	members, err := r.loadMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Members = members
	return g, nil
}

func (r *PostgresRepository) loadMembers(ctx context.Context, groupID int64) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.login, u.name, u.status
		FROM group_members gm JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY u.login
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u := &models.User{}
		var status string
		if err := rows.Scan(&u.ID, &u.Login, &u.Name, &status); err != nil {
			return nil, err
		}
		u.Status = models.Status(status)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Rename(ctx context.Context, id int64, newName string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE groups SET name = $1 WHERE id = $2`, newName, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireOneRow(res, id)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireOneRow(res, id)
}

func requireOneRow(res sql.Result, groupID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return kstorerr.New(kstorerr.StoreUnknownGroup, groupID)
	}
	return nil
}

// Search loads every group and filters in Go, since name_glob uses the same
// case-insensitive shell-glob semantics as secret metadata matching rather
// than SQL LIKE wildcards.
func (r *PostgresRepository) Search(ctx context.Context, nameGlob string) ([]*models.Group, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, pubk FROM groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Group
	for rows.Next() {
		g := &models.Group{}
		var pubk []byte
		if err := rows.Scan(&g.ID, &g.Name, &pubk); err != nil {
			return nil, err
		}
		copy(g.Pubk[:], pubk)
		if nameGlob == "" || models.MatchGlob(nameGlob, g.Name) {
			out = append(out, g)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) MemberCount(ctx context.Context, groupID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM group_members WHERE group_id = $1`, groupID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) IsMember(ctx context.Context, groupID int64, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)
	`, groupID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}
