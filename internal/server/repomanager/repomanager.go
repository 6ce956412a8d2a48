// Package repomanager binds a dbx.DBTX (a plain connection or an
// in-flight transaction) to concrete repository implementations, so the
// dispatcher can open one transaction per request and hand every controller
// repositories scoped to it.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/kstor/internal/dbx"
	"github.com/dmitrijs2005/kstor/internal/server/migrations"
	"github.com/dmitrijs2005/kstor/internal/server/repositories/groups"
	"github.com/dmitrijs2005/kstor/internal/server/repositories/secrets"
	"github.com/dmitrijs2005/kstor/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// RepositoryManager vends repository implementations bound to a given DBTX
// and exposes a schema migration hook.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Groups(db dbx.DBTX) groups.Repository
	Secrets(db dbx.DBTX) secrets.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}

// PostgresRepositoryManager is the RepositoryManager backed by PostgreSQL
// via pgx's database/sql driver shim.
type PostgresRepositoryManager struct{}

func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Groups(db dbx.DBTX) groups.Repository {
	return groups.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Secrets(db dbx.DBTX) secrets.Repository {
	return secrets.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies every embedded migration against db.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, "sql")
}
