package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/workshop-watcher/internal/dbx"
	"github.com/dmitrijs2005/workshop-watcher/internal/repositories/mods"
	"github.com/dmitrijs2005/workshop-watcher/internal/repositories/steamusers"
	postgresmigrations "github.com/dmitrijs2005/workshop-watcher/internal/storage/migrations/postgres"
)

type PostgresRepositoryManager struct {
	db         *sql.DB
	mods       mods.Repository
	steamUsers steamusers.Repository
}

// NewPostgresRepositoryManager connects to PostgreSQL via the pgx stdlib
// driver and runs migrations.
func NewPostgresRepositoryManager(dsn string) (RepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	m := &PostgresRepositoryManager{
		db:         db,
		mods:       mods.NewPostgresRepository(db),
		steamUsers: steamusers.NewPostgresRepository(db),
	}

	if err := m.RunMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return m, nil
}

func (m *PostgresRepositoryManager) Mods() mods.Repository { return m.mods }

func (m *PostgresRepositoryManager) SteamUsers() steamusers.Repository { return m.steamUsers }

func (m *PostgresRepositoryManager) InTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, Repositories{
			Mods:       mods.NewPostgresRepository(tx),
			SteamUsers: steamusers.NewPostgresRepository(tx),
		})
	})
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(postgresmigrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, m.db, ".")
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}
