package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/workshop-watcher/internal/dbx"
	"github.com/dmitrijs2005/workshop-watcher/internal/repositories/mods"
	"github.com/dmitrijs2005/workshop-watcher/internal/repositories/steamusers"
	sqlitemigrations "github.com/dmitrijs2005/workshop-watcher/internal/storage/migrations/sqlite"
)

type SQLiteRepositoryManager struct {
	db         *sql.DB
	mods       mods.Repository
	steamUsers steamusers.Repository
}

// sqliteDSN wraps a plain file path into a DSN with the pragmas the watcher
// relies on: WAL journaling with full sync so every committed upsert is
// durable, and a busy timeout so a concurrent reader does not fail writes.
func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") || path == ":memory:" {
		return path
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(30000)", path)
}

// NewSQLiteRepositoryManager opens (creating if needed) an SQLite database
// at the given path and runs migrations.
func NewSQLiteRepositoryManager(path string) (RepositoryManager, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	// modernc sqlite serializes writers; a single connection avoids
	// SQLITE_BUSY between the cycle's reads and writes.
	db.SetMaxOpenConns(1)

	m := &SQLiteRepositoryManager{
		db:         db,
		mods:       mods.NewSQLiteRepository(db),
		steamUsers: steamusers.NewSQLiteRepository(db),
	}

	if err := m.RunMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return m, nil
}

func (m *SQLiteRepositoryManager) Mods() mods.Repository { return m.mods }

func (m *SQLiteRepositoryManager) SteamUsers() steamusers.Repository { return m.steamUsers }

func (m *SQLiteRepositoryManager) InTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, Repositories{
			Mods:       mods.NewSQLiteRepository(tx),
			SteamUsers: steamusers.NewSQLiteRepository(tx),
		})
	})
}

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(sqlitemigrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}

	return goose.UpContext(ctx, m.db, ".")
}

func (m *SQLiteRepositoryManager) Close() error {
	return m.db.Close()
}
