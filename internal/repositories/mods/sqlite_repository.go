package mods

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/workshop-watcher/internal/common"
	"github.com/dmitrijs2005/workshop-watcher/internal/dbx"
	"github.com/dmitrijs2005/workshop-watcher/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, mod *models.Mod) error {
	query := `INSERT INTO mods (id, title, author_id, file_size, time_created, time_updated,
			last_notified, last_checked, description, views, subscriptions, favorites,
			tags, visibility, preview_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			author_id = excluded.author_id,
			file_size = excluded.file_size,
			time_created = excluded.time_created,
			time_updated = excluded.time_updated,
			last_notified = excluded.last_notified,
			last_checked = excluded.last_checked,
			description = excluded.description,
			views = excluded.views,
			subscriptions = excluded.subscriptions,
			favorites = excluded.favorites,
			tags = excluded.tags,
			visibility = excluded.visibility,
			preview_url = excluded.preview_url
	`
	_, err := r.db.ExecContext(ctx, query,
		mod.ID, mod.Title, mod.AuthorID, mod.FileSize, mod.TimeCreated, mod.TimeUpdated,
		mod.LastNotified, mod.LastChecked, mod.Description, mod.Views, mod.Subscriptions,
		mod.Favorites, mod.Tags, mod.Visibility, mod.PreviewURL)
	if err != nil {
		return fmt.Errorf("failed to upsert mod %d: %w", mod.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id uint64) (*models.Mod, error) {
	query := `SELECT id, title, author_id, file_size, time_created, time_updated,
			last_notified, last_checked, description, views, subscriptions, favorites,
			tags, visibility, preview_url
		FROM mods WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	m := &models.Mod{}
	err := row.Scan(&m.ID, &m.Title, &m.AuthorID, &m.FileSize, &m.TimeCreated, &m.TimeUpdated,
		&m.LastNotified, &m.LastChecked, &m.Description, &m.Views, &m.Subscriptions,
		&m.Favorites, &m.Tags, &m.Visibility, &m.PreviewURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select mod %d: %w", id, err)
	}
	return m, nil
}
