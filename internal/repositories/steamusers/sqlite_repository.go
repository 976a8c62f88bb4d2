package steamusers

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

func (r *SQLiteRepository) Upsert(ctx context.Context, user *models.SteamUser) error {
	query := `INSERT INTO steam_users (steam_id, persona_name, real_name, profile_url, avatar_url, last_fetched, fetch_failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(steam_id) DO UPDATE SET
			persona_name = excluded.persona_name,
			real_name = excluded.real_name,
			profile_url = excluded.profile_url,
			avatar_url = excluded.avatar_url,
			last_fetched = excluded.last_fetched,
			fetch_failed = excluded.fetch_failed
	`
	_, err := r.db.ExecContext(ctx, query,
		user.SteamID, user.PersonaName, user.RealName, user.ProfileURL, user.AvatarURL,
		user.LastFetched, user.FetchFailed)
	if err != nil {
		return fmt.Errorf("failed to upsert steam user %s: %w", user.SteamID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, steamID string) (*models.SteamUser, error) {
	query := `SELECT steam_id, persona_name, real_name, profile_url, avatar_url, last_fetched, fetch_failed
		FROM steam_users WHERE steam_id = ?`
	row := r.db.QueryRowContext(ctx, query, steamID)

	u := &models.SteamUser{}
	err := row.Scan(&u.SteamID, &u.PersonaName, &u.RealName, &u.ProfileURL, &u.AvatarURL,
		&u.LastFetched, &u.FetchFailed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select steam user %s: %w", steamID, err)
	}
	return u, nil
}

func (r *SQLiteRepository) MarkFetchFailed(ctx context.Context, steamID string, ts int64) error {
	query := `INSERT INTO steam_users (steam_id, last_fetched, fetch_failed)
		VALUES (?, ?, 1)
		ON CONFLICT(steam_id) DO UPDATE SET
			last_fetched = excluded.last_fetched,
			fetch_failed = 1
	`
	_, err := r.db.ExecContext(ctx, query, steamID, ts)
	if err != nil {
		return fmt.Errorf("failed to mark steam user %s fetch failed: %w", steamID, err)
	}
	return nil
}
