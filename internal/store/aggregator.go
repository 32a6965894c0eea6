package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/canxin121/musicagg/internal/models"
	"github.com/canxin121/musicagg/internal/shared"
)

// providerTable maps a server to its dedicated <provider>_music table and
// the nullable FK column on music_aggregator that points into it.
func providerTable(server models.MusicServer) (table, column string, ok bool) {
	switch server {
	case models.ServerKuwo:
		return "kuwo_music", "kuwo_music_id", true
	case models.ServerNetease:
		return "netease_music", "netease_music_id", true
	default:
		return "", "", false
	}
}

// SaveAggregator persists agg: each of its Musics is upserted into its
// provider table, then the music_aggregator row is upserted by identity.
// If a provider-id UNIQUE conflict surfaces (§4.3.4), the colliding
// aggregator's identity is located and returned instead of agg's own — the
// caller must insert junction rows against the returned identity.
func SaveAggregator(agg models.MusicAggregator) (string, error) {
	db, dialect, err := GetDB()
	if err != nil {
		return "", err
	}

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	defer tx.Rollback()

	for _, m := range agg.Musics {
		if err := upsertProviderMusic(tx, dialect, m); err != nil {
			return "", fmt.Errorf("%w: failed to upsert %s music: %v", shared.ErrDbError, m.Server, err)
		}
	}

	identity, err := upsertAggregatorRow(tx, dialect, agg)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}

	return identity, nil
}

func upsertProviderMusic(tx *sql.Tx, dialect shared.Dialect, m models.Music) error {
	table, _, ok := providerTable(m.Server)
	if !ok {
		return fmt.Errorf("%w: unknown server %q", shared.ErrInvalidInput, m.Server)
	}

	artistsJSON, err := json.Marshal(m.Artists)
	if err != nil {
		return err
	}
	qualitiesJSON, err := json.Marshal(m.Qualities)
	if err != nil {
		return err
	}

	var query string
	switch dialect {
	case shared.DialectPostgres:
		query = fmt.Sprintf(`
			INSERT INTO %s (music_id, name, duration, artists, album, album_id, qualities, cover)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (music_id) DO UPDATE SET
				name = excluded.name, duration = excluded.duration, artists = excluded.artists,
				album = excluded.album, album_id = excluded.album_id, qualities = excluded.qualities, cover = excluded.cover
		`, table)
	case shared.DialectMySQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (music_id, name, duration, artists, album, album_id, qualities, cover)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				name = VALUES(name), duration = VALUES(duration), artists = VALUES(artists),
				album = VALUES(album), album_id = VALUES(album_id), qualities = VALUES(qualities), cover = VALUES(cover)
		`, table)
	default: // sqlite
		query = fmt.Sprintf(`
			INSERT INTO %s (music_id, name, duration, artists, album, album_id, qualities, cover)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (music_id) DO UPDATE SET
				name = excluded.name, duration = excluded.duration, artists = excluded.artists,
				album = excluded.album, album_id = excluded.album_id, qualities = excluded.qualities, cover = excluded.cover
		`, table)
	}

	_, err = tx.Exec(query, m.Identity, m.Name, m.Duration, string(artistsJSON), m.Album, m.AlbumID, string(qualitiesJSON), m.Cover)
	return err
}

// upsertAggregatorRow attempts the music_aggregator UPSERT on identity
// (merging non-null provider id columns into an existing row). If that
// fails on a provider-id UNIQUE conflict, it falls back to locating the
// colliding aggregator by provider id and returns its identity instead.
func upsertAggregatorRow(tx *sql.Tx, dialect shared.Dialect, agg models.MusicAggregator) (string, error) {
	identity := agg.Identity()

	var kuwoID, neteaseID *string
	if m, ok := agg.MusicFor(models.ServerKuwo); ok {
		kuwoID = &m.Identity
	}
	if m, ok := agg.MusicFor(models.ServerNetease); ok {
		neteaseID = &m.Identity
	}

	var query string
	switch dialect {
	case shared.DialectPostgres:
		query = `
			INSERT INTO music_aggregator (identity, default_server, kuwo_music_id, netease_music_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (identity) DO UPDATE SET
				kuwo_music_id = COALESCE(music_aggregator.kuwo_music_id, excluded.kuwo_music_id),
				netease_music_id = COALESCE(music_aggregator.netease_music_id, excluded.netease_music_id)
		`
	case shared.DialectMySQL:
		query = `
			INSERT INTO music_aggregator (identity, default_server, kuwo_music_id, netease_music_id)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				kuwo_music_id = COALESCE(kuwo_music_id, VALUES(kuwo_music_id)),
				netease_music_id = COALESCE(netease_music_id, VALUES(netease_music_id))
		`
	default: // sqlite
		query = `
			INSERT INTO music_aggregator (identity, default_server, kuwo_music_id, netease_music_id)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (identity) DO UPDATE SET
				kuwo_music_id = COALESCE(music_aggregator.kuwo_music_id, excluded.kuwo_music_id),
				netease_music_id = COALESCE(music_aggregator.netease_music_id, excluded.netease_music_id)
		`
	}

	_, err := tx.Exec(query, identity, string(agg.DefaultServer), kuwoID, neteaseID)
	if err == nil {
		return identity, nil
	}

	if !shared.IsConflictError(dialect, err) {
		return "", fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}

	reconciled, findErr := findAggregatorByProviderIDs(tx, dialect, kuwoID, neteaseID)
	if findErr != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrDbConflict, err)
	}
	return reconciled, nil
}

// findAggregatorByProviderIDs locates the aggregator row sharing any of the
// given non-nil provider ids — the mechanism behind duplicate reconciliation
// and the junction-insert foreign-key fallback (§4.3.4).
func findAggregatorByProviderIDs(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, dialect shared.Dialect, kuwoID, neteaseID *string) (string, error) {
	var conds []string
	var args []any
	if kuwoID != nil {
		conds = append(conds, "kuwo_music_id = ?")
		args = append(args, *kuwoID)
	}
	if neteaseID != nil {
		conds = append(conds, "netease_music_id = ?")
		args = append(args, *neteaseID)
	}
	if len(conds) == 0 {
		return "", shared.ErrNotFound
	}

	query := "SELECT identity FROM music_aggregator WHERE " + conds[0]
	for _, c := range conds[1:] {
		query += " OR " + c
	}
	query += " LIMIT 1"
	query = rebind(dialect, query)

	var identity string
	if err := q.QueryRow(query, args...).Scan(&identity); err != nil {
		if err == sql.ErrNoRows {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	return identity, nil
}

// LoadAggregator reloads a persisted aggregator by identity, including every
// provider-table row referenced from music_aggregator.
func LoadAggregator(identity string) (models.MusicAggregator, error) {
	db, dialect, err := GetDB()
	if err != nil {
		return models.MusicAggregator{}, err
	}

	query := rebind(dialect, `
		SELECT identity, default_server, kuwo_music_id, netease_music_id
		FROM music_aggregator WHERE identity = ? AND deleted_at IS NULL
	`)

	var defaultServer string
	var kuwoID, neteaseID sql.NullString
	row := db.QueryRow(query, identity)
	if err := row.Scan(&identity, &defaultServer, &kuwoID, &neteaseID); err != nil {
		if err == sql.ErrNoRows {
			return models.MusicAggregator{}, shared.ErrNotFound
		}
		return models.MusicAggregator{}, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}

	agg := models.MusicAggregator{FromDB: true, DefaultServer: models.MusicServer(defaultServer)}

	if kuwoID.Valid {
		m, err := loadProviderMusic(db, dialect, models.ServerKuwo, kuwoID.String)
		if err != nil {
			return models.MusicAggregator{}, err
		}
		agg.Musics = append(agg.Musics, m)
	}
	if neteaseID.Valid {
		m, err := loadProviderMusic(db, dialect, models.ServerNetease, neteaseID.String)
		if err != nil {
			return models.MusicAggregator{}, err
		}
		agg.Musics = append(agg.Musics, m)
	}

	if len(agg.Musics) > 0 {
		agg.Name = agg.Musics[0].Name
		agg.ArtistKey = models.ArtistKey(agg.Musics[0].Artists)
	}

	return agg, nil
}

func loadProviderMusic(db *sql.DB, dialect shared.Dialect, server models.MusicServer, musicID string) (models.Music, error) {
	table, _, _ := providerTable(server)
	query := rebind(dialect, fmt.Sprintf(
		"SELECT name, duration, artists, album, album_id, qualities, cover FROM %s WHERE music_id = ?", table))

	var (
		name                          string
		duration                      sql.NullInt64
		artistsJSON, qualitiesJSON    string
		album, albumID, cover         sql.NullString
	)

	row := db.QueryRow(query, musicID)
	if err := row.Scan(&name, &duration, &artistsJSON, &album, &albumID, &qualitiesJSON, &cover); err != nil {
		if err == sql.ErrNoRows {
			return models.Music{}, shared.ErrNotFound
		}
		return models.Music{}, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}

	m := models.Music{FromDB: true, Server: server, Identity: musicID, Name: name}
	if duration.Valid {
		d := int(duration.Int64)
		m.Duration = &d
	}
	if album.Valid {
		m.Album = &album.String
	}
	if albumID.Valid {
		m.AlbumID = &albumID.String
	}
	if cover.Valid {
		m.Cover = &cover.String
	}
	if err := json.Unmarshal([]byte(artistsJSON), &m.Artists); err != nil {
		return models.Music{}, fmt.Errorf("%w: malformed artists json: %v", shared.ErrDecode, err)
	}
	if err := json.Unmarshal([]byte(qualitiesJSON), &m.Qualities); err != nil {
		return models.Music{}, fmt.Errorf("%w: malformed qualities json: %v", shared.ErrDecode, err)
	}

	return m, nil
}

// ClearUnused removes every music_aggregator row with no remaining junction
// rows (Lifecycle §3: "a separate clear_unused sweep removes aggregators
// with no remaining junctions").
func ClearUnused() (int64, error) {
	db, dialect, err := GetDB()
	if err != nil {
		return 0, err
	}

	query := rebind(dialect, `
		DELETE FROM music_aggregator
		WHERE identity NOT IN (SELECT DISTINCT aggregator_identity FROM playlist_music_junction)
	`)

	res, err := db.Exec(query)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	return res.RowsAffected()
}
