package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/canxin121/musicagg/internal/models"
	"github.com/canxin121/musicagg/internal/shared"
)

// ProviderMusicRow is the raw row shape shared by kuwo_music and
// netease_music — distinct types on the provider side (mirroring each
// provider's own model package), identical shape on the Go side.
type ProviderMusicRow struct {
	MusicID   string           `json:"music_id"`
	Name      string           `json:"name"`
	Duration  *int             `json:"duration,omitempty"`
	Artists   []models.Artist  `json:"artists"`
	Album     *string          `json:"album,omitempty"`
	AlbumID   *string          `json:"album_id,omitempty"`
	Qualities []models.Quality `json:"qualities"`
	Cover     *string          `json:"cover,omitempty"`
}

// PlaylistCollectionRow is a raw playlist_collection row.
type PlaylistCollectionRow struct {
	ID    int    `json:"id"`
	Order int    `json:"order"`
	Name  string `json:"name"`
}

// PlaylistRow is a raw playlist row.
type PlaylistRow struct {
	ID            int               `json:"id"`
	CollectionID  int               `json:"collection_id"`
	Order         int               `json:"order"`
	Server        *string           `json:"server,omitempty"`
	Type          string            `json:"type"`
	Identity      string            `json:"identity"`
	Name          string            `json:"name"`
	Summary       *string           `json:"summary,omitempty"`
	Cover         *string           `json:"cover,omitempty"`
	Creator       *string           `json:"creator,omitempty"`
	CreatorID     *string           `json:"creator_id,omitempty"`
	PlayTime      *int              `json:"play_time,omitempty"`
	MusicNum      *int              `json:"music_num,omitempty"`
	Subscriptions []models.Subscription `json:"subscriptions,omitempty"`
	DeletedAt     *time.Time             `json:"deleted_at,omitempty"`
}

// AggregatorRow is a raw music_aggregator row.
type AggregatorRow struct {
	Identity       string     `json:"identity"`
	DefaultServer  string     `json:"default_server"`
	KuwoMusicID    *string    `json:"kuwo_music_id,omitempty"`
	NeteaseMusicID *string    `json:"netease_music_id,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// JunctionRow is a raw playlist_music_junction row.
type JunctionRow struct {
	PlaylistID         int    `json:"playlist_id"`
	AggregatorIdentity string `json:"aggregator_identity"`
	Order              int    `json:"order"`
}

// DatabaseSnapshot is a full dump of every table, the shape behind the
// snapshot format's Database variant.
type DatabaseSnapshot struct {
	KuwoMusic           []ProviderMusicRow      `json:"kuwo_table"`
	NeteaseMusic        []ProviderMusicRow      `json:"netease_table"`
	Playlists           []PlaylistRow           `json:"playlists"`
	PlaylistCollections []PlaylistCollectionRow `json:"playlist_collection"`
	MusicAggregators    []AggregatorRow         `json:"music_aggregators"`
	Junctions           []JunctionRow           `json:"playlist_music_junctions"`
}

func dumpProviderMusic(db *sql.DB, dialect shared.Dialect, table string) ([]ProviderMusicRow, error) {
	query := rebind(dialect, fmt.Sprintf(
		"SELECT music_id, name, duration, artists, album, album_id, qualities, cover FROM %s", table))
	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	defer rows.Close()

	var out []ProviderMusicRow
	for rows.Next() {
		var (
			r                          ProviderMusicRow
			duration                   sql.NullInt64
			artistsJSON, qualitiesJSON string
			album, albumID, cover      sql.NullString
		)
		if err := rows.Scan(&r.MusicID, &r.Name, &duration, &artistsJSON, &album, &albumID, &qualitiesJSON, &cover); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrDbError, err)
		}
		if duration.Valid {
			d := int(duration.Int64)
			r.Duration = &d
		}
		if album.Valid {
			r.Album = &album.String
		}
		if albumID.Valid {
			r.AlbumID = &albumID.String
		}
		if cover.Valid {
			r.Cover = &cover.String
		}
		if err := json.Unmarshal([]byte(artistsJSON), &r.Artists); err != nil {
			return nil, fmt.Errorf("%w: malformed artists json: %v", shared.ErrDecode, err)
		}
		if err := json.Unmarshal([]byte(qualitiesJSON), &r.Qualities); err != nil {
			return nil, fmt.Errorf("%w: malformed qualities json: %v", shared.ErrDecode, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DumpDatabase reads every table into a [DatabaseSnapshot] (the Database
// snapshot variant, §4.5).
func DumpDatabase() (DatabaseSnapshot, error) {
	db, dialect, err := GetDB()
	if err != nil {
		return DatabaseSnapshot{}, err
	}

	var snap DatabaseSnapshot

	if snap.KuwoMusic, err = dumpProviderMusic(db, dialect, "kuwo_music"); err != nil {
		return DatabaseSnapshot{}, err
	}
	if snap.NeteaseMusic, err = dumpProviderMusic(db, dialect, "netease_music"); err != nil {
		return DatabaseSnapshot{}, err
	}

	collRows, err := db.Query(rebind(dialect, `SELECT id, "order", name FROM playlist_collection`))
	if err != nil {
		return DatabaseSnapshot{}, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	for collRows.Next() {
		var r PlaylistCollectionRow
		if err := collRows.Scan(&r.ID, &r.Order, &r.Name); err != nil {
			collRows.Close()
			return DatabaseSnapshot{}, fmt.Errorf("%w: %v", shared.ErrDbError, err)
		}
		snap.PlaylistCollections = append(snap.PlaylistCollections, r)
	}
	if err := collRows.Err(); err != nil {
		collRows.Close()
		return DatabaseSnapshot{}, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	collRows.Close()

	plRows, err := db.Query(rebind(dialect, `
		SELECT id, collection_id, "order", server, type, identity, name, summary, cover, creator, creator_id, play_time, music_num, subscriptions, deleted_at
		FROM playlist
	`))
	if err != nil {
		return DatabaseSnapshot{}, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	for plRows.Next() {
		var (
			r                       PlaylistRow
			server, identity        sql.NullString
			summary, cover, creator sql.NullString
			creatorID               sql.NullString
			playTime, musicNum      sql.NullInt64
			subsJSON                sql.NullString
			deletedAt               sql.NullTime
		)
		if err := plRows.Scan(&r.ID, &r.CollectionID, &r.Order, &server, &r.Type, &identity, &r.Name,
			&summary, &cover, &creator, &creatorID, &playTime, &musicNum, &subsJSON, &deletedAt); err != nil {
			plRows.Close()
			return DatabaseSnapshot{}, fmt.Errorf("%w: %v", shared.ErrDbError, err)
		}
		if server.Valid {
			r.Server = &server.String
		}
		if identity.Valid {
			r.Identity = identity.String
		}
		if summary.Valid {
			r.Summary = &summary.String
		}
		if cover.Valid {
			r.Cover = &cover.String
		}
		if creator.Valid {
			r.Creator = &creator.String
		}
		if creatorID.Valid {
			r.CreatorID = &creatorID.String
		}
		if playTime.Valid {
			n := int(playTime.Int64)
			r.PlayTime = &n
		}
		if musicNum.Valid {
			n := int(musicNum.Int64)
			r.MusicNum = &n
		}
		if subsJSON.Valid && subsJSON.String != "" {
			var subs []models.Subscription
			if err := json.Unmarshal([]byte(subsJSON.String), &subs); err != nil {
				plRows.Close()
				return DatabaseSnapshot{}, fmt.Errorf("%w: malformed subscriptions json: %v", shared.ErrDecode, err)
			}
			r.Subscriptions = subs
		}
		if deletedAt.Valid {
			r.DeletedAt = &deletedAt.Time
		}
		snap.Playlists = append(snap.Playlists, r)
	}
	if err := plRows.Err(); err != nil {
		plRows.Close()
		return DatabaseSnapshot{}, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	plRows.Close()

	aggRows, err := db.Query(rebind(dialect, `SELECT identity, default_server, kuwo_music_id, netease_music_id, deleted_at FROM music_aggregator`))
	if err != nil {
		return DatabaseSnapshot{}, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	for aggRows.Next() {
		var (
			r                    AggregatorRow
			kuwoID, neteaseID    sql.NullString
			deletedAt            sql.NullTime
		)
		if err := aggRows.Scan(&r.Identity, &r.DefaultServer, &kuwoID, &neteaseID, &deletedAt); err != nil {
			aggRows.Close()
			return DatabaseSnapshot{}, fmt.Errorf("%w: %v", shared.ErrDbError, err)
		}
		if kuwoID.Valid {
			r.KuwoMusicID = &kuwoID.String
		}
		if neteaseID.Valid {
			r.NeteaseMusicID = &neteaseID.String
		}
		if deletedAt.Valid {
			r.DeletedAt = &deletedAt.Time
		}
		snap.MusicAggregators = append(snap.MusicAggregators, r)
	}
	if err := aggRows.Err(); err != nil {
		aggRows.Close()
		return DatabaseSnapshot{}, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	aggRows.Close()

	juncRows, err := db.Query(rebind(dialect, `SELECT playlist_id, aggregator_identity, "order" FROM playlist_music_junction`))
	if err != nil {
		return DatabaseSnapshot{}, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	for juncRows.Next() {
		var r JunctionRow
		if err := juncRows.Scan(&r.PlaylistID, &r.AggregatorIdentity, &r.Order); err != nil {
			juncRows.Close()
			return DatabaseSnapshot{}, fmt.Errorf("%w: %v", shared.ErrDbError, err)
		}
		snap.Junctions = append(snap.Junctions, r)
	}
	if err := juncRows.Err(); err != nil {
		juncRows.Close()
		return DatabaseSnapshot{}, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	juncRows.Close()

	return snap, nil
}

// LoadDatabaseSnapshot replaces the entire database with snap: it reinits
// the schema (dropping every table), removes the migration's seeded default
// collection, then inserts every row back with its original primary key so
// a dump -> load -> dump round trip is deep-equal (§8 "Snapshot
// round-trip").
func LoadDatabaseSnapshot(snap DatabaseSnapshot) error {
	if err := ReinitDB(); err != nil {
		return err
	}

	db, dialect, err := GetDB()
	if err != nil {
		return err
	}

	if _, err := db.Exec("DELETE FROM playlist_collection"); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}

	insertProviderMusic := func(table string, rows []ProviderMusicRow) error {
		query := rebind(dialect, fmt.Sprintf(
			"INSERT INTO %s (music_id, name, duration, artists, album, album_id, qualities, cover) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", table))
		for _, r := range rows {
			artistsJSON, err := json.Marshal(r.Artists)
			if err != nil {
				return err
			}
			qualitiesJSON, err := json.Marshal(r.Qualities)
			if err != nil {
				return err
			}
			if _, err := db.Exec(query, r.MusicID, r.Name, r.Duration, string(artistsJSON), r.Album, r.AlbumID, string(qualitiesJSON), r.Cover); err != nil {
				return fmt.Errorf("%w: %v", shared.ErrDbError, err)
			}
		}
		return nil
	}
	if err := insertProviderMusic("kuwo_music", snap.KuwoMusic); err != nil {
		return err
	}
	if err := insertProviderMusic("netease_music", snap.NeteaseMusic); err != nil {
		return err
	}

	collQuery := rebind(dialect, `INSERT INTO playlist_collection (id, "order", name) VALUES (?, ?, ?)`)
	for _, r := range snap.PlaylistCollections {
		if _, err := db.Exec(collQuery, r.ID, r.Order, r.Name); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrDbError, err)
		}
	}

	plQuery := rebind(dialect, `
		INSERT INTO playlist (id, collection_id, "order", server, type, identity, name, summary, cover, creator, creator_id, play_time, music_num, subscriptions, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for _, r := range snap.Playlists {
		subsJSON, err := json.Marshal(r.Subscriptions)
		if err != nil {
			return err
		}
		if _, err := db.Exec(plQuery, r.ID, r.CollectionID, r.Order, r.Server, r.Type, r.Identity, r.Name,
			r.Summary, r.Cover, r.Creator, r.CreatorID, r.PlayTime, r.MusicNum, string(subsJSON), r.DeletedAt); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrDbError, err)
		}
	}

	aggQuery := rebind(dialect, `
		INSERT INTO music_aggregator (identity, default_server, kuwo_music_id, netease_music_id, deleted_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	for _, r := range snap.MusicAggregators {
		if _, err := db.Exec(aggQuery, r.Identity, r.DefaultServer, r.KuwoMusicID, r.NeteaseMusicID, r.DeletedAt); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrDbError, err)
		}
	}

	juncQuery := rebind(dialect, `INSERT INTO playlist_music_junction (playlist_id, aggregator_identity, "order") VALUES (?, ?, ?)`)
	for _, r := range snap.Junctions {
		if _, err := db.Exec(juncQuery, r.PlaylistID, r.AggregatorIdentity, r.Order); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrDbError, err)
		}
	}

	return nil
}
