package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/canxin121/musicagg/internal/models"
	"github.com/canxin121/musicagg/internal/shared"
)

// CreatePlaylistCollection inserts a new collection, appending it at
// order = count(playlist_collection) (§4.4.2).
func CreatePlaylistCollection(name string) (int, error) {
	db, dialect, err := GetDB()
	if err != nil {
		return 0, err
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM playlist_collection").Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}

	query := rebind(dialect, `INSERT INTO playlist_collection ("order", name) VALUES (?, ?)`)
	res, err := db.Exec(query, count, name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	return int(id), nil
}

// CreatePlaylist inserts a local playlist into collectionID, appending it at
// order = count(playlist) within that collection.
func CreatePlaylist(collectionID int, p models.Playlist) (int, error) {
	db, dialect, err := GetDB()
	if err != nil {
		return 0, err
	}

	var count int
	countQuery := rebind(dialect, "SELECT COUNT(*) FROM playlist WHERE collection_id = ?")
	if err := db.QueryRow(countQuery, collectionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}

	subsJSON, err := json.Marshal(p.Subscriptions)
	if err != nil {
		return 0, err
	}

	var server *string
	if p.Server != nil {
		s := string(*p.Server)
		server = &s
	}

	query := rebind(dialect, `
		INSERT INTO playlist (collection_id, "order", server, type, identity, name, summary, cover, creator, creator_id, play_time, music_num, subscriptions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	res, err := db.Exec(query, collectionID, count, server, string(p.Type), p.Identity, p.Name,
		p.Summary, p.Cover, p.Creator, p.CreatorID, p.PlayTime, p.MusicNum, string(subsJSON))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	return int(id), nil
}

// DeletePlaylist soft-deletes a playlist; the schema's ON DELETE CASCADE
// only fires on a hard delete, so junction cleanup for a soft delete happens
// later, via [PurgeSoftDeletedPlaylists].
func DeletePlaylist(id int) error {
	db, dialect, err := GetDB()
	if err != nil {
		return err
	}

	query := rebind(dialect, "UPDATE playlist SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL")
	res, err := db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	if rows == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// HardDeletePlaylist permanently removes a playlist row, cascading to its
// junction rows per the schema's ON DELETE CASCADE (Lifecycle §3: "deleting
// a Playlist drops its junction rows").
func HardDeletePlaylist(id int) error {
	db, dialect, err := GetDB()
	if err != nil {
		return err
	}

	query := rebind(dialect, "DELETE FROM playlist WHERE id = ?")
	_, err = db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	return nil
}

// PurgeSoftDeletedPlaylists permanently removes every playlist soft-deleted
// at or before cutoff via [HardDeletePlaylist] (cascading to its junction
// rows), then sweeps any aggregator left with no remaining junction via
// [ClearUnused]. This is the purge path [DeletePlaylist]'s godoc refers to:
// a soft delete alone leaves the row (and its junctions) in place.
func PurgeSoftDeletedPlaylists(cutoff time.Time) (int, error) {
	db, dialect, err := GetDB()
	if err != nil {
		return 0, err
	}

	query := rebind(dialect, "SELECT id FROM playlist WHERE deleted_at IS NOT NULL AND deleted_at <= ?")
	rows, err := db.Query(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("%w: %v", shared.ErrDbError, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	rows.Close()

	purged := 0
	for _, id := range ids {
		if err := HardDeletePlaylist(id); err != nil {
			return purged, err
		}
		purged++
	}

	if _, err := ClearUnused(); err != nil {
		return purged, err
	}
	return purged, nil
}

// AddAggregatorToPlaylist persists agg (via [SaveAggregator], which handles
// duplicate reconciliation) and inserts a junction row against the
// reconciled identity, appending at order = count(junctions for playlist).
// A foreign-key failure on the junction insert is resolved the same way as
// an aggregator-level conflict (§4.3.4).
func AddAggregatorToPlaylist(playlistID int, agg models.MusicAggregator) (string, error) {
	identity, err := SaveAggregator(agg)
	if err != nil {
		return "", err
	}

	db, dialect, err := GetDB()
	if err != nil {
		return "", err
	}

	var count int
	countQuery := rebind(dialect, "SELECT COUNT(*) FROM playlist_music_junction WHERE playlist_id = ?")
	if err := db.QueryRow(countQuery, playlistID).Scan(&count); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}

	insert := rebind(dialect, `INSERT INTO playlist_music_junction (playlist_id, aggregator_identity, "order") VALUES (?, ?, ?)`)
	_, err = db.Exec(insert, playlistID, identity, count)
	if err == nil {
		return identity, nil
	}

	if !shared.IsForeignKeyError(dialect, err) {
		return "", fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}

	var kuwoID, neteaseID *string
	if m, ok := agg.MusicFor(models.ServerKuwo); ok {
		kuwoID = &m.Identity
	}
	if m, ok := agg.MusicFor(models.ServerNetease); ok {
		neteaseID = &m.Identity
	}
	reconciled, findErr := findAggregatorByProviderIDs(db, dialect, kuwoID, neteaseID)
	if findErr != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrDbConflict, err)
	}

	_, err = db.Exec(insert, playlistID, reconciled, count)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	return reconciled, nil
}

// ReorderPlaylistJunctions rewrites the order column for every junction row
// of playlistID to match the position of its aggregator identity in
// orderedIdentities, in a single transaction (§4.4.2).
func ReorderPlaylistJunctions(playlistID int, orderedIdentities []string) error {
	db, dialect, err := GetDB()
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	defer tx.Rollback()

	query := rebind(dialect, `UPDATE playlist_music_junction SET "order" = ? WHERE playlist_id = ? AND aggregator_identity = ?`)
	for i, identity := range orderedIdentities {
		if _, err := tx.Exec(query, i, playlistID, identity); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrDbError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	return nil
}

// LoadPlaylistAggregators returns every aggregator in playlistID, ordered by
// the junction's order column.
func LoadPlaylistAggregators(playlistID int) ([]models.MusicAggregator, error) {
	db, dialect, err := GetDB()
	if err != nil {
		return nil, err
	}

	query := rebind(dialect, `SELECT aggregator_identity, "order" FROM playlist_music_junction WHERE playlist_id = ? ORDER BY "order" ASC`)
	rows, err := db.Query(query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	defer rows.Close()

	var entries []struct {
		identity string
		order    int
	}
	for rows.Next() {
		var e struct {
			identity string
			order    int
		}
		if err := rows.Scan(&e.identity, &e.order); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrDbError, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}

	aggregators := make([]models.MusicAggregator, 0, len(entries))
	for _, e := range entries {
		agg, err := LoadAggregator(e.identity)
		if err != nil {
			return nil, err
		}
		order := e.order
		agg.Order = &order
		aggregators = append(aggregators, agg)
	}
	return aggregators, nil
}

// RemoveJunction deletes one junction row without touching the aggregator
// row it pointed to (Lifecycle §3: "deleting a junction row never deletes
// the aggregator").
func RemoveJunction(playlistID int, aggregatorIdentity string) error {
	db, dialect, err := GetDB()
	if err != nil {
		return err
	}

	query := rebind(dialect, "DELETE FROM playlist_music_junction WHERE playlist_id = ? AND aggregator_identity = ?")
	if _, err := db.Exec(query, playlistID, aggregatorIdentity); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	return nil
}

// scanPlaylist is shared by Get/List style lookups once they're added;
// declared here so both single-row and multi-row query paths stay in sync.
func scanPlaylist(row interface{ Scan(dest ...any) error }) (models.Playlist, int, error) {
	var (
		id, collectionID              int
		order                         int
		server, identity, name        sql.NullString
		typ                           string
		summary, cover, creator       sql.NullString
		creatorID                     sql.NullString
		playTime, musicNum            sql.NullInt64
		subsJSON                      sql.NullString
		deletedAt                     sql.NullTime
	)

	if err := row.Scan(&id, &collectionID, &order, &server, &typ, &identity, &name,
		&summary, &cover, &creator, &creatorID, &playTime, &musicNum, &subsJSON, &deletedAt); err != nil {
		return models.Playlist{}, 0, err
	}

	rowID := id
	p := models.Playlist{
		FromDB:       true,
		ID:           &rowID,
		Type:         models.PlaylistType(typ),
		Name:         name.String,
		CollectionID: &collectionID,
		Order:        &order,
	}
	if server.Valid {
		s := models.MusicServer(server.String)
		p.Server = &s
	}
	if identity.Valid {
		p.Identity = identity.String
	}
	if summary.Valid {
		p.Summary = &summary.String
	}
	if cover.Valid {
		p.Cover = &cover.String
	}
	if creator.Valid {
		p.Creator = &creator.String
	}
	if creatorID.Valid {
		p.CreatorID = &creatorID.String
	}
	if playTime.Valid {
		n := int(playTime.Int64)
		p.PlayTime = &n
	}
	if musicNum.Valid {
		n := int(musicNum.Int64)
		p.MusicNum = &n
	}
	if subsJSON.Valid && subsJSON.String != "" {
		_ = json.Unmarshal([]byte(subsJSON.String), &p.Subscriptions)
	}

	return p, id, nil
}

// GetPlaylist loads a playlist's metadata and its ordered aggregators.
func GetPlaylist(id int) (models.Playlist, error) {
	db, dialect, err := GetDB()
	if err != nil {
		return models.Playlist{}, err
	}

	query := rebind(dialect, `
		SELECT id, collection_id, "order", server, type, identity, name, summary, cover, creator, creator_id, play_time, music_num, subscriptions, deleted_at
		FROM playlist WHERE id = ? AND deleted_at IS NULL
	`)

	p, _, err := scanPlaylist(db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Playlist{}, shared.ErrNotFound
		}
		return models.Playlist{}, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}

	aggregators, err := LoadPlaylistAggregators(id)
	if err != nil {
		return models.Playlist{}, err
	}
	p.Aggregators = aggregators

	return p, nil
}
