// Package snapshot implements the JSON import/export format (§4.5): a
// tagged union over a full database dump, a list of playlists (each with
// its resolved aggregators), or a bare list of aggregators.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/canxin121/musicagg/internal/models"
	"github.com/canxin121/musicagg/internal/providers"
	"github.com/canxin121/musicagg/internal/shared"
	"github.com/canxin121/musicagg/internal/store"
)

// Type identifies which variant a [Snapshot] carries.
type Type string

const (
	TypeDatabase         Type = "Database"
	TypePlaylists        Type = "Playlists"
	TypeMusicAggregators Type = "MusicAggregators"
)

// PlaylistEntry pairs a playlist with its resolved aggregators — the shape
// of one element of the Playlists variant.
type PlaylistEntry struct {
	Playlist    models.Playlist          `json:"playlist"`
	Aggregators []models.MusicAggregator `json:"music_aggregators"`
}

// Snapshot is the tagged union written to and read from disk. Exactly one
// of the three fields is populated, selected by Type.
type Snapshot struct {
	Type             Type                     `json:"type"`
	Database         *store.DatabaseSnapshot  `json:"database,omitempty"`
	Playlists        []PlaylistEntry          `json:"playlists,omitempty"`
	MusicAggregators []models.MusicAggregator `json:"music_aggregators,omitempty"`
}

// ToJSON serializes the snapshot.
func (s Snapshot) ToJSON() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrDecode, err)
	}
	return string(b), nil
}

// FromJSON parses a snapshot previously produced by ToJSON or SaveTo.
func FromJSON(data string) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", shared.ErrDecode, err)
	}
	return s, nil
}

// SaveTo writes the snapshot as JSON to path, creating any missing parent
// directories first.
func (s Snapshot) SaveTo(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrDbError, err)
		}
	}
	data, err := s.ToJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	return nil
}

// LoadFrom reads and parses a snapshot file written by SaveTo.
func LoadFrom(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", shared.ErrDbError, err)
	}
	return FromJSON(string(data))
}

// FromDatabase builds a Database-variant snapshot from the live store.
func FromDatabase() (Snapshot, error) {
	dump, err := store.DumpDatabase()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Type: TypeDatabase, Database: &dump}, nil
}

// FromMusicAggregators wraps an in-memory aggregator list as a
// MusicAggregators-variant snapshot.
func FromMusicAggregators(aggs []models.MusicAggregator) Snapshot {
	return Snapshot{Type: TypeMusicAggregators, MusicAggregators: aggs}
}

// FromPlaylists resolves each playlist's aggregators — from the database if
// playlist.FromDB, otherwise by paging through the originating provider
// online — and wraps the result as a Playlists-variant snapshot. Playlists
// are resolved concurrently; a failure on one playlist aborts the whole
// export (§4.5 carries no partial-failure tolerance for export, unlike
// search or subscription refresh).
func FromPlaylists(ctx context.Context, registry *providers.Registry, playlists []models.Playlist) (Snapshot, error) {
	entries := make([]PlaylistEntry, len(playlists))
	errs := make([]error, len(playlists))

	var wg sync.WaitGroup
	for i, p := range playlists {
		wg.Add(1)
		go func(i int, p models.Playlist) {
			defer wg.Done()
			aggs, err := resolvePlaylistAggregators(ctx, registry, p)
			if err != nil {
				errs[i] = err
				return
			}
			entries[i] = PlaylistEntry{Playlist: p, Aggregators: aggs}
		}(i, p)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return Snapshot{}, err
		}
	}
	return Snapshot{Type: TypePlaylists, Playlists: entries}, nil
}

func resolvePlaylistAggregators(ctx context.Context, registry *providers.Registry, p models.Playlist) ([]models.MusicAggregator, error) {
	if p.FromDB {
		if p.ID == nil {
			return nil, fmt.Errorf("%w: FromDB playlist missing row id", shared.ErrInvalidInput)
		}
		return store.LoadPlaylistAggregators(*p.ID)
	}

	if p.Server == nil {
		return nil, fmt.Errorf("%w: non-local playlist missing server", shared.ErrInvalidInput)
	}
	provider, err := registry.Get(*p.Server)
	if err != nil {
		return nil, err
	}

	const pageSize = 2333
	var musics []models.Music
	for page := 1; ; page++ {
		batch, err := provider.FetchPlaylistTracks(ctx, p.Identity, page, pageSize)
		if err != nil {
			return nil, err
		}
		musics = append(musics, batch...)
		if len(batch) < pageSize {
			break
		}
	}

	aggs := make([]models.MusicAggregator, len(musics))
	for i, m := range musics {
		aggs[i] = models.NewMusicAggregator(m)
	}
	return aggs, nil
}

// ApplyToDB applies the snapshot per its variant (§4.5):
//   - Database: replaces the entire database via [store.LoadDatabaseSnapshot].
//   - Playlists: inserts each entry into playlistCollectionID as a new local
//     playlist, then appends its aggregators.
//   - MusicAggregators: appends every aggregator to the existing playlistID.
func (s Snapshot) ApplyToDB(playlistID, playlistCollectionID *int) error {
	switch s.Type {
	case TypeDatabase:
		if s.Database == nil {
			return fmt.Errorf("%w: Database snapshot missing its payload", shared.ErrInvalidInput)
		}
		return store.LoadDatabaseSnapshot(*s.Database)

	case TypePlaylists:
		if playlistCollectionID == nil {
			return fmt.Errorf("%w: no playlist collection id provided", shared.ErrInvalidInput)
		}
		for _, entry := range s.Playlists {
			id, err := store.CreatePlaylist(*playlistCollectionID, entry.Playlist)
			if err != nil {
				return err
			}
			for _, agg := range entry.Aggregators {
				if _, err := store.AddAggregatorToPlaylist(id, agg); err != nil {
					return err
				}
			}
		}
		return nil

	case TypeMusicAggregators:
		if playlistID == nil {
			return fmt.Errorf("%w: no playlist id provided", shared.ErrInvalidInput)
		}
		if _, err := store.GetPlaylist(*playlistID); err != nil {
			return err
		}
		for _, agg := range s.MusicAggregators {
			if _, err := store.AddAggregatorToPlaylist(*playlistID, agg); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown snapshot type %q", shared.ErrInvalidInput, s.Type)
	}
}
