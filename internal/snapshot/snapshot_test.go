package snapshot

import (
	"context"
	"testing"

	"github.com/canxin121/musicagg/internal/models"
	"github.com/canxin121/musicagg/internal/providers"
	"github.com/canxin121/musicagg/internal/store"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	if err := store.SetDB("sqlite::memory:"); err != nil {
		t.Fatalf("SetDB: %v", err)
	}
	t.Cleanup(func() { _ = store.CloseDB() })
}

func sampleAggregator(name, artist, kuwoID string) models.MusicAggregator {
	m := models.Music{
		Server: models.ServerKuwo, Identity: kuwoID, Name: name,
		Artists: []models.Artist{{Name: artist}},
		Qualities: []models.Quality{{Summary: "320kmp3"}},
	}
	return models.NewMusicAggregator(m)
}

func TestMusicAggregatorsSnapshotJSONRoundTrip(t *testing.T) {
	snap := FromMusicAggregators([]models.MusicAggregator{sampleAggregator("Lemon", "米津玄师", "1")})

	data, err := snap.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	parsed, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if parsed.Type != TypeMusicAggregators {
		t.Fatalf("expected type %q, got %q", TypeMusicAggregators, parsed.Type)
	}
	if len(parsed.MusicAggregators) != 1 || parsed.MusicAggregators[0].Name != "Lemon" {
		t.Errorf("unexpected round trip: %+v", parsed.MusicAggregators)
	}
}

func TestSaveToAndLoadFromRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/nested/export.json"

	snap := FromMusicAggregators([]models.MusicAggregator{sampleAggregator("Lemon", "米津玄师", "1")})
	if err := snap.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if len(loaded.MusicAggregators) != 1 {
		t.Fatalf("expected 1 aggregator, got %d", len(loaded.MusicAggregators))
	}
}

func TestApplyToDBMusicAggregatorsAppendsToPlaylist(t *testing.T) {
	setupTestDB(t)

	collectionID, err := store.CreatePlaylistCollection("mine")
	if err != nil {
		t.Fatalf("CreatePlaylistCollection: %v", err)
	}
	playlistID, err := store.CreatePlaylist(collectionID, models.Playlist{Name: "favorites", Type: models.PlaylistTypeUserPlaylist})
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}

	snap := FromMusicAggregators([]models.MusicAggregator{
		sampleAggregator("Lemon", "米津玄师", "1"),
		sampleAggregator("晴天", "周杰伦", "2"),
	})

	if err := snap.ApplyToDB(&playlistID, nil); err != nil {
		t.Fatalf("ApplyToDB: %v", err)
	}

	loaded, err := store.GetPlaylist(playlistID)
	if err != nil {
		t.Fatalf("GetPlaylist: %v", err)
	}
	if len(loaded.Aggregators) != 2 {
		t.Fatalf("expected 2 aggregators in playlist, got %d", len(loaded.Aggregators))
	}
}

func TestApplyToDBMusicAggregatorsRequiresPlaylistID(t *testing.T) {
	setupTestDB(t)
	snap := FromMusicAggregators([]models.MusicAggregator{sampleAggregator("Lemon", "米津玄师", "1")})
	if err := snap.ApplyToDB(nil, nil); err == nil {
		t.Error("expected error when no playlist id is provided")
	}
}

func TestApplyToDBPlaylistsInsertsIntoCollection(t *testing.T) {
	setupTestDB(t)

	collectionID, err := store.CreatePlaylistCollection("imported")
	if err != nil {
		t.Fatalf("CreatePlaylistCollection: %v", err)
	}

	snap := Snapshot{
		Type: TypePlaylists,
		Playlists: []PlaylistEntry{
			{
				Playlist:    models.Playlist{Name: "ported", Type: models.PlaylistTypeUserPlaylist},
				Aggregators: []models.MusicAggregator{sampleAggregator("Lemon", "米津玄师", "1")},
			},
		},
	}

	if err := snap.ApplyToDB(nil, &collectionID); err != nil {
		t.Fatalf("ApplyToDB: %v", err)
	}
}

func TestApplyToDBDatabaseRoundTrip(t *testing.T) {
	setupTestDB(t)

	collectionID, err := store.CreatePlaylistCollection("mine")
	if err != nil {
		t.Fatalf("CreatePlaylistCollection: %v", err)
	}
	playlistID, err := store.CreatePlaylist(collectionID, models.Playlist{Name: "favorites", Type: models.PlaylistTypeUserPlaylist})
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	if _, err := store.AddAggregatorToPlaylist(playlistID, sampleAggregator("Lemon", "米津玄师", "1")); err != nil {
		t.Fatalf("AddAggregatorToPlaylist: %v", err)
	}

	first, err := FromDatabase()
	if err != nil {
		t.Fatalf("FromDatabase: %v", err)
	}

	if err := first.ApplyToDB(nil, nil); err != nil {
		t.Fatalf("ApplyToDB: %v", err)
	}

	second, err := FromDatabase()
	if err != nil {
		t.Fatalf("FromDatabase (after apply): %v", err)
	}

	firstJSON, _ := first.ToJSON()
	secondJSON, _ := second.ToJSON()
	if firstJSON != secondJSON {
		t.Errorf("expected dump -> apply -> dump to be deep-equal:\nfirst:  %s\nsecond: %s", firstJSON, secondJSON)
	}
}

func TestFromPlaylistsResolvesFromDBPlaylist(t *testing.T) {
	setupTestDB(t)

	collectionID, err := store.CreatePlaylistCollection("mine")
	if err != nil {
		t.Fatalf("CreatePlaylistCollection: %v", err)
	}
	playlistID, err := store.CreatePlaylist(collectionID, models.Playlist{Name: "favorites", Type: models.PlaylistTypeUserPlaylist})
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	if _, err := store.AddAggregatorToPlaylist(playlistID, sampleAggregator("Lemon", "米津玄师", "1")); err != nil {
		t.Fatalf("AddAggregatorToPlaylist: %v", err)
	}

	loaded, err := store.GetPlaylist(playlistID)
	if err != nil {
		t.Fatalf("GetPlaylist: %v", err)
	}

	registry := providers.NewRegistry()
	snap, err := FromPlaylists(context.Background(), registry, []models.Playlist{loaded})
	if err != nil {
		t.Fatalf("FromPlaylists: %v", err)
	}
	if len(snap.Playlists) != 1 || len(snap.Playlists[0].Aggregators) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap.Playlists)
	}
}
