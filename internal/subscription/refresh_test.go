package subscription

import (
	"context"
	"fmt"
	"testing"

	"github.com/canxin121/musicagg/internal/models"
	"github.com/canxin121/musicagg/internal/providers"
	"github.com/canxin121/musicagg/internal/store"
)

// stubProvider is a minimal providers.MusicProvider for refresh tests: only
// PlaylistFromShare and FetchPlaylistTracks carry real behaviour.
type stubProvider struct {
	server      models.MusicServer
	playlists   map[string]models.Playlist
	tracks      map[string][]models.Music
	shareErr    error
	fetchErr    error
}

func (s *stubProvider) Server() models.MusicServer { return s.server }
func (s *stubProvider) Matches(string) bool        { return true }

func (s *stubProvider) PlaylistFromShare(ctx context.Context, shareText string) (models.Playlist, error) {
	if s.shareErr != nil {
		return models.Playlist{}, s.shareErr
	}
	p, ok := s.playlists[shareText]
	if !ok {
		return models.Playlist{}, fmt.Errorf("unknown share text %q", shareText)
	}
	return p, nil
}

func (s *stubProvider) FetchPlaylistTracks(ctx context.Context, playlistIdentity string, page, size int) ([]models.Music, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if page > 1 {
		return nil, nil
	}
	return s.tracks[playlistIdentity], nil
}

func (s *stubProvider) SearchMusic(context.Context, string, int, int) ([]models.Music, error) {
	return nil, nil
}
func (s *stubProvider) SearchPlaylist(context.Context, string, int, int) ([]models.Playlist, error) {
	return nil, nil
}
func (s *stubProvider) FetchAlbum(context.Context, string, string, int, int) (*models.Playlist, []models.Music, error) {
	return nil, nil, nil
}
func (s *stubProvider) FetchLyric(context.Context, string, bool) (string, error) { return "", nil }
func (s *stubProvider) FetchCharts(context.Context) (models.ServerChartCollection, error) {
	return models.ServerChartCollection{}, nil
}
func (s *stubProvider) FetchChartTracks(context.Context, string, int, int) ([]models.Music, error) {
	return nil, nil
}
func (s *stubProvider) FetchPlaylistTags(context.Context) (models.ServerTagCollection, error) {
	return models.ServerTagCollection{}, nil
}
func (s *stubProvider) FetchTagPlaylists(context.Context, string, providers.TagOrder, int, int) ([]models.Playlist, error) {
	return nil, nil
}

var _ providers.MusicProvider = (*stubProvider)(nil)

func setupTestDB(t *testing.T) {
	t.Helper()
	if err := store.SetDB("sqlite::memory:"); err != nil {
		t.Fatalf("SetDB: %v", err)
	}
	t.Cleanup(func() { _ = store.CloseDB() })
}

func TestRefreshAddsTracksForEachSubscription(t *testing.T) {
	setupTestDB(t)

	collectionID, err := store.CreatePlaylistCollection("mine")
	if err != nil {
		t.Fatalf("CreatePlaylistCollection: %v", err)
	}
	playlistID, err := store.CreatePlaylist(collectionID, models.Playlist{Name: "local mix", Type: models.PlaylistTypeUserPlaylist})
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}

	kuwo := &stubProvider{
		server: models.ServerKuwo,
		playlists: map[string]models.Playlist{
			"https://kuwo.cn/share/1": {Identity: "p1", Name: "Shared"},
		},
		tracks: map[string][]models.Music{
			"p1": {
				{Server: models.ServerKuwo, Identity: "t1", Name: "Song A", Artists: []models.Artist{{Name: "X"}}},
				{Server: models.ServerKuwo, Identity: "t2", Name: "Song B", Artists: []models.Artist{{Name: "Y"}}},
			},
		},
	}

	registry := providers.NewRegistry()
	registry.Register(kuwo)
	refresher := New(registry)

	results := refresher.Refresh(context.Background(), playlistID, []models.Subscription{
		{Server: models.ServerKuwo, ShareURL: "https://kuwo.cn/share/1"},
	})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if results[0].TracksAdded != 2 {
		t.Errorf("expected 2 tracks added, got %d", results[0].TracksAdded)
	}

	loaded, err := store.GetPlaylist(playlistID)
	if err != nil {
		t.Fatalf("GetPlaylist: %v", err)
	}
	if len(loaded.Aggregators) != 2 {
		t.Errorf("expected 2 aggregators persisted, got %d", len(loaded.Aggregators))
	}
}

func TestRefreshCollectsPerSubscriptionErrorsWithoutAborting(t *testing.T) {
	setupTestDB(t)

	collectionID, err := store.CreatePlaylistCollection("mine")
	if err != nil {
		t.Fatalf("CreatePlaylistCollection: %v", err)
	}
	playlistID, err := store.CreatePlaylist(collectionID, models.Playlist{Name: "local mix", Type: models.PlaylistTypeUserPlaylist})
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}

	kuwo := &stubProvider{
		server:   models.ServerKuwo,
		shareErr: fmt.Errorf("share link expired"),
	}
	netease := &stubProvider{
		server: models.ServerNetease,
		playlists: map[string]models.Playlist{
			"https://music.163.com/share/2": {Identity: "p2", Name: "Works"},
		},
		tracks: map[string][]models.Music{
			"p2": {{Server: models.ServerNetease, Identity: "t3", Name: "Song C", Artists: []models.Artist{{Name: "Z"}}}},
		},
	}

	registry := providers.NewRegistry()
	registry.Register(kuwo)
	registry.Register(netease)
	refresher := New(registry)

	results := refresher.Refresh(context.Background(), playlistID, []models.Subscription{
		{Server: models.ServerKuwo, ShareURL: "https://kuwo.cn/dead"},
		{Server: models.ServerNetease, ShareURL: "https://music.163.com/share/2"},
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Err == nil {
		t.Error("expected kuwo subscription to fail")
	}
	if results[1].Err != nil {
		t.Errorf("expected netease subscription to succeed, got %v", results[1].Err)
	}
	if results[1].TracksAdded != 1 {
		t.Errorf("expected 1 track added for netease subscription, got %d", results[1].TracksAdded)
	}
}

func TestRefreshAllUsesPlaylistSubscriptions(t *testing.T) {
	setupTestDB(t)

	collectionID, err := store.CreatePlaylistCollection("mine")
	if err != nil {
		t.Fatalf("CreatePlaylistCollection: %v", err)
	}
	playlistID, err := store.CreatePlaylist(collectionID, models.Playlist{
		Name: "local mix", Type: models.PlaylistTypeUserPlaylist,
		Subscriptions: []models.Subscription{{Server: models.ServerKuwo, ShareURL: "https://kuwo.cn/share/1"}},
	})
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}

	kuwo := &stubProvider{
		server: models.ServerKuwo,
		playlists: map[string]models.Playlist{
			"https://kuwo.cn/share/1": {Identity: "p1", Name: "Shared"},
		},
		tracks: map[string][]models.Music{
			"p1": {{Server: models.ServerKuwo, Identity: "t1", Name: "Song A", Artists: []models.Artist{{Name: "X"}}}},
		},
	}

	registry := providers.NewRegistry()
	registry.Register(kuwo)
	refresher := New(registry)

	results, err := refresher.RefreshAll(context.Background(), playlistID)
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("unexpected results: %+v", results)
	}
}
