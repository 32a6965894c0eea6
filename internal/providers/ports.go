// Package providers defines the adapter contract every streaming-service
// backend must satisfy, and a registry for dispatching to them by server.
package providers

import (
	"context"

	"github.com/canxin121/musicagg/internal/models"
)

// TagOrder selects hot-first or newest-first ordering for fetch_tag_playlists.
type TagOrder string

const (
	TagOrderHot TagOrder = "hot"
	TagOrderNew TagOrder = "new"
)

// MusicProvider is the contract every backend (Kuwo, Netease, …) implements.
// This is the primary driven port the aggregation engine calls through.
type MusicProvider interface {
	// Server returns the provider identifier this adapter implements.
	Server() models.MusicServer

	// SearchMusic searches for tracks by free-text query. Pagination is
	// best-effort; some providers ignore size.
	SearchMusic(ctx context.Context, query string, page, size int) ([]models.Music, error)

	// SearchPlaylist searches for playlists by free-text query.
	SearchPlaylist(ctx context.Context, query string, page, size int) ([]models.Playlist, error)

	// FetchPlaylistTracks returns a page of tracks for a playlist identity.
	// The identity is always looked up through the provider's playlist
	// endpoint; album tracks are not fetched here but through FetchAlbum.
	FetchPlaylistTracks(ctx context.Context, playlistIdentity string, page, size int) ([]models.Music, error)

	// FetchAlbum returns the album's Playlist wrapper (page 1 only, nil
	// otherwise) alongside a page of its tracks.
	FetchAlbum(ctx context.Context, albumID, albumName string, page, size int) (*models.Playlist, []models.Music, error)

	// FetchLyric returns the LRC-formatted lyric text for a track identity.
	FetchLyric(ctx context.Context, musicIdentity string, withTranslation bool) (string, error)

	// FetchCharts returns the provider's chart catalogue, grouped.
	FetchCharts(ctx context.Context) (models.ServerChartCollection, error)

	// FetchChartTracks returns a page of tracks belonging to a chart.
	FetchChartTracks(ctx context.Context, chartIdentity string, page, size int) ([]models.Music, error)

	// FetchPlaylistTags returns the provider's tag/genre catalogue, grouped.
	FetchPlaylistTags(ctx context.Context) (models.ServerTagCollection, error)

	// FetchTagPlaylists returns a page of playlists carrying the given tag.
	FetchTagPlaylists(ctx context.Context, tagIdentity string, order TagOrder, page, size int) ([]models.Playlist, error)

	// PlaylistFromShare resolves raw share text (pasted link or app share
	// card) into the provider playlist it names. The registry dispatches to
	// whichever adapter's Matches reports true for the text.
	PlaylistFromShare(ctx context.Context, shareText string) (models.Playlist, error)

	// Matches reports whether shareText names a resource on this provider,
	// used by the registry to select an adapter for PlaylistFromShare.
	Matches(shareText string) bool
}
