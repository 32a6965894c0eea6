// Package subscription implements refresh of a local playlist's
// provider-playlist subscriptions: resolving each share URL, fetching its
// current tracks, and merge-inserting them into the local playlist.
package subscription

import (
	"context"
	"fmt"

	"github.com/canxin121/musicagg/internal/models"
	"github.com/canxin121/musicagg/internal/providers"
	"github.com/canxin121/musicagg/internal/shared"
	"github.com/canxin121/musicagg/internal/store"
)

// Result is the outcome of refreshing one subscription.
type Result struct {
	Subscription models.Subscription
	TracksAdded  int
	Err          error
}

// Refresher resolves subscriptions against a provider [providers.Registry]
// and persists their tracks via [store].
type Refresher struct {
	registry *providers.Registry
}

// New builds a Refresher bound to registry.
func New(registry *providers.Registry) *Refresher {
	return &Refresher{registry: registry}
}

// Refresh resolves every subscription on the playlist at playlistID
// concurrently, merge-inserting each subscription's current tracks into the
// playlist. Failures are collected per subscription rather than aborting
// the refresh (§4.4.4): the caller inspects each [Result.Err] individually.
//
// The subscription's share URL is resolved afresh through PlaylistFromShare
// on every refresh, and the resolved playlist's identity is used to fetch its
// tracks (§9/§11: the richer {server, share} form is the subscription's sole
// canonical identity). The resolved playlist's name is not stored on the
// subscription or the local playlist, and is not returned in the Result.
func (r *Refresher) Refresh(ctx context.Context, playlistID int, subs []models.Subscription) []Result {
	results, _ := shared.JoinAll(subs, func(sub models.Subscription) (Result, error) {
		res := r.refreshOne(ctx, playlistID, sub)
		return res, nil // errors are carried on Result, not propagated through JoinAll
	})
	return results
}

func (r *Refresher) refreshOne(ctx context.Context, playlistID int, sub models.Subscription) Result {
	result := Result{Subscription: sub}

	provider, err := r.registry.Get(sub.Server)
	if err != nil {
		result.Err = fmt.Errorf("%w: %v", shared.ErrProvider, err)
		return result
	}

	playlist, err := provider.PlaylistFromShare(ctx, sub.ShareURL)
	if err != nil {
		result.Err = fmt.Errorf("%w: resolving subscription share url: %v", shared.ErrProvider, err)
		return result
	}

	const pageSize = 2333
	var musics []models.Music
	for page := 1; ; page++ {
		batch, err := provider.FetchPlaylistTracks(ctx, playlist.Identity, page, pageSize)
		if err != nil {
			result.Err = fmt.Errorf("%w: fetching subscription tracks: %v", shared.ErrProvider, err)
			return result
		}
		musics = append(musics, batch...)
		if len(batch) < pageSize {
			break
		}
	}

	for _, m := range musics {
		agg := models.NewMusicAggregator(m)
		if _, err := store.AddAggregatorToPlaylist(playlistID, agg); err != nil {
			result.Err = fmt.Errorf("%w: persisting subscription track %q: %v", shared.ErrDbError, m.Identity, err)
			return result
		}
		result.TracksAdded++
	}

	return result
}

// RefreshAll refreshes every subscription carried by the playlist's own
// Subscriptions field, loading the playlist first.
func (r *Refresher) RefreshAll(ctx context.Context, playlistID int) ([]Result, error) {
	playlist, err := store.GetPlaylist(playlistID)
	if err != nil {
		return nil, err
	}
	return r.Refresh(ctx, playlistID, playlist.Subscriptions), nil
}
