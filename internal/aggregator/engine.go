// Package aggregator implements the cross-provider aggregation engine:
// identity computation, concurrent search-and-merge, and lazy provider
// enrichment of an existing aggregator.
package aggregator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/canxin121/musicagg/internal/models"
	"github.com/canxin121/musicagg/internal/providers"
	"github.com/canxin121/musicagg/internal/shared"
)

// Engine runs searches against a provider [providers.Registry] and merges
// the results into [models.MusicAggregator] values.
type Engine struct {
	registry *providers.Registry
	logger   interface {
		Warn(msg interface{}, keyvals ...interface{})
	}
}

// NewEngine builds an Engine bound to registry.
func NewEngine(registry *providers.Registry) *Engine {
	return &Engine{registry: registry, logger: shared.NewLogger(nil)}
}

// searchResult is the outcome of one server's SearchMusic call, carried
// back through a channel so failures don't abort the others.
type searchResult struct {
	server models.MusicServer
	musics []models.Music
	err    error
}

// SearchAndMerge fans out a query to every server in servers concurrently,
// merges the results into existing (which may be nil), and returns the
// merged, insertion-order-sorted aggregator list (§4.3.2).
//
// If every server fails, existing is returned unchanged alongside an error.
// If at least one server succeeds, the merged list is returned with no
// error, even though some servers may have failed (those failures are only
// logged).
func (e *Engine) SearchAndMerge(
	ctx context.Context,
	existing []models.MusicAggregator,
	servers []models.MusicServer,
	query string,
	page, size int,
) ([]models.MusicAggregator, error) {
	index := newIdentityIndex(existing)

	results := make(chan searchResult, len(servers))
	var wg sync.WaitGroup
	for _, server := range servers {
		wg.Add(1)
		go func(server models.MusicServer) {
			defer wg.Done()
			provider, err := e.registry.Get(server)
			if err != nil {
				results <- searchResult{server: server, err: err}
				return
			}
			musics, err := provider.SearchMusic(ctx, query, page, size)
			results <- searchResult{server: server, musics: musics, err: err}
		}(server)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	succeeded := 0
	for res := range results {
		if res.err != nil {
			e.logger.Warn("provider search failed", "server", res.server, "error", res.err)
			continue
		}
		succeeded++
		for _, m := range res.musics {
			index.merge(m)
		}
	}

	if succeeded == 0 {
		return existing, fmt.Errorf("%w: no provider search succeeded", shared.ErrProvider)
	}

	return index.ordered(), nil
}

// identityIndex tracks aggregators keyed by identity while preserving
// insertion order, per §4.3.2 step 1.
type identityIndex struct {
	order []string
	byID  map[string]*models.MusicAggregator
}

func newIdentityIndex(existing []models.MusicAggregator) *identityIndex {
	idx := &identityIndex{byID: make(map[string]*models.MusicAggregator, len(existing))}
	for i := range existing {
		a := existing[i]
		id := a.Identity()
		if _, ok := idx.byID[id]; ok {
			continue
		}
		idx.order = append(idx.order, id)
		idx.byID[id] = &a
	}
	return idx
}

// merge applies step 3 of §4.3.2: append m to its aggregator if that
// aggregator already exists and lacks m's server; if no aggregator has m's
// identity yet, create one at the current map size. A music whose
// aggregator already holds an entry for its server is dropped.
func (idx *identityIndex) merge(m models.Music) {
	probe := models.MusicAggregator{Name: m.Name, ArtistKey: models.ArtistKey(m.Artists)}
	id := probe.Identity()

	if existing, ok := idx.byID[id]; ok {
		if !existing.HasServer(m.Server) {
			existing.Append(m)
		}
		return
	}

	agg := models.NewMusicAggregator(m)
	agg.Order = intPtr(len(idx.order))
	idx.order = append(idx.order, id)
	idx.byID[id] = &agg
}

func (idx *identityIndex) ordered() []models.MusicAggregator {
	out := make([]models.MusicAggregator, 0, len(idx.order))
	for _, id := range idx.order {
		out = append(out, *idx.byID[id])
	}
	return out
}

func intPtr(n int) *int { return &n }

// FetchServers performs lazy provider enrichment (§4.3.3): for every server
// in requested not already present on agg, search with a tight query
// ("{name} {artist_key}"), accept a result only on an exact name and
// artist-key match, and append it.
func (e *Engine) FetchServers(ctx context.Context, agg *models.MusicAggregator, requested []models.MusicServer) error {
	var missing []models.MusicServer
	for _, s := range requested {
		if !agg.HasServer(s) {
			missing = append(missing, s)
		}
	}
	if len(missing) == 0 {
		return fmt.Errorf("%w: all requested servers already present", shared.ErrInvalidInput)
	}

	query := strings.TrimSpace(agg.Name + " " + agg.ArtistKey)

	for _, server := range missing {
		provider, err := e.registry.Get(server)
		if err != nil {
			e.logger.Warn("enrichment provider unavailable", "server", server, "error", err)
			continue
		}

		candidates, err := provider.SearchMusic(ctx, query, 1, 10)
		if err != nil {
			e.logger.Warn("enrichment search failed", "server", server, "error", err)
			continue
		}

		for _, c := range candidates {
			if c.Name == agg.Name && models.ArtistKey(c.Artists) == agg.ArtistKey {
				agg.Append(c)
				break
			}
		}
	}

	return nil
}

// ChangeDefaultServer delegates to [models.MusicAggregator.SetDefaultServer],
// enforcing §4.3.5's membership rule.
func (e *Engine) ChangeDefaultServer(agg *models.MusicAggregator, server models.MusicServer) error {
	return agg.SetDefaultServer(server)
}
