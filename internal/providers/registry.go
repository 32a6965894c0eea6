package providers

import (
	"fmt"
	"sync"

	"github.com/canxin121/musicagg/internal/models"
)

// Registry maps [models.MusicServer] to the [MusicProvider] adapter that
// implements it. Safe for concurrent use; the aggregation engine's
// search-and-merge fan-out and lazy enrichment both read through it
// concurrently.
type Registry struct {
	mu        sync.RWMutex
	providers map[models.MusicServer]MusicProvider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[models.MusicServer]MusicProvider)}
}

// Register adds a provider to the registry, keyed by its Server().
func (r *Registry) Register(provider MusicProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Server()] = provider
}

// Get returns the provider for the given server, or an error if none is
// registered.
func (r *Registry) Get(server models.MusicServer) (MusicProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[server]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", server)
	}
	return provider, nil
}

// Available returns the servers with a registered adapter.
func (r *Registry) Available() []models.MusicServer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	servers := make([]models.MusicServer, 0, len(r.providers))
	for s := range r.providers {
		servers = append(servers, s)
	}
	return servers
}

// MatchShare returns a registered provider whose Matches reports true for
// shareText, used by PlaylistFromShare dispatch (§4.2 table, "adapter is
// selected by substring matching against the text"). Providers are checked
// in map iteration order, so when several match, which one is returned is
// not defined.
func (r *Registry) MatchShare(shareText string) (MusicProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.providers {
		if p.Matches(shareText) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no provider recognised share text")
}
