package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidModel is returned when a model fails validation.
var ErrInvalidModel = fmt.Errorf("invalid model")

// MusicServer is a closed enum of provider identifiers.
type MusicServer string

const (
	ServerKuwo    MusicServer = "kuwo"
	ServerNetease MusicServer = "netease"
)

// AllServers returns every known provider, in a stable order used to size
// per-aggregator collections and to iterate deterministically over the
// registry.
func AllServers() []MusicServer {
	return []MusicServer{ServerKuwo, ServerNetease}
}

// Artist is one performer credited on a [Music]. Equality for aggregation
// purposes is by Name only; ID is provider-native and carried for display.
type Artist struct {
	Name string
	ID   *string
}

// ArtistNames extracts the Name field of each artist, preserving order.
func ArtistNames(artists []Artist) []string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return names
}

// ArtistKey joins artist names, lexicographically sorted, with "&". This is
// the artist half of an aggregator's identity string.
func ArtistKey(artists []Artist) string {
	names := ArtistNames(artists)
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	return strings.Join(sorted, "&")
}

// Quality describes one available encoding of a [Music] track. Summary is a
// short tier label ("standard", "exhigh", "lossless", "hires", or a
// synthesized "{bitrate}k{format}").
type Quality struct {
	Summary string
	Bitrate *string
	Format  *string
	Size    *string
}

// bitrateValue parses Bitrate as an integer for descending sort; qualities
// with an unparsable or absent bitrate sort last.
func (q Quality) bitrateValue() int {
	if q.Bitrate == nil {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(*q.Bitrate))
	if err != nil {
		return -1
	}
	return n
}

// SortQualitiesDescending sorts a quality list in place, highest bitrate
// first, per the Music.qualities invariant.
func SortQualitiesDescending(qualities []Quality) {
	sort.SliceStable(qualities, func(i, j int) bool {
		return qualities[i].bitrateValue() > qualities[j].bitrateValue()
	})
}

// Music is a provider-side track: the direct, un-merged result of a
// provider adapter call.
type Music struct {
	FromDB   bool
	Server   MusicServer
	Identity string // provider-native unique id, unique per Server
	Name     string
	Duration *int // seconds
	Artists  []Artist
	Album    *string
	AlbumID  *string
	Qualities []Quality
	Cover    *string
}

// Validate checks the invariants a Music value must satisfy before it is
// accepted into an aggregator or persisted.
func (m Music) Validate() error {
	if m.Identity == "" {
		return fmt.Errorf("%w: music identity is empty", ErrInvalidModel)
	}
	if m.Name == "" {
		return fmt.Errorf("%w: music name is empty", ErrInvalidModel)
	}
	if m.Server != ServerKuwo && m.Server != ServerNetease {
		return fmt.Errorf("%w: unknown server %q", ErrInvalidModel, m.Server)
	}
	return nil
}

// MusicAggregator is the cross-provider logical track: at most one [Music]
// per [MusicServer], joined under a content-derived identity.
type MusicAggregator struct {
	Name       string
	ArtistKey  string
	FromDB     bool
	Order      *int // meaningful only when loaded within a playlist
	Musics     []Music
	DefaultServer MusicServer
}

// Identity computes the aggregator's persistent primary key:
// lowercase("{name}#+#{artist_key}").
func (a MusicAggregator) Identity() string {
	return strings.ToLower(a.Name + "#+#" + a.ArtistKey)
}

// NewMusicAggregator builds an aggregator from its first [Music], deriving
// Name, ArtistKey and DefaultServer from it.
func NewMusicAggregator(m Music) MusicAggregator {
	return MusicAggregator{
		Name:          m.Name,
		ArtistKey:     ArtistKey(m.Artists),
		FromDB:        m.FromDB,
		Musics:        []Music{m},
		DefaultServer: m.Server,
	}
}

// HasServer reports whether the aggregator already holds a Music for server.
func (a MusicAggregator) HasServer(server MusicServer) bool {
	for _, m := range a.Musics {
		if m.Server == server {
			return true
		}
	}
	return false
}

// MusicFor returns the Music entry for server, if present.
func (a MusicAggregator) MusicFor(server MusicServer) (Music, bool) {
	for _, m := range a.Musics {
		if m.Server == server {
			return m, true
		}
	}
	return Music{}, false
}

// DefaultMusic returns the Music entry matching DefaultServer.
func (a MusicAggregator) DefaultMusic() (Music, bool) {
	return a.MusicFor(a.DefaultServer)
}

// Append adds m to the aggregator, provided no entry for m.Server already
// exists. Callers are expected to have already checked HasServer.
func (a *MusicAggregator) Append(m Music) {
	a.Musics = append(a.Musics, m)
}

// SetDefaultServer changes DefaultServer, permitted only if server is
// already present among Musics (§4.3.5).
func (a *MusicAggregator) SetDefaultServer(server MusicServer) error {
	if !a.HasServer(server) {
		return fmt.Errorf("%w: server %q not present in aggregator %q", ErrInvalidModel, server, a.Identity())
	}
	a.DefaultServer = server
	return nil
}

// Validate checks the single-entry-per-server and default_server-membership
// invariants.
func (a MusicAggregator) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("%w: aggregator name is empty", ErrInvalidModel)
	}
	seen := make(map[MusicServer]bool, len(a.Musics))
	for _, m := range a.Musics {
		if seen[m.Server] {
			return fmt.Errorf("%w: duplicate server %q in aggregator %q", ErrInvalidModel, m.Server, a.Identity())
		}
		seen[m.Server] = true
	}
	if len(a.Musics) > 0 && !a.HasServer(a.DefaultServer) {
		return fmt.Errorf("%w: default_server %q not present in aggregator %q", ErrInvalidModel, a.DefaultServer, a.Identity())
	}
	return nil
}

// PlaylistType discriminates a user-curated playlist from a provider album
// exposed through the same shape.
type PlaylistType string

const (
	PlaylistTypeUserPlaylist PlaylistType = "UserPlaylist"
	PlaylistTypeAlbum        PlaylistType = "Album"
)

// Subscription is a pointer from a locally-owned playlist back to a shared
// playlist on a provider, refreshed by the subscription component.
type Subscription struct {
	Server   MusicServer `json:"sr"`
	ShareURL string      `json:"se"`
}

// Playlist is a set of aggregators, ordered, with rich metadata.
type Playlist struct {
	FromDB       bool
	ID           *int // local row id, set only when FromDB
	Server       *MusicServer // absent iff FromDB and the playlist is a user-owned local list
	Type         PlaylistType
	Identity     string
	Order        *int
	CollectionID *int
	Name         string
	Summary      *string
	Cover        *string
	Creator      *string
	CreatorID    *string
	PlayTime     *int
	MusicNum     *int
	Subscriptions []Subscription
	Aggregators  []MusicAggregator
}

// Validate rejects an empty name, and an Album-type playlist that has no
// Server unless it was loaded from the database. A UserPlaylist without a
// Server is accepted whether or not FromDB is set, and a playlist that has a
// Server is accepted regardless of FromDB.
func (p Playlist) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: playlist name is empty", ErrInvalidModel)
	}
	isLocal := p.FromDB && p.Server == nil
	if !isLocal && p.Server == nil && p.Type != PlaylistTypeUserPlaylist {
		return fmt.Errorf("%w: non-local playlist %q missing originating server", ErrInvalidModel, p.Name)
	}
	return nil
}

// PlaylistCollection is a user-defined grouping of playlists.
type PlaylistCollection struct {
	ID    int
	Order int
	Name  string
}

// PlaylistMusicJunction links a playlist to an aggregator with a dense,
// insertion-preserving order. Primary key is (PlaylistID, AggregatorIdentity).
type PlaylistMusicJunction struct {
	PlaylistID         int
	AggregatorIdentity string
	Order              int
}

// Chart is a single named chart on a provider (e.g. a daily hot-50 list).
type Chart struct {
	Server      MusicServer
	Identity    string
	Name        string
	Description string
	Cover       *string
}

// ChartGroup is a named bucket of charts (Kuwo: provider-defined category;
// Netease: the fixed nine-bucket classifier in §4.2.2).
type ChartGroup struct {
	Name   string
	Charts []Chart
}

// ServerChartCollection is everything fetch_charts returns for one server.
type ServerChartCollection struct {
	Server MusicServer
	Groups []ChartGroup
}

// Tag is a single playlist tag/genre marker on a provider.
type Tag struct {
	Server   MusicServer
	Identity string
	Name     string
}

// TagGroup is a named bucket of tags (Kuwo: provider category name;
// Netease: category index 0..=4, stringified).
type TagGroup struct {
	Category string
	Tags     []Tag
}

// ServerTagCollection is everything fetch_playlist_tags returns for one
// server.
type ServerTagCollection struct {
	Server MusicServer
	Groups []TagGroup
}
