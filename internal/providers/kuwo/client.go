package kuwo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/canxin121/musicagg/internal/models"
	"github.com/canxin121/musicagg/internal/providers"
	"github.com/canxin121/musicagg/internal/shared"
)

// Adapter is the Kuwo implementation of providers.MusicProvider.
type Adapter struct {
	cfg     shared.KuwoConfig
	client  *http.Client
	limiter *rate.Limiter
}

// New builds a Kuwo adapter. client is the process-wide shared HTTP client
// (§6.1); concurrency sizes the rate limiter that paces cover-picture
// fetches: at most that many start per second (with a burst of the same
// size). It does not cap how many fetches are in flight at once.
func New(cfg shared.KuwoConfig, client *http.Client, concurrency int) *Adapter {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Adapter{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(concurrency), concurrency),
	}
}

func (a *Adapter) Server() models.MusicServer { return models.ServerKuwo }

// Matches reports whether shareText names a Kuwo resource.
func (a *Adapter) Matches(shareText string) bool {
	return strings.Contains(shareText, "kuwo")
}

func (a *Adapter) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}
	if a.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", a.cfg.UserAgent)
	}
	req.Header.Set("Referer", a.cfg.BaseURL)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: kuwo returned status %d", shared.ErrTransport, resp.StatusCode)
	}

	normalized := normalizeQuotes(string(body))
	if err := json.Unmarshal([]byte(normalized), out); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDecode, err)
	}
	return nil
}

// kuwoTrack is the JSON shape of a single track in Kuwo's search/playlist
// responses (field names per Kuwo's www API, abbreviated for the fields this
// adapter consumes).
type kuwoTrack struct {
	RID      int    `json:"rid,string"`
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	AlbumID  string `json:"albumid"`
	Duration string `json:"duration"`
	MInfo    string `json:"minfo"`
	Formats  string `json:"formats"`
}

func (t kuwoTrack) toMusic() models.Music {
	m := models.Music{
		Server:   models.ServerKuwo,
		Identity: strconv.Itoa(t.RID),
		Name:     decodeEntities(t.Name),
		Artists:  splitArtists(t.Artist),
	}
	if t.Album != "" {
		album := decodeEntities(t.Album)
		m.Album = &album
	}
	if t.AlbumID != "" {
		m.AlbumID = &t.AlbumID
	}
	if t.Duration != "" {
		d := atoiOrZero(t.Duration)
		m.Duration = &d
	}
	if t.MInfo != "" {
		m.Qualities = parseMinfo(t.MInfo)
	} else if t.Formats != "" {
		m.Qualities = parseFormatsTag(t.Formats)
	}
	return m
}

type searchMusicResponse struct {
	Data struct {
		List []kuwoTrack `json:"list"`
	} `json:"data"`
}

// SearchMusic queries Kuwo's free-text track search.
func (a *Adapter) SearchMusic(ctx context.Context, query string, page, size int) ([]models.Music, error) {
	u := fmt.Sprintf("%s/api/www/search/searchMusicBykeyWord?key=%s&pn=%d&rn=%d",
		a.cfg.BaseURL, url.QueryEscape(query), page, size)

	var resp searchMusicResponse
	if err := a.get(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("%w: search_music: %v", shared.ErrProvider, err)
	}

	musics := make([]models.Music, 0, len(resp.Data.List))
	for _, t := range resp.Data.List {
		musics = append(musics, a.withCover(ctx, t.toMusic(), t.RID))
	}
	return musics, nil
}

type kuwoPlaylist struct {
	PID      int    `json:"id,string"`
	Name     string `json:"name"`
	Pic      string `json:"pic"`
	Creator  string `json:"uname"`
	Total    int    `json:"total,string"`
	PlayTime int    `json:"playtime,string"`
}

func (p kuwoPlaylist) toPlaylist() models.Playlist {
	server := models.ServerKuwo
	pl := models.Playlist{
		Server:   &server,
		Type:     models.PlaylistTypeUserPlaylist,
		Identity: strconv.Itoa(p.PID),
		Name:     decodeEntities(p.Name),
	}
	if p.Pic != "" {
		pl.Cover = &p.Pic
	}
	if p.Creator != "" {
		creator := decodeEntities(p.Creator)
		pl.Creator = &creator
	}
	if p.Total != 0 {
		pl.MusicNum = &p.Total
	}
	if p.PlayTime != 0 {
		pl.PlayTime = &p.PlayTime
	}
	return pl
}

type searchPlaylistResponse struct {
	Data struct {
		List []kuwoPlaylist `json:"list"`
	} `json:"data"`
}

// SearchPlaylist queries Kuwo's free-text playlist search.
func (a *Adapter) SearchPlaylist(ctx context.Context, query string, page, size int) ([]models.Playlist, error) {
	u := fmt.Sprintf("%s/api/www/search/searchPlayListBykeyWord?key=%s&pn=%d&rn=%d",
		a.cfg.BaseURL, url.QueryEscape(query), page, size)

	var resp searchPlaylistResponse
	if err := a.get(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("%w: search_playlist: %v", shared.ErrProvider, err)
	}

	playlists := make([]models.Playlist, 0, len(resp.Data.List))
	for _, p := range resp.Data.List {
		playlists = append(playlists, p.toPlaylist())
	}
	return playlists, nil
}

type playlistTracksResponse struct {
	Data struct {
		MusicList []kuwoTrack `json:"musicList"`
	} `json:"data"`
}

// FetchPlaylistTracks returns a page of a Kuwo playlist's tracks, fetching
// cover art concurrently under the adapter's rate limiter.
func (a *Adapter) FetchPlaylistTracks(ctx context.Context, playlistIdentity string, page, size int) ([]models.Music, error) {
	u := fmt.Sprintf("%s/api/www/playlist/playListInfo?pid=%s&pn=%d&rn=%d",
		a.cfg.BaseURL, playlistIdentity, page, size)

	var resp playlistTracksResponse
	if err := a.get(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("%w: fetch_playlist_tracks: %v", shared.ErrProvider, err)
	}

	return a.toMusicsWithCovers(ctx, resp.Data.MusicList), nil
}

type albumResponse struct {
	Data struct {
		Name      string      `json:"name"`
		Pic       string      `json:"pic"`
		MusicList []kuwoTrack `json:"musicList"`
	} `json:"data"`
}

// FetchAlbum returns the album wrapper (page 1 only) and a page of tracks.
func (a *Adapter) FetchAlbum(ctx context.Context, albumID, albumName string, page, size int) (*models.Playlist, []models.Music, error) {
	u := fmt.Sprintf("%s/api/www/album/albumInfo?albumId=%s&pn=%d&rn=%d",
		a.cfg.BaseURL, albumID, page, size)

	var resp albumResponse
	if err := a.get(ctx, u, &resp); err != nil {
		return nil, nil, fmt.Errorf("%w: fetch_album: %v", shared.ErrProvider, err)
	}

	musics := a.toMusicsWithCovers(ctx, resp.Data.MusicList)

	var playlist *models.Playlist
	if page == 1 {
		server := models.ServerKuwo
		name := resp.Data.Name
		if name == "" {
			name = albumName
		}
		p := models.Playlist{
			Server:   &server,
			Type:     models.PlaylistTypeAlbum,
			Identity: albumID,
			Name:     decodeEntities(name),
		}
		if resp.Data.Pic != "" {
			p.Cover = &resp.Data.Pic
		}
		n := len(musics)
		p.MusicNum = &n
		playlist = &p
	}

	return playlist, musics, nil
}

type lyricResponse struct {
	Data struct {
		LrcList []struct {
			Time string `json:"time"`
			LineLyric string `json:"lineLyric"`
		} `json:"lrclist"`
	} `json:"data"`
}

// FetchLyric returns the LRC-formatted lyric text for a Kuwo track.
// withTranslation is accepted for interface symmetry with Netease but Kuwo
// exposes no translated-lyric endpoint, so it is ignored.
func (a *Adapter) FetchLyric(ctx context.Context, musicIdentity string, withTranslation bool) (string, error) {
	u := fmt.Sprintf("%s/api/www/lyric/lyric?musicId=%s", a.cfg.BaseURL, musicIdentity)

	var resp lyricResponse
	if err := a.get(ctx, u, &resp); err != nil {
		return "", fmt.Errorf("%w: fetch_lyric: %v", shared.ErrProvider, err)
	}

	var b strings.Builder
	for _, line := range resp.Data.LrcList {
		seconds, err := strconv.ParseFloat(line.Time, 64)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s\n", formatLRCTimestamp(seconds), line.LineLyric)
	}
	return b.String(), nil
}

func formatLRCTimestamp(seconds float64) string {
	minutes := int(seconds) / 60
	secs := seconds - float64(minutes*60)
	return fmt.Sprintf("%02d:%05.2f", minutes, secs)
}

type chartsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Charts []struct {
			ID   int    `json:"id,string"`
			Name string `json:"name"`
			Pic  string `json:"pic"`
			Desc string `json:"desc"`
		} `json:"charts"`
	} `json:"data"`
}

// FetchCharts returns Kuwo's chart catalogue, grouped by the provider's own
// category labels (unlike Netease, no reclassification is applied).
func (a *Adapter) FetchCharts(ctx context.Context) (models.ServerChartCollection, error) {
	u := a.cfg.BaseURL + "/api/www/bang/bang/bangCategory"

	var resp chartsResponse
	if err := a.get(ctx, u, &resp); err != nil {
		return models.ServerChartCollection{}, fmt.Errorf("%w: fetch_charts: %v", shared.ErrProvider, err)
	}

	collection := models.ServerChartCollection{Server: models.ServerKuwo}
	for _, group := range resp.Data {
		g := models.ChartGroup{Name: group.Name}
		for _, c := range group.Charts {
			chart := models.Chart{
				Server:      models.ServerKuwo,
				Identity:    strconv.Itoa(c.ID),
				Name:        decodeEntities(c.Name),
				Description: c.Desc,
			}
			if c.Pic != "" {
				chart.Cover = &c.Pic
			}
			g.Charts = append(g.Charts, chart)
		}
		collection.Groups = append(collection.Groups, g)
	}
	return collection, nil
}

type chartTracksResponse struct {
	Data struct {
		MusicList []kuwoTrack `json:"musicList"`
	} `json:"data"`
}

// FetchChartTracks returns a page of tracks belonging to a Kuwo chart.
func (a *Adapter) FetchChartTracks(ctx context.Context, chartIdentity string, page, size int) ([]models.Music, error) {
	u := fmt.Sprintf("%s/api/www/bang/bang/musicList?bangId=%s&pn=%d&rn=%d",
		a.cfg.BaseURL, chartIdentity, page, size)

	var resp chartTracksResponse
	if err := a.get(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("%w: fetch_chart_tracks: %v", shared.ErrProvider, err)
	}
	return a.toMusicsWithCovers(ctx, resp.Data.MusicList), nil
}

type tagsResponse struct {
	Data []struct {
		Category string `json:"category"`
		Tags     []struct {
			ID   int    `json:"id,string"`
			Name string `json:"name"`
		} `json:"tags"`
	} `json:"data"`
}

// FetchPlaylistTags returns Kuwo's playlist tag/genre catalogue.
func (a *Adapter) FetchPlaylistTags(ctx context.Context) (models.ServerTagCollection, error) {
	u := a.cfg.BaseURL + "/api/www/playlist/playListTag"

	var resp tagsResponse
	if err := a.get(ctx, u, &resp); err != nil {
		return models.ServerTagCollection{}, fmt.Errorf("%w: fetch_playlist_tags: %v", shared.ErrProvider, err)
	}

	collection := models.ServerTagCollection{Server: models.ServerKuwo}
	for _, group := range resp.Data {
		g := models.TagGroup{Category: group.Category}
		for _, t := range group.Tags {
			g.Tags = append(g.Tags, models.Tag{
				Server:   models.ServerKuwo,
				Identity: strconv.Itoa(t.ID),
				Name:     decodeEntities(t.Name),
			})
		}
		collection.Groups = append(collection.Groups, g)
	}
	return collection, nil
}

type tagPlaylistsResponse struct {
	Data struct {
		List []kuwoPlaylist `json:"list"`
	} `json:"data"`
}

// FetchTagPlaylists returns a page of playlists carrying tagIdentity, ordered
// hot-first or new-first.
func (a *Adapter) FetchTagPlaylists(ctx context.Context, tagIdentity string, order providers.TagOrder, page, size int) ([]models.Playlist, error) {
	sort := "hot"
	if order == providers.TagOrderNew {
		sort = "new"
	}
	u := fmt.Sprintf("%s/api/www/playlist/playListByTag?tagId=%s&sort=%s&pn=%d&rn=%d",
		a.cfg.BaseURL, tagIdentity, sort, page, size)

	var resp tagPlaylistsResponse
	if err := a.get(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("%w: fetch_tag_playlists: %v", shared.ErrProvider, err)
	}

	playlists := make([]models.Playlist, 0, len(resp.Data.List))
	for _, p := range resp.Data.List {
		playlists = append(playlists, p.toPlaylist())
	}
	return playlists, nil
}

// PlaylistFromShare resolves a pasted Kuwo share link into its playlist.
func (a *Adapter) PlaylistFromShare(ctx context.Context, shareText string) (models.Playlist, error) {
	id, ok := extractPlaylistShareID(shareText)
	if !ok {
		return models.Playlist{}, fmt.Errorf("%w: no kuwo playlist id found in share text", shared.ErrDecode)
	}

	u := fmt.Sprintf("%s/api/www/playlist/playListInfo?pid=%s&pn=1&rn=1", a.cfg.BaseURL, id)
	var resp struct {
		Data struct {
			Name string `json:"name"`
			Pic  string `json:"pic"`
		} `json:"data"`
	}
	if err := a.get(ctx, u, &resp); err != nil {
		return models.Playlist{}, fmt.Errorf("%w: playlist_from_share: %v", shared.ErrProvider, err)
	}

	server := models.ServerKuwo
	pl := models.Playlist{
		Server:   &server,
		Type:     models.PlaylistTypeUserPlaylist,
		Identity: id,
		Name:     decodeEntities(resp.Data.Name),
	}
	if resp.Data.Pic != "" {
		pl.Cover = &resp.Data.Pic
	}
	return pl, nil
}

// withCover fetches a single track's cover picture, swallowing failures
// (covers are enrichment, not a correctness requirement).
func (a *Adapter) withCover(ctx context.Context, m models.Music, rid int) models.Music {
	if err := a.limiter.Wait(ctx); err != nil {
		return m
	}
	u := fmt.Sprintf("%s/api/www/music/picture?musicId=%d", a.cfg.BaseURL, rid)
	var resp struct {
		Data struct {
			Pic string `json:"pic"`
		} `json:"data"`
	}
	if err := a.get(ctx, u, &resp); err == nil && resp.Data.Pic != "" {
		m.Cover = &resp.Data.Pic
	}
	return m
}

// toMusicsWithCovers fans out cover-picture fetches concurrently, one
// goroutine per track, paced by the adapter's rate limiter (a cap on fetch
// starts per second, not on the number of fetches in flight).
func (a *Adapter) toMusicsWithCovers(ctx context.Context, tracks []kuwoTrack) []models.Music {
	musics := make([]models.Music, len(tracks))
	var wg sync.WaitGroup
	for i, t := range tracks {
		musics[i] = t.toMusic()
		wg.Add(1)
		go func(i int, t kuwoTrack) {
			defer wg.Done()
			musics[i] = a.withCover(ctx, musics[i], t.RID)
		}(i, t)
	}
	wg.Wait()
	return musics
}

var _ providers.MusicProvider = (*Adapter)(nil)
