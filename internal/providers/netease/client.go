// Package netease implements the Netease music-service adapter: weAPI/eAPI
// request signing, strict JSON decoding, quality-tier derivation, and the
// fixed nine-bucket chart classifier.
package netease

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/canxin121/musicagg/internal/models"
	"github.com/canxin121/musicagg/internal/providers"
	"github.com/canxin121/musicagg/internal/providers/netease/crypto"
	"github.com/canxin121/musicagg/internal/shared"
)

// Adapter is the Netease implementation of providers.MusicProvider.
type Adapter struct {
	cfg    shared.NeteaseConfig
	client *http.Client
}

// New builds a Netease adapter over the process-wide shared HTTP client.
func New(cfg shared.NeteaseConfig, client *http.Client) *Adapter {
	return &Adapter{cfg: cfg, client: client}
}

func (a *Adapter) Server() models.MusicServer { return models.ServerNetease }

// Matches reports whether shareText names a Netease resource.
func (a *Adapter) Matches(shareText string) bool {
	return strings.Contains(shareText, "music.163.com")
}

// weapiPost encrypts payload under the weAPI envelope and POSTs it to
// apiPath, decoding the (plain-JSON) response into out.
func (a *Adapter) weapiPost(ctx context.Context, apiPath string, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDecode, err)
	}

	params, encSecKey, err := crypto.WeAPI(string(body))
	if err != nil {
		return fmt.Errorf("%w: weapi encrypt: %v", shared.ErrProvider, err)
	}

	form := url.Values{"params": {params}, "encSecKey": {encSecKey}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.BaseURL+apiPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if a.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", a.cfg.UserAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: netease returned status %d", shared.ErrTransport, resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDecode, err)
	}
	return nil
}

// songDetail is the JSON shape of a single track in Netease's search,
// playlist, and album responses.
type songDetail struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Dt   int    `json:"dt"`
	Ar   []struct {
		Name string `json:"name"`
		ID   int64  `json:"id"`
	} `json:"ar"`
	Al struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		PicURL string `json:"picUrl"`
	} `json:"al"`
	songQualities
}

func (s songDetail) toMusic() models.Music {
	m := models.Music{
		Server:    models.ServerNetease,
		Identity:  strconv.FormatInt(s.ID, 10),
		Name:      s.Name,
		Qualities: s.songQualities.toQualities(),
	}
	if s.Dt > 0 {
		seconds := s.Dt / 1000
		m.Duration = &seconds
	}
	for _, ar := range s.Ar {
		id := strconv.FormatInt(ar.ID, 10)
		m.Artists = append(m.Artists, models.Artist{Name: ar.Name, ID: &id})
	}
	if s.Al.Name != "" {
		m.Album = &s.Al.Name
	}
	if s.Al.ID != 0 {
		albumID := strconv.FormatInt(s.Al.ID, 10)
		m.AlbumID = &albumID
	}
	if s.Al.PicURL != "" {
		m.Cover = &s.Al.PicURL
	}
	return m
}

type searchResponse struct {
	Result struct {
		Songs []songDetail `json:"songs"`
	} `json:"result"`
}

// SearchMusic queries Netease's cloudsearch endpoint for tracks (type=1).
func (a *Adapter) SearchMusic(ctx context.Context, query string, page, size int) ([]models.Music, error) {
	payload := map[string]any{
		"s": query, "type": 1, "limit": size, "offset": (page - 1) * size,
	}

	var resp searchResponse
	if err := a.weapiPost(ctx, "/weapi/cloudsearch/get", payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: search_music: %v", shared.ErrProvider, err)
	}

	musics := make([]models.Music, 0, len(resp.Result.Songs))
	for _, s := range resp.Result.Songs {
		musics = append(musics, s.toMusic())
	}
	return musics, nil
}

type playlistBrief struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	CoverImgURL string `json:"coverImgUrl"`
	Description string `json:"description"`
	Creator     struct {
		Nickname string `json:"nickname"`
		UserID   int64  `json:"userId"`
	} `json:"creator"`
	TrackCount int `json:"trackCount"`
	PlayCount  int `json:"playCount"`
}

func (p playlistBrief) toPlaylist() models.Playlist {
	server := models.ServerNetease
	pl := models.Playlist{
		Server:   &server,
		Type:     models.PlaylistTypeUserPlaylist,
		Identity: strconv.FormatInt(p.ID, 10),
		Name:     p.Name,
	}
	if p.CoverImgURL != "" {
		pl.Cover = &p.CoverImgURL
	}
	if p.Description != "" {
		pl.Summary = &p.Description
	}
	if p.Creator.Nickname != "" {
		pl.Creator = &p.Creator.Nickname
	}
	if p.Creator.UserID != 0 {
		creatorID := strconv.FormatInt(p.Creator.UserID, 10)
		pl.CreatorID = &creatorID
	}
	if p.TrackCount != 0 {
		pl.MusicNum = &p.TrackCount
	}
	if p.PlayCount != 0 {
		pl.PlayTime = &p.PlayCount
	}
	return pl
}

type searchPlaylistResponse struct {
	Result struct {
		Playlists []playlistBrief `json:"playlists"`
	} `json:"result"`
}

// SearchPlaylist queries Netease's cloudsearch endpoint for playlists (type=1000).
func (a *Adapter) SearchPlaylist(ctx context.Context, query string, page, size int) ([]models.Playlist, error) {
	payload := map[string]any{
		"s": query, "type": 1000, "limit": size, "offset": (page - 1) * size,
	}

	var resp searchPlaylistResponse
	if err := a.weapiPost(ctx, "/weapi/cloudsearch/get", payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: search_playlist: %v", shared.ErrProvider, err)
	}

	playlists := make([]models.Playlist, 0, len(resp.Result.Playlists))
	for _, p := range resp.Result.Playlists {
		playlists = append(playlists, p.toPlaylist())
	}
	return playlists, nil
}

type playlistDetailResponse struct {
	Playlist struct {
		Tracks []songDetail `json:"tracks"`
	} `json:"playlist"`
}

// FetchPlaylistTracks returns a page of a Netease playlist's tracks.
func (a *Adapter) FetchPlaylistTracks(ctx context.Context, playlistIdentity string, page, size int) ([]models.Music, error) {
	payload := map[string]any{"id": playlistIdentity, "n": 100000}

	var resp playlistDetailResponse
	if err := a.weapiPost(ctx, "/weapi/v3/playlist/detail", payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: fetch_playlist_tracks: %v", shared.ErrProvider, err)
	}

	tracks := paginate(resp.Playlist.Tracks, page, size)
	musics := make([]models.Music, 0, len(tracks))
	for _, t := range tracks {
		musics = append(musics, t.toMusic())
	}
	return musics, nil
}

type albumResponse struct {
	Album struct {
		Name   string `json:"name"`
		PicURL string `json:"picUrl"`
	} `json:"album"`
	Songs []songDetail `json:"songs"`
}

// FetchAlbum returns the album's playlist wrapper (page 1 only) and a page
// of tracks.
func (a *Adapter) FetchAlbum(ctx context.Context, albumID, albumName string, page, size int) (*models.Playlist, []models.Music, error) {
	var resp albumResponse
	if err := a.weapiPost(ctx, "/weapi/v1/album/"+albumID, map[string]any{}, &resp); err != nil {
		return nil, nil, fmt.Errorf("%w: fetch_album: %v", shared.ErrProvider, err)
	}

	tracks := paginate(resp.Songs, page, size)
	musics := make([]models.Music, 0, len(tracks))
	for _, t := range tracks {
		musics = append(musics, t.toMusic())
	}

	var playlist *models.Playlist
	if page == 1 {
		server := models.ServerNetease
		name := resp.Album.Name
		if name == "" {
			name = albumName
		}
		p := models.Playlist{
			Server:   &server,
			Type:     models.PlaylistTypeAlbum,
			Identity: albumID,
			Name:     name,
		}
		if resp.Album.PicURL != "" {
			p.Cover = &resp.Album.PicURL
		}
		n := len(resp.Songs)
		p.MusicNum = &n
		playlist = &p
	}

	return playlist, musics, nil
}

type lyricResponse struct {
	Lrc struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
	TLyric struct {
		Lyric string `json:"lyric"`
	} `json:"tlyric"`
	Yrc struct {
		Lyric string `json:"lyric"`
	} `json:"yrc"`
}

// FetchLyric returns LRC text for a Netease track, optionally merging a
// translated line (in parens) after each base line when withTranslation is
// set and a translation track is present.
func (a *Adapter) FetchLyric(ctx context.Context, musicIdentity string, withTranslation bool) (string, error) {
	payload := map[string]any{"id": musicIdentity, "lv": -1, "tv": -1, "yv": -1}

	var resp lyricResponse
	if err := a.weapiPost(ctx, "/weapi/song/lyric", payload, &resp); err != nil {
		return "", fmt.Errorf("%w: fetch_lyric: %v", shared.ErrProvider, err)
	}

	var base []lyricLine
	if resp.Lrc.Lyric != "" {
		base = parseLRC(resp.Lrc.Lyric)
	} else if resp.Yrc.Lyric != "" {
		base = parseYRC(resp.Yrc.Lyric)
	}

	if withTranslation && resp.TLyric.Lyric != "" {
		base = mergeTranslation(base, parseLRC(resp.TLyric.Lyric))
	}

	return renderLRC(base), nil
}

type toplistResponse struct {
	List []playlistBrief `json:"list"`
}

// FetchCharts returns Netease's chart catalogue, partitioned into the fixed
// nine-bucket classifier (§4.2.2).
func (a *Adapter) FetchCharts(ctx context.Context) (models.ServerChartCollection, error) {
	var resp toplistResponse
	if err := a.weapiPost(ctx, "/weapi/toplist", map[string]any{}, &resp); err != nil {
		return models.ServerChartCollection{}, fmt.Errorf("%w: fetch_charts: %v", shared.ErrProvider, err)
	}

	groups := map[string]*models.ChartGroup{}
	var order []string
	for _, p := range resp.List {
		groupName := chartGroupOf(p.Name)
		g, ok := groups[groupName]
		if !ok {
			g = &models.ChartGroup{Name: groupName}
			groups[groupName] = g
			order = append(order, groupName)
		}
		chart := models.Chart{
			Server:      models.ServerNetease,
			Identity:    strconv.FormatInt(p.ID, 10),
			Name:        p.Name,
			Description: p.Description,
		}
		if p.CoverImgURL != "" {
			chart.Cover = &p.CoverImgURL
		}
		g.Charts = append(g.Charts, chart)
	}

	collection := models.ServerChartCollection{Server: models.ServerNetease}
	for _, name := range order {
		collection.Groups = append(collection.Groups, *groups[name])
	}
	return collection, nil
}

type chartTracksResponse struct {
	Playlist struct {
		Tracks []songDetail `json:"tracks"`
	} `json:"playlist"`
}

// FetchChartTracks returns a page of tracks on a Netease chart — charts are
// themselves playlists on the Netease side, so this reuses playlist/detail.
func (a *Adapter) FetchChartTracks(ctx context.Context, chartIdentity string, page, size int) ([]models.Music, error) {
	payload := map[string]any{"id": chartIdentity, "n": 100000}

	var resp chartTracksResponse
	if err := a.weapiPost(ctx, "/weapi/v3/playlist/detail", payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: fetch_chart_tracks: %v", shared.ErrProvider, err)
	}

	tracks := paginate(resp.Playlist.Tracks, page, size)
	musics := make([]models.Music, 0, len(tracks))
	for _, t := range tracks {
		musics = append(musics, t.toMusic())
	}
	return musics, nil
}

type tagsResponse struct {
	Categories map[string]string `json:"categories"`
	Sub        []struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Category int    `json:"category"`
	} `json:"sub"`
}

// FetchPlaylistTags returns Netease's playlist tag catalogue, grouped by its
// numeric category index (0..=4), stringified.
func (a *Adapter) FetchPlaylistTags(ctx context.Context) (models.ServerTagCollection, error) {
	var resp tagsResponse
	if err := a.weapiPost(ctx, "/weapi/playlist/catalogue", map[string]any{}, &resp); err != nil {
		return models.ServerTagCollection{}, fmt.Errorf("%w: fetch_playlist_tags: %v", shared.ErrProvider, err)
	}

	byCategory := map[int]*models.TagGroup{}
	var order []int
	for _, tag := range resp.Sub {
		g, ok := byCategory[tag.Category]
		if !ok {
			g = &models.TagGroup{Category: strconv.Itoa(tag.Category)}
			byCategory[tag.Category] = g
			order = append(order, tag.Category)
		}
		g.Tags = append(g.Tags, models.Tag{
			Server:   models.ServerNetease,
			Identity: strconv.FormatInt(tag.ID, 10),
			Name:     tag.Name,
		})
	}

	collection := models.ServerTagCollection{Server: models.ServerNetease}
	for _, category := range order {
		collection.Groups = append(collection.Groups, *byCategory[category])
	}
	return collection, nil
}

type tagPlaylistsResponse struct {
	Playlists []playlistBrief `json:"playlists"`
}

// FetchTagPlaylists returns a page of playlists carrying tagIdentity.
func (a *Adapter) FetchTagPlaylists(ctx context.Context, tagIdentity string, order providers.TagOrder, page, size int) ([]models.Playlist, error) {
	sort := 0
	if order == providers.TagOrderNew {
		sort = 3
	}
	payload := map[string]any{
		"cat": tagIdentity, "order": sort, "limit": size, "offset": (page - 1) * size,
	}

	var resp tagPlaylistsResponse
	if err := a.weapiPost(ctx, "/weapi/playlist/list", payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: fetch_tag_playlists: %v", shared.ErrProvider, err)
	}

	playlists := make([]models.Playlist, 0, len(resp.Playlists))
	for _, p := range resp.Playlists {
		playlists = append(playlists, p.toPlaylist())
	}
	return playlists, nil
}

type playlistNameResponse struct {
	Playlist struct {
		Name        string `json:"name"`
		CoverImgURL string `json:"coverImgUrl"`
	} `json:"playlist"`
}

// PlaylistFromShare resolves a pasted Netease share link into its playlist.
func (a *Adapter) PlaylistFromShare(ctx context.Context, shareText string) (models.Playlist, error) {
	id, ok := extractShareID(shareText)
	if !ok {
		return models.Playlist{}, fmt.Errorf("%w: no netease id= parameter found in share text", shared.ErrDecode)
	}

	var resp playlistNameResponse
	if err := a.weapiPost(ctx, "/weapi/v3/playlist/detail", map[string]any{"id": id, "n": 0}, &resp); err != nil {
		return models.Playlist{}, fmt.Errorf("%w: playlist_from_share: %v", shared.ErrProvider, err)
	}

	server := models.ServerNetease
	pl := models.Playlist{
		Server:   &server,
		Type:     models.PlaylistTypeUserPlaylist,
		Identity: id,
		Name:     resp.Playlist.Name,
	}
	if resp.Playlist.CoverImgURL != "" {
		pl.Cover = &resp.Playlist.CoverImgURL
	}
	return pl, nil
}

// paginate applies best-effort page/size slicing to an already-fetched full
// list, matching providers whose detail endpoints return everything at once.
func paginate(tracks []songDetail, page, size int) []songDetail {
	start := (page - 1) * size
	if start < 0 || start >= len(tracks) {
		return nil
	}
	end := start + size
	if end > len(tracks) {
		end = len(tracks)
	}
	return tracks[start:end]
}

var _ providers.MusicProvider = (*Adapter)(nil)
