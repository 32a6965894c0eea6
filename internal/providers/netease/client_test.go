package netease

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/canxin121/musicagg/internal/shared"
)

// routedRoundTripper dispatches canned JSON bodies by URL-path substring.
type routedRoundTripper struct {
	routes map[string]string
}

func (r *routedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	url := req.URL.String()
	for substr, body := range r.routes {
		if strings.Contains(url, substr) {
			return &http.Response{
				StatusCode: 200,
				Body:       io.NopCloser(strings.NewReader(body)),
				Header:     make(http.Header),
			}, nil
		}
	}
	return &http.Response{
		StatusCode: 404,
		Body:       io.NopCloser(strings.NewReader("{}")),
		Header:     make(http.Header),
	}, nil
}

func newTestAdapter(routes map[string]string) *Adapter {
	client := &http.Client{Transport: &routedRoundTripper{routes: routes}}
	cfg := shared.NeteaseConfig{BaseURL: "http://music.163.com", UserAgent: "test-agent"}
	return New(cfg, client)
}

func TestSearchMusicParsesTracksAndQualities(t *testing.T) {
	routes := map[string]string{
		"cloudsearch": `{"result": {"songs": [
			{"id": 123, "name": "Lemon", "dt": 240000,
			 "ar": [{"name": "米津玄师", "id": 456}],
			 "al": {"id": 789, "name": "Lemon", "picUrl": "http://example.com/cover.jpg"},
			 "l": {"br": 128000, "size": 1000}, "h": {"br": 320000, "size": 2000}}
		]}}`,
	}
	a := newTestAdapter(routes)

	musics, err := a.SearchMusic(context.Background(), "Lemon", 1, 10)
	if err != nil {
		t.Fatalf("SearchMusic: %v", err)
	}
	if len(musics) != 1 {
		t.Fatalf("expected 1 music, got %d", len(musics))
	}
	m := musics[0]
	if m.Identity != "123" || m.Name != "Lemon" {
		t.Errorf("unexpected music: %+v", m)
	}
	if m.Duration == nil || *m.Duration != 240 {
		t.Errorf("expected duration 240s, got %+v", m.Duration)
	}
	if len(m.Artists) != 1 || m.Artists[0].Name != "米津玄师" {
		t.Errorf("unexpected artists: %+v", m.Artists)
	}
	if m.Cover == nil || *m.Cover != "http://example.com/cover.jpg" {
		t.Errorf("unexpected cover: %+v", m.Cover)
	}
	if len(m.Qualities) != 2 || m.Qualities[0].Summary != "exhigh" || m.Qualities[1].Summary != "standard" {
		t.Errorf("expected exhigh then standard, got %+v", m.Qualities)
	}
}

func TestSearchPlaylistParsesBriefs(t *testing.T) {
	routes := map[string]string{
		"cloudsearch": `{"result": {"playlists": [
			{"id": 111, "name": "My Mix", "coverImgUrl": "http://example.com/p.jpg",
			 "creator": {"nickname": "alice", "userId": 5}, "trackCount": 20}
		]}}`,
	}
	a := newTestAdapter(routes)

	playlists, err := a.SearchPlaylist(context.Background(), "mix", 1, 10)
	if err != nil {
		t.Fatalf("SearchPlaylist: %v", err)
	}
	if len(playlists) != 1 {
		t.Fatalf("expected 1 playlist, got %d", len(playlists))
	}
	p := playlists[0]
	if p.Identity != "111" || p.Name != "My Mix" {
		t.Errorf("unexpected playlist: %+v", p)
	}
	if p.Creator == nil || *p.Creator != "alice" {
		t.Errorf("unexpected creator: %+v", p.Creator)
	}
	if p.MusicNum == nil || *p.MusicNum != 20 {
		t.Errorf("unexpected music num: %+v", p.MusicNum)
	}
}

func TestFetchPlaylistTracksPaginates(t *testing.T) {
	routes := map[string]string{
		"playlist/detail": `{"playlist": {"tracks": [
			{"id": 1, "name": "a"}, {"id": 2, "name": "b"}, {"id": 3, "name": "c"}
		]}}`,
	}
	a := newTestAdapter(routes)

	page1, err := a.FetchPlaylistTracks(context.Background(), "999", 1, 2)
	if err != nil {
		t.Fatalf("FetchPlaylistTracks: %v", err)
	}
	if len(page1) != 2 || page1[0].Name != "a" || page1[1].Name != "b" {
		t.Errorf("unexpected page1: %+v", page1)
	}

	page2, err := a.FetchPlaylistTracks(context.Background(), "999", 2, 2)
	if err != nil {
		t.Fatalf("FetchPlaylistTracks: %v", err)
	}
	if len(page2) != 1 || page2[0].Name != "c" {
		t.Errorf("unexpected page2: %+v", page2)
	}
}

func TestFetchAlbumReturnsWrapperOnlyOnFirstPage(t *testing.T) {
	routes := map[string]string{
		"album/42": `{"album": {"name": "Best Of", "picUrl": "http://example.com/a.jpg"},
			"songs": [{"id": 1, "name": "a"}, {"id": 2, "name": "b"}]}`,
	}
	a := newTestAdapter(routes)

	playlist, musics, err := a.FetchAlbum(context.Background(), "42", "fallback", 1, 10)
	if err != nil {
		t.Fatalf("FetchAlbum: %v", err)
	}
	if playlist == nil || playlist.Name != "Best Of" {
		t.Errorf("expected playlist wrapper, got %+v", playlist)
	}
	if len(musics) != 2 {
		t.Errorf("expected 2 tracks, got %d", len(musics))
	}

	playlist2, _, err := a.FetchAlbum(context.Background(), "42", "fallback", 2, 10)
	if err != nil {
		t.Fatalf("FetchAlbum page 2: %v", err)
	}
	if playlist2 != nil {
		t.Errorf("expected nil playlist wrapper on page 2, got %+v", playlist2)
	}
}

func TestFetchLyricMergesTranslation(t *testing.T) {
	routes := map[string]string{
		"song/lyric": `{
			"lrc": {"lyric": "[00:01.00]hello\n[00:05.00]world"},
			"tlyric": {"lyric": "[00:01.00]你好\n[00:05.00]世界"}
		}`,
	}
	a := newTestAdapter(routes)

	lrc, err := a.FetchLyric(context.Background(), "123", true)
	if err != nil {
		t.Fatalf("FetchLyric: %v", err)
	}
	if !strings.Contains(lrc, "hello (你好)") {
		t.Errorf("expected merged translation, got %q", lrc)
	}
	if !strings.Contains(lrc, "world (世界)") {
		t.Errorf("expected merged translation, got %q", lrc)
	}
}

func TestFetchLyricWithoutTranslation(t *testing.T) {
	routes := map[string]string{
		"song/lyric": `{"lrc": {"lyric": "[00:01.00]hello"}, "tlyric": {"lyric": "[00:01.00]你好"}}`,
	}
	a := newTestAdapter(routes)

	lrc, err := a.FetchLyric(context.Background(), "123", false)
	if err != nil {
		t.Fatalf("FetchLyric: %v", err)
	}
	if strings.Contains(lrc, "你好") {
		t.Errorf("did not expect translation merged when withTranslation is false, got %q", lrc)
	}
}

func TestFetchChartsGroupsByClassifier(t *testing.T) {
	routes := map[string]string{
		"toplist": `{"list": [
			{"id": 1, "name": "飙升榜"},
			{"id": 2, "name": "摇滚榜"},
			{"id": 3, "name": "神秘榜"}
		]}`,
	}
	a := newTestAdapter(routes)

	collection, err := a.FetchCharts(context.Background())
	if err != nil {
		t.Fatalf("FetchCharts: %v", err)
	}
	if len(collection.Groups) != 3 {
		t.Fatalf("expected 3 groups, got %d: %+v", len(collection.Groups), collection.Groups)
	}
	names := map[string]bool{}
	for _, g := range collection.Groups {
		names[g.Name] = true
	}
	if !names["官方榜"] || !names["曲风榜"] || !names["其他榜"] {
		t.Errorf("unexpected group names: %+v", names)
	}
}

func TestFetchPlaylistTagsGroupsByCategory(t *testing.T) {
	routes := map[string]string{
		"playlist/catalogue": `{"sub": [
			{"id": 1, "name": "华语", "category": 0},
			{"id": 2, "name": "摇滚", "category": 1}
		]}`,
	}
	a := newTestAdapter(routes)

	collection, err := a.FetchPlaylistTags(context.Background())
	if err != nil {
		t.Fatalf("FetchPlaylistTags: %v", err)
	}
	if len(collection.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(collection.Groups))
	}
}

func TestPlaylistFromShareResolvesID(t *testing.T) {
	routes := map[string]string{
		"playlist/detail": `{"playlist": {"name": "Shared Mix", "coverImgUrl": "http://example.com/s.jpg"}}`,
	}
	a := newTestAdapter(routes)

	shareText := "check this out https://music.163.com/playlist?id=8675309&userid=1 enjoy"
	pl, err := a.PlaylistFromShare(context.Background(), shareText)
	if err != nil {
		t.Fatalf("PlaylistFromShare: %v", err)
	}
	if pl.Identity != "8675309" || pl.Name != "Shared Mix" {
		t.Errorf("unexpected playlist: %+v", pl)
	}
}

func TestMatches(t *testing.T) {
	a := newTestAdapter(nil)
	if !a.Matches("https://music.163.com/playlist?id=1") {
		t.Error("expected netease URL to match")
	}
	if a.Matches("https://m.kuwo.cn/newh5app/playlist_detail/123") {
		t.Error("expected kuwo URL not to match")
	}
}
