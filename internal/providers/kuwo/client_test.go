package kuwo

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/canxin121/musicagg/internal/shared"
)

// routedRoundTripper dispatches canned JSON bodies by URL substring, so a
// single test can exercise both a primary call and its cover-fetch fan-out
// without the body-already-consumed problem of a single fixed response.
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
	cfg := shared.KuwoConfig{BaseURL: "http://www.kuwo.cn", UserAgent: "test-agent"}
	return New(cfg, client, 4)
}

func TestSearchMusicParsesTracksAndCover(t *testing.T) {
	routes := map[string]string{
		"searchMusicBykeyWord": `{'data': {'list': [
			{'rid': '123', 'name': 'Lemon', 'artist': '米津玄师', 'album': 'Lemon', 'albumid': '456', 'duration': '240', 'minfo': 'level:h,bitrate:320,format:mp3,size:8MB;'}
		]}}`,
		"music/picture": `{'data': {'pic': 'http://example.com/cover.jpg'}}`,
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
	if len(m.Artists) != 1 || m.Artists[0].Name != "米津玄师" {
		t.Errorf("unexpected artists: %+v", m.Artists)
	}
	if m.Cover == nil || *m.Cover != "http://example.com/cover.jpg" {
		t.Errorf("expected cover to be fetched, got %+v", m.Cover)
	}
	if len(m.Qualities) != 1 || *m.Qualities[0].Bitrate != "320" {
		t.Errorf("unexpected qualities: %+v", m.Qualities)
	}
}

func TestPlaylistFromShareResolvesID(t *testing.T) {
	routes := map[string]string{
		"playListInfo": `{'data': {'name': 'My Playlist', 'pic': 'http://example.com/p.jpg'}}`,
	}
	a := newTestAdapter(routes)

	shareText := "https://m.kuwo.cn/newh5app/playlist_detail/1312045587?from=ip&t=qqfriend"
	pl, err := a.PlaylistFromShare(context.Background(), shareText)
	if err != nil {
		t.Fatalf("PlaylistFromShare: %v", err)
	}
	if pl.Identity != "1312045587" {
		t.Errorf("expected identity %q, got %q", "1312045587", pl.Identity)
	}
	if pl.Server == nil || *pl.Server != "kuwo" {
		t.Errorf("expected server kuwo, got %+v", pl.Server)
	}
}

func TestMatches(t *testing.T) {
	a := newTestAdapter(nil)
	if !a.Matches("https://m.kuwo.cn/newh5app/playlist_detail/123") {
		t.Error("expected kuwo URL to match")
	}
	if a.Matches("https://music.163.com/playlist?id=1") {
		t.Error("expected netease URL not to match")
	}
}

func TestFetchLyricFormatsTimestamps(t *testing.T) {
	routes := map[string]string{
		"lyric/lyric": `{'data': {'lrclist': [
			{'time': '0', 'lineLyric': 'line one'},
			{'time': '65.5', 'lineLyric': 'line two'}
		]}}`,
	}
	a := newTestAdapter(routes)

	lrc, err := a.FetchLyric(context.Background(), "123", false)
	if err != nil {
		t.Fatalf("FetchLyric: %v", err)
	}
	if !strings.Contains(lrc, "[00:00.00] line one") {
		t.Errorf("expected formatted first line, got %q", lrc)
	}
	if !strings.Contains(lrc, "[01:05.50] line two") {
		t.Errorf("expected formatted second line, got %q", lrc)
	}
}
