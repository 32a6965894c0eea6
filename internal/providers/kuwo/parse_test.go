package kuwo

import "testing"

func TestNormalizeQuotes(t *testing.T) {
	in := `{'name': 'Lemon', 'artist': '米津玄师'}`
	want := `{"name": "Lemon", "artist": "米津玄师"}`
	if got := normalizeQuotes(in); got != want {
		t.Errorf("normalizeQuotes(%q) = %q, want %q", in, got, want)
	}
}

func TestDecodeEntities(t *testing.T) {
	cases := map[string]string{
		"Tom&nbsp;&amp;&nbsp;Jerry": "Tom & Jerry",
		"&quot;Lemon&quot;":         `"Lemon"`,
		"A&lt;B&gt;C":               "A<B>C",
		"Rock&apos;n&#039;Roll":     "Rock'n'Roll",
	}
	for in, want := range cases {
		if got := decodeEntities(in); got != want {
			t.Errorf("decodeEntities(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitArtists(t *testing.T) {
	artists := splitArtists("周杰伦&费玉清")
	if len(artists) != 2 {
		t.Fatalf("expected 2 artists, got %d", len(artists))
	}
	if artists[0].Name != "周杰伦" || artists[1].Name != "费玉清" {
		t.Errorf("unexpected artists: %+v", artists)
	}
}

func TestParseMinfoFiltersBlacklistAndSortsDescending(t *testing.T) {
	minfo := "level:h,bitrate:320,format:mp3,size:8.1MB;level:sq,bitrate:2000,format:mflac,size:40MB;level:l,bitrate:128,format:mp3,size:3.2MB;"
	qualities := parseMinfo(minfo)
	if len(qualities) != 2 {
		t.Fatalf("expected mflac entry filtered out, got %d qualities: %+v", len(qualities), qualities)
	}
	if *qualities[0].Bitrate != "320" || *qualities[1].Bitrate != "128" {
		t.Errorf("expected descending bitrate order, got %+v", qualities)
	}
}

func TestParseMinfoExcludesAllBlacklistedFormats(t *testing.T) {
	minfo := "level:h,bitrate:192,format:ogg,size:1MB;level:h,bitrate:192,format:aac,size:1MB;level:h,bitrate:192,format:zp,size:1MB;"
	qualities := parseMinfo(minfo)
	if len(qualities) != 0 {
		t.Errorf("expected all blacklisted formats filtered, got %+v", qualities)
	}
}

func TestParseFormatsTagFallback(t *testing.T) {
	qualities := parseFormatsTag("HIRFLAC,MP3H,MP3128")
	if len(qualities) != 3 {
		t.Fatalf("expected 3 qualities, got %d", len(qualities))
	}
	if *qualities[0].Format != "flac" {
		t.Errorf("expected highest-bitrate entry first, got %+v", qualities[0])
	}
}

func TestExtractPlaylistShareID(t *testing.T) {
	text := "https://m.kuwo.cn/newh5app/playlist_detail/1312045587?from=ip&t=qqfriend"
	id, ok := extractPlaylistShareID(text)
	if !ok {
		t.Fatal("expected share id to be found")
	}
	if id != "1312045587" {
		t.Errorf("expected id %q, got %q", "1312045587", id)
	}
}

func TestExtractPlaylistShareIDNoMarker(t *testing.T) {
	if _, ok := extractPlaylistShareID("https://example.com/not-kuwo"); ok {
		t.Error("expected no match")
	}
}
