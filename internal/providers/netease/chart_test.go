package netease

import "testing"

func TestChartGroupOfClassifiesKnownBuckets(t *testing.T) {
	cases := map[string]string{
		"飙升榜":          "官方榜",
		"新歌榜":          "官方榜",
		"精选集":          "精选榜",
		"摇滚榜":          "曲风榜",
		"Billboard榜":   "全球榜",
		"粤语金曲榜":        "语言榜",
		"ACG音乐榜":       "ACG榜",
		"DJ车载榜":        "车主榜",
		"全然无关的名字":      "其他榜",
	}
	for name, want := range cases {
		if got := chartGroupOf(name); got != want {
			t.Errorf("chartGroupOf(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestContainsAny(t *testing.T) {
	if !containsAny("新歌热歌榜", "新歌") {
		t.Error("expected match")
	}
	if containsAny("完全不相关", "新歌", "热歌") {
		t.Error("expected no match")
	}
}
