package netease

import "strings"

// chartGroupOf classifies a Netease toplist name into one of the nine fixed
// Chinese-named buckets (§4.2.2). Unmatched names fall into 其他榜.
func chartGroupOf(name string) string {
	switch {
	case containsAny(name, "官方", "飙升", "新歌", "热歌", "原创"):
		return "官方榜"
	case containsAny(name, "精选"):
		return "精选榜"
	case containsAny(name, "摇滚", "电子", "民谣", "说唱", "古典", "爵士", "乡村"):
		return "曲风榜"
	case containsAny(name, "UK", "美国", "英国", "日本", "韩国", "中国台湾", "全球", "Billboard", "iTunes", "Beatport"):
		return "全球榜"
	case containsAny(name, "粤语", "日语", "韩语", "法语", "语"):
		return "语言榜"
	case containsAny(name, "ACG", "动漫", "二次元", "游戏"):
		return "ACG榜"
	case containsAny(name, "特色", "主题"):
		return "特色榜"
	case containsAny(name, "车载", "车主", "DJ"):
		return "车主榜"
	default:
		return "其他榜"
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
