package netease

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// extractShareID finds the first URL in shareText and parses its "id" query
// parameter, per §6's "contains music.163.com -> id= query parameter out of
// the first URL found in the text".
func extractShareID(shareText string) (string, bool) {
	match := urlPattern.FindString(shareText)
	if match == "" {
		return "", false
	}
	match = strings.TrimRight(match, ")>\"'")

	u, err := url.Parse(match)
	if err != nil {
		return "", false
	}
	id := u.Query().Get("id")
	if id == "" {
		return "", false
	}
	return id, true
}

// lyricLine is one timestamped line after LRC and per-character fragments
// have both been normalised to a single start time.
type lyricLine struct {
	seconds float64
	text    string
}

var lrcTimestamp = regexp.MustCompile(`^\[(\d+):(\d+(?:\.\d+)?)\]`)

// parseLRC splits a raw LRC blob into timestamped lines, dropping metadata
// tags (e.g. "[ar:...]") that don't carry a numeric mm:ss timestamp.
func parseLRC(raw string) []lyricLine {
	var lines []lyricLine
	for _, line := range strings.Split(raw, "\n") {
		m := lrcTimestamp.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		minutes, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		secs, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		text := strings.TrimSpace(line[len(m[0]):])
		lines = append(lines, lyricLine{seconds: float64(minutes)*60 + secs, text: text})
	}
	return lines
}

// mergeTranslation appends, in parens, to each base line the first
// translation line whose timestamp lies within half a second of it,
// mirroring the original's tlyric merge.
func mergeTranslation(base, translation []lyricLine) []lyricLine {
	if len(translation) == 0 {
		return base
	}
	merged := make([]lyricLine, len(base))
	copy(merged, base)
	for i, line := range merged {
		for _, t := range translation {
			if abs(t.seconds-line.seconds) < 0.5 && t.text != "" {
				merged[i].text = line.text + " (" + t.text + ")"
				break
			}
		}
	}
	return merged
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// yrcFragment is one per-character-timed word group in Netease's yrc
// response: {"t": start_ms, "c": [{"tx": "syllable"}, ...]}.
type yrcFragment struct {
	T int `json:"t"`
	C []struct {
		Tx string `json:"tx"`
	} `json:"c"`
}

// parseYRC converts per-character timing fragments to line-level lyricLines,
// collapsed to each fragment's start time, used as a fallback when a plain
// LRC blob isn't available (§6's "collapsed to the line's start time").
func parseYRC(raw string) []lyricLine {
	lines := strings.Split(raw, "\n")
	var out []lyricLine
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var frag yrcFragment
		if err := json.Unmarshal([]byte(line), &frag); err != nil {
			continue
		}
		var text strings.Builder
		for _, c := range frag.C {
			text.WriteString(c.Tx)
		}
		out = append(out, lyricLine{seconds: float64(frag.T) / 1000, text: text.String()})
	}
	return out
}

// renderLRC writes lines back out in "[mm:ss.xx] text" form, one per line.
func renderLRC(lines []lyricLine) string {
	var b strings.Builder
	for _, l := range lines {
		minutes := int(l.seconds) / 60
		secs := l.seconds - float64(minutes*60)
		b.WriteString("[")
		if minutes < 10 {
			b.WriteString("0")
		}
		b.WriteString(strconv.Itoa(minutes))
		b.WriteString(":")
		if secs < 10 {
			b.WriteString("0")
		}
		b.WriteString(strconv.FormatFloat(secs, 'f', 2, 64))
		b.WriteString("] ")
		b.WriteString(l.text)
		b.WriteString("\n")
	}
	return b.String()
}
