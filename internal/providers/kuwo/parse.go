// Package kuwo implements the Kuwo music-service adapter: quirky single-quoted
// JSON, packed quality strings, and HTML-entity-laden metadata.
package kuwo

import (
	"html"
	"strconv"
	"strings"

	"github.com/canxin121/musicagg/internal/models"
)

// qualityBlacklist excludes formats Kuwo exposes but that this library
// refuses to surface as a selectable quality (§4.2.1).
var qualityBlacklist = map[string]bool{
	"mflac": true,
	"zp":    true,
	"ogg":   true,
	"aac":   true,
}

// normalizeQuotes rewrites Kuwo's single-quoted JSON strings into standard
// double-quoted JSON so encoding/json can decode the payload.
func normalizeQuotes(raw string) string {
	return strings.ReplaceAll(raw, "'", `"`)
}

// decodeEntities collapses the small set of HTML entities Kuwo leaves
// un-escaped in track/artist names.
func decodeEntities(s string) string {
	replacer := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&quot;", `"`,
		"&lt;", "<",
		"&gt;", ">",
		"&apos;", "'",
		"&#039;", "'",
	)
	return html.UnescapeString(replacer.Replace(s))
}

// splitArtists splits Kuwo's "&"-joined compound artist field into ordered
// Artist records.
func splitArtists(field string) []models.Artist {
	if field == "" {
		return nil
	}
	parts := strings.Split(decodeEntities(field), "&")
	artists := make([]models.Artist, 0, len(parts))
	for _, p := range parts {
		name := strings.TrimSpace(p)
		if name == "" {
			continue
		}
		artists = append(artists, models.Artist{Name: name})
	}
	return artists
}

// parseMinfo parses Kuwo's packed MINFO quality string, e.g.
// "level:h,bitrate:320,format:mp3,size:unknown;level:l,bitrate:128,format:mp3,size:unknown;"
// into a blacklist-filtered, descending-sorted Quality list.
func parseMinfo(minfo string) []models.Quality {
	var qualities []models.Quality
	for _, entry := range strings.Split(minfo, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := map[string]string{}
		for _, kv := range strings.Split(entry, ",") {
			parts := strings.SplitN(kv, ":", 2)
			if len(parts) != 2 {
				continue
			}
			fields[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
		format := fields["format"]
		if qualityBlacklist[strings.ToLower(format)] {
			continue
		}
		bitrate := fields["bitrate"]
		size := fields["size"]
		q := models.Quality{Summary: bitrate + "k" + format}
		if bitrate != "" {
			q.Bitrate = &bitrate
		}
		if format != "" {
			q.Format = &format
		}
		if size != "" {
			q.Size = &size
		}
		qualities = append(qualities, q)
	}
	models.SortQualitiesDescending(qualities)
	return qualities
}

// formatsTagBitrate maps a Kuwo "formats" tag to its representative bitrate,
// used when a track lacks MINFO and only carries the tag list.
var formatsTagBitrate = map[string]struct {
	bitrate string
	format  string
}{
	"HIRFLAC": {"2000", "flac"},
	"ALFLAC":  {"1000", "flac"},
	"MP3H":    {"320", "mp3"},
	"MP3128":  {"128", "mp3"},
}

// parseFormatsTag parses Kuwo's "formats" tag list (comma-separated tokens
// such as "HIRFLAC,ALFLAC,MP3H,MP3128") into a blacklist-filtered,
// descending-sorted Quality list. Used as a fallback when MINFO is absent.
func parseFormatsTag(formats string) []models.Quality {
	var qualities []models.Quality
	for _, tok := range strings.Split(formats, ",") {
		tok = strings.TrimSpace(tok)
		info, ok := formatsTagBitrate[tok]
		if !ok {
			continue
		}
		if qualityBlacklist[info.format] {
			continue
		}
		bitrate, format := info.bitrate, info.format
		qualities = append(qualities, models.Quality{
			Summary: bitrate + "k" + format,
			Bitrate: &bitrate,
			Format:  &format,
		})
	}
	models.SortQualitiesDescending(qualities)
	return qualities
}

// extractPlaylistShareID locates the substring "playlist_detail/" in
// shareText and returns the identifier up to the next "?" or "&", or the end
// of the string.
func extractPlaylistShareID(shareText string) (string, bool) {
	const marker = "playlist_detail/"
	idx := strings.Index(shareText, marker)
	if idx < 0 {
		return "", false
	}
	rest := shareText[idx+len(marker):]
	if q := strings.IndexAny(rest, "?&"); q >= 0 {
		rest = rest[:q]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}
	return rest, true
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
