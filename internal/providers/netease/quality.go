package netease

import (
	"strconv"

	"github.com/canxin121/musicagg/internal/models"
)

// qualityTier is one of the five bitrate sub-objects Netease attaches to a
// song record; present/absent membership (not a declared level field) is
// what determines which qualities exist for a track.
type qualityTier struct {
	Bitrate int    `json:"br"`
	Size    int    `json:"size"`
}

// songQualities holds the raw h/m/l/sq/hr sub-objects of a song record.
type songQualities struct {
	L  *qualityTier `json:"l"`
	M  *qualityTier `json:"m"`
	H  *qualityTier `json:"h"`
	SQ *qualityTier `json:"sq"`
	HR *qualityTier `json:"hr"`
}

// toQualities derives the Quality list in highest-first order
// (hires, lossless, exhigh, higher, standard), per §4.2.2.
func (q songQualities) toQualities() []models.Quality {
	var qualities []models.Quality
	add := func(summary string, t *qualityTier) {
		if t == nil {
			return
		}
		bitrate := strconv.Itoa(t.Bitrate / 1000)
		size := strconv.Itoa(t.Size)
		qualities = append(qualities, models.Quality{
			Summary: summary,
			Bitrate: &bitrate,
			Size:    &size,
		})
	}
	// highest first: hires, lossless, exhigh, higher, standard
	add("hires", q.HR)
	add("lossless", q.SQ)
	add("exhigh", q.H)
	add("higher", q.M)
	add("standard", q.L)
	return qualities
}
