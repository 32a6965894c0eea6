package netease

import "testing"

func TestToQualitiesOrdersHighestFirst(t *testing.T) {
	q := songQualities{
		L:  &qualityTier{Bitrate: 128000, Size: 1000},
		H:  &qualityTier{Bitrate: 320000, Size: 2000},
		HR: &qualityTier{Bitrate: 999000, Size: 3000},
	}
	qualities := q.toQualities()
	if len(qualities) != 3 {
		t.Fatalf("expected 3 qualities, got %d", len(qualities))
	}
	if qualities[0].Summary != "hires" || qualities[1].Summary != "exhigh" || qualities[2].Summary != "standard" {
		t.Errorf("unexpected order: %+v", qualities)
	}
	if *qualities[0].Bitrate != "999" {
		t.Errorf("expected bitrate in kbps, got %q", *qualities[0].Bitrate)
	}
}

func TestToQualitiesOmitsAbsentTiers(t *testing.T) {
	q := songQualities{M: &qualityTier{Bitrate: 192000, Size: 1500}}
	qualities := q.toQualities()
	if len(qualities) != 1 || qualities[0].Summary != "higher" {
		t.Errorf("expected only higher tier, got %+v", qualities)
	}
}

func TestToQualitiesEmptyWhenNoTiers(t *testing.T) {
	var q songQualities
	if got := q.toQualities(); got != nil {
		t.Errorf("expected nil qualities, got %+v", got)
	}
}
