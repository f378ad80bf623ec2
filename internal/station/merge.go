package station

import (
	"fmt"
	"math"

	"fmradio/internal/tuner"
)

// Merge folds a scan result into the store and returns how many valid
// stations the scan found. Non-favourite stations missing from found are
// deleted; found stations not yet stored are inserted; favourites are never
// deleted or modified. With flush set, every non-favourite is cleared first.
// Merging the same result twice leaves the store unchanged the second time.
func Merge(store Store, found []tuner.Frequency, band tuner.Band, flush bool) (int, error) {
	list, err := store.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list stations: %w", err)
	}

	inScan := make(map[tuner.Frequency]bool, len(found))
	for _, f := range found {
		if band.Contains(f) {
			inScan[f] = true
		}
	}

	stored := make(map[tuner.Frequency]Station, len(list))
	for _, s := range list {
		if s.Favorite {
			stored[s.Frequency] = s
			continue
		}
		if flush || !inScan[s.Frequency] {
			if err := store.Delete(s.Frequency); err != nil {
				return 0, fmt.Errorf("failed to delete %s: %w", s.Frequency, err)
			}
			continue
		}
		stored[s.Frequency] = s
	}

	count := 0
	for _, f := range found {
		if !band.Contains(f) {
			continue
		}
		count++
		if _, ok := stored[f]; ok {
			continue
		}
		s := Station{Frequency: f}
		if err := store.Upsert(s); err != nil {
			return count, fmt.Errorf("failed to insert %s: %w", f, err)
		}
		stored[f] = s
	}
	return count, nil
}

// Coordinates is a WGS84 position in degrees.
type Coordinates struct {
	Latitude  float64 `yaml:"lat" json:"lat"`
	Longitude float64 `yaml:"lon" json:"lon"`
}

// FlushDistance is 100 miles. Moving further than this since the last scan
// means the stored non-favourite stations belong to another region.
const FlushDistance = 160934.4

const earthRadius = 6371000.0

// Distance is the great-circle distance between a and b in meters.
func Distance(a, b Coordinates) float64 {
	rad := math.Pi / 180
	lat1, lat2 := a.Latitude*rad, b.Latitude*rad
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

// DistanceExceeded reports whether cur is more than FlushDistance from prev.
func DistanceExceeded(prev, cur Coordinates) bool {
	return Distance(prev, cur) > FlushDistance
}
