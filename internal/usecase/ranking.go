package usecase

import (
	"math"
	"sort"
	"strconv"

	"places-bot/internal/domain"
)

const (
	earthRadiusKm = 6371
	pageSize      = 5
)

// RankedPlace pairs a place with its great-circle distance from the
// reference point, in kilometers. Distance is +Inf when the stored
// geometry could not be parsed; such records sort after every
// parseable one instead of blocking the rest.
type RankedPlace struct {
	Place    domain.Place
	Distance float64
}

// RankByDistance orders places by ascending distance from ref. Ties and
// unparseable records keep their input order.
func RankByDistance(ref domain.GeoPoint, places []domain.Place) []RankedPlace {
	ranked := make([]RankedPlace, 0, len(places))
	for _, p := range places {
		d := math.Inf(1)
		if pt, ok := p.Geometry.Resolve(); ok {
			d = haversineKm(ref, pt)
		}
		ranked = append(ranked, RankedPlace{Place: p, Distance: d})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Distance < ranked[j].Distance
	})
	return ranked
}

// PageOf returns the window at the zero-based page index and whether a
// further non-empty page exists. An index past the end yields an empty
// slice.
func PageOf(ranked []RankedPlace, page int) (items []RankedPlace, hasMore bool) {
	if page < 0 {
		return nil, false
	}
	start := page * pageSize
	if start >= len(ranked) {
		return nil, false
	}
	end := start + pageSize
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[start:end], end < len(ranked)
}

func haversineKm(a, b domain.GeoPoint) float64 {
	la1 := a.Lat * math.Pi / 180
	la2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(la1)*math.Cos(la2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// FormatDistance renders a ranked distance for display: one decimal in
// kilometers, "∞" for unparseable geometry.
func FormatDistance(km float64) string {
	if math.IsInf(km, 1) {
		return "∞"
	}
	return strconv.FormatFloat(km, 'f', 1, 64) + " km"
}
