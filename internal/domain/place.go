package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrPlaceNotFound is returned by datastore lookups for unknown identifiers.
var ErrPlaceNotFound = errors.New("domain: place not found")

// Vibe is the mood descriptor attached to a place.
type Vibe string

const (
	VibeLively    Vibe = "lively"
	VibePunk      Vibe = "punk"
	VibeHipster   Vibe = "hipster"
	VibeFamily    Vibe = "family"
	VibeLocal     Vibe = "local"
	VibeTouristic Vibe = "touristic"
	VibeLuxury    Vibe = "luxury"
	VibeRomantic  Vibe = "romantic"
)

// Vibes lists every vibe in keyboard order.
var Vibes = []Vibe{
	VibeLively, VibePunk, VibeHipster, VibeFamily,
	VibeLocal, VibeTouristic, VibeLuxury, VibeRomantic,
}

// ParseVibe reports whether s names a known vibe.
func ParseVibe(s string) (Vibe, bool) {
	for _, v := range Vibes {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// Category is the venue kind of a place.
type Category string

const (
	CategoryBar        Category = "bar"
	CategoryCafe       Category = "cafe"
	CategoryRestaurant Category = "restaurant"
	CategoryPub        Category = "pub"
	CategoryPizzeria   Category = "pizzeria"
	CategoryHookah     Category = "hookah"
	CategoryCoffeeShop Category = "coffee_shop"
)

// Categories lists every category in keyboard order.
var Categories = []Category{
	CategoryBar, CategoryCafe, CategoryRestaurant, CategoryPub,
	CategoryPizzeria, CategoryHookah, CategoryCoffeeShop,
}

// ParseCategory reports whether s names a known category.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// GeoPoint is a coordinate pair.
type GeoPoint struct {
	Lat float64
	Lon float64
}

// Geometry is the stored geometry of a place. Exactly one encoding is
// set: Point for current rows, WKT for legacy "POINT(lon lat)" rows.
type Geometry struct {
	Point *GeoPoint
	WKT   string
}

// PointGeometry builds a structured geometry from coordinates.
func PointGeometry(lat, lon float64) Geometry {
	return Geometry{Point: &GeoPoint{Lat: lat, Lon: lon}}
}

// WKTGeometry wraps legacy geometry text without parsing it.
func WKTGeometry(raw string) Geometry {
	return Geometry{WKT: raw}
}

// Resolve returns the coordinates the geometry encodes. ok is false
// when neither encoding yields a usable pair.
func (g Geometry) Resolve() (GeoPoint, bool) {
	if g.Point != nil {
		return *g.Point, true
	}
	if g.WKT != "" {
		if p, err := parseWKTPoint(g.WKT); err == nil {
			return p, true
		}
	}
	return GeoPoint{}, false
}

// parseWKTPoint parses the legacy "POINT(lon lat)" text encoding.
func parseWKTPoint(raw string) (GeoPoint, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(strings.ToUpper(s), "POINT") {
		return GeoPoint{}, fmt.Errorf("domain: not a WKT point: %q", raw)
	}
	open := strings.Index(s, "(")
	close := strings.LastIndex(s, ")")
	if open < 0 || close < open {
		return GeoPoint{}, fmt.Errorf("domain: malformed WKT point: %q", raw)
	}
	fields := strings.Fields(s[open+1 : close])
	if len(fields) != 2 {
		return GeoPoint{}, fmt.Errorf("domain: malformed WKT point: %q", raw)
	}
	lon, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("domain: WKT longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("domain: WKT latitude: %w", err)
	}
	return GeoPoint{Lat: lat, Lon: lon}, nil
}

// FormatCoordinate renders one coordinate with no trailing zeros.
func FormatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CoordinateLiteral is the address fallback used whenever reverse
// geocoding yields nothing.
func CoordinateLiteral(lat, lon float64) string {
	return FormatCoordinate(lat) + ", " + FormatCoordinate(lon)
}

// Place is a persisted venue record. ID is assigned by the datastore on
// insert. PhotoURL is empty when no photo was stored; Address is never
// empty on a persisted record.
type Place struct {
	ID        string
	Name      string
	Vibe      Vibe
	Category  Category
	Address   string
	Longitude float64
	Latitude  float64
	Geometry  Geometry
	PhotoURL  string
	Review    string
}

// PlaceUpdate is a partial update of one place. Nil fields keep their
// stored values.
type PlaceUpdate struct {
	Name      *string
	Vibe      *Vibe
	Category  *Category
	Address   *string
	Longitude *float64
	Latitude  *float64
	Geometry  *Geometry
	PhotoURL  *string
	Review    *string
}
