// Package coords decides whether user input already is a coordinate pair.
//
// Naver Maps endpoints take positions as "longitude,latitude" strings, so
// tools accept either such a pair or a free-text address. An input is only
// treated as a coordinate when it has exactly two comma-separated numeric
// parts that fall inside the WGS84 longitude and latitude ranges; anything
// else is handed to the geocoder.
package coords

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Valid WGS84 ranges in decimal degrees.
const (
	MinLongitude = -180.0
	MaxLongitude = 180.0
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
)

// Pair is a longitude/latitude position in decimal degrees.
type Pair struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// String renders the pair in the provider's wire order, "lon,lat".
func (p Pair) String() string {
	return FormatFloat(p.Lon) + "," + FormatFloat(p.Lat)
}

// Validate checks that both components are within range.
func (p Pair) Validate() error {
	if math.IsNaN(p.Lon) || p.Lon < MinLongitude || p.Lon > MaxLongitude {
		return fmt.Errorf("longitude out of range: %v (must be between -180 and 180)", p.Lon)
	}
	if math.IsNaN(p.Lat) || p.Lat < MinLatitude || p.Lat > MaxLatitude {
		return fmt.Errorf("latitude out of range: %v (must be between -90 and 90)", p.Lat)
	}
	return nil
}

// Parse converts "lon,lat" into a Pair. Whitespace around either number is
// ignored. Inputs with any other number of commas, non-numeric parts,
// non-finite values or out-of-range values are rejected.
func Parse(input string) (Pair, error) {
	parts := strings.Split(input, ",")
	if len(parts) != 2 {
		return Pair{}, fmt.Errorf("expected \"lon,lat\", got %q", input)
	}

	lon, err := parseFinite(parts[0])
	if err != nil {
		return Pair{}, fmt.Errorf("invalid longitude %q: %w", parts[0], err)
	}
	lat, err := parseFinite(parts[1])
	if err != nil {
		return Pair{}, fmt.Errorf("invalid latitude %q: %w", parts[1], err)
	}

	p := Pair{Lon: lon, Lat: lat}
	if err := p.Validate(); err != nil {
		return Pair{}, err
	}
	return p, nil
}

// IsCoordinate reports whether input is a valid "lon,lat" pair.
func IsCoordinate(input string) bool {
	_, err := Parse(input)
	return err == nil
}

// FormatFloat renders f with the fewest digits that round-trip, so 127.0
// becomes "127" and 37.5 stays "37.5".
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFinite(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("not a finite number")
	}
	return f, nil
}
