package ncp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/NERVsystems/navermapmcp/pkg/coords"
)

// Degrees decodes a coordinate the geocoder may send as either a JSON
// string ("127.0276") or a JSON number.
type Degrees float64

// UnmarshalJSON implements json.Unmarshaler.
func (d *Degrees) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*d = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid coordinate %q: %w", s, err)
		}
		*d = Degrees(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*d = Degrees(f)
	return nil
}

// GeocodeResponse is the body of /map-geocode/v2/geocode.
type GeocodeResponse struct {
	Status       string          `json:"status"`
	Meta         GeocodeMeta     `json:"meta"`
	Addresses    []GeocodeResult `json:"addresses"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

// GeocodeMeta carries paging information.
type GeocodeMeta struct {
	TotalCount int `json:"totalCount"`
	Page       int `json:"page"`
	Count      int `json:"count"`
}

// GeocodeResult is one address candidate. X is longitude, Y latitude.
type GeocodeResult struct {
	RoadAddress    string  `json:"roadAddress"`
	JibunAddress   string  `json:"jibunAddress"`
	EnglishAddress string  `json:"englishAddress"`
	X              Degrees `json:"x"`
	Y              Degrees `json:"y"`
	Distance       float64 `json:"distance,omitempty"`
}

// Position returns the candidate's coordinate.
func (r GeocodeResult) Position() coords.Pair {
	return coords.Pair{Lon: float64(r.X), Lat: float64(r.Y)}
}

// PreferredAddress returns the road address, or the parcel (jibun)
// address when the road address is empty.
func (r GeocodeResult) PreferredAddress() string {
	if r.RoadAddress != "" {
		return r.RoadAddress
	}
	return r.JibunAddress
}

// ReverseGeocodeResponse is the body of /map-reversegeocode/v2/gc.
type ReverseGeocodeResponse struct {
	Status  ReverseGeocodeStatus   `json:"status"`
	Results []ReverseGeocodeResult `json:"results"`
}

// ReverseGeocodeStatus is the in-body status block. Code 0 is success and
// 3 means no result.
type ReverseGeocodeStatus struct {
	Code    int    `json:"code"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ReverseGeocodeResult is one conversion result, one per requested order.
type ReverseGeocodeResult struct {
	Name   string `json:"name"` // "roadaddr", "addr", "admcode", "legalcode"
	Region Region `json:"region"`
	Land   *Land  `json:"land,omitempty"`
}

// Region is the administrative hierarchy, area0 being the country.
type Region struct {
	Area0 Area `json:"area0"`
	Area1 Area `json:"area1"`
	Area2 Area `json:"area2"`
	Area3 Area `json:"area3"`
	Area4 Area `json:"area4"`
}

// Area is one administrative level.
type Area struct {
	Name string `json:"name"`
}

// Land is the parcel or road part of an address.
type Land struct {
	Type      string   `json:"type"`
	Name      string   `json:"name"`
	Number1   string   `json:"number1"`
	Number2   string   `json:"number2"`
	Addition0 Addition `json:"addition0"`
}

// Addition is extra land information. For road addresses addition0 is
// the building name.
type Addition struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Label renders the result as a single address line, e.g.
// "서울특별시 강남구 역삼동 테헤란로 152 (강남파이낸스센터)".
func (r ReverseGeocodeResult) Label() string {
	var parts []string
	for _, a := range []Area{r.Region.Area1, r.Region.Area2, r.Region.Area3, r.Region.Area4} {
		if a.Name != "" {
			parts = append(parts, a.Name)
		}
	}
	if r.Land != nil {
		if r.Land.Name != "" {
			parts = append(parts, r.Land.Name)
		}
		if num := r.Land.number(); num != "" {
			parts = append(parts, num)
		}
		if r.Land.Addition0.Value != "" {
			parts = append(parts, "("+r.Land.Addition0.Value+")")
		}
	}
	return strings.Join(parts, " ")
}

func (l *Land) number() string {
	switch {
	case l.Number1 == "":
		return ""
	case l.Number2 == "":
		return l.Number1
	default:
		return l.Number1 + "-" + l.Number2
	}
}

// DrivingResponse is the body of /map-direction/v1/driving.
type DrivingResponse struct {
	Code            int    `json:"code"`
	Message         string `json:"message"`
	CurrentDateTime string `json:"currentDateTime"`
	Route           Routes `json:"route"`
}

// Routes holds one list per routing profile. The provider normally only
// fills the profiles that were requested.
type Routes struct {
	Trafast    []Route `json:"trafast,omitempty"`
	Traoptimal []Route `json:"traoptimal,omitempty"`
	Tracomfort []Route `json:"tracomfort,omitempty"`
	Trainormal []Route `json:"trainormal,omitempty"`
}

// Routing profile names accepted by the option parameter.
const (
	OptionFast    = "trafast"
	OptionOptimal = "traoptimal"
	OptionComfort = "tracomfort"
	OptionNormal  = "trainormal"
)

// RouteOptions lists the profiles in lookup priority order.
var RouteOptions = []string{OptionFast, OptionOptimal, OptionComfort, OptionNormal}

// First returns the first route of the first non-empty profile, scanning
// trafast, traoptimal, tracomfort, trainormal in that order. The profile
// name is returned alongside.
func (r Routes) First() (Route, string, bool) {
	lists := [][]Route{r.Trafast, r.Traoptimal, r.Tracomfort, r.Trainormal}
	for i, list := range lists {
		if len(list) > 0 {
			return list[0], RouteOptions[i], true
		}
	}
	return Route{}, "", false
}

// Route is one route of a profile.
type Route struct {
	Summary RouteSummary `json:"summary"`
}

// RouteSummary holds the totals of a route. Distance is in meters,
// Duration in milliseconds and fares in won.
type RouteSummary struct {
	Start     Location   `json:"start"`
	Goal      Location   `json:"goal"`
	Waypoints []Location `json:"waypoints,omitempty"`
	Distance  int64      `json:"distance"`
	Duration  int64      `json:"duration"`
	Departure string     `json:"departureTime,omitempty"`
	TollFare  *int64     `json:"tollFare,omitempty"`
	TaxiFare  *int64     `json:"taxiFare,omitempty"`
	FuelPrice *int64     `json:"fuelPrice,omitempty"`
}

// Location is a route endpoint as [lon, lat].
type Location struct {
	Location []float64 `json:"location"`
	Dir      int       `json:"dir,omitempty"`
}

// Pair converts the location, reporting false if it is malformed.
func (l Location) Pair() (coords.Pair, bool) {
	if len(l.Location) != 2 {
		return coords.Pair{}, false
	}
	return coords.Pair{Lon: l.Location[0], Lat: l.Location[1]}, true
}

// String renders the location as "lon,lat", or "" if absent.
func (l Location) String() string {
	p, ok := l.Pair()
	if !ok {
		return ""
	}
	return p.String()
}
