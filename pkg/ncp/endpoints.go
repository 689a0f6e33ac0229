package ncp

import (
	"context"
	"strings"

	"github.com/NERVsystems/navermapmcp/pkg/coords"
)

// Endpoint paths relative to the gateway origin.
const (
	PathGeocode        = "/map-geocode/v2/geocode"
	PathReverseGeocode = "/map-reversegeocode/v2/gc"
	PathDriving        = "/map-direction/v1/driving"
	PathStaticMap      = "/map-static/v2/raster"
)

// Geocode looks up candidates for a free-text address.
func (c *Client) Geocode(ctx context.Context, query string) (*GeocodeResponse, error) {
	var out GeocodeResponse
	if err := c.GetJSON(ctx, PathGeocode, Params{"query": query}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReverseGeocode resolves a position to addresses, road address first.
// The wire parameter is ordered longitude first.
func (c *Client) ReverseGeocode(ctx context.Context, lon, lat float64) (*ReverseGeocodeResponse, error) {
	var out ReverseGeocodeResponse
	params := Params{
		"coords": coords.Pair{Lon: lon, Lat: lat}.String(),
		"output": "json",
		"orders": "roadaddr,addr",
	}
	if err := c.GetJSON(ctx, PathReverseGeocode, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DrivingRequest holds the parameters of a driving route search. Start
// and Goal are "lon,lat" strings; Waypoints is "|"-separated and may be empty.
type DrivingRequest struct {
	Start     string
	Goal      string
	Option    string
	Waypoints string
}

func (r DrivingRequest) params() Params {
	p := Params{
		"start": r.Start,
		"goal":  r.Goal,
	}
	if r.Option != "" {
		p["option"] = r.Option
	}
	if w := strings.TrimSpace(r.Waypoints); w != "" {
		p["waypoints"] = w
	}
	return p
}

// Driving searches driving routes.
func (c *Client) Driving(ctx context.Context, r DrivingRequest) (*DrivingResponse, error) {
	var out DrivingResponse
	if err := c.GetJSON(ctx, PathDriving, r.params(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StaticMapRequest holds the parameters of a raster map render.
type StaticMapRequest struct {
	Center string // "lon,lat"
	Level  int
	Width  int
	Height int
	Format string // "png" or "jpeg"
}

func (r StaticMapRequest) params() Params {
	return Params{
		"center": r.Center,
		"level":  r.Level,
		"w":      r.Width,
		"h":      r.Height,
		"format": r.Format,
	}
}

// StaticMap renders a map image.
func (c *Client) StaticMap(ctx context.Context, r StaticMapRequest) (Binary, error) {
	return c.GetBinary(ctx, PathStaticMap, r.params())
}
