package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/navermapmcp/pkg/coords"
)

// ReverseGeocodeInput are the arguments of the reverse_geocode tool.
type ReverseGeocodeInput struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// ReverseGeocodeTool returns the reverse_geocode tool definition.
func ReverseGeocodeTool() mcp.Tool {
	return mcp.NewTool(ToolReverseGeocode,
		mcp.WithDescription("Convert coordinates into an address with Naver Maps"),
		mcp.WithNumber("lat",
			mcp.Required(),
			mcp.Description("Latitude in decimal degrees"),
			mcp.Min(coords.MinLatitude),
			mcp.Max(coords.MaxLatitude),
		),
		mcp.WithNumber("lng",
			mcp.Required(),
			mcp.Description("Longitude in decimal degrees"),
			mcp.Min(coords.MinLongitude),
			mcp.Max(coords.MaxLongitude),
		),
	)
}

// HandleReverseGeocode labels the first result for a position.
func (r *Registry) HandleReverseGeocode(ctx context.Context, req mcp.CallToolRequest) Outcome {
	input, err := InputParser[ReverseGeocodeInput](req)
	if err != nil {
		return InvalidInput("%v", err)
	}
	if input.Lat == nil || input.Lng == nil {
		return InvalidInput("lat and lng are required")
	}

	pos := coords.Pair{Lon: *input.Lng, Lat: *input.Lat}
	if err := pos.Validate(); err != nil {
		return InvalidInput("%v", err)
	}

	resp, err := r.gw.ReverseGeocode(ctx, pos.Lon, pos.Lat)
	if err != nil {
		return FailedWith(err)
	}
	if len(resp.Results) == 0 {
		return NotFoundText(msgCoordinateNotMatched)
	}

	label := resp.Results[0].Label()
	if label == "" {
		return NotFoundText(msgCoordinateNotMatched)
	}

	return FoundText(fmt.Sprintf("주소: %s\n위도, 경도: %s", label, formatLatLon(pos.Lat, pos.Lon)))
}
