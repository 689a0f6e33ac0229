package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// GeocodeInput are the arguments of the geocode tool.
type GeocodeInput struct {
	Address string `json:"address"`
}

// GeocodeTool returns the geocode tool definition.
func GeocodeTool() mcp.Tool {
	return mcp.NewTool(ToolGeocode,
		mcp.WithDescription("Convert an address into coordinates with Naver Maps"),
		mcp.WithString("address",
			mcp.Required(),
			mcp.Description("Road or parcel address to look up, e.g. 서울특별시 강남구 테헤란로 152"),
		),
	)
}

// HandleGeocode returns the first candidate's address and position.
func (r *Registry) HandleGeocode(ctx context.Context, req mcp.CallToolRequest) Outcome {
	input, err := InputParser[GeocodeInput](req)
	if err != nil {
		return InvalidInput("%v", err)
	}
	if err := requireText("address", input.Address); err != nil {
		return InvalidInput("%v", err)
	}

	resp, err := r.gw.Geocode(ctx, input.Address)
	if err != nil {
		return FailedWith(err)
	}
	if len(resp.Addresses) == 0 {
		return NotFoundText(msgAddressNotFound)
	}

	first := resp.Addresses[0]
	pos := first.Position()
	if err := pos.Validate(); err != nil {
		return FailedWith(fmt.Errorf("geocoder returned an invalid position: %w", err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "주소: %s\n", first.PreferredAddress())
	if first.JibunAddress != "" && first.JibunAddress != first.PreferredAddress() {
		fmt.Fprintf(&b, "지번 주소: %s\n", first.JibunAddress)
	}
	if first.EnglishAddress != "" {
		fmt.Fprintf(&b, "영문 주소: %s\n", first.EnglishAddress)
	}
	fmt.Fprintf(&b, "위도, 경도: %s", formatLatLon(pos.Lat, pos.Lon))
	if n := len(resp.Addresses); n > 1 {
		fmt.Fprintf(&b, "\n(후보 %d건 중 첫 번째 결과)", n)
	}

	return FoundText(b.String())
}
