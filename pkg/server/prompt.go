package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// UsagePromptName is the name of the prompt describing tool usage.
const UsagePromptName = "naver_maps_usage"

const usagePrompt = `Naver Maps tools cover addresses and routes in South Korea.

- Coordinates are always written "longitude,latitude" (for example "127.0276,37.4979").
  Anything else is treated as an address and geocoded first.
- directions: start and goal accept an address or a coordinate pair. The option
  trafast, tracomfort, traoptimal or trainormal picks the route preference; when the
  requested preference is missing the first available route is returned.
- geocode: turns an address into coordinates. Korean road or parcel addresses work best.
- reverse_geocode: takes lat and lng as numbers and returns the road address, falling
  back to the parcel address.
- static_map: renders a map image around center. level is the zoom (1-20), w and h the
  size in pixels (1-1280), format png or jpeg.

Results are in Korean. "주소를 찾을 수 없습니다." or "경로를 찾을 수 없습니다." means the
provider had no match; "오류 발생:" means the request failed.`

func handleUsagePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return mcp.NewGetPromptResult(
		"Naver Maps tool usage",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleAssistant, mcp.NewTextContent(usagePrompt)),
		},
	), nil
}
