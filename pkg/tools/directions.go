package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/navermapmcp/pkg/ncp"
)

// DirectionsInput are the arguments of the directions tool.
type DirectionsInput struct {
	Start     string `json:"start"`
	Goal      string `json:"goal"`
	Option    string `json:"option,omitempty"`
	Waypoints string `json:"waypoints,omitempty"`
}

// DirectionsTool returns the directions tool definition.
func DirectionsTool() mcp.Tool {
	return mcp.NewTool(ToolDirections,
		mcp.WithDescription("Find a driving route between two places with Naver Maps. Start and goal accept \"longitude,latitude\" or an address."),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start position as \"longitude,latitude\" or an address"),
		),
		mcp.WithString("goal",
			mcp.Required(),
			mcp.Description("Goal position as \"longitude,latitude\" or an address"),
		),
		mcp.WithString("option",
			mcp.Description("Routing profile: trafast (real-time fastest), tracomfort (comfortable), traoptimal (optimal), trainormal (avoid motorways)"),
			mcp.Enum(ncp.OptionFast, ncp.OptionComfort, ncp.OptionOptimal, ncp.OptionNormal),
			mcp.DefaultString(ncp.OptionFast),
		),
		mcp.WithString("waypoints",
			mcp.Description("Optional waypoints as \"longitude,latitude\", separated by |"),
		),
	)
}

// HandleDirections resolves start and goal, requests a driving route and
// summarises the first route found.
func (r *Registry) HandleDirections(ctx context.Context, req mcp.CallToolRequest) Outcome {
	input, err := InputParser[DirectionsInput](req)
	if err != nil {
		return InvalidInput("%v", err)
	}
	if err := requireText("start", input.Start); err != nil {
		return InvalidInput("%v", err)
	}
	if err := requireText("goal", input.Goal); err != nil {
		return InvalidInput("%v", err)
	}
	if input.Option == "" {
		input.Option = ncp.OptionFast
	}
	if !validOption(input.Option) {
		return InvalidInput("option must be one of %s, got %q", strings.Join(ncp.RouteOptions, ", "), input.Option)
	}

	start, err := resolveLocation(ctx, r.gw, input.Start)
	if err != nil {
		return FailedWith(err)
	}
	goal, err := resolveLocation(ctx, r.gw, input.Goal)
	if err != nil {
		return FailedWith(err)
	}

	resp, err := r.gw.Driving(ctx, ncp.DrivingRequest{
		Start:     start.Value,
		Goal:      goal.Value,
		Option:    input.Option,
		Waypoints: input.Waypoints,
	})
	if err != nil {
		return FailedWith(err)
	}

	route, profile, ok := resp.Route.First()
	if !ok {
		return NotFoundText(msgRouteNotFound)
	}

	return FoundText(formatRoute(route.Summary, profile, start, goal))
}

func formatRoute(s ncp.RouteSummary, profile string, start, goal resolvedLocation) string {
	startLabel := s.Start.String()
	if startLabel == "" {
		startLabel = start.Value
	}
	goalLabel := s.Goal.String()
	if goalLabel == "" {
		goalLabel = goal.Value
	}

	var b strings.Builder
	fmt.Fprintf(&b, "경로 옵션: %s\n", profile)
	fmt.Fprintf(&b, "출발지: %s\n", labelWithInput(start, startLabel))
	fmt.Fprintf(&b, "도착지: %s\n", labelWithInput(goal, goalLabel))
	fmt.Fprintf(&b, "총 거리: %s\n", formatKilometers(s.Distance))
	fmt.Fprintf(&b, "예상 소요 시간: %d분\n", durationMinutes(s.Duration))
	fmt.Fprintf(&b, "통행료: %s\n", formatWon(s.TollFare))
	fmt.Fprintf(&b, "예상 유류비: %s", formatWon(s.FuelPrice))
	if s.TaxiFare != nil {
		fmt.Fprintf(&b, "\n예상 택시 요금: %s", formatWon(s.TaxiFare))
	}
	return b.String()
}

// labelWithInput prefixes the provider's location with the caller's
// address when the address was geocoded.
func labelWithInput(loc resolvedLocation, label string) string {
	if loc.Geocoded {
		return fmt.Sprintf("%s (%s)", loc.Input, label)
	}
	return label
}

func validOption(option string) bool {
	for _, o := range ncp.RouteOptions {
		if o == option {
			return true
		}
	}
	return false
}
