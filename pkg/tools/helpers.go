package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/NERVsystems/navermapmcp/pkg/coords"
	"github.com/NERVsystems/navermapmcp/pkg/tracing"
)

var wonPrinter = message.NewPrinter(language.Korean)

// InputParser decodes the request arguments into a typed struct.
func InputParser[T any](req mcp.CallToolRequest) (T, error) {
	var input T

	inputJSON, err := json.Marshal(req.GetArguments())
	if err != nil {
		return input, fmt.Errorf("invalid input format: %w", err)
	}
	if err := json.Unmarshal(inputJSON, &input); err != nil {
		return input, fmt.Errorf("failed to parse input: %w", err)
	}
	return input, nil
}

// resolvedLocation is a tool input after the geocoding pre-step.
type resolvedLocation struct {
	Input    string // as given by the caller
	Value    string // what is sent to the provider
	Geocoded bool   // Value came from a geocode candidate
}

// resolveLocation returns input unchanged when it already is a "lon,lat"
// pair. Otherwise it geocodes input and substitutes the first candidate's
// position. With no candidate the original string is passed through, so
// the provider call that follows reports the problem itself.
func resolveLocation(ctx context.Context, gw Gateway, input string) (resolvedLocation, error) {
	loc := resolvedLocation{Input: input, Value: input}
	if coords.IsCoordinate(input) {
		tracing.SetAttributes(ctx, attribute.Bool(tracing.AttrGeocodeSkipped, true))
		return loc, nil
	}

	resp, err := gw.Geocode(ctx, input)
	if err != nil {
		return loc, fmt.Errorf("geocoding %q: %w", input, err)
	}
	if len(resp.Addresses) == 0 {
		return loc, nil
	}

	loc.Value = resp.Addresses[0].Position().String()
	loc.Geocoded = true
	return loc, nil
}

// String renders "input (lon,lat)" for geocoded locations and the bare
// value otherwise.
func (l resolvedLocation) String() string {
	if l.Geocoded {
		return fmt.Sprintf("%s (%s)", l.Input, l.Value)
	}
	return l.Value
}

// formatWon renders an amount with thousands separators and the won
// suffix. A missing amount renders as "0원".
func formatWon(amount *int64) string {
	var v int64
	if amount != nil {
		v = *amount
	}
	return wonPrinter.Sprintf("%d원", v)
}

// formatKilometers renders meters as kilometers with one decimal.
func formatKilometers(meters int64) string {
	return fmt.Sprintf("%.1fkm", float64(meters)/1000)
}

// durationMinutes rounds milliseconds to whole minutes.
func durationMinutes(ms int64) int64 {
	return int64(math.Round(float64(ms) / 60000))
}

// formatLatLon renders a position latitude first, as "lat, lon".
func formatLatLon(lat, lon float64) string {
	return coords.FormatFloat(lat) + ", " + coords.FormatFloat(lon)
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}
